package fx

import (
	"rl-tracker/internal/config"
	"rl-tracker/internal/database"
	"rl-tracker/internal/logger"
	"rl-tracker/internal/pipeline"
	"rl-tracker/internal/replay"
	"rl-tracker/internal/repository"
	"rl-tracker/internal/server"
	"rl-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideRoster(cfg *config.Config) replay.Roster {
	return replay.Roster(cfg.TrackedPlayers)
}

func ProvideConverter(c *pipeline.ExecConverter) pipeline.Converter {
	return c
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(ProvideRoster),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewStatsRepository),
	// ingestion
	fx.Provide(replay.NewNormalizer),
	fx.Provide(pipeline.NewExecConverter),
	fx.Provide(ProvideConverter),
	fx.Provide(pipeline.NewProcessor),
	// svc
	fx.Provide(service.NewIngestService),
	fx.Provide(service.NewStatsService),
	// server
	fx.Provide(server.New),
)
