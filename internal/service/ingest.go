package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rl-tracker/internal/domain"
	"rl-tracker/internal/replay"
	"rl-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// IngestService runs one telemetry record through normalize, outcome
// resolution, and the upsert store. The caller owns the transaction so a
// batch of records commits as a unit.
type IngestService struct {
	normalizer *replay.Normalizer
	matches    *repository.MatchRepository
	players    *repository.PlayerRepository
	logger     zerolog.Logger
}

func NewIngestService(
	normalizer *replay.Normalizer,
	matches *repository.MatchRepository,
	players *repository.PlayerRepository,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		normalizer: normalizer,
		matches:    matches,
		players:    players,
		logger:     logger,
	}
}

// IngestTelemetry decodes and ingests raw converter output within tx.
func (s *IngestService) IngestTelemetry(ctx context.Context, tx *sql.Tx, data []byte) error {
	t, err := replay.Decode(data)
	if err != nil {
		return err
	}
	return s.IngestRecord(ctx, tx, t)
}

// IngestRecord ingests one decoded record. Records with no replay hash are
// skipped silently; re-ingesting a hash replaces the earlier rows.
func (s *IngestService) IngestRecord(ctx context.Context, tx *sql.Tx, t *replay.Telemetry) error {
	norm, err := s.normalizer.Normalize(t)
	if errors.Is(err, replay.ErrNotIngestible) {
		s.logger.Debug().Msg("telemetry has no replay hash, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	outcome := replay.ResolveOutcome(norm.Players, norm.Team0Score, norm.Team1Score)
	if !outcome.Resolved() && replay.SplitAcrossTeams(norm.Players) {
		s.logger.Warn().
			Str("replay_hash", norm.ReplayHash).
			Msg("tracked players split across both teams, recording match with no side")
	}

	players := s.players.WithTx(tx)
	matches := s.matches.WithTx(tx)

	var mvpPlayerID *int64
	if mvp := replay.MVP(norm.Players); mvp != nil {
		id, err := players.FindOrCreate(ctx, mvp.SteamID, mvp.Name)
		if err != nil {
			return fmt.Errorf("failed to resolve mvp player: %w", err)
		}
		mvpPlayerID = &id
	}

	matchID, err := matches.Upsert(ctx, &domain.Match{
		ReplayHash:      norm.ReplayHash,
		PlayedAt:        norm.PlayedAt,
		DurationSeconds: norm.DurationSeconds,
		Forfeit:         norm.Forfeit,
		TeamSize:        norm.TeamSize,
		Team:            outcome.Team,
		TeamScore:       outcome.TeamScore,
		OpponentScore:   outcome.OpponentScore,
		Result:          outcome.Result,
		MVPPlayerID:     mvpPlayerID,
		MapName:         norm.MapName,
		GameMode:        norm.GameMode,
	})
	if err != nil {
		return err
	}

	for _, p := range norm.Players {
		playerID, err := players.FindOrCreate(ctx, p.SteamID, p.Name)
		if err != nil {
			return fmt.Errorf("failed to resolve player %s: %w", p.SteamID, err)
		}
		err = matches.UpsertPlayer(ctx, &domain.MatchPlayer{
			MatchID:  matchID,
			PlayerID: playerID,
			Team:     p.Team,
			Goals:    p.Goals,
			Assists:  p.Assists,
			Saves:    p.Saves,
			Shots:    p.Shots,
			Score:    p.Score,
		})
		if err != nil {
			return err
		}
	}

	s.logger.Debug().
		Str("replay_hash", norm.ReplayHash).
		Int64("match_id", matchID).
		Int("tracked_players", len(norm.Players)).
		Msg("match ingested")
	return nil
}
