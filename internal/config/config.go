package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"rl-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// defaultTrackedPlayers is the built-in roster of stable Steam IDs whose
// performance is recorded. Everyone else in a replay is ignored.
var defaultTrackedPlayers = map[string]string{
	"76561197969365901": "Drew",
	"76561198008422893": "Steve",
	"76561197964215253": "Jeff",
}

type Config struct {
	DBPath         string
	ServerPort     string
	LogLevel       string
	ReplayDir      string
	ConverterBin   string
	ConvertTimeout time.Duration
	UploadDebounce time.Duration
	TrackedPlayers map[string]string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	tracked, err := parseRoster(getEnv("TRACKED_PLAYERS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:         getEnv("DB_PATH", "db/rl_stats.sqlite"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ReplayDir:      getEnv("REPLAY_DIR", "replays"),
		ConverterBin:   getEnv("CONVERTER_BIN", "rrrocket"),
		ConvertTimeout: getDuration("CONVERT_TIMEOUT", constants.ConvertTimeout, logger),
		UploadDebounce: getDuration("UPLOAD_DEBOUNCE", constants.UploadDebounce, logger),
		TrackedPlayers: tracked,
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("replay_dir", cfg.ReplayDir).
		Str("converter_bin", cfg.ConverterBin).
		Dur("convert_timeout", cfg.ConvertTimeout).
		Dur("upload_debounce", cfg.UploadDebounce).
		Int("tracked_players", len(cfg.TrackedPlayers)).
		Msg("configuration loaded")

	return cfg, nil
}

// parseRoster reads a "steamID:name,steamID:name" list. An empty value keeps
// the built-in roster.
func parseRoster(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultTrackedPlayers, nil
	}
	roster := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		id, name, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid TRACKED_PLAYERS entry %q", entry)
		}
		roster[id] = name
	}
	return roster, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, logger zerolog.Logger) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
