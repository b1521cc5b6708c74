package constants

import "time"

const (
	// SessionGap is the maximum idle time between two matches that still
	// belong to the same play session.
	SessionGap = 60 * time.Minute
)

const (
	ConvertTimeout = 30 * time.Second
	UploadDebounce = 2 * time.Second

	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const (
	// MinReplaySize rejects truncated uploads before they reach the converter.
	MinReplaySize = 256 * 1024
	MaxUploadSize = 3 * 1024 * 1024
)

const (
	// SQLite allows a single writer; all mutation runs under the batch lock
	// anyway, so one connection is enough.
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
)

const (
	RecentMatchLimit = 50
)
