package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rl-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: sqlDB, logger: logger}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PlayerRepository) WithTx(tx *sql.Tx) *PlayerRepository {
	return &PlayerRepository{db: tx, logger: r.logger}
}

// FindOrCreate inserts the player if the steam id is new and returns the row
// id either way. A stable id always maps to exactly one player.
func (r *PlayerRepository) FindOrCreate(ctx context.Context, steamID, name string) (int64, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO players (steam_id, name) VALUES (?, ?)`,
		steamID, name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert player %s: %w", steamID, err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM players WHERE steam_id = ?`,
		steamID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read back player %s: %w", steamID, err)
	}
	return id, nil
}

func (r *PlayerRepository) Get(ctx context.Context, steamID string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.QueryRowContext(ctx,
		`SELECT id, steam_id, name FROM players WHERE steam_id = ?`,
		steamID,
	).Scan(&p.ID, &p.SteamID, &p.Name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
