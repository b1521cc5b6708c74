package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rl-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, logger: logger}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MatchRepository) WithTx(tx *sql.Tx) *MatchRepository {
	return &MatchRepository{db: tx, logger: r.logger}
}

// Upsert inserts or replaces the match keyed on its replay hash and returns
// the row id for that hash. A missing row after the write surfaces as
// ErrMatchRowMissing, which callers must treat as fatal.
func (r *MatchRepository) Upsert(ctx context.Context, m *domain.Match) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO matches (
			replay_hash,
			played_at, duration_seconds, forfeit, team_size,
			team, team_score, opponent_score, result, team_mvp_player_id,
			map_name, game_mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ReplayHash,
		formatPlayedAt(m.PlayedAt),
		m.DurationSeconds,
		m.Forfeit,
		m.TeamSize,
		m.Team,
		m.TeamScore,
		m.OpponentScore,
		m.Result,
		m.MVPPlayerID,
		m.MapName,
		m.GameMode,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert match %s: %w", m.ReplayHash, err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM matches WHERE replay_hash = ?`,
		m.ReplayHash,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrMatchRowMissing, m.ReplayHash)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read back match %s: %w", m.ReplayHash, err)
	}
	return id, nil
}

// UpsertPlayer replaces the participation row for (match, player).
func (r *MatchRepository) UpsertPlayer(ctx context.Context, mp *domain.MatchPlayer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO match_players (
			match_id, player_id, team,
			goals, assists, saves, shots, score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mp.MatchID,
		mp.PlayerID,
		mp.Team,
		mp.Goals,
		mp.Assists,
		mp.Saves,
		mp.Shots,
		mp.Score,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match player %d/%d: %w", mp.MatchID, mp.PlayerID, err)
	}
	return nil
}

// MatchSummary is one row of the recent-match listing, with the MVP name
// joined in.
type MatchSummary struct {
	ID            int64
	GameMode      *domain.GameMode
	Result        *domain.Result
	Forfeit       bool
	TeamScore     *int
	OpponentScore *int
	PlayedAt      *time.Time
	MVPName       *string
}

func (r *MatchRepository) ListRecent(ctx context.Context, limit int) ([]MatchSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.game_mode, m.result, m.forfeit, m.team_score,
		       m.opponent_score, m.played_at, p.name
		FROM matches m
		LEFT JOIN players p ON m.team_mvp_player_id = p.id
		ORDER BY m.played_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	out := []MatchSummary{}
	for rows.Next() {
		var (
			s                   MatchSummary
			mode, result        sql.NullString
			teamScore, oppScore sql.NullInt64
			playedAt, mvpName   sql.NullString
		)
		if err := rows.Scan(&s.ID, &mode, &result, &s.Forfeit, &teamScore, &oppScore, &playedAt, &mvpName); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		s.GameMode = nullMode(mode)
		s.Result = nullResult(result)
		s.TeamScore = nullInt(teamScore)
		s.OpponentScore = nullInt(oppScore)
		s.PlayedAt = parsePlayedAt(playedAt)
		s.MVPName = nullStr(mvpName)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ParticipantRow is one player's stat line within a match, with the
// shooting percentage already projected.
type ParticipantRow struct {
	Name        string
	Score       int
	Goals       int
	Assists     int
	Saves       int
	Shots       int
	ShootingPct float64
}

func (r *MatchRepository) Participants(ctx context.Context, matchID int64) ([]ParticipantRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, mp.score, mp.goals, mp.assists, mp.saves, mp.shots,
		       CASE WHEN mp.shots > 0
		            THEN ROUND(CAST(mp.goals AS REAL) / mp.shots * 100, 1)
		            ELSE 0 END
		FROM match_players mp
		JOIN players p ON mp.player_id = p.id
		WHERE mp.match_id = ?
		ORDER BY mp.score DESC`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list match players: %w", err)
	}
	defer rows.Close()

	out := []ParticipantRow{}
	for rows.Next() {
		var p ParticipantRow
		if err := rows.Scan(&p.Name, &p.Score, &p.Goals, &p.Assists, &p.Saves, &p.Shots, &p.ShootingPct); err != nil {
			return nil, fmt.Errorf("failed to scan match player row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TimelineEntry is one timestamped match in chronological order, the input
// to session clustering. Matches with no timestamp are excluded.
type TimelineEntry struct {
	MatchID  int64
	PlayedAt time.Time
	GameMode *domain.GameMode
	Result   *domain.Result
}

func (r *MatchRepository) ListTimeline(ctx context.Context) ([]TimelineEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, played_at, game_mode, result
		FROM matches
		WHERE played_at IS NOT NULL
		ORDER BY played_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list match timeline: %w", err)
	}
	defer rows.Close()

	out := []TimelineEntry{}
	for rows.Next() {
		var (
			e            TimelineEntry
			playedAt     sql.NullString
			mode, result sql.NullString
		)
		if err := rows.Scan(&e.MatchID, &playedAt, &mode, &result); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		t := parsePlayedAt(playedAt)
		if t == nil {
			continue
		}
		e.PlayedAt = *t
		e.GameMode = nullMode(mode)
		e.Result = nullResult(result)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListResults returns the chronologically ordered win/loss sequence for one
// mode, the input to streak computation. Draws and unresolved matches are
// not part of the sequence.
func (r *MatchRepository) ListResults(ctx context.Context, mode domain.GameMode) ([]domain.Result, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT result
		FROM matches
		WHERE game_mode = ? AND result IN ('win', 'loss')
		ORDER BY played_at ASC, id ASC`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	out := []domain.Result{}
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		out = append(out, domain.Result(result))
	}
	return out, rows.Err()
}

// GetByHash loads a match by its replay hash.
func (r *MatchRepository) GetByHash(ctx context.Context, hash string) (*domain.Match, error) {
	var (
		m                                domain.Match
		playedAt, result, mapName, mode  sql.NullString
		duration, teamSize, team         sql.NullInt64
		teamScore, oppScore, mvpPlayerID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, replay_hash, played_at, duration_seconds, forfeit, team_size,
		       team, team_score, opponent_score, result, team_mvp_player_id,
		       map_name, game_mode
		FROM matches WHERE replay_hash = ?`,
		hash,
	).Scan(&m.ID, &m.ReplayHash, &playedAt, &duration, &m.Forfeit, &teamSize,
		&team, &teamScore, &oppScore, &result, &mvpPlayerID, &mapName, &mode)
	if err != nil {
		return nil, err
	}
	m.PlayedAt = parsePlayedAt(playedAt)
	m.DurationSeconds = nullInt(duration)
	m.TeamSize = nullInt(teamSize)
	m.Team = nullInt(team)
	m.TeamScore = nullInt(teamScore)
	m.OpponentScore = nullInt(oppScore)
	m.Result = nullResult(result)
	if mvpPlayerID.Valid {
		m.MVPPlayerID = &mvpPlayerID.Int64
	}
	m.MapName = nullStr(mapName)
	m.GameMode = nullMode(mode)
	return &m, nil
}
