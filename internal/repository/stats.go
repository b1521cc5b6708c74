package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rl-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// StatsRepository serves the mechanical per-mode aggregate projections. All
// queries filter on the GameMode enum; no SQL identifier is ever built from
// caller input.
type StatsRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func NewStatsRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{db: sqlDB, logger: logger}
}

type PlayerTotalsRow struct {
	Player  string
	Matches int
	Goals   int
	Assists int
	Saves   int
	Shots   int
}

func (r *StatsRepository) PlayerTotals(ctx context.Context, mode domain.GameMode) ([]PlayerTotalsRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, COUNT(*),
		       SUM(mp.goals), SUM(mp.assists), SUM(mp.saves), SUM(mp.shots)
		FROM match_players mp
		JOIN players p ON mp.player_id = p.id
		JOIN matches m ON mp.match_id = m.id
		WHERE m.game_mode = ?
		GROUP BY p.id
		ORDER BY p.name`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query player totals: %w", err)
	}
	defer rows.Close()

	out := []PlayerTotalsRow{}
	for rows.Next() {
		var row PlayerTotalsRow
		if err := rows.Scan(&row.Player, &row.Matches, &row.Goals, &row.Assists, &row.Saves, &row.Shots); err != nil {
			return nil, fmt.Errorf("failed to scan player totals: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type ShootingRow struct {
	Player      string
	Goals       int
	Shots       int
	ShootingPct float64
}

func (r *StatsRepository) ShootingPct(ctx context.Context, mode domain.GameMode) ([]ShootingRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, SUM(mp.goals), SUM(mp.shots),
		       CASE WHEN SUM(mp.shots) > 0
		            THEN ROUND(CAST(SUM(mp.goals) AS REAL) / SUM(mp.shots) * 100, 1)
		            ELSE 0 END
		FROM match_players mp
		JOIN players p ON mp.player_id = p.id
		JOIN matches m ON mp.match_id = m.id
		WHERE m.game_mode = ?
		GROUP BY p.id
		ORDER BY p.name`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shooting pct: %w", err)
	}
	defer rows.Close()

	out := []ShootingRow{}
	for rows.Next() {
		var row ShootingRow
		if err := rows.Scan(&row.Player, &row.Goals, &row.Shots, &row.ShootingPct); err != nil {
			return nil, fmt.Errorf("failed to scan shooting pct: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type MVPWinRateRow struct {
	Player     string
	MVPMatches int
	MVPWins    int
	WinRate    float64
}

func (r *StatsRepository) MVPWinRate(ctx context.Context, mode domain.GameMode) ([]MVPWinRateRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, COUNT(*),
		       SUM(CASE WHEN m.result = 'win' THEN 1 ELSE 0 END),
		       ROUND(CAST(SUM(CASE WHEN m.result = 'win' THEN 1 ELSE 0 END) AS REAL) / COUNT(*), 3)
		FROM matches m
		JOIN players p ON m.team_mvp_player_id = p.id
		WHERE m.game_mode = ?
		GROUP BY p.id
		ORDER BY p.name`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query mvp win rate: %w", err)
	}
	defer rows.Close()

	out := []MVPWinRateRow{}
	for rows.Next() {
		var row MVPWinRateRow
		if err := rows.Scan(&row.Player, &row.MVPMatches, &row.MVPWins, &row.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan mvp win rate: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type AvgScoreRow struct {
	Player     string
	Matches    int
	TotalScore int
	AvgScore   float64
}

func (r *StatsRepository) AvgScore(ctx context.Context, mode domain.GameMode) ([]AvgScoreRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, COUNT(*), SUM(mp.score), ROUND(AVG(mp.score), 1)
		FROM match_players mp
		JOIN players p ON mp.player_id = p.id
		JOIN matches m ON mp.match_id = m.id
		WHERE m.game_mode = ?
		GROUP BY p.id
		ORDER BY p.name`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query avg score: %w", err)
	}
	defer rows.Close()

	out := []AvgScoreRow{}
	for rows.Next() {
		var row AvgScoreRow
		if err := rows.Scan(&row.Player, &row.Matches, &row.TotalScore, &row.AvgScore); err != nil {
			return nil, fmt.Errorf("failed to scan avg score: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type ScoreDifferentialRow struct {
	Differential int
	MatchCount   int
}

func (r *StatsRepository) ScoreDifferential(ctx context.Context, mode domain.GameMode) ([]ScoreDifferentialRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.team_score - m.opponent_score, COUNT(*)
		FROM matches m
		WHERE m.game_mode = ? AND m.team_score IS NOT NULL
		GROUP BY m.team_score - m.opponent_score
		ORDER BY m.team_score - m.opponent_score`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query score differential: %w", err)
	}
	defer rows.Close()

	out := []ScoreDifferentialRow{}
	for rows.Next() {
		var row ScoreDifferentialRow
		if err := rows.Scan(&row.Differential, &row.MatchCount); err != nil {
			return nil, fmt.Errorf("failed to scan score differential: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type DailyWinLossRow struct {
	Date    string
	Wins    int
	Losses  int
	WinRate float64
}

func (r *StatsRepository) WinLossDaily(ctx context.Context, mode domain.GameMode) ([]DailyWinLossRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DATE(m.played_at),
		       SUM(CASE WHEN m.result = 'win' THEN 1 ELSE 0 END) AS wins,
		       SUM(CASE WHEN m.result = 'loss' THEN 1 ELSE 0 END) AS losses,
		       CASE WHEN SUM(CASE WHEN m.result IN ('win', 'loss') THEN 1 ELSE 0 END) > 0
		            THEN ROUND(CAST(SUM(CASE WHEN m.result = 'win' THEN 1 ELSE 0 END) AS REAL)
		                 / SUM(CASE WHEN m.result IN ('win', 'loss') THEN 1 ELSE 0 END), 3)
		            ELSE 0 END
		FROM matches m
		WHERE m.game_mode = ? AND m.played_at IS NOT NULL
		GROUP BY DATE(m.played_at)
		ORDER BY DATE(m.played_at)`,
		mode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily win/loss: %w", err)
	}
	defer rows.Close()

	out := []DailyWinLossRow{}
	for rows.Next() {
		var row DailyWinLossRow
		if err := rows.Scan(&row.Date, &row.Wins, &row.Losses, &row.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan daily win/loss: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
