package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"rl-tracker/internal/config"
	"rl-tracker/internal/database"
	"rl-tracker/internal/replay"
	"rl-tracker/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.sqlite")}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestIngest(t *testing.T, db *sql.DB) *IngestService {
	t.Helper()
	roster := replay.Roster{"1001": "Drew", "1002": "Steve", "1003": "Jeff"}
	return NewIngestService(
		replay.NewNormalizer(roster, zerolog.Nop()),
		repository.NewMatchRepository(db, zerolog.Nop()),
		repository.NewPlayerRepository(db, zerolog.Nop()),
		zerolog.Nop(),
	)
}

func ingestRecord(t *testing.T, db *sql.DB, svc *IngestService, props replay.Properties) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, svc.IngestRecord(context.Background(), tx, &replay.Telemetry{Properties: props}))
	require.NoError(t, tx.Commit())
}

func matchProps(hash string, score int) replay.Properties {
	return replay.Properties{
		"MatchGUID":          hash,
		"Date":               "2024-03-01 21-05-30",
		"TotalSecondsPlayed": float64(312),
		"TeamSize":           float64(3),
		"MapName":            "Park_Night_P",
		"Team0Score":         float64(5),
		"Team1Score":         float64(4),
		"PlayerStats": []any{
			map[string]any{
				"OnlineID": "1001", "Team": float64(0),
				"Goals": float64(2), "Assists": float64(1),
				"Saves": float64(3), "Shots": float64(6),
				"Score": float64(score),
			},
			map[string]any{
				"OnlineID": "1002", "Team": float64(0),
				"Goals": float64(3), "Score": float64(448),
			},
		},
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestIngest(t, db)

	ingestRecord(t, db, svc, matchProps("hash-1", 100))
	ingestRecord(t, db, svc, matchProps("hash-1", 500))

	var matchCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&matchCount))
	assert.Equal(t, 1, matchCount)

	// participation reflects the second ingestion
	var score int
	require.NoError(t, db.QueryRow(`
		SELECT mp.score FROM match_players mp
		JOIN players p ON mp.player_id = p.id
		WHERE p.steam_id = '1001'`).Scan(&score))
	assert.Equal(t, 500, score)

	var playerRows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM match_players`).Scan(&playerRows))
	assert.Equal(t, 2, playerRows)
}

func TestIngestResolvesOutcomeAndMVP(t *testing.T) {
	db := newTestDB(t)
	svc := newTestIngest(t, db)

	ingestRecord(t, db, svc, matchProps("hash-2", 340))

	matches := repository.NewMatchRepository(db, zerolog.Nop())
	m, err := matches.GetByHash(context.Background(), "hash-2")
	require.NoError(t, err)

	require.NotNil(t, m.Result)
	assert.Equal(t, "win", string(*m.Result))
	assert.Equal(t, 5, *m.TeamScore)
	assert.Equal(t, 4, *m.OpponentScore)
	assert.Equal(t, 0, *m.Team)
	assert.Equal(t, "3v3", string(*m.GameMode))
	assert.Equal(t, 312, *m.DurationSeconds)

	// MVP is the highest tracked score (Steve, 448)
	require.NotNil(t, m.MVPPlayerID)
	var mvpSteamID string
	require.NoError(t, db.QueryRow(`SELECT steam_id FROM players WHERE id = ?`, *m.MVPPlayerID).Scan(&mvpSteamID))
	assert.Equal(t, "1002", mvpSteamID)
}

func TestIngestSplitTeamsRecordsNulls(t *testing.T) {
	db := newTestDB(t)
	svc := newTestIngest(t, db)

	props := matchProps("hash-3", 100)
	props["PlayerStats"] = []any{
		map[string]any{"OnlineID": "1001", "Team": float64(0), "Score": float64(100)},
		map[string]any{"OnlineID": "1002", "Team": float64(1), "Score": float64(200)},
	}
	ingestRecord(t, db, svc, props)

	matches := repository.NewMatchRepository(db, zerolog.Nop())
	m, err := matches.GetByHash(context.Background(), "hash-3")
	require.NoError(t, err)

	assert.Nil(t, m.Team)
	assert.Nil(t, m.TeamScore)
	assert.Nil(t, m.OpponentScore)
	assert.Nil(t, m.Result)
}

func TestIngestSkipsRecordWithoutHash(t *testing.T) {
	db := newTestDB(t)
	svc := newTestIngest(t, db)

	ingestRecord(t, db, svc, replay.Properties{"Date": "2024-03-01 21-05-30"})

	var matchCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&matchCount))
	assert.Zero(t, matchCount)
}

func TestIngestMalformedTimestampStoresNull(t *testing.T) {
	db := newTestDB(t)
	svc := newTestIngest(t, db)

	props := matchProps("hash-4", 100)
	props["Date"] = "yesterday-ish"
	ingestRecord(t, db, svc, props)

	matches := repository.NewMatchRepository(db, zerolog.Nop())
	m, err := matches.GetByHash(context.Background(), "hash-4")
	require.NoError(t, err)
	assert.Nil(t, m.PlayedAt)
}

func TestIngestUntrackedPlayersDiscarded(t *testing.T) {
	db := newTestDB(t)
	svc := newTestIngest(t, db)

	props := matchProps("hash-5", 100)
	props["PlayerStats"] = []any{
		map[string]any{"OnlineID": "9999", "Team": float64(0), "Score": float64(999)},
	}
	ingestRecord(t, db, svc, props)

	var playerRows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM match_players`).Scan(&playerRows))
	assert.Zero(t, playerRows)

	matches := repository.NewMatchRepository(db, zerolog.Nop())
	m, err := matches.GetByHash(context.Background(), "hash-5")
	require.NoError(t, err)
	assert.Nil(t, m.MVPPlayerID)
	assert.Nil(t, m.Result)
}
