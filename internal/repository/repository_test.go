package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"rl-tracker/internal/config"
	"rl-tracker/internal/database"
	"rl-tracker/internal/domain"

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

func TestFindOrCreateIsStable(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	first, err := players.FindOrCreate(ctx, "1001", "Drew")
	require.NoError(t, err)
	second, err := players.FindOrCreate(ctx, "1001", "Andrew")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// a colliding name never merges distinct stable ids
	other, err := players.FindOrCreate(ctx, "1002", "Drew")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func timePtr(t time.Time) *time.Time { return &t }

func seedMatch(t *testing.T, matches *MatchRepository, hash string, playedAt *time.Time, result *domain.Result, mode domain.GameMode) int64 {
	t.Helper()
	id, err := matches.Upsert(context.Background(), &domain.Match{
		ReplayHash: hash,
		PlayedAt:   playedAt,
		Result:     result,
		GameMode:   &mode,
	})
	require.NoError(t, err)
	return id
}

func resultPtr(r domain.Result) *domain.Result { return &r }

func TestUpsertReplacesByHash(t *testing.T) {
	db := newTestDB(t)
	matches := NewMatchRepository(db, zerolog.Nop())

	at := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	seedMatch(t, matches, "hash-1", timePtr(at), resultPtr(domain.ResultWin), domain.Mode3v3)
	seedMatch(t, matches, "hash-1", timePtr(at), resultPtr(domain.ResultLoss), domain.Mode3v3)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&count))
	assert.Equal(t, 1, count)

	m, err := matches.GetByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultLoss, *m.Result)
	require.NotNil(t, m.PlayedAt)
	assert.True(t, at.Equal(*m.PlayedAt))
}

func TestListTimelineSkipsNullTimestamps(t *testing.T) {
	db := newTestDB(t)
	matches := NewMatchRepository(db, zerolog.Nop())

	base := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	seedMatch(t, matches, "later", timePtr(base.Add(time.Hour)), resultPtr(domain.ResultLoss), domain.Mode3v3)
	seedMatch(t, matches, "earlier", timePtr(base), resultPtr(domain.ResultWin), domain.Mode3v3)
	seedMatch(t, matches, "undated", nil, resultPtr(domain.ResultWin), domain.Mode3v3)

	timeline, err := matches.ListTimeline(context.Background())
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.True(t, timeline[0].PlayedAt.Before(timeline[1].PlayedAt))
}

func TestListResultsFiltersToWinLoss(t *testing.T) {
	db := newTestDB(t)
	matches := NewMatchRepository(db, zerolog.Nop())

	base := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	seedMatch(t, matches, "h1", timePtr(base), resultPtr(domain.ResultWin), domain.Mode3v3)
	seedMatch(t, matches, "h2", timePtr(base.Add(time.Minute)), resultPtr(domain.ResultDraw), domain.Mode3v3)
	seedMatch(t, matches, "h3", timePtr(base.Add(2*time.Minute)), resultPtr(domain.ResultLoss), domain.Mode3v3)
	seedMatch(t, matches, "h4", timePtr(base.Add(3*time.Minute)), resultPtr(domain.ResultWin), domain.Mode2v2)

	results, err := matches.ListResults(context.Background(), domain.Mode3v3)
	require.NoError(t, err)
	assert.Equal(t, []domain.Result{domain.ResultWin, domain.ResultLoss}, results)
}
