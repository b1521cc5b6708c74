package service

import (
	"testing"
	"time"

	"rl-tracker/internal/domain"
	"rl-tracker/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int64, at string, result *domain.Result) repository.TimelineEntry {
	t, err := time.Parse("2006-01-02 15:04", at)
	if err != nil {
		panic(err)
	}
	mode := domain.Mode3v3
	return repository.TimelineEntry{MatchID: id, PlayedAt: t, GameMode: &mode, Result: result}
}

func resPtr(r domain.Result) *domain.Result { return &r }

func TestClusterSessionsGapThreshold(t *testing.T) {
	timeline := []repository.TimelineEntry{
		entry(1, "2024-03-01 20:00", resPtr(domain.ResultWin)),
		entry(2, "2024-03-01 20:15", resPtr(domain.ResultWin)),
		entry(3, "2024-03-01 20:30", resPtr(domain.ResultLoss)),
		entry(4, "2024-03-01 22:30", resPtr(domain.ResultWin)),
	}

	sessions := clusterSessions(timeline)
	require.Len(t, sessions, 2)

	assert.Equal(t, 1, sessions[0].Session)
	assert.Equal(t, 3, sessions[0].Matches)
	assert.Equal(t, 2, sessions[0].Wins)
	assert.Equal(t, 1, sessions[0].Losses)
	assert.InDelta(t, 0.667, sessions[0].WinRate, 0.0001)

	assert.Equal(t, 2, sessions[1].Session)
	assert.Equal(t, 1, sessions[1].Matches)
}

func TestClusterSessionsChainsConsecutiveGaps(t *testing.T) {
	// 50-minute gaps chain into one session even though the ends are 100
	// minutes apart.
	timeline := []repository.TimelineEntry{
		entry(1, "2024-03-01 20:00", resPtr(domain.ResultWin)),
		entry(2, "2024-03-01 20:50", resPtr(domain.ResultWin)),
		entry(3, "2024-03-01 21:40", resPtr(domain.ResultWin)),
	}

	sessions := clusterSessions(timeline)
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].Matches)
}

func TestClusterSessionsMidnightUsesStartDate(t *testing.T) {
	timeline := []repository.TimelineEntry{
		entry(1, "2024-03-01 23:30", resPtr(domain.ResultWin)),
		entry(2, "2024-03-02 00:10", resPtr(domain.ResultLoss)),
	}

	sessions := clusterSessions(timeline)
	require.Len(t, sessions, 1)
	assert.Equal(t, "2024-03-01", sessions[0].Date)
}

func TestClusterSessionsZeroDecidedMatches(t *testing.T) {
	timeline := []repository.TimelineEntry{
		entry(1, "2024-03-01 20:00", nil),
		entry(2, "2024-03-01 20:10", resPtr(domain.ResultDraw)),
	}

	sessions := clusterSessions(timeline)
	require.Len(t, sessions, 1)
	assert.Zero(t, sessions[0].Wins)
	assert.Zero(t, sessions[0].Losses)
	assert.Zero(t, sessions[0].WinRate)
}

func TestClusterSessionsEmpty(t *testing.T) {
	assert.Empty(t, clusterSessions(nil))
}

func TestComputeStreaks(t *testing.T) {
	tests := []struct {
		name     string
		results  []domain.Result
		wantWin  int
		wantLoss int
	}{
		{"empty", nil, 0, 0},
		{"alternating", []domain.Result{domain.ResultWin, domain.ResultLoss, domain.ResultWin}, 1, 1},
		{"win run", []domain.Result{domain.ResultWin, domain.ResultWin, domain.ResultWin, domain.ResultLoss}, 3, 1},
		{"loss run at end", []domain.Result{domain.ResultWin, domain.ResultLoss, domain.ResultLoss}, 1, 2},
		{"all losses", []domain.Result{domain.ResultLoss, domain.ResultLoss}, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeStreaks(tt.results)
			assert.Equal(t, tt.wantWin, got.LongestWinStreak)
			assert.Equal(t, tt.wantLoss, got.LongestLossStreak)
		})
	}
}
