package service

import (
	"context"
	"math"

	"rl-tracker/internal/constants"
	"rl-tracker/internal/domain"
	"rl-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// StatsService derives session and streak analytics from the canonical
// match history. It only reads committed state, so it needs no locking.
type StatsService struct {
	matches *repository.MatchRepository
	stats   *repository.StatsRepository
	logger  zerolog.Logger
}

func NewStatsService(matches *repository.MatchRepository, stats *repository.StatsRepository, logger zerolog.Logger) *StatsService {
	return &StatsService{matches: matches, stats: stats, logger: logger}
}

// SessionSummary describes one play session: a maximal run of matches with
// no gap over the session threshold between consecutive matches.
type SessionSummary struct {
	Session  int     `json:"session"`
	GameMode string  `json:"game_mode,omitempty"`
	Date     string  `json:"date"`
	Matches  int     `json:"matches"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
}

// Sessions clusters the full timestamped match history into sessions in
// chronological order.
func (s *StatsService) Sessions(ctx context.Context) ([]SessionSummary, error) {
	timeline, err := s.matches.ListTimeline(ctx)
	if err != nil {
		return nil, err
	}
	return clusterSessions(timeline), nil
}

// clusterSessions is a single left-to-right scan: a match joins the current
// session when its gap to the previous match is within the threshold,
// otherwise it starts the next one. Chaining is intentional: matches 50
// minutes apart pairwise stay in one session no matter how long it runs.
func clusterSessions(timeline []repository.TimelineEntry) []SessionSummary {
	out := []SessionSummary{}
	if len(timeline) == 0 {
		return out
	}

	current := newSession(1, timeline[0])
	prev := timeline[0].PlayedAt
	for _, entry := range timeline[1:] {
		if entry.PlayedAt.Sub(prev) > constants.SessionGap {
			out = append(out, finishSession(current))
			current = newSession(current.Session+1, entry)
		} else {
			current.Matches++
			countResult(&current, entry.Result)
		}
		prev = entry.PlayedAt
	}
	return append(out, finishSession(current))
}

// newSession opens a session at its first match; the session's mode and
// reporting date both come from that match, so a session crossing midnight
// is attributed to its start date.
func newSession(number int, first repository.TimelineEntry) SessionSummary {
	s := SessionSummary{
		Session: number,
		Date:    first.PlayedAt.Format("2006-01-02"),
		Matches: 1,
	}
	if first.GameMode != nil {
		s.GameMode = string(*first.GameMode)
	}
	countResult(&s, first.Result)
	return s
}

func countResult(s *SessionSummary, result *domain.Result) {
	if result == nil {
		return
	}
	switch *result {
	case domain.ResultWin:
		s.Wins++
	case domain.ResultLoss:
		s.Losses++
	}
}

func finishSession(s SessionSummary) SessionSummary {
	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = math.Round(float64(s.Wins)/float64(decided)*1000) / 1000
	}
	return s
}

// StreakSummary holds the longest win and loss runs over the win/loss
// subsequence of a mode's history.
type StreakSummary struct {
	LongestWinStreak  int `json:"longest_win_streak"`
	LongestLossStreak int `json:"longest_loss_streak"`
}

func (s *StatsService) Streaks(ctx context.Context, mode domain.GameMode) (StreakSummary, error) {
	results, err := s.matches.ListResults(ctx, mode)
	if err != nil {
		return StreakSummary{}, err
	}
	return computeStreaks(results), nil
}

// computeStreaks scans the filtered result sequence once, extending the
// current run on a repeat and restarting it on a switch.
func computeStreaks(results []domain.Result) StreakSummary {
	var out StreakSummary
	var runType domain.Result
	run := 0
	for _, result := range results {
		if result == runType {
			run++
		} else {
			runType = result
			run = 1
		}
		switch runType {
		case domain.ResultWin:
			if run > out.LongestWinStreak {
				out.LongestWinStreak = run
			}
		case domain.ResultLoss:
			if run > out.LongestLossStreak {
				out.LongestLossStreak = run
			}
		}
	}
	return out
}

// Overview bundles the dashboard's independent aggregates for one mode.
type Overview struct {
	Sessions []SessionSummary             `json:"sessions"`
	Streaks  StreakSummary                `json:"streaks"`
	Players  []repository.PlayerTotalsRow `json:"players"`
}

// GetOverview fans the three queries out in parallel; they are independent
// reads over committed state.
func (s *StatsService) GetOverview(ctx context.Context, mode domain.GameMode) (*Overview, error) {
	g, gCtx := errgroup.WithContext(ctx)
	var overview Overview

	g.Go(func() error {
		sessions, err := s.Sessions(gCtx)
		overview.Sessions = sessions
		return err
	})
	g.Go(func() error {
		streaks, err := s.Streaks(gCtx, mode)
		overview.Streaks = streaks
		return err
	})
	g.Go(func() error {
		players, err := s.stats.PlayerTotals(gCtx, mode)
		overview.Players = players
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("mode", string(mode)).Msg("failed to build overview")
		return nil, err
	}
	return &overview, nil
}
