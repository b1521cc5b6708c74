package replay

import "rl-tracker/internal/domain"

// Outcome is the resolved side, scores, and result for the tracked team.
// All fields are nil when the side cannot be determined.
type Outcome struct {
	Team          *int
	TeamScore     *int
	OpponentScore *int
	Result        *domain.Result
}

// Resolved reports whether a side was determined.
func (o Outcome) Resolved() bool {
	return o.Team != nil
}

// ResolveOutcome determines which side is ours from the tracked players'
// team indices. Exactly one distinct team means that team is ours; no
// tracked players, a missing team index, or players split across both teams
// leave the side undetermined. Ambiguity yields unknown, never a guess.
func ResolveOutcome(players []PlayerStats, team0Score, team1Score int) Outcome {
	seen := make(map[int]struct{})
	unknown := false
	for _, p := range players {
		if p.Team == nil {
			unknown = true
			continue
		}
		seen[*p.Team] = struct{}{}
	}
	if unknown || len(seen) != 1 {
		return Outcome{}
	}

	var team int
	for t := range seen {
		team = t
	}

	teamScore, opponentScore := team0Score, team1Score
	if team == 1 {
		teamScore, opponentScore = team1Score, team0Score
	}

	var result domain.Result
	switch {
	case teamScore > opponentScore:
		result = domain.ResultWin
	case teamScore < opponentScore:
		result = domain.ResultLoss
	default:
		result = domain.ResultDraw
	}

	return Outcome{
		Team:          &team,
		TeamScore:     &teamScore,
		OpponentScore: &opponentScore,
		Result:        &result,
	}
}

// SplitAcrossTeams reports whether tracked players landed on both sides of
// the same match, which real matches should never produce.
func SplitAcrossTeams(players []PlayerStats) bool {
	seen := make(map[int]struct{})
	for _, p := range players {
		if p.Team != nil {
			seen[*p.Team] = struct{}{}
		}
	}
	return len(seen) > 1
}

// MVP returns the tracked player with the highest score, ties going to the
// first maximum in list order. Nil when no tracked players are present.
func MVP(players []PlayerStats) *PlayerStats {
	if len(players) == 0 {
		return nil
	}
	best := &players[0]
	for i := 1; i < len(players); i++ {
		if players[i].Score > best.Score {
			best = &players[i]
		}
	}
	return best
}
