package domain

import "time"

// GameMode is the closed set of detected game modes. Queries always take a
// GameMode value, never a caller-supplied string.
type GameMode string

const (
	Mode3v3   GameMode = "3v3"
	Mode2v2   GameMode = "2v2"
	ModeHoops GameMode = "hoops"
)

// ParseGameMode validates a raw mode string against the closed set.
func ParseGameMode(s string) (GameMode, bool) {
	switch GameMode(s) {
	case Mode3v3, Mode2v2, ModeHoops:
		return GameMode(s), true
	}
	return "", false
}

// Result is the outcome of a match from the tracked team's side.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

type Player struct {
	ID      int64
	SteamID string
	Name    string
}

// Match is one finished game. Pointer fields are nullable: source telemetry
// may omit or mangle them, and an ambiguous replay resolves to null rather
// than a guess.
type Match struct {
	ID              int64
	ReplayHash      string
	PlayedAt        *time.Time
	DurationSeconds *int
	Forfeit         bool
	TeamSize        *int
	Team            *int
	TeamScore       *int
	OpponentScore   *int
	Result          *Result
	MVPPlayerID     *int64
	MapName         *string
	GameMode        *GameMode
}

// MatchPlayer is one tracked player's stat line within one match. Identity
// is the (match, player) pair; re-ingesting a replay replaces the row.
type MatchPlayer struct {
	MatchID  int64
	PlayerID int64
	Team     *int
	Goals    int
	Assists  int
	Saves    int
	Shots    int
	Score    int
}
