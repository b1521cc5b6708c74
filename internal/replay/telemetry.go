package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rl-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ErrNotIngestible marks a telemetry record that carries no replay hash.
// Such records cannot be keyed and are skipped, not failed.
var ErrNotIngestible = errors.New("telemetry has no replay hash")

// playedAtLayout is the converter's date format: date and time separated by
// a space, time fields separated by hyphens.
const playedAtLayout = "2006-01-02 15-04-05"

// hashKeys are the property names that may carry the replay hash, probed in
// order before falling back to a case-insensitive scan.
var hashKeys = []string{"MatchGUID", "MatchGuid"}

// Telemetry is the converter's JSON output for one replay. The properties
// block is loosely typed: presence and wire types vary across replay
// versions, so every field read is total and degrades to a zero value.
type Telemetry struct {
	Properties Properties `json:"properties"`
}

type Properties map[string]any

func Decode(data []byte) (*Telemetry, error) {
	var t Telemetry
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry: %w", err)
	}
	return &t, nil
}

// String returns the named property as a string, or "" when absent or of
// another type. Numeric IDs are rendered without a fractional part since the
// JSON decoder hands every number back as float64.
func (p Properties) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// Int returns the named property as an int with ok=false when absent or
// non-numeric.
func (p Properties) Int(key string) (int, bool) {
	v, ok := p[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// IntOr returns the named property as an int, defaulting when absent.
func (p Properties) IntOr(key string, fallback int) int {
	if v, ok := p.Int(key); ok {
		return v
	}
	return fallback
}

func (p Properties) Bool(key string) bool {
	v, ok := p[key].(bool)
	return ok && v
}

// List returns the named property as a list of nested property blocks.
func (p Properties) List(key string) []Properties {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Properties, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Properties(m))
		}
	}
	return out
}

// PlayerStats is one tracked player's raw stat line from the telemetry,
// with missing numeric stats already defaulted to 0.
type PlayerStats struct {
	SteamID string
	Name    string
	Team    *int
	Goals   int
	Assists int
	Saves   int
	Shots   int
	Score   int
}

// Normalized carries the canonical fields extracted from one telemetry
// record, before outcome resolution.
type Normalized struct {
	ReplayHash      string
	PlayedAt        *time.Time
	DurationSeconds *int
	Forfeit         bool
	TeamSize        *int
	MapName         *string
	GameMode        *domain.GameMode
	Team0Score      int
	Team1Score      int
	Players         []PlayerStats
}

// Normalizer extracts and canonicalizes fields from raw telemetry records,
// filtering players down to the tracked roster.
type Normalizer struct {
	roster Roster
	logger zerolog.Logger
}

func NewNormalizer(roster Roster, logger zerolog.Logger) *Normalizer {
	return &Normalizer{roster: roster, logger: logger}
}

// Normalize canonicalizes one record. It returns ErrNotIngestible when no
// hash-bearing property is present; every other malformed field degrades to
// its null form instead of failing.
func (n *Normalizer) Normalize(t *Telemetry) (*Normalized, error) {
	props := t.Properties

	hash := resolveHash(props)
	if hash == "" {
		return nil, ErrNotIngestible
	}

	var teamSize *int
	if v, ok := props.Int("TeamSize"); ok {
		teamSize = &v
	}
	var duration *int
	if v, ok := props.Int("TotalSecondsPlayed"); ok {
		duration = &v
	}
	var mapName *string
	if v := props.String("MapName"); v != "" {
		mapName = &v
	}

	return &Normalized{
		ReplayHash:      hash,
		PlayedAt:        ParsePlayedAt(props.String("Date")),
		DurationSeconds: duration,
		Forfeit:         props.Bool("bForfeit"),
		TeamSize:        teamSize,
		MapName:         mapName,
		GameMode:        DetectGameMode(teamSize, mapName),
		Team0Score:      props.IntOr("Team0Score", 0),
		Team1Score:      props.IntOr("Team1Score", 0),
		Players:         n.trackedPlayers(props),
	}, nil
}

// resolveHash probes the known hash keys, then falls back to a
// case-insensitive scan so renamed variants still resolve.
func resolveHash(props Properties) string {
	for _, key := range hashKeys {
		if v := props.String(key); v != "" {
			return v
		}
	}
	want := strings.ToLower(hashKeys[0])
	for key := range props {
		if strings.ToLower(key) == want {
			if v := props.String(key); v != "" {
				return v
			}
		}
	}
	return ""
}

// ParsePlayedAt converts the converter's timestamp to a time, returning nil
// on any malformed input. It never fails.
func ParsePlayedAt(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(playedAtLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// DetectGameMode classifies a match by team size and map name. Unrecognized
// combinations stay undetected (nil).
func DetectGameMode(teamSize *int, mapName *string) *domain.GameMode {
	if teamSize == nil {
		return nil
	}
	var mode domain.GameMode
	switch {
	case *teamSize == 3:
		mode = domain.Mode3v3
	case *teamSize == 2 && mapName != nil && strings.Contains(strings.ToLower(*mapName), "hoop"):
		mode = domain.ModeHoops
	case *teamSize == 2:
		mode = domain.Mode2v2
	default:
		return nil
	}
	return &mode
}

// trackedPlayers filters the per-player stat list down to the roster,
// defaulting missing numeric stats to 0.
func (n *Normalizer) trackedPlayers(props Properties) []PlayerStats {
	var out []PlayerStats
	for _, raw := range props.List("PlayerStats") {
		steamID := raw.String("OnlineID")
		name, ok := n.roster[steamID]
		if !ok {
			continue
		}
		var team *int
		if v, teamOK := raw.Int("Team"); teamOK {
			team = &v
		}
		out = append(out, PlayerStats{
			SteamID: steamID,
			Name:    name,
			Team:    team,
			Goals:   raw.IntOr("Goals", 0),
			Assists: raw.IntOr("Assists", 0),
			Saves:   raw.IntOr("Saves", 0),
			Shots:   raw.IntOr("Shots", 0),
			Score:   raw.IntOr("Score", 0),
		})
	}
	return out
}
