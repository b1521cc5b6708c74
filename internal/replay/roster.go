package replay

// Roster is the tracked-player allow-list: stable Steam ID to display name.
// Players outside the roster are discarded during normalization.
type Roster map[string]string

func (r Roster) Tracked(steamID string) bool {
	_, ok := r[steamID]
	return ok
}
