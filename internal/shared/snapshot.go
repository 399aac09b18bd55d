package shared

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is a complete serialized copy of the tournament state. It is
// always written and read wholesale.
type Snapshot struct {
	Teams       []Team        `json:"teams"`
	Matches     []MatchResult `json:"matches"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// DefaultSnapshot returns the seed used when no stored snapshot can be
// obtained: six placeholder teams with zeroed statistics and no matches.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Teams:   DefaultTeams(),
		Matches: []MatchResult{},
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Teams:       make([]Team, len(s.Teams)),
		Matches:     make([]MatchResult, len(s.Matches)),
		LastUpdated: s.LastUpdated,
	}
	copy(c.Teams, s.Teams)
	copy(c.Matches, s.Matches)
	return c
}

// NewerThan reports whether s was written after other.
func (s Snapshot) NewerThan(other Snapshot) bool {
	return s.LastUpdated.After(other.LastUpdated)
}

// TeamNames returns the roster names in roster order.
func (s Snapshot) TeamNames() []string {
	names := make([]string, len(s.Teams))
	for i, t := range s.Teams {
		names[i] = t.Name
	}
	return names
}

// Encode marshals the snapshot in the persisted JSON shape.
func (s Snapshot) Encode() ([]byte, error) {
	if s.Matches == nil {
		s.Matches = []MatchResult{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// DecodeSnapshot parses a persisted snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Matches == nil {
		s.Matches = []MatchResult{}
	}
	return s, nil
}
