// Package standings orders teams into a ranked table.
package standings

import (
	"sort"

	"bridge-standings/internal/shared"
)

// PodiumSize is the number of leading positions flagged for distinguished
// display.
const PodiumSize = 3

// Standing is one row of the ranked table.
type Standing struct {
	Position int         `json:"position"` // 1-based
	Team     shared.Team `json:"team"`
	Podium   bool        `json:"podium"`
}

// Rank returns the teams ordered by points, then wins, then id ascending.
// The input is not modified.
func Rank(teams []shared.Team) []shared.Team {
	ranked := make([]shared.Team, len(teams))
	copy(ranked, teams)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

// Table ranks the teams and labels their positions.
func Table(teams []shared.Team) []Standing {
	ranked := Rank(teams)
	table := make([]Standing, len(ranked))
	for i, t := range ranked {
		table[i] = Standing{
			Position: i + 1,
			Team:     t,
			Podium:   i < PodiumSize,
		}
	}
	return table
}

func less(a, b shared.Team) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	return a.ID < b.ID
}
