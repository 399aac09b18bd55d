package shared

import (
	"errors"
	"fmt"
)

const (
	RoundCount        = 5
	MatchesPerRound   = TeamCount / 2
	TotalFixtureCount = RoundCount * MatchesPerRound
)

var (
	ErrUnknownRound    = errors.New("round out of range")
	ErrInvalidSchedule = errors.New("invalid schedule roster")
)

// roundSlots is the pairing plan by roster slot (0-based). Every slot meets
// every other slot exactly once over the five rounds.
var roundSlots = [RoundCount][MatchesPerRound][2]int{
	{{0, 1}, {2, 3}, {4, 5}},
	{{0, 2}, {1, 4}, {3, 5}},
	{{0, 3}, {2, 4}, {1, 5}},
	{{0, 4}, {1, 3}, {2, 5}},
	{{0, 5}, {1, 2}, {3, 4}},
}

// Fixture is an expected pairing in a given round.
type Fixture struct {
	Round int    `json:"round"`
	Team1 string `json:"team1"`
	Team2 string `json:"team2"`
}

// Key returns the unordered identity of the fixture.
func (f Fixture) Key() PairKey {
	return NewPairKey(f.Team1, f.Team2)
}

// Schedule is the immutable round-robin plan bound to a roster.
type Schedule struct {
	rounds [RoundCount][]Fixture
	byPair map[PairKey]int
}

// NewSchedule binds the static pairing plan to six distinct team names given
// in roster order.
func NewSchedule(names [TeamCount]string) (*Schedule, error) {
	seen := make(map[string]bool, TeamCount)
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: slot %d has no name", ErrInvalidSchedule, i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate team %q", ErrInvalidSchedule, name)
		}
		seen[name] = true
	}

	s := &Schedule{byPair: make(map[PairKey]int, TotalFixtureCount)}
	for r, pairs := range roundSlots {
		fixtures := make([]Fixture, 0, MatchesPerRound)
		for _, p := range pairs {
			f := Fixture{Round: r + 1, Team1: names[p[0]], Team2: names[p[1]]}
			fixtures = append(fixtures, f)
			s.byPair[f.Key()] = r + 1
		}
		s.rounds[r] = fixtures
	}
	return s, nil
}

// ScheduleFor binds the plan to the first six teams of a roster.
func ScheduleFor(teams []Team) (*Schedule, error) {
	if len(teams) != TeamCount {
		return nil, fmt.Errorf("%w: need %d teams, got %d", ErrInvalidSchedule, TeamCount, len(teams))
	}
	var names [TeamCount]string
	for i, t := range teams {
		names[i] = t.Name
	}
	return NewSchedule(names)
}

// DefaultSchedule is the plan for the placeholder roster.
func DefaultSchedule() *Schedule {
	s, err := NewSchedule(DefaultTeamNames())
	if err != nil {
		// Default names are distinct and non-empty.
		panic(err)
	}
	return s
}

// MatchesForRound returns the fixtures of round n (1-based) in plan order.
func (s *Schedule) MatchesForRound(n int) ([]Fixture, error) {
	if n < 1 || n > RoundCount {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRound, n)
	}
	out := make([]Fixture, len(s.rounds[n-1]))
	copy(out, s.rounds[n-1])
	return out, nil
}

// Rounds returns all rounds in order.
func (s *Schedule) Rounds() [][]Fixture {
	out := make([][]Fixture, RoundCount)
	for i := range s.rounds {
		out[i], _ = s.MatchesForRound(i + 1)
	}
	return out
}

// Fixtures returns all fixtures, round by round.
func (s *Schedule) Fixtures() []Fixture {
	out := make([]Fixture, 0, TotalFixtureCount)
	for _, r := range s.rounds {
		out = append(out, r...)
	}
	return out
}

// Contains reports whether a and b are scheduled to meet, in either order.
func (s *Schedule) Contains(a, b string) bool {
	_, ok := s.byPair[NewPairKey(a, b)]
	return ok
}

// RoundOf returns the round in which a and b meet.
func (s *Schedule) RoundOf(a, b string) (int, bool) {
	r, ok := s.byPair[NewPairKey(a, b)]
	return r, ok
}
