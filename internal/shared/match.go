package shared

import "fmt"

// Outcome classifies a result from the point of view of Team1.
type Outcome int

const (
	Tie      Outcome = iota // Equal scores
	Team1Won                // Score1 > Score2
	Team2Won                // Score2 > Score1
)

// MatchResult is a recorded score between two teams. The order of Team1 and
// Team2 is kept for display; identity is the unordered pair.
type MatchResult struct {
	Team1  string `json:"team1"`
	Team2  string `json:"team2"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

// Key returns the unordered identity of the match.
func (m MatchResult) Key() PairKey {
	return NewPairKey(m.Team1, m.Team2)
}

// Outcome reports who won.
func (m MatchResult) Outcome() Outcome {
	switch {
	case m.Score1 > m.Score2:
		return Team1Won
	case m.Score2 > m.Score1:
		return Team2Won
	default:
		return Tie
	}
}

// Winner returns the winning and losing team names. ok is false for a tie.
func (m MatchResult) Winner() (winner, loser string, ok bool) {
	switch m.Outcome() {
	case Team1Won:
		return m.Team1, m.Team2, true
	case Team2Won:
		return m.Team2, m.Team1, true
	}
	return "", "", false
}

// Involves reports whether the named team played in this match.
func (m MatchResult) Involves(name string) bool {
	return m.Team1 == name || m.Team2 == name
}

// ScoreFor returns the score of the named team and of its opponent, in that
// order, regardless of how the result was recorded.
func (m MatchResult) ScoreFor(name string) (own, opponent int) {
	if m.Team2 == name {
		return m.Score2, m.Score1
	}
	return m.Score1, m.Score2
}

// String renders the score line, e.g. "Team Aces 10 - 5 Team Spades".
func (m MatchResult) String() string {
	return fmt.Sprintf("%s %d - %d %s", m.Team1, m.Score1, m.Score2, m.Team2)
}

// PairKey is a normalized unordered pair of team names.
type PairKey struct {
	A, B string
}

// NewPairKey orders the two names so that (a, b) and (b, a) compare equal.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}
