// Package ledger holds the authoritative record of teams and match results
// and folds every recorded result into the team statistics.
//
// A Ledger is not safe for concurrent use. Callers serialize mutations and
// must not read while a mutation is in flight.
package ledger

import (
	"fmt"
	"time"

	"bridge-standings/internal/shared"
)

// Submission is a typed request to record the score between two teams.
type Submission struct {
	TeamA  string `json:"team1"`
	TeamB  string `json:"team2"`
	ScoreA int    `json:"score1"`
	ScoreB int    `json:"score2"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSchedule rejects submissions for pairings the schedule does not
// contain.
func WithSchedule(s *shared.Schedule) Option {
	return func(l *Ledger) {
		l.schedule = s
	}
}

// Ledger is the in-memory tournament record.
type Ledger struct {
	teams       []shared.Team        // Roster order
	index       map[string]int       // Team name -> position in teams
	matches     []shared.MatchResult // At most one per unordered pair
	schedule    *shared.Schedule     // Optional pairing filter
	lastUpdated time.Time
}

// New builds a ledger from a snapshot. Team statistics are rebuilt from the
// snapshot's matches, so a stored snapshot whose totals drifted from its
// results is repaired on load.
func New(snap shared.Snapshot, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		teams:       make([]shared.Team, len(snap.Teams)),
		index:       make(map[string]int, len(snap.Teams)),
		matches:     make([]shared.MatchResult, 0, len(snap.Matches)),
		lastUpdated: snap.LastUpdated,
	}
	for _, opt := range opts {
		opt(l)
	}

	ids := make(map[int]bool, len(snap.Teams))
	for i, t := range snap.Teams {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: team %d has no name", ErrInvalidSnapshot, t.ID)
		}
		if _, dup := l.index[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate team name %q", ErrInvalidSnapshot, t.Name)
		}
		if ids[t.ID] {
			return nil, fmt.Errorf("%w: duplicate team id %d", ErrInvalidSnapshot, t.ID)
		}
		ids[t.ID] = true
		t.ResetStats()
		l.teams[i] = t
		l.index[t.Name] = i
	}

	for i, m := range snap.Matches {
		if err := l.validate(m.Team1, m.Team2, m.Score1, m.Score2); err != nil {
			return nil, fmt.Errorf("%w: match %d: %v", ErrInvalidSnapshot, i, err)
		}
		if _, ok := l.find(m.Team1, m.Team2); ok {
			return nil, fmt.Errorf("%w: match %d: %s vs %s recorded twice", ErrInvalidSnapshot, i, m.Team1, m.Team2)
		}
		l.matches = append(l.matches, m)
		l.fold(m, 1)
	}
	return l, nil
}

// NewDefault builds a ledger from the placeholder seed.
func NewDefault(opts ...Option) *Ledger {
	l, err := New(shared.DefaultSnapshot(), opts...)
	if err != nil {
		// The default seed is always valid.
		panic(err)
	}
	return l
}

// SubmitResult records the score between teamA and teamB. A result already
// recorded for the same pair, in either order, is reversed first and then
// replaced, so resubmitting is idempotent and corrections never double count.
// On error the ledger is unchanged.
func (l *Ledger) SubmitResult(teamA, teamB string, scoreA, scoreB int) error {
	if err := l.validate(teamA, teamB, scoreA, scoreB); err != nil {
		return err
	}
	if l.schedule != nil && !l.schedule.Contains(teamA, teamB) {
		return fmt.Errorf("%w: %s vs %s", ErrUnscheduledPairing, teamA, teamB)
	}

	// 1. Reverse and drop the prior result for this pair.
	if i, ok := l.find(teamA, teamB); ok {
		l.fold(l.matches[i], -1)
		l.matches = append(l.matches[:i], l.matches[i+1:]...)
	}

	// 2. Record the new result in the order given.
	m := shared.MatchResult{Team1: teamA, Team2: teamB, Score1: scoreA, Score2: scoreB}
	l.matches = append(l.matches, m)

	// 3. Apply its effect.
	l.fold(m, 1)
	return nil
}

// Submit is SubmitResult for a Submission.
func (l *Ledger) Submit(s Submission) error {
	return l.SubmitResult(s.TeamA, s.TeamB, s.ScoreA, s.ScoreB)
}

// SubmitResults applies each submission in order, exactly as repeated calls
// to SubmitResult would. Later entries for a pair supersede earlier ones. If
// any entry fails, a *BatchError is returned and none of the batch is
// applied.
func (l *Ledger) SubmitResults(batch []Submission) error {
	scratch := l.Clone()
	for i, s := range batch {
		if err := scratch.Submit(s); err != nil {
			return &BatchError{Index: i, Err: err}
		}
	}
	l.swap(scratch)
	return nil
}

// ResetAll removes every result and zeroes every team's statistics.
func (l *Ledger) ResetAll() {
	l.matches = l.matches[:0]
	for i := range l.teams {
		l.teams[i].ResetStats()
	}
}

// SetPlayers replaces the player names of a team. Statistics are untouched.
func (l *Ledger) SetPlayers(teamID int, players [2]string) error {
	for i := range l.teams {
		if l.teams[i].ID == teamID {
			l.teams[i].Players = players
			return nil
		}
	}
	return &UnknownTeamError{ID: teamID}
}

// Stamp sets the time reported by Snapshot.
func (l *Ledger) Stamp(t time.Time) {
	l.lastUpdated = t
}

// LastUpdated returns the time of the snapshot the ledger was built from or
// last stamped with.
func (l *Ledger) LastUpdated() time.Time {
	return l.lastUpdated
}

// Teams returns a copy of the roster in roster order.
func (l *Ledger) Teams() []shared.Team {
	out := make([]shared.Team, len(l.teams))
	copy(out, l.teams)
	return out
}

// Team looks up a team by name.
func (l *Ledger) Team(name string) (shared.Team, bool) {
	i, ok := l.index[name]
	if !ok {
		return shared.Team{}, false
	}
	return l.teams[i], true
}

// Matches returns a copy of the recorded results in recording order.
func (l *Ledger) Matches() []shared.MatchResult {
	out := make([]shared.MatchResult, len(l.matches))
	copy(out, l.matches)
	return out
}

// Match returns the result recorded between a and b, in either order.
func (l *Ledger) Match(a, b string) (shared.MatchResult, bool) {
	i, ok := l.find(a, b)
	if !ok {
		return shared.MatchResult{}, false
	}
	return l.matches[i], true
}

// MatchesFor returns the results involving the named team.
func (l *Ledger) MatchesFor(name string) ([]shared.MatchResult, error) {
	if _, ok := l.index[name]; !ok {
		return nil, &UnknownTeamError{Name: name}
	}
	var out []shared.MatchResult
	for _, m := range l.matches {
		if m.Involves(name) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Snapshot returns a complete copy of the ledger state.
func (l *Ledger) Snapshot() shared.Snapshot {
	return shared.Snapshot{
		Teams:       l.Teams(),
		Matches:     l.Matches(),
		LastUpdated: l.lastUpdated,
	}
}

// Clone returns an independent copy sharing only the immutable schedule.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		teams:       l.Teams(),
		index:       make(map[string]int, len(l.index)),
		matches:     l.Matches(),
		schedule:    l.schedule,
		lastUpdated: l.lastUpdated,
	}
	for k, v := range l.index {
		c.index[k] = v
	}
	return c
}

func (l *Ledger) swap(other *Ledger) {
	l.teams = other.teams
	l.index = other.index
	l.matches = other.matches
	l.lastUpdated = other.lastUpdated
}

func (l *Ledger) validate(teamA, teamB string, scoreA, scoreB int) error {
	if teamA == teamB {
		return fmt.Errorf("%w: %q", ErrSameTeam, teamA)
	}
	if _, ok := l.index[teamA]; !ok {
		return &UnknownTeamError{Name: teamA}
	}
	if _, ok := l.index[teamB]; !ok {
		return &UnknownTeamError{Name: teamB}
	}
	if scoreA < 0 {
		return &InvalidScoreError{Team: teamA, Score: scoreA}
	}
	if scoreB < 0 {
		return &InvalidScoreError{Team: teamB, Score: scoreB}
	}
	return nil
}

func (l *Ledger) find(a, b string) (int, bool) {
	key := shared.NewPairKey(a, b)
	for i, m := range l.matches {
		if m.Key() == key {
			return i, true
		}
	}
	return -1, false
}

// fold adds (sign 1) or removes (sign -1) the statistical effect of m. The
// names in m are resolved as recorded, not as later resubmitted.
func (l *Ledger) fold(m shared.MatchResult, sign int) {
	if winner, loser, ok := m.Winner(); ok {
		w := &l.teams[l.index[winner]]
		w.Wins += sign
		w.Points += sign * shared.WinPoints
		l.teams[l.index[loser]].Losses += sign
		return
	}
	l.teams[l.index[m.Team1]].Points += sign * shared.TiePoints
	l.teams[l.index[m.Team2]].Points += sign * shared.TiePoints
}
