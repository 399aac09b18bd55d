package ledger

import (
	"errors"
	"testing"
	"time"

	"bridge-standings/internal/shared"
	"bridge-standings/internal/standings"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aces     = "Team Aces"
	spades   = "Team Spades"
	hearts   = "Team Hearts"
	diamonds = "Team Diamonds"
	clubs    = "Team Clubs"
	jokers   = "Team Jokers"
)

type stats struct{ wins, losses, points int }

func statsOf(t *testing.T, l *Ledger, name string) stats {
	t.Helper()
	team, ok := l.Team(name)
	require.True(t, ok, "team %q missing", name)
	return stats{team.Wins, team.Losses, team.Points}
}

// checkInvariants verifies that the statistics are exactly the fold of the
// recorded results.
func checkInvariants(t *testing.T, l *Ledger) {
	t.Helper()
	want := make(map[string]*stats)
	for _, team := range l.Teams() {
		want[team.Name] = &stats{}
	}
	pairs := make(map[shared.PairKey]bool)
	for _, m := range l.Matches() {
		require.False(t, pairs[m.Key()], "pair %v recorded twice", m.Key())
		pairs[m.Key()] = true
		if winner, loser, ok := m.Winner(); ok {
			want[winner].wins++
			want[winner].points += 2
			want[loser].losses++
		} else {
			want[m.Team1].points++
			want[m.Team2].points++
		}
	}
	for name, w := range want {
		assert.Equal(t, *w, statsOf(t, l, name), "stats for %s", name)
	}
}

func TestSubmitResultDecisive(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 10, 5))

	assert.Equal(t, stats{1, 0, 2}, statsOf(t, l, aces))
	assert.Equal(t, stats{0, 1, 0}, statsOf(t, l, spades))
	require.Len(t, l.Matches(), 1)
	checkInvariants(t, l)
}

func TestSubmitResultIsIdempotent(t *testing.T) {
	once := NewDefault()
	require.NoError(t, once.SubmitResult(aces, spades, 10, 5))

	twice := NewDefault()
	require.NoError(t, twice.SubmitResult(aces, spades, 10, 5))
	require.NoError(t, twice.SubmitResult(aces, spades, 10, 5))

	assert.Equal(t, once.Teams(), twice.Teams())
	assert.Equal(t, once.Matches(), twice.Matches())
	checkInvariants(t, twice)
}

func TestSubmitResultCorrection(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 10, 5))
	require.NoError(t, l.SubmitResult(aces, spades, 5, 10))

	assert.Equal(t, stats{0, 1, 0}, statsOf(t, l, aces))
	assert.Equal(t, stats{1, 0, 2}, statsOf(t, l, spades))

	final := NewDefault()
	require.NoError(t, final.SubmitResult(aces, spades, 5, 10))
	assert.Equal(t, final.Teams(), l.Teams())
	checkInvariants(t, l)
}

func TestSubmitResultCorrectionInReverseOrder(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 10, 5))
	require.NoError(t, l.SubmitResult(spades, aces, 7, 7))

	assert.Equal(t, stats{0, 0, 1}, statsOf(t, l, aces))
	assert.Equal(t, stats{0, 0, 1}, statsOf(t, l, spades))

	matches := l.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, shared.MatchResult{Team1: spades, Team2: aces, Score1: 7, Score2: 7}, matches[0])
	checkInvariants(t, l)
}

func TestSubmitResultTie(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 7, 7))

	assert.Equal(t, stats{0, 0, 1}, statsOf(t, l, aces))
	assert.Equal(t, stats{0, 0, 1}, statsOf(t, l, spades))

	// Replacing the tie with a win removes both tie points.
	require.NoError(t, l.SubmitResult(aces, spades, 8, 7))
	assert.Equal(t, stats{1, 0, 2}, statsOf(t, l, aces))
	assert.Equal(t, stats{0, 1, 0}, statsOf(t, l, spades))
	checkInvariants(t, l)
}

func TestSubmitResultRejectsWithoutMutation(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 10, 5))
	before := l.Snapshot()

	tests := []struct {
		name  string
		a, b  string
		sa    int
		sb    int
		check func(t *testing.T, err error)
	}{
		{"unknown first team", "Nobody", spades, 1, 2, func(t *testing.T, err error) {
			var e *UnknownTeamError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "Nobody", e.Name)
		}},
		{"unknown second team", aces, "Nobody", 1, 2, func(t *testing.T, err error) {
			var e *UnknownTeamError
			require.ErrorAs(t, err, &e)
		}},
		{"negative score", aces, spades, -1, 2, func(t *testing.T, err error) {
			var e *InvalidScoreError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, aces, e.Team)
			assert.Equal(t, -1, e.Score)
		}},
		{"negative second score", aces, spades, 3, -4, func(t *testing.T, err error) {
			var e *InvalidScoreError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, spades, e.Team)
		}},
		{"same team", aces, aces, 1, 2, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrSameTeam)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.SubmitResult(tt.a, tt.b, tt.sa, tt.sb)
			require.Error(t, err)
			assert.True(t, IsRejected(err))
			tt.check(t, err)
			assert.Equal(t, before, l.Snapshot())
		})
	}
}

func TestWithScheduleRejectsUnscheduledPairing(t *testing.T) {
	// Every pair of the default roster is scheduled.
	l := NewDefault(WithSchedule(shared.DefaultSchedule()))
	require.NoError(t, l.SubmitResult(jokers, aces, 1, 0))

	// A schedule bound to nothing lists no pairings.
	l = NewDefault(WithSchedule(&shared.Schedule{}))
	err := l.SubmitResult(aces, spades, 1, 0)
	assert.ErrorIs(t, err, ErrUnscheduledPairing)
	assert.True(t, IsRejected(err))
	assert.Empty(t, l.Matches())
}

func TestSubmitResultsBatch(t *testing.T) {
	l := NewDefault()
	err := l.SubmitResults([]Submission{
		{TeamA: aces, TeamB: spades, ScoreA: 10, ScoreB: 5},
		{TeamA: hearts, TeamB: diamonds, ScoreA: 3, ScoreB: 3},
		{TeamA: spades, TeamB: aces, ScoreA: 9, ScoreB: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, stats{0, 1, 0}, statsOf(t, l, aces))
	assert.Equal(t, stats{1, 0, 2}, statsOf(t, l, spades))
	assert.Equal(t, stats{0, 0, 1}, statsOf(t, l, hearts))
	assert.Len(t, l.Matches(), 2)
	checkInvariants(t, l)
}

func TestSubmitResultsBatchIsAllOrNothing(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(clubs, jokers, 2, 1))
	before := l.Snapshot()

	err := l.SubmitResults([]Submission{
		{TeamA: aces, TeamB: spades, ScoreA: 10, ScoreB: 5},
		{TeamA: clubs, TeamB: jokers, ScoreA: 0, ScoreB: 4},
		{TeamA: hearts, TeamB: "Nobody", ScoreA: 1, ScoreB: 1},
	})

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.Index)
	var unknown *UnknownTeamError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, before, l.Snapshot())
}

func TestResetAll(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResults([]Submission{
		{TeamA: aces, TeamB: spades, ScoreA: 10, ScoreB: 5},
		{TeamA: hearts, TeamB: diamonds, ScoreA: 3, ScoreB: 3},
	}))
	require.NoError(t, l.SetPlayers(1, [2]string{"Subham Jalan", "Arnav Rustagi"}))

	l.ResetAll()

	assert.Empty(t, l.Matches())
	for _, team := range l.Teams() {
		assert.Equal(t, 0, team.Wins, team.Name)
		assert.Equal(t, 0, team.Losses, team.Name)
		assert.Equal(t, 0, team.Points, team.Name)
	}
	team, _ := l.Team(aces)
	assert.Equal(t, [2]string{"Subham Jalan", "Arnav Rustagi"}, team.Players)

	// The ledger keeps working after a reset.
	require.NoError(t, l.SubmitResult(aces, spades, 1, 0))
	checkInvariants(t, l)
}

func TestSetPlayers(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 10, 5))
	require.NoError(t, l.SetPlayers(2, [2]string{"Anshuman Sharma", "Abhinav Lodha"}))

	team, ok := l.Team(spades)
	require.True(t, ok)
	assert.Equal(t, [2]string{"Anshuman Sharma", "Abhinav Lodha"}, team.Players)
	assert.Equal(t, 1, team.Losses)

	err := l.SetPlayers(42, [2]string{"x", "y"})
	var unknown *UnknownTeamError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 42, unknown.ID)
}

func TestFullRoundRobinScenario(t *testing.T) {
	schedule := shared.DefaultSchedule()
	l := NewDefault(WithSchedule(schedule))

	scores := [][2]int{
		{10, 5}, {7, 7}, {3, 8},
		{6, 9}, {12, 4}, {5, 5},
		{8, 2}, {11, 3}, {4, 6},
		{7, 1}, {3, 9}, {5, 10},
		{9, 9}, {2, 6}, {4, 0},
	}
	fixtures := schedule.Fixtures()
	require.Len(t, fixtures, len(scores))
	for i, f := range fixtures {
		require.NoError(t, l.SubmitResult(f.Team1, f.Team2, scores[i][0], scores[i][1]))
	}

	assert.Len(t, l.Matches(), shared.TotalFixtureCount)
	assert.Equal(t, stats{3, 1, 7}, statsOf(t, l, aces))
	assert.Equal(t, stats{1, 4, 2}, statsOf(t, l, spades))
	assert.Equal(t, stats{3, 1, 7}, statsOf(t, l, hearts))
	assert.Equal(t, stats{2, 1, 6}, statsOf(t, l, diamonds))
	assert.Equal(t, stats{0, 5, 0}, statsOf(t, l, clubs))
	assert.Equal(t, stats{3, 0, 8}, statsOf(t, l, jokers))

	total := 0
	for _, team := range l.Teams() {
		total += team.Points
	}
	assert.Equal(t, 30, total)

	// Aces and Hearts tie on points and wins; the lower id ranks first.
	order := lo.Map(standings.Rank(l.Teams()), func(team shared.Team, _ int) string {
		return team.Name
	})
	assert.Equal(t, []string{jokers, aces, hearts, diamonds, spades, clubs}, order)
	checkInvariants(t, l)
}

func TestNewRebuildsStatisticsFromMatches(t *testing.T) {
	snap := shared.DefaultSnapshot()
	snap.Teams[0].Points = 99
	snap.Teams[0].Wins = 7
	snap.Matches = []shared.MatchResult{{Team1: aces, Team2: spades, Score1: 1, Score2: 3}}
	snap.LastUpdated = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	l, err := New(snap)
	require.NoError(t, err)
	assert.Equal(t, stats{0, 1, 0}, statsOf(t, l, aces))
	assert.Equal(t, stats{1, 0, 2}, statsOf(t, l, spades))
	assert.Equal(t, snap.LastUpdated, l.LastUpdated())
	checkInvariants(t, l)
}

func TestNewRejectsInvalidSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *shared.Snapshot)
	}{
		{"duplicate name", func(s *shared.Snapshot) { s.Teams[1].Name = s.Teams[0].Name }},
		{"duplicate id", func(s *shared.Snapshot) { s.Teams[1].ID = s.Teams[0].ID }},
		{"empty name", func(s *shared.Snapshot) { s.Teams[2].Name = "" }},
		{"unknown team in match", func(s *shared.Snapshot) {
			s.Matches = []shared.MatchResult{{Team1: aces, Team2: "Nobody"}}
		}},
		{"negative score in match", func(s *shared.Snapshot) {
			s.Matches = []shared.MatchResult{{Team1: aces, Team2: spades, Score1: -2}}
		}},
		{"pair recorded twice", func(s *shared.Snapshot) {
			s.Matches = []shared.MatchResult{
				{Team1: aces, Team2: spades, Score1: 1},
				{Team1: spades, Team2: aces, Score1: 2},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := shared.DefaultSnapshot()
			tt.mutate(&snap)
			_, err := New(snap)
			assert.True(t, errors.Is(err, ErrInvalidSnapshot), "got %v", err)
		})
	}
}

func TestMatchesFor(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResults([]Submission{
		{TeamA: aces, TeamB: spades, ScoreA: 10, ScoreB: 5},
		{TeamA: hearts, TeamB: aces, ScoreA: 3, ScoreB: 3},
		{TeamA: clubs, TeamB: jokers, ScoreA: 1, ScoreB: 2},
	}))

	got, err := l.MatchesFor(aces)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	m, ok := l.Match(jokers, clubs)
	require.True(t, ok)
	assert.Equal(t, clubs, m.Team1)

	_, err = l.MatchesFor("Nobody")
	var unknown *UnknownTeamError
	assert.ErrorAs(t, err, &unknown)
}

func TestCloneIsIndependent(t *testing.T) {
	l := NewDefault()
	require.NoError(t, l.SubmitResult(aces, spades, 10, 5))

	c := l.Clone()
	require.NoError(t, c.SubmitResult(aces, spades, 0, 5))
	c.Stamp(time.Now())

	assert.Equal(t, stats{1, 0, 2}, statsOf(t, l, aces))
	assert.True(t, l.LastUpdated().IsZero())
	assert.Equal(t, stats{0, 1, 0}, statsOf(t, c, aces))
}
