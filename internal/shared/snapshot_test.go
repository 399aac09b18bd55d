package shared

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEncodeShape(t *testing.T) {
	snap := DefaultSnapshot()
	snap.Teams[1].Logo = "team_logos/spades.jpeg"
	snap.Teams[0].Players = [2]string{"Subham Jalan", "Arnav Rustagi"}
	snap.Matches = append(snap.Matches, MatchResult{Team1: "Team Aces", Team2: "Team Spades", Score1: 10, Score2: 5})
	snap.LastUpdated = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	data, err := snap.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2024-03-01T12:30:00Z", raw["lastUpdated"])

	teams := raw["teams"].([]any)
	require.Len(t, teams, TeamCount)
	first := teams[0].(map[string]any)
	assert.NotContains(t, first, "logo")
	assert.Equal(t, []any{"Subham Jalan", "Arnav Rustagi"}, first["players"])
	assert.Equal(t, "team_logos/spades.jpeg", teams[1].(map[string]any)["logo"])

	matches := raw["matches"].([]any)
	require.Len(t, matches, 1)
	assert.Equal(t, map[string]any{"team1": "Team Aces", "team2": "Team Spades", "score1": float64(10), "score2": float64(5)}, matches[0])
}

func TestDecodeSnapshot(t *testing.T) {
	data := []byte(`{
		"teams": [{"id": 1, "name": "Team Aces", "players": ["a", "b"], "wins": 1, "losses": 0, "points": 2}],
		"lastUpdated": "2024-03-01T12:30:00.000Z"
	}`)
	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, snap.Teams, 1)
	assert.Equal(t, 2, snap.Teams[0].Points)
	assert.NotNil(t, snap.Matches)
	assert.Empty(t, snap.Matches)
	assert.Equal(t, 2024, snap.LastUpdated.Year())

	_, err = DecodeSnapshot([]byte(`{"teams": 3}`))
	assert.Error(t, err)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	snap := DefaultSnapshot()
	snap.Matches = append(snap.Matches, MatchResult{Team1: "Team Aces", Team2: "Team Spades"})
	c := snap.Clone()
	c.Teams[0].Wins = 4
	c.Matches[0].Score1 = 9

	assert.Equal(t, 0, snap.Teams[0].Wins)
	assert.Equal(t, 0, snap.Matches[0].Score1)
}

func TestMatchResultHelpers(t *testing.T) {
	m := MatchResult{Team1: "B", Team2: "A", Score1: 3, Score2: 7}
	assert.Equal(t, PairKey{A: "A", B: "B"}, m.Key())
	assert.Equal(t, NewPairKey("A", "B"), NewPairKey("B", "A"))
	assert.Equal(t, Team2Won, m.Outcome())

	winner, loser, ok := m.Winner()
	require.True(t, ok)
	assert.Equal(t, "A", winner)
	assert.Equal(t, "B", loser)

	own, opp := m.ScoreFor("A")
	assert.Equal(t, 7, own)
	assert.Equal(t, 3, opp)

	_, _, ok = MatchResult{Team1: "A", Team2: "B", Score1: 4, Score2: 4}.Winner()
	assert.False(t, ok)
	assert.Equal(t, "B 3 - 7 A", m.String())
}
