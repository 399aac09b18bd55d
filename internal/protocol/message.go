package protocol

import (
	"encoding/json"
	"time"

	"bridge-standings/internal/shared"
	"bridge-standings/internal/standings"

	"github.com/samber/lo"
)

// Message types exchanged over the websocket.
const (
	// Client -> Server
	TypeSubmitResult = "submit_result"
	TypeGetStandings = "get_standings"
	TypePing         = "ping"

	// Server -> Client
	TypeStandingsUpdate = "standings_update"
	TypePong            = "pong"
	TypeError           = "error"
)

// Message represents a generic WebSocket message structure.
type Message struct {
	Type    string          `json:"type"`              // One of the Type* constants
	Payload json.RawMessage `json:"payload,omitempty"` // Decoded according to Type
}

// --- Client -> Server Payload Structs ---

type SubmitResultPayload struct {
	Team1  string `json:"team1"`
	Team2  string `json:"team2"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

// --- Server -> Client Payload Structs ---

type StandingRow struct {
	Position int      `json:"position"`
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Players  []string `json:"players"`
	Wins     int      `json:"wins"`
	Losses   int      `json:"losses"`
	Points   int      `json:"points"`
	Podium   bool     `json:"podium"`
}

type MatchRow struct {
	Team1  string `json:"team1"`
	Team2  string `json:"team2"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
	Winner string `json:"winner,omitempty"` // Empty for a tie
}

type StandingsUpdatePayload struct {
	Standings   []StandingRow `json:"standings"`
	Matches     []MatchRow    `json:"matches"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewStandingsUpdate builds the broadcast payload for a snapshot.
func NewStandingsUpdate(snap shared.Snapshot) StandingsUpdatePayload {
	rows := lo.Map(standings.Table(snap.Teams), func(s standings.Standing, _ int) StandingRow {
		return StandingRow{
			Position: s.Position,
			ID:       s.Team.ID,
			Name:     s.Team.Name,
			Players:  s.Team.Players[:],
			Wins:     s.Team.Wins,
			Losses:   s.Team.Losses,
			Points:   s.Team.Points,
			Podium:   s.Podium,
		}
	})
	matches := lo.Map(snap.Matches, func(m shared.MatchResult, _ int) MatchRow {
		winner, _, _ := m.Winner()
		return MatchRow{
			Team1:  m.Team1,
			Team2:  m.Team2,
			Score1: m.Score1,
			Score2: m.Score2,
			Winner: winner,
		}
	})
	return StandingsUpdatePayload{
		Standings:   rows,
		Matches:     matches,
		LastUpdated: snap.LastUpdated,
	}
}

// NewMessage wraps payload in a typed envelope. A nil payload is omitted.
func NewMessage(msgType string, payload interface{}) ([]byte, error) {
	if payload == nil {
		return json.Marshal(Message{Type: msgType})
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := Message{
		Type:    msgType,
		Payload: payloadBytes,
	}
	return json.Marshal(msg)
}
