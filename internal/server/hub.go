package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bridge-standings/internal/ledger"
	"bridge-standings/internal/metrics"
	"bridge-standings/internal/protocol"
	"bridge-standings/internal/shared"
	"bridge-standings/internal/standings"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// submitTimeout bounds a websocket-initiated store write.
const submitTimeout = 10 * time.Second

// Tournament is the part of the tournament service the transport layer uses.
type Tournament interface {
	Snapshot() shared.Snapshot
	Table() []standings.Standing
	Schedule() *shared.Schedule
	MatchesFor(name string) ([]shared.MatchResult, error)
	Submit(ctx context.Context, s ledger.Submission) error
	SubmitBatch(ctx context.Context, batch []ledger.Submission) error
	Reset(ctx context.Context) error
	SetPlayers(ctx context.Context, teamID int, players [2]string) error
}

// clientMessage is a helper struct to pass messages along with the client reference.
type clientMessage struct {
	client  *Client
	message protocol.Message
}

// Hub tracks connected viewers, serializes their requests and broadcasts
// every standings change to all of them.
type Hub struct {
	tournament Tournament
	logger     *zap.Logger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader

	clients        map[*Client]bool
	clientMu       sync.RWMutex
	processMessage chan clientMessage
	register       chan *Client
	unregister     chan *Client
	done           chan struct{} // Closed when Run returns
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(t Tournament, logger *zap.Logger, m *metrics.Metrics, allowedOrigins []string) *Hub {
	h := &Hub{
		tournament:     t,
		logger:         logger,
		metrics:        m,
		clients:        make(map[*Client]bool),
		processMessage: make(chan clientMessage),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return lo.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// Run processes registrations and client messages until ctx is done, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.clientMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				h.metrics.ViewerDisconnected()
			}
			h.clientMu.Unlock()
			return

		case client := <-h.register:
			h.clientMu.Lock()
			h.clients[client] = true
			h.clientMu.Unlock()
			h.metrics.ViewerConnected()
			h.logger.Info("Viewer connected", zap.String("client_id", client.ID), zap.String("remote", client.remoteAddr()))
			h.sendStandings(client)

		case client := <-h.unregister:
			h.clientMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.ViewerDisconnected()
				h.logger.Info("Viewer disconnected", zap.String("client_id", client.ID))
			}
			h.clientMu.Unlock()

		case clientMsg := <-h.processMessage:
			h.handleMessage(ctx, clientMsg.client, clientMsg.message)
		}
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.clientMu.RLock()
	defer h.clientMu.RUnlock()
	return len(h.clients)
}

// BroadcastSnapshot sends a standings_update for snap to every viewer. It
// never blocks on a slow viewer.
func (h *Hub) BroadcastSnapshot(snap shared.Snapshot) {
	msgBytes, err := protocol.NewMessage(protocol.TypeStandingsUpdate, protocol.NewStandingsUpdate(snap))
	if err != nil {
		h.logger.Error("Failed to encode standings update", zap.Error(err))
		return
	}

	h.clientMu.RLock()
	targets := lo.Keys(h.clients)
	h.clientMu.RUnlock()

	h.logger.Debug("Broadcasting standings", zap.Int("viewers", len(targets)))
	for _, client := range targets {
		h.send(client, msgBytes)
	}
}

func (h *Hub) handleMessage(ctx context.Context, client *Client, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeSubmitResult:
		h.handleSubmitResult(ctx, client, msg)
	case protocol.TypeGetStandings:
		h.sendStandings(client)
	case protocol.TypePing:
		pongMsg, _ := protocol.NewMessage(protocol.TypePong, nil)
		h.send(client, pongMsg)
	default:
		h.logger.Warn("Unknown message type", zap.String("type", msg.Type), zap.String("client_id", client.ID))
		h.sendError(client, "Unknown message type.")
	}
}

// handleSubmitResult records a result sent over the socket. The resulting
// broadcast reaches the sender through the change hook.
func (h *Hub) handleSubmitResult(ctx context.Context, client *Client, msg protocol.Message) {
	var payload protocol.SubmitResultPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.logger.Info("Malformed submit_result payload", zap.String("client_id", client.ID), zap.Error(err))
		h.sendError(client, "Invalid submit_result message format.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	err := h.tournament.Submit(ctx, ledger.Submission{
		TeamA:  payload.Team1,
		TeamB:  payload.Team2,
		ScoreA: payload.Score1,
		ScoreB: payload.Score2,
	})
	if err != nil {
		h.sendError(client, errorMessage(err))
		return
	}
	h.logger.Info("Result submitted over websocket",
		zap.String("client_id", client.ID),
		zap.String("result", shared.MatchResult{Team1: payload.Team1, Team2: payload.Team2, Score1: payload.Score1, Score2: payload.Score2}.String()))
}

func (h *Hub) sendStandings(client *Client) {
	msgBytes, err := protocol.NewMessage(protocol.TypeStandingsUpdate, protocol.NewStandingsUpdate(h.tournament.Snapshot()))
	if err != nil {
		h.logger.Error("Failed to encode standings update", zap.Error(err))
		return
	}
	h.send(client, msgBytes)
}

func (h *Hub) sendError(client *Client, message string) {
	msgBytes, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorPayload{Message: message})
	if err != nil {
		h.logger.Error("Failed to encode error message", zap.Error(err))
		return
	}
	h.send(client, msgBytes)
}

// send queues message for client without blocking. A viewer whose queue is
// full is dropped.
func (h *Hub) send(client *Client, message []byte) {
	h.clientMu.RLock()
	defer h.clientMu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- message:
	default:
		h.logger.Warn("Viewer queue full, dropping connection", zap.String("client_id", client.ID))
		go h.drop(client)
	}
}

// drop asks Run to unregister client. It gives up once Run has returned.
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
