package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bridge-standings/internal/database"
	"bridge-standings/internal/ledger"
	"bridge-standings/internal/metrics"
	"bridge-standings/internal/shared"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	StaticDir      string   // Served at / when set
	AllowedOrigins []string // CORS origins; empty allows any
}

type setPlayersRequest struct {
	Players []string `json:"players" validate:"len=2,dive,required"`
}

type batchRequest struct {
	Results []ledger.Submission `json:"results" validate:"required,min=1"`
}

type roundResponse struct {
	Round    int              `json:"round"`
	Fixtures []shared.Fixture `json:"fixtures"`
}

type api struct {
	tournament Tournament
	logger     *zap.Logger
	validate   *validator.Validate
}

// NewRouter wires the REST API, the websocket endpoint, metrics and the
// static frontend.
func NewRouter(t Tournament, hub *Hub, m *metrics.Metrics, logger *zap.Logger, opts RouterOptions) http.Handler {
	a := &api{tournament: t, logger: logger, validate: validator.New()}

	r := mux.NewRouter()
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/standings", a.getStandings).Methods(http.MethodGet)
	apiRouter.HandleFunc("/snapshot", a.getSnapshot).Methods(http.MethodGet)
	apiRouter.HandleFunc("/schedule", a.getSchedule).Methods(http.MethodGet)
	apiRouter.HandleFunc("/schedule/{round:[0-9]+}", a.getRound).Methods(http.MethodGet)
	apiRouter.HandleFunc("/results", a.getResults).Methods(http.MethodGet)
	apiRouter.HandleFunc("/results/team/{name}", a.getTeamResults).Methods(http.MethodGet)
	apiRouter.HandleFunc("/results", a.postResult).Methods(http.MethodPost)
	apiRouter.HandleFunc("/results/batch", a.postBatch).Methods(http.MethodPost)
	apiRouter.HandleFunc("/reset", a.postReset).Methods(http.MethodPost)
	apiRouter.HandleFunc("/teams/{id:[0-9]+}/players", a.putPlayers).Methods(http.MethodPut)

	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	if hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(hub, w, r)
		})
	}
	if opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir)))
	}

	corsOrigins := opts.AllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	accessLog := zap.NewStdLog(logger.Named("http")).Writer()
	return handlers.LoggingHandler(accessLog, cors(r))
}

func (a *api) getStandings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tournament.Table())
}

func (a *api) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tournament.Snapshot())
}

func (a *api) getSchedule(w http.ResponseWriter, r *http.Request) {
	schedule := a.tournament.Schedule()
	if schedule == nil {
		http.Error(w, "No schedule for the current roster", http.StatusNotFound)
		return
	}
	rounds := schedule.Rounds()
	out := make([]roundResponse, len(rounds))
	for i, fixtures := range rounds {
		out[i] = roundResponse{Round: i + 1, Fixtures: fixtures}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getRound(w http.ResponseWriter, r *http.Request) {
	schedule := a.tournament.Schedule()
	if schedule == nil {
		http.Error(w, "No schedule for the current roster", http.StatusNotFound)
		return
	}
	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil {
		http.Error(w, "Invalid round", http.StatusBadRequest)
		return
	}
	fixtures, err := schedule.MatchesForRound(round)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, roundResponse{Round: round, Fixtures: fixtures})
}

func (a *api) getResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tournament.Snapshot().Matches)
}

func (a *api) getTeamResults(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	results, err := a.tournament.MatchesFor(name)
	if err != nil {
		var unknown *ledger.UnknownTeamError
		if errors.As(err, &unknown) {
			http.Error(w, "No such team", http.StatusNotFound)
			return
		}
		a.writeError(w, err)
		return
	}
	if results == nil {
		results = []shared.MatchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *api) postResult(w http.ResponseWriter, r *http.Request) {
	var s ledger.Submission
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.tournament.Submit(r.Context(), s); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.tournament.Table())
}

func (a *api) postBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.tournament.SubmitBatch(r.Context(), req.Results); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.tournament.Table())
}

func (a *api) postReset(w http.ResponseWriter, r *http.Request) {
	if err := a.tournament.Reset(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.tournament.Table())
}

func (a *api) putPlayers(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}
	var req setPlayersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = a.tournament.SetPlayers(r.Context(), id, [2]string{req.Players[0], req.Players[1]})
	if err != nil {
		var unknown *ledger.UnknownTeamError
		if errors.As(err, &unknown) {
			http.Error(w, "No such team", http.StatusNotFound)
			return
		}
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service errors onto status codes.
func (a *api) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("Request failed", zap.Error(err))
	}
	http.Error(w, errorMessage(err), status)
}

func statusFor(err error) int {
	var transport *database.TransportError
	switch {
	case ledger.IsRejected(err):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &transport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown to clients for err.
func errorMessage(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusConflict:
		return "The standings changed since they were loaded. Refresh and try again."
	case http.StatusServiceUnavailable:
		return "The standings store is unavailable. Try again later."
	default:
		return "Internal error."
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
