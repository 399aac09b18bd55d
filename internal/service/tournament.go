// Package service coordinates the ledger with the snapshot store. It owns the
// single Ledger instance, serializes every mutation and keeps the in-memory
// state equal to the last snapshot it successfully wrote or fetched.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"bridge-standings/internal/database"
	"bridge-standings/internal/ledger"
	"bridge-standings/internal/metrics"
	"bridge-standings/internal/shared"
	"bridge-standings/internal/standings"

	"go.uber.org/zap"
)

// Store persists whole snapshots with optimistic concurrency. Write must
// fail with database.ErrVersionConflict when version is stale.
type Store interface {
	Fetch(ctx context.Context) (shared.Snapshot, string, error)
	Write(ctx context.Context, snap shared.Snapshot, version string) (string, error)
}

// ChangeFunc is invoked with the new state after every successful change.
// It must not call back into the Tournament.
type ChangeFunc func(snap shared.Snapshot)

// Source describes where the state applied by Load came from.
type Source string

const (
	SourceStore       Source = "store"        // Fetched from the store
	SourceSeeded      Source = "seeded"       // Store was empty; default seed written
	SourceLastKnown   Source = "last_known"   // Store unreachable; kept last good state
	SourceDefaultSeed Source = "default_seed" // Store unreachable and nothing cached
)

// LoadResult reports how the state was obtained. Fallback is true when the
// store could not be used and degraded data is being served.
type LoadResult struct {
	Source   Source
	Fallback bool
	Err      error // Store error that caused the fallback
}

type Option func(*Tournament)

// WithEnforcedSchedule rejects results for pairings outside the schedule.
func WithEnforcedSchedule(enforce bool) Option {
	return func(t *Tournament) {
		t.enforceSchedule = enforce
	}
}

// WithOnChange registers the hook fired after each successful change.
func WithOnChange(fn ChangeFunc) Option {
	return func(t *Tournament) {
		t.onChange = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tournament) {
		t.metrics = m
	}
}

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(t *Tournament) {
		t.now = now
	}
}

// Tournament is the coordinating service.
type Tournament struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	notifyMu sync.Mutex // Orders change hooks; taken before mu is released
	ledger   *ledger.Ledger
	schedule *shared.Schedule
	version  string // Token of the last snapshot written or fetched
	loaded   bool   // ledger holds a snapshot that came from the store

	enforceSchedule bool
	onChange        ChangeFunc
	now             func() time.Time
}

// New returns a service holding the default seed until Load is called.
func New(store Store, logger *zap.Logger, opts ...Option) *Tournament {
	t := &Tournament{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	// The default seed is always valid.
	t.ledger, t.schedule, _ = t.build(shared.DefaultSnapshot())
	return t
}

// Load fetches the stored snapshot and makes it current. When the store is
// empty the default seed is written. When the store fails, or holds a
// snapshot that cannot be loaded, the last known good state is kept, or the
// default seed if there is none; the fallback is reported in the result and
// never silent.
func (t *Tournament) Load(ctx context.Context) (LoadResult, error) {
	snap, version, err := t.store.Fetch(ctx)
	switch {
	case err == nil:
		t.mu.Lock()
		if err := t.replace(snap, version); err != nil {
			t.adopt(version)
			res := t.fallback(err)
			t.mu.Unlock()
			return res, nil
		}
		t.logger.Info("Loaded snapshot", zap.Time("last_updated", snap.LastUpdated), zap.Int("matches", len(snap.Matches)))
		t.unlockAndNotify()
		return LoadResult{Source: SourceStore}, nil

	case errors.Is(err, database.ErrNoSnapshot):
		seed := shared.DefaultSnapshot()
		seed.LastUpdated = t.now().UTC()
		version, err := t.store.Write(ctx, seed, "")
		if err != nil {
			t.countStoreError("write", err)
			return LoadResult{}, err
		}
		t.mu.Lock()
		if err := t.replace(seed, version); err != nil {
			t.mu.Unlock()
			return LoadResult{}, err
		}
		t.logger.Info("Store was empty, wrote default seed")
		t.unlockAndNotify()
		return LoadResult{Source: SourceSeeded}, nil

	default:
		t.countStoreError("fetch", err)
		t.mu.Lock()
		res := t.fallback(err)
		t.mu.Unlock()
		return res, nil
	}
}

// Refresh re-fetches the snapshot and replaces the current state when the
// stored version differs from the one last written or fetched. It reports
// whether a replacement happened.
func (t *Tournament) Refresh(ctx context.Context) (bool, error) {
	snap, version, err := t.store.Fetch(ctx)
	if err != nil {
		t.countStoreError("fetch", err)
		t.metrics.Refresh("error")
		return false, err
	}

	t.mu.Lock()
	if t.version != "" && version == t.version {
		t.mu.Unlock()
		t.metrics.Refresh("unchanged")
		return false, nil
	}
	if t.loaded && !snap.NewerThan(t.ledger.Snapshot()) {
		t.logger.Warn("Stored snapshot has a new version but an older timestamp",
			zap.Time("stored", snap.LastUpdated), zap.Time("current", t.ledger.LastUpdated()))
	}
	if err := t.replace(snap, version); err != nil {
		// Track the version anyway so the next write repairs the document.
		t.adopt(version)
		t.mu.Unlock()
		t.logger.Warn("Stored snapshot is invalid, keeping current state", zap.Error(err))
		t.metrics.Refresh("error")
		return false, err
	}

	t.logger.Info("Applied stored snapshot", zap.Time("last_updated", snap.LastUpdated))
	t.metrics.Refresh("replaced")
	t.unlockAndNotify()
	return true, nil
}

// Poll calls Refresh every interval until ctx is done.
func (t *Tournament) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
				t.logger.Warn("Snapshot refresh failed", zap.Error(err))
			}
		}
	}
}

// Submit records one result.
func (t *Tournament) Submit(ctx context.Context, s ledger.Submission) error {
	return t.mutate(ctx, "submit", func(l *ledger.Ledger) error {
		return l.Submit(s)
	})
}

// SubmitBatch records several results in order; nothing is applied if any
// entry is rejected.
func (t *Tournament) SubmitBatch(ctx context.Context, batch []ledger.Submission) error {
	return t.mutate(ctx, "batch", func(l *ledger.Ledger) error {
		return l.SubmitResults(batch)
	})
}

// Reset clears all results.
func (t *Tournament) Reset(ctx context.Context) error {
	return t.mutate(ctx, "reset", func(l *ledger.Ledger) error {
		l.ResetAll()
		return nil
	})
}

// SetPlayers renames the players of a team.
func (t *Tournament) SetPlayers(ctx context.Context, teamID int, players [2]string) error {
	return t.mutate(ctx, "players", func(l *ledger.Ledger) error {
		return l.SetPlayers(teamID, players)
	})
}

// Standings returns the ranked teams.
func (t *Tournament) Standings() []shared.Team {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return standings.Rank(t.ledger.Teams())
}

// Table returns the ranked teams with positions and podium flags.
func (t *Tournament) Table() []standings.Standing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return standings.Table(t.ledger.Teams())
}

// Snapshot returns a copy of the current state.
func (t *Tournament) Snapshot() shared.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Snapshot()
}

// MatchesFor returns the recorded results of one team.
func (t *Tournament) MatchesFor(name string) ([]shared.MatchResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.MatchesFor(name)
}

// Schedule returns the pairing plan for the current roster. It is nil when
// the roster is not a six-team group.
func (t *Tournament) Schedule() *shared.Schedule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schedule
}

// mutate applies fn to a scratch copy, persists it and swaps it in only when
// the write succeeds. On any error the current state is left untouched.
func (t *Tournament) mutate(ctx context.Context, op string, fn func(*ledger.Ledger) error) error {
	t.mu.Lock()
	scratch := t.ledger.Clone()
	if err := fn(scratch); err != nil {
		t.mu.Unlock()
		t.metrics.Submission(op, "rejected")
		t.logger.Info("Rejected ledger change", zap.String("op", op), zap.Error(err))
		return err
	}
	scratch.Stamp(t.now().UTC())

	version, err := t.store.Write(ctx, scratch.Snapshot(), t.version)
	if err != nil {
		t.mu.Unlock()
		t.countStoreError("write", err)
		t.metrics.Submission(op, "failed")
		t.logger.Warn("Ledger change not persisted", zap.String("op", op), zap.Error(err))
		return err
	}
	t.ledger = scratch
	t.version = version
	t.loaded = true
	t.metrics.Submission(op, "ok")
	t.unlockAndNotify()
	return nil
}

// replace makes snap the current state. Caller holds t.mu.
func (t *Tournament) replace(snap shared.Snapshot, version string) error {
	l, schedule, err := t.build(snap)
	if err != nil {
		return err
	}
	t.ledger = l
	t.schedule = schedule
	t.version = version
	t.loaded = true
	return nil
}

// build constructs a ledger for snap, bound to its schedule when the roster
// allows one.
func (t *Tournament) build(snap shared.Snapshot) (*ledger.Ledger, *shared.Schedule, error) {
	schedule, err := shared.ScheduleFor(snap.Teams)
	if err != nil {
		t.logger.Warn("Roster has no schedule", zap.Error(err))
		schedule = nil
	}
	var opts []ledger.Option
	if t.enforceSchedule && schedule != nil {
		opts = append(opts, ledger.WithSchedule(schedule))
	}
	l, err := ledger.New(snap, opts...)
	if err != nil {
		return nil, nil, err
	}
	return l, schedule, nil
}

// fallback builds the result for a store that could not be used. Caller
// holds t.mu.
func (t *Tournament) fallback(err error) LoadResult {
	res := LoadResult{Source: SourceDefaultSeed, Fallback: true, Err: err}
	if t.loaded {
		res.Source = SourceLastKnown
	}
	t.logger.Warn("Snapshot store unavailable, serving fallback data", zap.String("source", string(res.Source)), zap.Error(err))
	return res
}

// adopt records the version of a stored snapshot that could not be applied,
// so the next successful write replaces it. Caller holds t.mu.
func (t *Tournament) adopt(version string) {
	t.version = version
}

// unlockAndNotify captures the current state, releases t.mu and hands the
// state to the change hook. Hooks run one at a time in the order the
// changes were made. Caller holds t.mu.
func (t *Tournament) unlockAndNotify() {
	if t.onChange == nil {
		t.mu.Unlock()
		return
	}
	snap := t.ledger.Snapshot()
	t.notifyMu.Lock()
	t.mu.Unlock()
	defer t.notifyMu.Unlock()
	t.onChange(snap)
}

func (t *Tournament) countStoreError(op string, err error) {
	if errors.Is(err, database.ErrVersionConflict) {
		t.metrics.WriteConflict()
		return
	}
	var transport *database.TransportError
	if errors.As(err, &transport) {
		t.metrics.TransportError(op)
	}
}
