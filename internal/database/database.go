// Package database stores the tournament snapshot as a single versioned
// document. Writers must present the version they last read; a stale version
// is rejected instead of overwriting a concurrent change.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"bridge-standings/internal/shared"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	tableName  = "snapshots"
	snapshotID = 1
)

type Service struct {
	db         *sql.DB
	m          *sync.Mutex
	driver     string
	table_name string
	logger     *zap.Logger
}

// New opens the store and creates the snapshots table if needed.
func New(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Service, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps in-memory databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	sqlStmt := `
	create table if not exists ` + tableName + ` (
		id integer not null primary key,
		version text not null,
		payload text not null,
		updated_at text not null
	);
	`
	if _, err := db.ExecContext(ctx, sqlStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating %s table: %w", tableName, err)
	}

	logger.Info("Snapshot store ready", zap.String("driver", driver))
	return &Service{
		db:         db,
		m:          &sync.Mutex{},
		driver:     driver,
		table_name: tableName,
		logger:     logger,
	}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) TableName() string {
	return s.table_name
}

func (s *Service) Driver() string {
	return s.driver
}

// Fetch returns the stored snapshot and its version token. ErrNoSnapshot is
// returned when nothing has been written yet.
func (s *Service) Fetch(ctx context.Context) (shared.Snapshot, string, error) {
	s.m.Lock()
	defer s.m.Unlock()

	var row snapshotRow
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, version, payload, updated_at FROM "+s.table_name+" WHERE id = ?"),
		snapshotID,
	).Scan(&row.ID, &row.Version, &row.Payload, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.Snapshot{}, "", ErrNoSnapshot
	}
	if err != nil {
		return shared.Snapshot{}, "", &TransportError{Op: "fetch", Err: err}
	}

	snap, err := shared.DecodeSnapshot([]byte(row.Payload))
	if err != nil {
		return shared.Snapshot{}, "", &TransportError{Op: "fetch", Err: err}
	}
	return snap, row.Version, nil
}

// Write stores snap if the stored version still equals version, and returns
// the new version. An empty version means "only if nothing is stored yet".
func (s *Service) Write(ctx context.Context, snap shared.Snapshot, version string) (string, error) {
	payload, err := snap.Encode()
	if err != nil {
		return "", err
	}
	next := uuid.NewString()
	updatedAt := snap.LastUpdated.UTC().Format(time.RFC3339Nano)

	s.m.Lock()
	defer s.m.Unlock()

	var res sql.Result
	if version == "" {
		res, err = s.db.ExecContext(ctx,
			s.rebind("INSERT INTO "+s.table_name+" (id, version, payload, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING"),
			snapshotID, next, string(payload), updatedAt)
	} else {
		res, err = s.db.ExecContext(ctx,
			s.rebind("UPDATE "+s.table_name+" SET version = ?, payload = ?, updated_at = ? WHERE id = ? AND version = ?"),
			next, string(payload), updatedAt, snapshotID, version)
	}
	if err != nil {
		return "", &TransportError{Op: "write", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", &TransportError{Op: "write", Err: err}
	}
	if n == 0 {
		s.logger.Warn("Rejected stale snapshot write", zap.String("version", version))
		return "", ErrVersionConflict
	}
	return next, nil
}

// rebind converts ? placeholders to $n for Postgres.
func (s *Service) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
