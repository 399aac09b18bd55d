package database

import (
	"errors"
	"fmt"
)

var (
	ErrNoSnapshot      = errors.New("no snapshot stored")
	ErrVersionConflict = errors.New("snapshot was changed by another writer")
)

// TransportError wraps a failure to reach or use the underlying store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("snapshot store %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// snapshotRow mirrors the snapshots table.
type snapshotRow struct {
	ID        int
	Version   string
	Payload   string
	UpdatedAt string
}
