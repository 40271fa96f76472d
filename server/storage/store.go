// Package storage persists collection snapshots and alert history in SQLite
// or PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/egperson/network-printer-solution/common/config"
	model "github.com/egperson/network-printer-solution/common/storage"
)

var (
	// ErrNotFound is returned when a requested snapshot does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIncompatibleSchema is returned for rows written by an incompatible
	// payload schema.
	ErrIncompatibleSchema = errors.New("incompatible snapshot schema")
)

// SnapshotFilter selects snapshots by capture time. Zero values are open.
type SnapshotFilter struct {
	Since time.Time
	Until time.Time
	Limit int
}

// AlertFilter selects alerts. Empty fields match everything.
type AlertFilter struct {
	DeviceID string
	Type     string
	Limit    int
}

// Store is the append-only snapshot and alert history. Snapshots are never
// updated once appended.
type Store interface {
	// AppendSnapshot stores snap and assigns snap.ID.
	AppendSnapshot(ctx context.Context, snap *model.Snapshot) error
	// LatestSnapshot returns the most recent snapshot or ErrNotFound.
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
	// ListSnapshots returns matching snapshots newest first.
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*model.Snapshot, error)
	GetSnapshot(ctx context.Context, id int64) (*model.Snapshot, error)

	AppendAlerts(ctx context.Context, alerts []model.Alert) error
	// ListAlerts returns matching alerts newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error)

	Close() error
}

// NewStore opens the backend selected by cfg.Driver.
func NewStore(cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3", "modernc":
		path := cfg.Path
		if path == "" {
			path = cfg.DSN
		}
		if path == "" {
			path = "printwatch.db"
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql", "pgx":
		s, err := NewPostgresStore(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: sqlite, postgres)", cfg.Driver)
	}
}
