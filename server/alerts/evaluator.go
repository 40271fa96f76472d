// Package alerts turns the snapshot history into edge-triggered low-supply
// and device error alerts.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/egperson/network-printer-solution/common/config"
	model "github.com/egperson/network-printer-solution/common/storage"
	"github.com/egperson/network-printer-solution/server/storage"
)

// EvaluatorConfig configures the alert evaluator.
type EvaluatorConfig struct {
	// Bands are the low-supply severity bands.
	Bands []config.Band

	// PrimeSnapshots is how many recent snapshots Prime replays.
	PrimeSnapshots int

	// Logger for evaluation events
	Logger *slog.Logger

	// NewID generates alert ids. Defaults to random UUIDs.
	NewID func() string
}

// EvaluatorStore defines the storage operations needed by the evaluator.
type EvaluatorStore interface {
	ListSnapshots(ctx context.Context, filter storage.SnapshotFilter) ([]*model.Snapshot, error)
	AppendAlerts(ctx context.Context, alerts []model.Alert) error
}

// Evaluator feeds appended snapshots through a Tracker and persists the
// resulting alerts.
type Evaluator struct {
	store  EvaluatorStore
	config EvaluatorConfig
	logger *slog.Logger

	mu      sync.Mutex
	tracker *Tracker
	lastID  int64
	pending []model.Alert
}

// NewEvaluator creates a new alert evaluator.
func NewEvaluator(store EvaluatorStore, cfg EvaluatorConfig) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Evaluator{
		store:   store,
		config:  cfg,
		logger:  logger,
		tracker: NewTracker(cfg.Bands),
	}
}

// Prime replays recent history into the tracker without emitting alerts, so
// a restart does not re-announce excursions that were already reported.
func (e *Evaluator) Prime(ctx context.Context) error {
	if e.config.PrimeSnapshots <= 0 {
		return nil
	}
	snaps, err := e.store.ListSnapshots(ctx, storage.SnapshotFilter{Limit: e.config.PrimeSnapshots})
	if err != nil {
		return fmt.Errorf("prime alerts: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Newest first from the store; replay oldest first.
	for i := len(snaps) - 1; i >= 0; i-- {
		e.tracker.Observe(snaps[i])
		if snaps[i].ID > e.lastID {
			e.lastID = snaps[i].ID
		}
	}
	e.logger.Info("alert evaluator primed", "snapshots", len(snaps), "last_snapshot", e.lastID)
	return nil
}

// Process evaluates a newly appended snapshot and persists the alerts it
// produces. Snapshots already seen (by id) are ignored. When persisting
// fails the alerts are kept and written with the next successful call; the
// returned slice always holds the alerts produced by snap.
func (e *Evaluator) Process(ctx context.Context, snap *model.Snapshot) ([]model.Alert, error) {
	if snap == nil {
		return nil, nil
	}

	e.mu.Lock()
	if snap.ID != 0 && snap.ID <= e.lastID {
		e.mu.Unlock()
		e.logger.Debug("snapshot already evaluated", "snapshot", snap.ID)
		return nil, nil
	}
	if snap.ID > e.lastID {
		e.lastID = snap.ID
	}
	fresh := e.tracker.Observe(snap)
	for i := range fresh {
		fresh[i].ID = e.config.NewID()
	}
	batch := append(e.pending, fresh...)
	e.pending = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return fresh, nil
	}
	if err := e.store.AppendAlerts(ctx, batch); err != nil {
		e.mu.Lock()
		e.pending = append(batch, e.pending...)
		e.mu.Unlock()
		e.logger.Error("failed to store alerts", "error", err, "count", len(batch))
		return fresh, fmt.Errorf("store alerts: %w", err)
	}
	for _, a := range fresh {
		e.logger.Info("alert created", "id", a.ID, "type", a.Type, "device", a.DeviceID, "supply", a.Supply, "severity", a.Severity)
	}
	return fresh, nil
}

// Pending returns the number of alerts waiting to be persisted.
func (e *Evaluator) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
