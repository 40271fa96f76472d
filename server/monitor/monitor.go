// Package monitor schedules collection cycles and hands each persisted
// snapshot to the alert evaluator and the event hub.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/egperson/network-printer-solution/agent/scanner"
	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/logger"
	model "github.com/egperson/network-printer-solution/common/storage"
	"github.com/egperson/network-printer-solution/common/ws"
)

// Cycler runs one collection cycle.
type Cycler interface {
	RunCollectionCycle(ctx context.Context, cfg *config.Config, opts scanner.CycleOptions) (*model.Snapshot, error)
}

// AlertProcessor evaluates a persisted snapshot.
type AlertProcessor interface {
	Process(ctx context.Context, snap *model.Snapshot) ([]model.Alert, error)
}

// Broadcaster publishes events without blocking.
type Broadcaster interface {
	Broadcast(msg ws.Message)
}

// Monitor owns the live configuration, the schedule and the queue of
// snapshots whose persistence failed.
type Monitor struct {
	cycler Cycler
	store  scanner.SnapshotAppender
	alerts AlertProcessor
	hub    Broadcaster
	logger *logger.Logger

	// cycle serializes Collect, queue flush included.
	cycle sync.Mutex

	mu      sync.RWMutex
	cfg     *config.Config
	pending []*model.Snapshot
	last    *model.Snapshot
	lastRun time.Time
	lastErr error
}

// New creates a monitor. alerts and hub may be nil.
func New(cycler Cycler, store scanner.SnapshotAppender, alerts AlertProcessor, hub Broadcaster, cfg *config.Config, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.New(logger.ERROR, "", 0)
		log.SetConsole(nil)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Monitor{
		cycler: cycler,
		store:  store,
		alerts: alerts,
		hub:    hub,
		logger: log,
		cfg:    cfg,
	}
}

// Config returns the configuration used by the next cycle.
func (m *Monitor) Config() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetConfig validates cfg and uses it from the next cycle on. A running
// cycle keeps the configuration it started with.
func (m *Monitor) SetConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Status is a summary of the most recent cycle.
type Status struct {
	LastRun      time.Time `json:"last_run,omitempty"`
	LastSnapshot int64     `json:"last_snapshot,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Pending      int       `json:"pending"`
}

// Status reports the outcome of the last cycle and the persistence backlog.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{LastRun: m.lastRun, Pending: len(m.pending)}
	if m.last != nil {
		st.LastSnapshot = m.last.ID
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// Collect flushes snapshots left over from failed appends, then runs one
// cycle. limit caps the candidates probed; zero means no cap. A persistence
// failure queues the snapshot for the next call and is returned as a
// *scanner.PersistError together with the snapshot. A call made while
// another one runs returns scanner.ErrCycleInProgress without touching the
// queue.
func (m *Monitor) Collect(ctx context.Context, limit int) (*model.Snapshot, error) {
	if !m.cycle.TryLock() {
		return nil, scanner.ErrCycleInProgress
	}
	defer m.cycle.Unlock()

	m.flushPending(ctx)

	cfg := m.Config()
	snap, err := m.cycler.RunCollectionCycle(ctx, cfg, scanner.CycleOptions{Limit: limit})

	var persistErr *scanner.PersistError
	switch {
	case errors.As(err, &persistErr):
		m.mu.Lock()
		m.pending = append(m.pending, snap)
		m.lastRun, m.lastErr = time.Now(), err
		m.mu.Unlock()
		m.logger.Warn("snapshot queued for retry", "devices", len(snap.Devices), "error", err)
		m.broadcastError(err)
		return snap, err
	case errors.Is(err, scanner.ErrCycleInProgress), errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		m.mu.Lock()
		m.lastRun, m.lastErr = time.Now(), err
		m.mu.Unlock()
		m.logger.Error("collection cycle failed", "error", err)
		m.broadcastError(err)
		return nil, err
	}

	m.mu.Lock()
	m.lastRun, m.lastErr = time.Now(), nil
	m.mu.Unlock()
	m.persisted(ctx, snap)
	return snap, nil
}

// flushPending appends queued snapshots oldest first and stops at the first
// failure so history keeps capture order. Callers hold m.cycle.
func (m *Monitor) flushPending(ctx context.Context) {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 || m.store == nil {
			m.mu.Unlock()
			return
		}
		snap := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		if err := m.store.AppendSnapshot(ctx, snap); err != nil {
			m.mu.Lock()
			m.pending = append([]*model.Snapshot{snap}, m.pending...)
			n := len(m.pending)
			m.mu.Unlock()
			m.logger.Warn("retrying queued snapshot failed", "pending", n, "error", err)
			return
		}
		m.logger.Info("queued snapshot stored", "id", snap.ID, "taken_at", snap.Timestamp)
		m.persisted(ctx, snap)
	}
}

// persisted runs alert evaluation for a stored snapshot and publishes it.
func (m *Monitor) persisted(ctx context.Context, snap *model.Snapshot) {
	m.mu.Lock()
	if m.last == nil || snap.ID > m.last.ID {
		m.last = snap
	}
	m.mu.Unlock()

	var fired []model.Alert
	if m.alerts != nil {
		var err error
		fired, err = m.alerts.Process(ctx, snap)
		if err != nil {
			m.logger.Error("alert evaluation failed", "snapshot", snap.ID, "error", err)
		}
	}
	if m.hub == nil {
		return
	}
	ok := 0
	for _, d := range snap.Devices {
		if d.Status == model.StatusOK {
			ok++
		}
	}
	m.hub.Broadcast(ws.NewMessage(ws.MessageTypeSnapshot, map[string]interface{}{
		"id":        snap.ID,
		"timestamp": snap.Timestamp,
		"devices":   len(snap.Devices),
		"ok":        ok,
	}))
	for _, a := range fired {
		m.hub.Broadcast(ws.NewMessage(ws.MessageTypeAlert, map[string]interface{}{"alert": a}))
	}
}

func (m *Monitor) broadcastError(err error) {
	if m.hub != nil {
		m.hub.Broadcast(ws.NewMessage(ws.MessageTypeCycleError, map[string]interface{}{"error": err.Error()}))
	}
}

// Run collects immediately and then every scan interval until ctx is done.
// The interval is re-read after each cycle so configuration changes apply.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "interval", m.interval())
	for {
		if _, err := m.Collect(ctx, 0); errors.Is(err, scanner.ErrCycleInProgress) {
			m.logger.Debug("scheduled cycle skipped, another cycle is running")
		}

		timer := time.NewTimer(m.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("monitor stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (m *Monitor) interval() time.Duration {
	secs := m.Config().Scan.IntervalSeconds
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

