package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/egperson/network-printer-solution/agent/scanner"
	"github.com/egperson/network-printer-solution/common/config"
	model "github.com/egperson/network-printer-solution/common/storage"
	"github.com/egperson/network-printer-solution/common/ws"
)

type fakeCycler struct {
	mu    sync.Mutex
	calls int
	run   func(n int) (*model.Snapshot, error)
}

func (f *fakeCycler) RunCollectionCycle(ctx context.Context, cfg *config.Config, opts scanner.CycleOptions) (*model.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.run(n)
}

type fakeStore struct {
	mu     sync.Mutex
	err    error
	nextID int64
	stored []*model.Snapshot
}

func (s *fakeStore) AppendSnapshot(ctx context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.nextID++
	snap.ID = s.nextID
	s.stored = append(s.stored, snap)
	return nil
}

type fakeAlerts struct {
	seen []int64
	emit []model.Alert
}

func (f *fakeAlerts) Process(ctx context.Context, snap *model.Snapshot) ([]model.Alert, error) {
	f.seen = append(f.seen, snap.ID)
	return f.emit, nil
}

type fakeHub struct {
	mu   sync.Mutex
	msgs []ws.Message
}

func (h *fakeHub) Broadcast(msg ws.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *fakeHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, m := range h.msgs {
		out = append(out, m.Type)
	}
	return out
}

func okSnapshot(id int64) *model.Snapshot {
	return &model.Snapshot{ID: id, Timestamp: time.Now(), Devices: []model.Device{{ID: "10.0.0.1", Status: model.StatusOK}}}
}

func TestCollect_PublishesSnapshotAndAlerts(t *testing.T) {
	t.Parallel()

	cycler := &fakeCycler{run: func(n int) (*model.Snapshot, error) { return okSnapshot(7), nil }}
	alerts := &fakeAlerts{emit: []model.Alert{{ID: "a1", Type: model.AlertLowSupply}}}
	hub := &fakeHub{}
	m := New(cycler, &fakeStore{}, alerts, hub, nil, nil)

	snap, err := m.Collect(context.Background(), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if snap.ID != 7 {
		t.Fatalf("snapshot id = %d", snap.ID)
	}
	if len(alerts.seen) != 1 || alerts.seen[0] != 7 {
		t.Errorf("alerts saw %v", alerts.seen)
	}
	got := hub.types()
	if len(got) != 2 || got[0] != ws.MessageTypeSnapshot || got[1] != ws.MessageTypeAlert {
		t.Errorf("broadcasts = %v", got)
	}
	st := m.Status()
	if st.LastSnapshot != 7 || st.LastError != "" || st.Pending != 0 || st.LastRun.IsZero() {
		t.Errorf("status = %+v", st)
	}
}

func TestCollect_RetriesPendingSnapshot(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	first := &model.Snapshot{Timestamp: time.Now(), Devices: []model.Device{{ID: "a", Status: model.StatusOK}}}
	cycler := &fakeCycler{run: func(n int) (*model.Snapshot, error) {
		if n == 1 {
			return first, &scanner.PersistError{Err: errors.New("database is locked")}
		}
		s := &model.Snapshot{Timestamp: time.Now()}
		return s, store.AppendSnapshot(context.Background(), s)
	}}
	alerts := &fakeAlerts{}
	hub := &fakeHub{}
	m := New(cycler, store, alerts, hub, nil, nil)
	ctx := context.Background()

	snap, err := m.Collect(ctx, 0)
	if !errors.Is(err, scanner.ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if snap != first {
		t.Fatal("computed snapshot not returned with the persist error")
	}
	if st := m.Status(); st.Pending != 1 || st.LastError == "" {
		t.Fatalf("status = %+v", st)
	}
	if len(alerts.seen) != 0 {
		t.Fatal("alerts evaluated for an unpersisted snapshot")
	}

	if _, err := m.Collect(ctx, 0); err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if len(store.stored) != 2 || store.stored[0] != first {
		t.Fatalf("stored = %d, first preserved = %v", len(store.stored), len(store.stored) > 0 && store.stored[0] == first)
	}
	if first.ID != 1 {
		t.Errorf("queued snapshot id = %d, want 1", first.ID)
	}
	if len(alerts.seen) != 2 || alerts.seen[0] != 1 || alerts.seen[1] != 2 {
		t.Errorf("alert order = %v", alerts.seen)
	}
	if st := m.Status(); st.Pending != 0 || st.LastSnapshot != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestCollect_PendingStaysQueuedWhileStoreFails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("disk full")}
	cycler := &fakeCycler{run: func(n int) (*model.Snapshot, error) {
		return &model.Snapshot{Timestamp: time.Now()}, &scanner.PersistError{Err: store.err}
	}}
	m := New(cycler, store, nil, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = m.Collect(ctx, 0)
	}
	if st := m.Status(); st.Pending != 3 {
		t.Fatalf("pending = %d, want 3", st.Pending)
	}

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	cycler.run = func(n int) (*model.Snapshot, error) { return okSnapshot(99), nil }

	if _, err := m.Collect(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if st := m.Status(); st.Pending != 0 {
		t.Fatalf("pending after recovery = %d", st.Pending)
	}
	for i, s := range store.stored {
		if s.ID != int64(i+1) {
			t.Errorf("stored[%d].ID = %d", i, s.ID)
		}
	}
}

func TestCollect_ConcurrentTriggerLeavesQueueAlone(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	queued := &model.Snapshot{Timestamp: time.Now(), Devices: []model.Device{{ID: "a", Status: model.StatusOK}}}
	started := make(chan struct{})
	release := make(chan struct{})
	cycler := &fakeCycler{run: func(n int) (*model.Snapshot, error) {
		switch n {
		case 1:
			return queued, &scanner.PersistError{Err: errors.New("disk full")}
		case 2:
			// the flush before this cycle failed; the store recovers mid-cycle
			store.mu.Lock()
			store.err = nil
			store.mu.Unlock()
			close(started)
			<-release
		}
		s := &model.Snapshot{Timestamp: time.Now()}
		return s, store.AppendSnapshot(context.Background(), s)
	}}
	alerts := &fakeAlerts{}
	m := New(cycler, store, alerts, nil, nil, nil)
	ctx := context.Background()

	if _, err := m.Collect(ctx, 0); !errors.Is(err, scanner.ErrPersist) {
		t.Fatalf("first Collect = %v", err)
	}
	store.mu.Lock()
	store.err = errors.New("disk full")
	store.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := m.Collect(ctx, 0)
		done <- err
	}()
	<-started

	if _, err := m.Collect(ctx, 0); !errors.Is(err, scanner.ErrCycleInProgress) {
		t.Fatalf("concurrent Collect = %v, want ErrCycleInProgress", err)
	}
	store.mu.Lock()
	stored := len(store.stored)
	store.mu.Unlock()
	if stored != 0 {
		t.Fatalf("concurrent trigger flushed %d queued snapshots", stored)
	}
	if st := m.Status(); st.Pending != 1 {
		t.Fatalf("pending = %d, want 1", st.Pending)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("running Collect = %v", err)
	}
	cycler.mu.Lock()
	calls := cycler.calls
	cycler.mu.Unlock()
	if calls != 2 {
		t.Errorf("cycler calls = %d, want 2", calls)
	}
	if len(alerts.seen) != 1 {
		t.Errorf("alerts saw %v, want only the running cycle's snapshot", alerts.seen)
	}
}

func TestCollect_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantError bool
		broadcast bool
	}{
		{"cycle in progress", scanner.ErrCycleInProgress, false, false},
		{"canceled", context.Canceled, false, false},
		{"config", config.ErrInvalidScanRange, true, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hub := &fakeHub{}
			m := New(&fakeCycler{run: func(int) (*model.Snapshot, error) { return nil, tt.err }}, &fakeStore{}, nil, hub, nil, nil)
			snap, err := m.Collect(context.Background(), 5)
			if !errors.Is(err, tt.err) || snap != nil {
				t.Fatalf("Collect = %v, %v", snap, err)
			}
			if got := m.Status().LastError != ""; got != tt.wantError {
				t.Errorf("last error recorded = %v, want %v", got, tt.wantError)
			}
			if got := len(hub.types()) > 0; got != tt.broadcast {
				t.Errorf("broadcast = %v, want %v", got, tt.broadcast)
			}
		})
	}
}

func TestSetConfig(t *testing.T) {
	t.Parallel()

	m := New(&fakeCycler{}, nil, nil, nil, nil, nil)
	bad := config.DefaultConfig()
	bad.Scan.Start, bad.Scan.End = 10, 1
	if err := m.SetConfig(bad); !errors.Is(err, config.ErrInvalidScanRange) {
		t.Fatalf("SetConfig(bad) = %v", err)
	}
	if err := m.SetConfig(nil); err == nil {
		t.Fatal("SetConfig(nil) accepted")
	}

	good := config.DefaultConfig()
	good.Scan.IntervalSeconds = 42
	if err := m.SetConfig(good); err != nil {
		t.Fatal(err)
	}
	if m.Config() != good || m.interval() != 42*time.Second {
		t.Errorf("config not applied, interval %v", m.interval())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cycler := &fakeCycler{run: func(n int) (*model.Snapshot, error) {
		cancel()
		return okSnapshot(int64(n)), nil
	}}
	m := New(cycler, &fakeStore{}, nil, nil, nil, nil)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if cycler.calls != 1 {
		t.Errorf("cycles = %d, want 1", cycler.calls)
	}
}
