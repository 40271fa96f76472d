package alerts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/egperson/network-printer-solution/common/config"
	model "github.com/egperson/network-printer-solution/common/storage"
	"github.com/egperson/network-printer-solution/server/storage"
)

// mockEvaluatorStore implements EvaluatorStore for testing.
type mockEvaluatorStore struct {
	snapshots []*model.Snapshot // newest first
	created   []model.Alert
	appendErr error
	listErr   error
	lastLimit int
}

func (m *mockEvaluatorStore) ListSnapshots(ctx context.Context, filter storage.SnapshotFilter) ([]*model.Snapshot, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.lastLimit = filter.Limit
	out := m.snapshots
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockEvaluatorStore) AppendAlerts(ctx context.Context, alerts []model.Alert) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.created = append(m.created, alerts...)
	return nil
}

var defaultBands = []config.Band{{Name: "low", Below: 30}, {Name: "critical", Below: 10}}

func snapWith(id int64, devices ...model.Device) *model.Snapshot {
	return &model.Snapshot{ID: id, Timestamp: time.Unix(1700000000+id*60, 0), Devices: devices}
}

func okDevice(id string, supplies ...model.Supply) model.Device {
	return model.Device{ID: id, IP: id, Status: model.StatusOK, Supplies: supplies}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}
}

func TestEvaluator_ProcessPersistsAlerts(t *testing.T) {
	t.Parallel()

	store := &mockEvaluatorStore{}
	e := NewEvaluator(store, EvaluatorConfig{Bands: defaultBands, NewID: sequentialIDs()})
	ctx := context.Background()

	got, err := e.Process(ctx, snapWith(1, okDevice("10.0.0.1", model.Supply{Name: "Toner Preto", Level: "25%"})))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" || got[0].Severity != "low" {
		t.Fatalf("alerts = %+v", got)
	}
	if len(store.created) != 1 {
		t.Fatalf("stored %d alerts, want 1", len(store.created))
	}

	// Same snapshot again is ignored.
	got, err = e.Process(ctx, snapWith(1, okDevice("10.0.0.1", model.Supply{Name: "Toner Preto", Level: "5%"})))
	if err != nil || len(got) != 0 {
		t.Fatalf("reprocess = %v, %v", got, err)
	}
}

func TestEvaluator_NoDuplicateAlerts(t *testing.T) {
	t.Parallel()

	store := &mockEvaluatorStore{}
	e := NewEvaluator(store, EvaluatorConfig{Bands: defaultBands})
	ctx := context.Background()

	for i, lvl := range []string{"25%", "24%", "22%", "21%"} {
		if _, err := e.Process(ctx, snapWith(int64(i+1), okDevice("d", model.Supply{Name: "Toner", Level: lvl}))); err != nil {
			t.Fatal(err)
		}
	}
	if len(store.created) != 1 {
		t.Fatalf("got %d alerts while continuously low, want 1", len(store.created))
	}
	if store.created[0].ID == "" {
		t.Fatal("alert id not assigned")
	}
}

func TestEvaluator_PrimeSuppressesKnownExcursions(t *testing.T) {
	t.Parallel()

	store := &mockEvaluatorStore{
		snapshots: []*model.Snapshot{
			snapWith(3, okDevice("d", model.Supply{Name: "Toner", Level: "20%"})),
			snapWith(2, okDevice("d", model.Supply{Name: "Toner", Level: "40%"})),
		},
	}
	e := NewEvaluator(store, EvaluatorConfig{Bands: defaultBands, PrimeSnapshots: 5})
	ctx := context.Background()

	if err := e.Prime(ctx); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if store.lastLimit != 5 {
		t.Errorf("prime limit = %d, want 5", store.lastLimit)
	}
	if len(store.created) != 0 {
		t.Fatalf("prime emitted %d alerts", len(store.created))
	}

	got, err := e.Process(ctx, snapWith(4, okDevice("d", model.Supply{Name: "Toner", Level: "18%"})))
	if err != nil || len(got) != 0 {
		t.Fatalf("after prime: %v, %v", got, err)
	}
	got, _ = e.Process(ctx, snapWith(5, okDevice("d", model.Supply{Name: "Toner", Level: "8%"})))
	if len(got) != 1 || got[0].Severity != "critical" {
		t.Fatalf("critical crossing = %+v", got)
	}
}

func TestEvaluator_PrimeDisabled(t *testing.T) {
	t.Parallel()

	store := &mockEvaluatorStore{listErr: errors.New("should not be called")}
	e := NewEvaluator(store, EvaluatorConfig{Bands: defaultBands})
	if err := e.Prime(context.Background()); err != nil {
		t.Fatalf("Prime with no history window: %v", err)
	}
}

func TestEvaluator_PrimeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	e := NewEvaluator(&mockEvaluatorStore{listErr: boom}, EvaluatorConfig{PrimeSnapshots: 3})
	if err := e.Prime(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Prime error = %v, want wrapped %v", err, boom)
	}
}

func TestEvaluator_RetriesPendingAlerts(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	store := &mockEvaluatorStore{appendErr: boom}
	e := NewEvaluator(store, EvaluatorConfig{Bands: defaultBands})
	ctx := context.Background()

	got, err := e.Process(ctx, snapWith(1, model.Device{ID: "d", Status: model.StatusError, ErrorReason: "timeout"}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(got) != 1 || got[0].Type != model.AlertError {
		t.Fatalf("alerts = %+v", got)
	}
	if e.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", e.Pending())
	}

	store.appendErr = nil
	got, err = e.Process(ctx, snapWith(2, model.Device{ID: "d", Status: model.StatusError, ErrorReason: "timeout"}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("error alert re-fired: %+v", got)
	}
	if len(store.created) != 1 || e.Pending() != 0 {
		t.Fatalf("stored %d, pending %d", len(store.created), e.Pending())
	}
}

func TestEvaluator_NilSnapshot(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(&mockEvaluatorStore{}, EvaluatorConfig{})
	got, err := e.Process(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("Process(nil) = %v, %v", got, err)
	}
}
