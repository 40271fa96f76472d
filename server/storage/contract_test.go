package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	model "github.com/egperson/network-printer-solution/common/storage"
)

func ptr(f float64) *float64 { return &f }

func sampleSnapshot(at time.Time, level string) *model.Snapshot {
	pages := int64(1200)
	return &model.Snapshot{
		Timestamp: at,
		Devices: []model.Device{
			{
				ID: "10.0.0.1", IP: "10.0.0.1", Name: "Office", Status: model.StatusOK, Type: model.TypeMono,
				Supplies:  []model.Supply{{Name: "Toner Preto", Level: level, RawName: "Black Toner", Kind: "toner_black"}},
				Pages:     &pages,
				Timestamp: at,
			},
			{ID: "10.0.0.2", IP: "10.0.0.2", Status: model.StatusError, ErrorReason: "timeout", Type: model.TypeUnknown, Timestamp: at},
		},
	}
}

// runStoreContract exercises the Store behavior every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSnapshot() on empty store = %v, want ErrNotFound", err)
	}

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var ids []int64
	for i, level := range []string{"80%", "60%", "40%"} {
		snap := sampleSnapshot(base.Add(time.Duration(i)*time.Hour), level)
		if err := s.AppendSnapshot(ctx, snap); err != nil {
			t.Fatalf("AppendSnapshot() error: %v", err)
		}
		if snap.ID == 0 {
			t.Fatal("AppendSnapshot() did not assign an id")
		}
		if len(ids) > 0 && snap.ID <= ids[len(ids)-1] {
			t.Fatalf("ids not increasing: %v then %d", ids, snap.ID)
		}
		ids = append(ids, snap.ID)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot() error: %v", err)
	}
	if latest.ID != ids[2] || !latest.Timestamp.Equal(base.Add(2*time.Hour)) {
		t.Errorf("latest = id %d at %v", latest.ID, latest.Timestamp)
	}
	if len(latest.Devices) != 2 {
		t.Fatalf("latest devices = %d", len(latest.Devices))
	}
	d := latest.Devices[0]
	if d.Supplies[0].Level != "40%" || d.Supplies[0].Kind != "toner_black" || d.Pages == nil || *d.Pages != 1200 {
		t.Errorf("device did not round-trip: %+v", d)
	}
	if latest.Devices[1].ErrorReason != "timeout" {
		t.Errorf("error device did not round-trip: %+v", latest.Devices[1])
	}

	all, err := s.ListSnapshots(ctx, SnapshotFilter{})
	if err != nil || len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("ListSnapshots() = %d snapshots, err %v; want newest first", len(all), err)
	}

	since, _ := s.ListSnapshots(ctx, SnapshotFilter{Since: base.Add(30 * time.Minute)})
	until, _ := s.ListSnapshots(ctx, SnapshotFilter{Until: base.Add(time.Hour)})
	limited, _ := s.ListSnapshots(ctx, SnapshotFilter{Limit: 1})
	if len(since) != 2 || len(until) != 2 || len(limited) != 1 || limited[0].ID != ids[2] {
		t.Errorf("filters: since=%d until=%d limit=%d", len(since), len(until), len(limited))
	}

	first, err := s.GetSnapshot(ctx, ids[0])
	if err != nil || first.Devices[0].Supplies[0].Level != "80%" {
		t.Errorf("GetSnapshot() = %+v, %v", first, err)
	}
	if _, err := s.GetSnapshot(ctx, ids[2]+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSnapshot(missing) = %v, want ErrNotFound", err)
	}

	alerts := []model.Alert{
		{ID: "a1", DeviceID: "10.0.0.1", Type: model.AlertLowSupply, Severity: "low", Supply: "Toner Preto", Level: ptr(25), Threshold: ptr(30), Timestamp: base},
		{ID: "a2", DeviceID: "10.0.0.2", Type: model.AlertError, Message: "timeout", Timestamp: base.Add(time.Minute)},
		{ID: "a3", DeviceID: "10.0.0.1", Type: model.AlertLowSupply, Severity: "critical", Supply: "Toner Preto", Level: ptr(5), Threshold: ptr(10), Timestamp: base.Add(2 * time.Minute)},
	}
	if err := s.AppendAlerts(ctx, alerts); err != nil {
		t.Fatalf("AppendAlerts() error: %v", err)
	}
	if err := s.AppendAlerts(ctx, nil); err != nil {
		t.Errorf("AppendAlerts(nil) error: %v", err)
	}

	got, err := s.ListAlerts(ctx, AlertFilter{})
	if err != nil || len(got) != 3 || got[0].ID != "a3" || got[2].ID != "a1" {
		t.Fatalf("ListAlerts() = %+v, %v", got, err)
	}
	if got[0].Level == nil || *got[0].Level != 5 || got[0].Severity != "critical" {
		t.Errorf("alert did not round-trip: %+v", got[0])
	}
	byDevice, _ := s.ListAlerts(ctx, AlertFilter{DeviceID: "10.0.0.1"})
	byType, _ := s.ListAlerts(ctx, AlertFilter{Type: model.AlertError})
	limitedAlerts, _ := s.ListAlerts(ctx, AlertFilter{Limit: 2})
	if len(byDevice) != 2 || len(byType) != 1 || len(limitedAlerts) != 2 {
		t.Errorf("alert filters: device=%d type=%d limit=%d", len(byDevice), len(byType), len(limitedAlerts))
	}
}
