package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/egperson/network-printer-solution/common/config"
	model "github.com/egperson/network-printer-solution/common/storage"
)

// Tracker remembers the last severity band of every device supply and the
// last status of every device. It emits alerts only on transitions: one per
// band a supply newly falls below, or a device entering the error status.
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	// bands ordered from least to most severe (highest threshold first).
	bands  []config.Band
	bandOf map[string]int
	status map[string]string
}

// NewTracker returns a tracker for the given severity bands. Band order in
// the argument does not matter.
func NewTracker(bands []config.Band) *Tracker {
	sorted := make([]config.Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Below > sorted[j].Below })
	return &Tracker{
		bands:  sorted,
		bandOf: make(map[string]int),
		status: make(map[string]string),
	}
}

// Bands returns the bands from least to most severe.
func (t *Tracker) Bands() []config.Band {
	return append([]config.Band(nil), t.bands...)
}

// severity maps a level to 0 (no band) or 1..len(bands), higher being more
// severe.
func (t *Tracker) severity(level float64) int {
	sev := 0
	for i, b := range t.bands {
		if level < b.Below {
			sev = i + 1
		}
	}
	return sev
}

func alertKey(deviceID, supply string) string {
	return deviceID + "|" + strings.ToLower(supply)
}

// Observe folds snap into the tracked state and returns the alerts its
// transitions produce, in device order. Returned alerts carry no ID.
// Devices missing from snap and supplies without a parseable level keep
// their previous state.
func (t *Tracker) Observe(snap *model.Snapshot) []model.Alert {
	if snap == nil {
		return nil
	}
	var out []model.Alert
	for _, d := range snap.Devices {
		if d.ID == "" {
			continue
		}
		prev := t.status[d.ID]
		t.status[d.ID] = d.Status
		if d.Status == model.StatusError {
			if prev != model.StatusError {
				out = append(out, model.Alert{
					DeviceID:   d.ID,
					DeviceName: d.DisplayName(),
					Type:       model.AlertError,
					Severity:   "error",
					Message:    errorMessage(d),
					Timestamp:  alertTime(snap, d),
				})
			}
			continue
		}
		for _, s := range lowestLevels(d.Supplies) {
			key := alertKey(d.ID, s.name)
			sev := t.severity(s.level)
			old := t.bandOf[key]
			t.bandOf[key] = sev
			// one alert per band entered, least severe first
			for b := old; b < sev; b++ {
				band := t.bands[b]
				level, threshold := s.level, band.Below
				out = append(out, model.Alert{
					DeviceID:   d.ID,
					DeviceName: d.DisplayName(),
					Type:       model.AlertLowSupply,
					Severity:   band.Name,
					Supply:     s.name,
					Level:      &level,
					Threshold:  &threshold,
					Message:    fmt.Sprintf("%s at %.0f%% (below %.0f%%)", s.name, level, threshold),
					Timestamp:  alertTime(snap, d),
				})
			}
		}
	}
	return out
}

type supplyLevel struct {
	name  string
	level float64
}

// lowestLevels returns one entry per supply name in first-seen order, keeping
// the lowest parseable level when a name repeats.
func lowestLevels(supplies []model.Supply) []supplyLevel {
	var out []supplyLevel
	idx := make(map[string]int)
	for _, s := range supplies {
		v, ok := s.Percent()
		if !ok || strings.TrimSpace(s.Name) == "" {
			continue
		}
		k := strings.ToLower(s.Name)
		if i, seen := idx[k]; seen {
			if v < out[i].level {
				out[i].level = v
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, supplyLevel{name: s.Name, level: v})
	}
	return out
}

func errorMessage(d model.Device) string {
	if d.ErrorReason == "" {
		return "device unreachable"
	}
	return "device unreachable: " + d.ErrorReason
}

func alertTime(snap *model.Snapshot, d model.Device) time.Time {
	if !snap.Timestamp.IsZero() {
		return snap.Timestamp
	}
	return d.Timestamp
}
