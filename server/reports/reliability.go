// Package reports derives reliability, consumption trends, health scores and
// exports from snapshot history.
package reports

import (
	"math"
	"sort"

	model "github.com/egperson/network-printer-solution/common/storage"
)

// DeviceReliability is the share of window snapshots in which a device was
// present and ok.
type DeviceReliability struct {
	DeviceID    string  `json:"device_id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Status      string  `json:"status"`
	Reliability float64 `json:"reliability"`
	Errors      int     `json:"errors"`
	Samples     int     `json:"samples"`
}

// Reliability scores every current device over window. Devices absent from
// the whole window fall back to a single sample taken from their current
// status. Results are sorted least reliable first; ties keep current order.
func Reliability(window []*model.Snapshot, current []model.Device) []DeviceReliability {
	type tally struct{ ok, total int }
	counts := make(map[string]*tally)
	for _, snap := range window {
		if snap == nil {
			continue
		}
		seen := make(map[string]bool)
		for _, d := range snap.Devices {
			if d.ID == "" || seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			c := counts[d.ID]
			if c == nil {
				c = &tally{}
				counts[d.ID] = c
			}
			c.total++
			if d.Status == model.StatusOK {
				c.ok++
			}
		}
	}

	out := make([]DeviceReliability, 0, len(current))
	for _, d := range current {
		ok, total := 0, 0
		if c := counts[d.ID]; c != nil {
			ok, total = c.ok, c.total
		}
		if total == 0 {
			total = 1
			if d.Status == model.StatusOK {
				ok = 1
			}
		}
		out = append(out, DeviceReliability{
			DeviceID:    d.ID,
			Name:        d.DisplayName(),
			Address:     d.Address(),
			Status:      d.Status,
			Reliability: round1(float64(ok) / float64(total) * 100),
			Errors:      total - ok,
			Samples:     total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reliability < out[j].Reliability })
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
