package reports

import (
	"fmt"

	model "github.com/egperson/network-printer-solution/common/storage"
)

// Health labels.
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthAttention = "attention"
	HealthCritical  = "critical"
)

// DeviceHealth is the health score of one device.
type DeviceHealth struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Status   string `json:"status"`
	Score    int    `json:"score"`
	Label    string `json:"label"`
}

// HealthScore rates d from 0 to 100. A non-ok status costs 50 points and a
// low average supply level costs up to 30.
func HealthScore(d model.Device) int {
	score := 100
	if d.Status != model.StatusOK {
		score -= 50
	}
	if avg, ok := d.AverageLevel(); ok {
		switch {
		case avg < 10:
			score -= 30
		case avg < 30:
			score -= 20
		case avg < 50:
			score -= 10
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// HealthLabel buckets a score.
func HealthLabel(score int) string {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthAttention
	default:
		return HealthCritical
	}
}

// HealthScores scores devices in their given order.
func HealthScores(devices []model.Device) []DeviceHealth {
	out := make([]DeviceHealth, 0, len(devices))
	for _, d := range devices {
		score := HealthScore(d)
		out = append(out, DeviceHealth{
			DeviceID: d.ID,
			Name:     d.DisplayName(),
			Address:  d.Address(),
			Status:   d.Status,
			Score:    score,
			Label:    HealthLabel(score),
		})
	}
	return out
}

// Incident types.
const (
	IncidentError   = "error"
	IncidentWarning = "warning"
)

// Incident is a device currently needing attention.
type Incident struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Type     string `json:"type"`
	Message  string `json:"message"`
}

// Incidents lists devices that are not ok, or that have a supply below
// criticalBelow, in device order. limit <= 0 means no limit. Unparseable
// levels never count as critical.
func Incidents(devices []model.Device, criticalBelow float64, limit int) []Incident {
	var out []Incident
	for _, d := range devices {
		if limit > 0 && len(out) >= limit {
			break
		}
		inc := Incident{DeviceID: d.ID, Name: d.DisplayName(), Address: d.Address()}
		if d.Status != model.StatusOK {
			inc.Type = IncidentError
			inc.Message = "offline"
			if d.ErrorReason != "" {
				inc.Message = "offline: " + d.ErrorReason
			}
			out = append(out, inc)
			continue
		}
		for _, s := range d.Supplies {
			if v, ok := s.Percent(); ok && v < criticalBelow {
				inc.Type = IncidentWarning
				inc.Message = fmt.Sprintf("%s critical (%s)", s.Name, s.Level)
				out = append(out, inc)
				break
			}
		}
	}
	return out
}
