package reports

import (
	"math"
	"sort"
	"time"

	model "github.com/egperson/network-printer-solution/common/storage"
)

// Trend fitting methods.
const (
	MethodRegression = "regression"
	MethodEndpoint   = "endpoint"
)

// SeriesPoint is the fleet-average supply level at one snapshot.
type SeriesPoint struct {
	Time    time.Time `json:"time"`
	Level   float64   `json:"level"`
	Devices int       `json:"devices"`
}

// FleetSeries returns one point per snapshot, oldest first. A point's level
// is the mean over devices with at least one parseable supply level of that
// device's mean level. Snapshots without any such device are skipped.
func FleetSeries(window []*model.Snapshot) []SeriesPoint {
	snaps := make([]*model.Snapshot, 0, len(window))
	for _, s := range window {
		if s != nil {
			snaps = append(snaps, s)
		}
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Timestamp.Before(snaps[j].Timestamp) })

	var out []SeriesPoint
	for _, s := range snaps {
		var sum float64
		n := 0
		for _, d := range s.Devices {
			if avg, ok := d.AverageLevel(); ok {
				sum += avg
				n++
			}
		}
		if n == 0 {
			continue
		}
		out = append(out, SeriesPoint{Time: s.Timestamp, Level: sum / float64(n), Devices: n})
	}
	return out
}

// TrendOptions selects the fitting method and forecast scaling.
type TrendOptions struct {
	Method string
	// ForecastFactor scales the days-to-exhaustion estimate. Values <= 0
	// mean 1.
	ForecastFactor float64
}

// Trend is a fitted consumption trend.
type Trend struct {
	Method      string  `json:"method"`
	Samples     int     `json:"samples"`
	Current     float64 `json:"current"`
	SlopePerDay float64 `json:"slope_per_day"`
	Direction   string  `json:"direction"`
	// DaysToExhaustion is set only when the trend is decreasing.
	DaysToExhaustion *float64 `json:"days_to_exhaustion,omitempty"`
}

// Trend directions.
const (
	DirectionDecreasing = "decreasing"
	DirectionIncreasing = "increasing"
	DirectionFlat       = "flat"
)

// FitTrend fits series (oldest first) and forecasts when the fleet average
// reaches zero. Fewer than two points, or points sharing one timestamp, give
// a flat trend.
func FitTrend(series []SeriesPoint, opts TrendOptions) Trend {
	method := opts.Method
	if method != MethodEndpoint {
		method = MethodRegression
	}
	t := Trend{Method: method, Samples: len(series), Direction: DirectionFlat}
	if len(series) == 0 {
		return t
	}
	t.Current = series[len(series)-1].Level
	if len(series) < 2 {
		return t
	}

	origin := series[0].Time
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, p := range series {
		xs[i] = p.Time.Sub(origin).Hours() / 24
		ys[i] = p.Level
	}

	var slope float64
	if method == MethodEndpoint {
		slope = endpointSlope(xs, ys)
	} else {
		slope = regressionSlope(xs, ys)
	}
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
	}
	t.SlopePerDay = slope

	switch {
	case slope < 0:
		t.Direction = DirectionDecreasing
		factor := opts.ForecastFactor
		if factor <= 0 {
			factor = 1
		}
		days := math.Max(t.Current, 0) / -slope * factor
		t.DaysToExhaustion = &days
	case slope > 0:
		t.Direction = DirectionIncreasing
	}
	return t
}

func endpointSlope(xs, ys []float64) float64 {
	last := len(xs) - 1
	dx := xs[last] - xs[0]
	if dx <= 0 {
		return 0
	}
	return (ys[last] - ys[0]) / dx
}

// regressionSlope is the ordinary least squares slope of ys over xs.
func regressionSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var num, den float64
	for i := range xs {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
