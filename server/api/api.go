// Package api serves the read-mostly JSON query surface over the snapshot
// history, the alert log and the analyzers, plus the websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/egperson/network-printer-solution/agent/scanner"
	"github.com/egperson/network-printer-solution/common/config"
	model "github.com/egperson/network-printer-solution/common/storage"
	"github.com/egperson/network-printer-solution/common/util"
	"github.com/egperson/network-printer-solution/common/ws"
	"github.com/egperson/network-printer-solution/server/monitor"
	"github.com/egperson/network-printer-solution/server/reports"
	"github.com/egperson/network-printer-solution/server/storage"
)

// Store is the history the API reads.
type Store interface {
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, filter storage.SnapshotFilter) ([]*model.Snapshot, error)
	ListAlerts(ctx context.Context, filter storage.AlertFilter) ([]model.Alert, error)
}

// Collector triggers cycles and exposes the live configuration.
type Collector interface {
	Collect(ctx context.Context, limit int) (*model.Snapshot, error)
	Config() *config.Config
	Status() monitor.Status
}

// Logger provides logging capabilities.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Prober reads one device outside of a collection cycle.
type Prober interface {
	Probe(ctx context.Context, cfg *config.Config, target string) (model.Device, error)
}

// Options configures the API.
type Options struct {
	Store     Store
	Collector Collector
	Prober    Prober
	Hub       *ws.Hub
	Logger    Logger
	// Logs backs GET /api/logs. Nil disables the route's content.
	Logs    LogSource
	Version string
	// ProcessStart is reported as the uptime origin.
	ProcessStart time.Time
}

// API provides the HTTP handlers.
type API struct {
	store     Store
	collector Collector
	prober    Prober
	hub       *ws.Hub
	logger    Logger
	logs      LogSource
	version   string
	started   time.Time
	sysinfo   util.SystemInfo
}

// New creates the API.
func New(opts Options) *API {
	start := opts.ProcessStart
	if start.IsZero() {
		start = time.Now()
	}
	return &API{
		store:     opts.Store,
		collector: opts.Collector,
		prober:    opts.Prober,
		hub:       opts.Hub,
		logger:    opts.Logger,
		logs:      opts.Logs,
		version:   opts.Version,
		started:   start,
		sysinfo:   util.GetSystemInfo(),
	}
}

// RegisterRoutes registers every route on mux.
func (api *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", api.HandleHealth)
	mux.HandleFunc("GET /api/status", api.HandleStatus)
	mux.HandleFunc("GET /api/history", api.HandleHistory)
	mux.HandleFunc("GET /api/alerts", api.HandleAlerts)
	mux.HandleFunc("GET /api/info", api.HandleInfo)
	mux.HandleFunc("GET /api/reliability", api.HandleReliability)
	mux.HandleFunc("GET /api/trend", api.HandleTrend)
	mux.HandleFunc("GET /api/health-scores", api.HandleHealthScores)
	mux.HandleFunc("GET /api/incidents", api.HandleIncidents)
	mux.HandleFunc("POST /api/collect", api.HandleCollect)
	mux.HandleFunc("GET /api/ping", api.HandlePing)
	mux.HandleFunc("GET /api/logs", api.HandleLogs)
	mux.HandleFunc("GET /api/export.csv", api.HandleExportCSV)
	mux.HandleFunc("GET /api/export.json", api.HandleExportJSON)
	mux.HandleFunc("GET /api/ws", api.HandleWebSocket)
}

// Handler returns a mux with every route registered.
func (api *API) Handler() http.Handler {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return mux
}

// HandleHealth handles GET /health.
func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// HandleStatus handles GET /api/status - the latest snapshot.
func (api *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := api.store.LatestSnapshot(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no snapshot collected yet")
		return
	}
	if err != nil {
		api.internalError(w, "load latest snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleHistory handles GET /api/history?limit=&since=&until=.
func (api *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := timeParam(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	until, err := timeParam(q.Get("until"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snaps, err := api.store.ListSnapshots(r.Context(), storage.SnapshotFilter{Since: since, Until: until, Limit: limit})
	if err != nil {
		api.internalError(w, "list snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []*model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// HandleAlerts handles GET /api/alerts?device=&type=&limit=.
func (api *API) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	typ := q.Get("type")
	switch typ {
	case "", model.AlertLowSupply, model.AlertError:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown alert type %q", typ))
		return
	}
	alerts, err := api.store.ListAlerts(r.Context(), storage.AlertFilter{DeviceID: q.Get("device"), Type: typ, Limit: limit})
	if err != nil {
		api.internalError(w, "list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// HandleInfo handles GET /api/info - uptime, version and host facts.
func (api *API) HandleInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"version":        api.version,
		"uptime_seconds": int64(time.Since(api.started).Seconds()),
		"started_at":     api.started.UTC(),
		"host":           api.sysinfo,
	}
	if api.collector != nil {
		resp["monitor"] = api.collector.Status()
	}
	if api.hub != nil {
		resp["ws_clients"] = api.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// window loads the analytics window, newest first, and the latest devices.
func (api *API) window(ctx context.Context) ([]*model.Snapshot, []model.Device, config.AnalyticsConfig, error) {
	analytics := api.currentConfig().Analytics
	n := analytics.Window
	if n <= 0 {
		n = 10
	}
	snaps, err := api.store.ListSnapshots(ctx, storage.SnapshotFilter{Limit: n})
	if err != nil {
		return nil, nil, analytics, err
	}
	var current []model.Device
	if len(snaps) > 0 {
		current = snaps[0].Devices
	}
	return snaps, current, analytics, nil
}

// HandleReliability handles GET /api/reliability.
func (api *API) HandleReliability(w http.ResponseWriter, r *http.Request) {
	snaps, current, _, err := api.window(r.Context())
	if err != nil {
		api.internalError(w, "load window", err)
		return
	}
	writeJSON(w, http.StatusOK, reports.Reliability(snaps, current))
}

// HandleTrend handles GET /api/trend.
func (api *API) HandleTrend(w http.ResponseWriter, r *http.Request) {
	snaps, _, analytics, err := api.window(r.Context())
	if err != nil {
		api.internalError(w, "load window", err)
		return
	}
	series := reports.FleetSeries(snaps)
	if series == nil {
		series = []reports.SeriesPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"series": series,
		"trend":  reports.FitTrend(series, reports.TrendOptions{Method: analytics.Method, ForecastFactor: analytics.ForecastFactor}),
	})
}

// HandleHealthScores handles GET /api/health-scores.
func (api *API) HandleHealthScores(w http.ResponseWriter, r *http.Request) {
	devices, ok := api.latestDevices(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reports.HealthScores(devices))
}

// HandleIncidents handles GET /api/incidents?limit=.
func (api *API) HandleIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	devices, ok := api.latestDevices(w, r)
	if !ok {
		return
	}
	incidents := reports.Incidents(devices, api.currentConfig().Analytics.IncidentBelow, limit)
	if incidents == nil {
		incidents = []reports.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

// HandleCollect handles POST /api/collect?limit= - runs one cycle.
func (api *API) HandleCollect(w http.ResponseWriter, r *http.Request) {
	if api.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collection is not available")
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The cycle outlives a client that disconnects mid-scan.
	ctx := context.WithoutCancel(r.Context())
	snap, err := api.collector.Collect(ctx, limit)

	var persistErr *scanner.PersistError
	switch {
	case errors.Is(err, scanner.ErrCycleInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.As(err, &persistErr):
		api.log().Error("collected snapshot not stored", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":    err.Error(),
			"queued":   true,
			"snapshot": snap,
		})
		return
	case isConfigError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		api.internalError(w, "collection cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleExportCSV handles GET /api/export.csv.
func (api *API) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	devices, ok := api.latestDevices(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="devices.csv"`)
	if err := reports.WriteCSV(w, devices); err != nil {
		api.log().Warn("csv export interrupted", "error", err)
	}
}

// HandleExportJSON handles GET /api/export.json.
func (api *API) HandleExportJSON(w http.ResponseWriter, r *http.Request) {
	devices, ok := api.latestDevices(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="devices.json"`)
	if err := reports.WriteJSON(w, devices); err != nil {
		api.log().Warn("json export interrupted", "error", err)
	}
}

func (api *API) latestDevices(w http.ResponseWriter, r *http.Request) ([]model.Device, bool) {
	snap, err := api.store.LatestSnapshot(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no snapshot collected yet")
		return nil, false
	}
	if err != nil {
		api.internalError(w, "load latest snapshot", err)
		return nil, false
	}
	return snap.Devices, true
}

// currentConfig returns the live configuration, or defaults without a
// collector.
func (api *API) currentConfig() *config.Config {
	if api.collector != nil {
		if cfg := api.collector.Config(); cfg != nil {
			return cfg
		}
	}
	return config.DefaultConfig()
}

func (api *API) internalError(w http.ResponseWriter, what string, err error) {
	api.log().Error(what+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, what+" failed")
}

func (api *API) log() Logger {
	if api.logger == nil {
		return nopLogger{}
	}
	return api.logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func isConfigError(err error) bool {
	for _, target := range []error{
		config.ErrInvalidScanRange,
		config.ErrInvalidPrefix,
		config.ErrInvalidProtocol,
		config.ErrInvalidConcurrency,
		config.ErrInvalidThresholds,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

// timeParam accepts RFC 3339 or unix seconds.
func timeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", raw)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
