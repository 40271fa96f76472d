package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/egperson/network-printer-solution/common/logger"
)

// LogSource is the in-memory log ring.
type LogSource interface {
	GetBufferFiltered(minLevel logger.LogLevel) []logger.LogEntry
	Copy(w io.Writer, minLevel logger.LogLevel) error
}

type logEntryJSON struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// HandleLogs handles GET /api/logs?level=&limit=&format=. Entries at or above
// level (default trace) are returned oldest first; limit keeps the newest.
// format=text returns the plain log lines.
func (api *API) HandleLogs(w http.ResponseWriter, r *http.Request) {
	if api.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "logs are not available")
		return
	}
	q := r.URL.Query()
	level, ok := parseLevel(q.Get("level"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid level "+q.Get("level"))
		return
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := api.logs.Copy(w, level); err != nil {
			api.log().Debug("log download interrupted", "error", err)
		}
		return
	}

	limit, err := intParam(q.Get("limit"), 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := api.logs.GetBufferFiltered(level)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]logEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntryJSON{
			Timestamp: e.Timestamp.UTC(),
			Level:     logger.LevelToString(e.Level),
			Message:   e.Message,
			Context:   e.Context,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func parseLevel(raw string) (logger.LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "TRACE":
		return logger.TRACE, true
	case "DEBUG":
		return logger.DEBUG, true
	case "INFO":
		return logger.INFO, true
	case "WARN", "WARNING":
		return logger.WARN, true
	case "ERROR":
		return logger.ERROR, true
	}
	return 0, false
}
