package api

import (
	"errors"
	"net/http"

	"github.com/egperson/network-printer-solution/agent/scanner"
	model "github.com/egperson/network-printer-solution/common/storage"
)

// HandlePing handles GET /api/ping?target= - reads one device's status page
// on demand. The result is not stored and does not feed alerts. An
// unreachable device is a 200 with ok=false.
func (api *API) HandlePing(w http.ResponseWriter, r *http.Request) {
	if api.prober == nil {
		writeError(w, http.StatusServiceUnavailable, "probing is not available")
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		target = r.URL.Query().Get("url")
	}

	d, err := api.prober.Probe(r.Context(), api.currentConfig(), target)
	if errors.Is(err, scanner.ErrInvalidTarget) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		api.internalError(w, "probe", err)
		return
	}

	resp := map[string]interface{}{
		"ok":     d.Status == model.StatusOK,
		"device": d,
	}
	if d.ErrorReason != "" {
		resp["error"] = d.ErrorReason
	}
	writeJSON(w, http.StatusOK, resp)
}
