package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/egperson/network-printer-solution/common/ws"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsQueueSize    = 32
)

// HandleWebSocket handles GET /api/ws. Subscribers receive snapshot, alert
// and cycle_error messages from the hub. Anything the client sends is
// ignored.
func (api *API) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if api.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream is not available")
		return
	}
	conn, err := ws.UpgradeHTTP(w, r)
	if err != nil {
		api.log().Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	ch := make(chan ws.Message, wsQueueSize)
	api.hub.Register(id, ch)
	api.log().Debug("websocket subscriber connected", "id", id, "remote_addr", r.RemoteAddr)

	// The read loop only detects closure and keeps the pong deadline fresh.
	readDone := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(readDone)
		for {
			if _, err := conn.ReadMessage(); err != nil {
				if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					api.log().Debug("websocket read failed", "id", id, "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer func() {
		ping.Stop()
		api.hub.Unregister(id)
		conn.Close()
		api.log().Debug("websocket subscriber disconnected", "id", id)
	}()

	hello := ws.NewMessage(ws.MessageTypeHeartbeat, map[string]interface{}{"id": id})
	if err := conn.WriteMessage(&hello, wsWriteTimeout); err != nil {
		return
	}
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(&msg, wsWriteTimeout); err != nil {
				api.log().Debug("websocket write failed", "id", id, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WritePing(wsWriteTimeout); err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
