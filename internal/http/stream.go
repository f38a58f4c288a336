package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/ws"
)

func stockKey(req *http.Request) string {
	if id := strings.TrimSpace(req.URL.Query().Get("product_id")); id != "" {
		return id
	}
	return ws.AllProducts
}

// handleStockWS upgrades to a websocket that receives stock events for one
// product, or for the whole catalog when product_id is omitted.
func (r *Router) handleStockWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stock feed unavailable")
		return
	}
	key := stockKey(req)
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(key, client)
	go func() {
		defer func() {
			r.hub.Unregister(key, client)
			client.Close()
		}()
		client.ReadUntilClosed()
	}()
}

// handleStockEvents streams the same events as Server-Sent Events.
func (r *Router) handleStockEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stock feed unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	key := stockKey(req)
	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(key, client)
	defer func() {
		client.Close()
		r.hub.Unregister(key, client)
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
