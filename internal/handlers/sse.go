package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/idgen"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/models"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/service"
	"github.com/gin-contrib/sse"
)

// StatusFeed streams room updates to dashboard clients over server-sent
// events. It receives updates through the session service's callback and
// fans them out to every connected listener.
type StatusFeed struct {
	svc     *service.SessionService
	clients map[string]chan models.RoomSummary
	mu      sync.RWMutex
}

// NewStatusFeed creates a status feed. Register its NotifyRoomUpdate with
// the session service during wiring.
func NewStatusFeed(svc *service.SessionService) *StatusFeed {
	return &StatusFeed{
		svc:     svc,
		clients: make(map[string]chan models.RoomSummary),
	}
}

// NotifyRoomUpdate implements service.RoomUpdateCallback. Delivery is
// best-effort; a listener that cannot keep up misses intermediate updates.
func (f *StatusFeed) NotifyRoomUpdate(summary models.RoomSummary) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, ch := range f.clients {
		select {
		case ch <- summary:
		default:
			log.Printf("status feed backlog, dropping update: client=%s", id)
		}
	}
}

// ServeHTTP implements the SSE endpoint. Sends the current room list on
// connect, then one event per room change until the client goes away.
func (f *StatusFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id := idgen.NewULID()
	updates := make(chan models.RoomSummary, 64)

	f.mu.Lock()
	f.clients[id] = updates
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.clients, id)
		f.mu.Unlock()
	}()

	if err := sse.Encode(w, sse.Event{Event: "rooms", Data: f.svc.Rooms()}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case summary := <-updates:
			if err := sse.Encode(w, sse.Event{Event: "room-update", Data: summary}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
