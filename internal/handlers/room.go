package handlers

import (
	"net/http"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/service"
	"github.com/go-chi/chi/v5"
)

// RoomHandler serves the read-only REST surface over the registries: room
// listing, room detail and server stats for the site frontend.
type RoomHandler struct {
	svc *service.SessionService
}

func NewRoomHandler(s *service.SessionService) *RoomHandler { return &RoomHandler{svc: s} }

// List returns summaries of every live room.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"rooms": h.svc.Rooms()})
}

// Get returns one room's summary and membership.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, users, err := h.svc.RoomDetail(roomId)
	if err != nil {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"room": summary, "users": users})
}

// Stats returns the live room and participant counts.
func (h *RoomHandler) Stats(w http.ResponseWriter, r *http.Request) {
	rooms, participants := h.svc.Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"rooms":        rooms,
		"participants": participants,
	})
}
