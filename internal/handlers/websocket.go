package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/idgen"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/registry"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/service"
	"github.com/gorilla/websocket"
)

// WebSocketHandler owns the connection lifecycle: handshake, participant
// creation, event dispatch and disconnect cleanup.
type WebSocketHandler struct {
	svc      *service.SessionService
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the WebSocket handler over the session service.
func NewWebSocketHandler(s *service.SessionService) *WebSocketHandler {
	return &WebSocketHandler{
		svc: s,
		hub: NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin: func(r *http.Request) bool {
				// Origin filtering happens in the CORS layer for the REST
				// surface; the handshake here relies on the name check.
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection and runs its read loop. The
// handshake requires a non-empty `name` query parameter; without it the
// connection is rejected before any participant state exists. An optional
// `roomId` parameter auto-joins that room after the handshake.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := normalizeID(r.URL.Query().Get("name"))
	roomHint := normalizeID(r.URL.Query().Get("roomId"))

	if err := validateDisplayName(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	connID := idgen.NewULID()
	p, err := h.svc.Connect(connID, name)
	if err != nil {
		conn.Close()
		return
	}

	client := &Client{
		connID:        connID,
		participantID: p.ID,
		conn:          conn,
		send:          make(chan Event, sendBuffer),
	}
	h.hub.add(client)
	go client.writePump()

	defer func() {
		gone, left := h.svc.Disconnect(connID)
		if gone != nil && left.RoomID != "" && !left.RoomDeleted {
			h.broadcastToRoom(left.RoomID, newEvent("user-left", userPayload{
				UserID:   gone.ID,
				UserName: gone.DisplayName,
			}), gone.ID)
		}
		h.hub.remove(client)
		close(client.send)
		log.Printf("WebSocket disconnected: participantId=%s", p.ID)
	}()

	log.Printf("WebSocket connected: participantId=%s name=%s", p.ID, p.DisplayName)
	client.enqueue(newEvent("connected", connectedPayload{ParticipantID: p.ID, DisplayName: p.DisplayName}))

	if roomHint != "" {
		h.joinRoom(client, roomHint, "")
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: participantId=%s err=%v", p.ID, err)
			}
			break
		}
		h.dispatch(client, evt)
	}
}

// dispatch routes one client event. Events from a single connection arrive
// here in order; errors are resolved locally and reported only to the
// sender, never to the rest of the room.
func (h *WebSocketHandler) dispatch(c *Client, evt Event) {
	switch evt.Type {
	case "create-room":
		h.handleCreateRoom(c, evt.Payload)
	case "join-room":
		h.handleJoinRoom(c, evt.Payload)
	case "leave-room":
		h.handleLeaveRoom(c)
	case "send-message":
		h.handleChat(c, evt.Payload)
	case "offer", "answer", "ice-candidate":
		h.relaySignal(c, evt.Type, evt.Payload)
	case "toggle-audio":
		h.handleMediaToggle(c, evt.Payload, mediaAudio)
	case "toggle-video":
		h.handleMediaToggle(c, evt.Payload, mediaVideo)
	case "screen-share-start":
		h.handleScreenShare(c, true)
	case "screen-share-stop":
		h.handleScreenShare(c, false)
	case "whiteboard-draw":
		h.handleWhiteboardDraw(c, evt.Payload)
	case "whiteboard-clear":
		h.handleWhiteboardClear(c)
	case "start-recording":
		h.handleRecording(c, true)
	case "stop-recording":
		h.handleRecording(c, false)
	case "ping":
		c.enqueue(newEvent("pong", nil))
	default:
		log.Printf("Unknown message type: %s", evt.Type)
	}
}

func (h *WebSocketHandler) handleCreateRoom(c *Client, payload json.RawMessage) {
	var in createRoomPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &in); err != nil {
			h.sendError(c, "invalid create-room payload")
			return
		}
	}

	res, prev, err := h.svc.CreateRoom(c.connID, in.RoomName, in.UserName)
	if err != nil {
		log.Printf("create-room failed: participantId=%s err=%v", c.participantID, err)
		h.sendError(c, "failed to create room")
		return
	}
	h.notifyLeft(c, prev)

	c.enqueue(newEvent("room-created", roomInfoPayload{
		RoomID:   res.Room.ID,
		RoomName: res.Room.DisplayName,
		HostID:   res.Room.HostID,
		IsHost:   res.IsHost,
	}))
	c.enqueue(newEvent("users-list", res.Members))

	log.Printf("Room created: roomId=%s hostId=%s", res.Room.ID, c.participantID)
}

func (h *WebSocketHandler) handleJoinRoom(c *Client, payload json.RawMessage) {
	var in joinRoomPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		h.sendError(c, "invalid join-room payload")
		return
	}
	h.joinRoom(c, normalizeID(in.RoomID), in.UserName)
}

// joinRoom is shared by the join-room event and the handshake roomId hint.
// A stale room id reports an error event and leaves the session idle.
func (h *WebSocketHandler) joinRoom(c *Client, roomID, userName string) {
	res, prev, err := h.svc.JoinRoom(c.connID, roomID, userName)
	if err != nil {
		if err == service.ErrRoomNotFound {
			h.sendError(c, "Room not found")
		} else {
			log.Printf("join-room failed: participantId=%s roomId=%s err=%v", c.participantID, roomID, err)
			h.sendError(c, "failed to join room")
		}
		return
	}
	h.notifyLeft(c, prev)

	p, _ := h.svc.Participant(c.connID)
	h.broadcastToRoom(roomID, newEvent("user-joined", userPayload{
		UserID:   c.participantID,
		UserName: p.DisplayName,
	}), c.participantID)

	c.enqueue(newEvent("room-joined", roomInfoPayload{
		RoomID:   res.Room.ID,
		RoomName: res.Room.DisplayName,
		HostID:   res.Room.HostID,
		IsHost:   res.IsHost,
	}))
	c.enqueue(newEvent("users-list", res.Members))
	c.enqueue(newEvent("message-history", res.Chat))
	c.enqueue(newEvent("whiteboard-history", res.Board))

	log.Printf("User joined room: roomId=%s participantId=%s", roomID, c.participantID)
}

func (h *WebSocketHandler) handleLeaveRoom(c *Client) {
	left, err := h.svc.LeaveRoom(c.connID)
	if err == nil {
		h.notifyLeft(c, left)
	}
	// A stray leave while idle still gets the ack so the client can settle
	// its state without waiting on a timeout.
	c.enqueue(newEvent("room-left", nil))
}

// notifyLeft tells the remaining members of a room that the sender left it.
// Covers explicit leave and the implicit leave-then-join path.
func (h *WebSocketHandler) notifyLeft(c *Client, left service.LeaveResult) {
	if left.RoomID == "" || left.RoomDeleted {
		return
	}
	p, ok := h.svc.Participant(c.connID)
	name := ""
	if ok {
		name = p.DisplayName
	}
	h.broadcastToRoom(left.RoomID, newEvent("user-left", userPayload{
		UserID:   c.participantID,
		UserName: name,
	}), c.participantID)
}

func (h *WebSocketHandler) handleChat(c *Client, payload json.RawMessage) {
	var in chatPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		h.sendError(c, "invalid message payload")
		return
	}

	msg, roomID, err := h.svc.SendChat(c.connID, in.Content)
	if err != nil {
		// Not in a room: dropped action, not an error.
		return
	}
	h.broadcastToRoom(roomID, newEvent("message", msg), c.participantID)
}

// relaySignal forwards an opaque WebRTC negotiation blob to the other
// members of the sender's room. The room is resolved from session state,
// never from the payload; a sender with no room is a silent no-op.
func (h *WebSocketHandler) relaySignal(c *Client, eventType string, payload json.RawMessage) {
	p, ok := h.svc.Participant(c.connID)
	if !ok || p.RoomID == "" {
		return
	}
	h.broadcastToRoom(p.RoomID, newEvent(eventType, signalPayload{
		From:     p.ID,
		FromName: p.DisplayName,
		Payload:  payload,
	}), c.participantID)
}

type mediaKind int

const (
	mediaAudio mediaKind = iota
	mediaVideo
)

func (h *WebSocketHandler) handleMediaToggle(c *Client, payload json.RawMessage, kind mediaKind) {
	var enabled bool
	if err := json.Unmarshal(payload, &enabled); err != nil {
		h.sendError(c, "invalid media toggle payload")
		return
	}

	upd := registry.MediaUpdate{}
	switch kind {
	case mediaAudio:
		upd.AudioEnabled = &enabled
	case mediaVideo:
		upd.VideoEnabled = &enabled
	}

	state, roomID, err := h.svc.SetMedia(c.connID, upd)
	if err != nil || roomID == "" {
		return
	}
	p, _ := h.svc.Participant(c.connID)
	h.broadcastToRoom(roomID, newEvent("media-state-changed", mediaStatePayload{
		UserID:   c.participantID,
		UserName: p.DisplayName,
		Media:    state,
	}), c.participantID)
}

func (h *WebSocketHandler) handleScreenShare(c *Client, sharing bool) {
	upd := registry.MediaUpdate{ScreenSharing: &sharing}
	_, roomID, err := h.svc.SetMedia(c.connID, upd)
	if err != nil || roomID == "" {
		return
	}
	p, _ := h.svc.Participant(c.connID)

	eventType := "screen-share-stopped"
	if sharing {
		eventType = "screen-share-started"
	}
	h.broadcastToRoom(roomID, newEvent(eventType, userPayload{
		UserID:   c.participantID,
		UserName: p.DisplayName,
	}), c.participantID)
}

func (h *WebSocketHandler) handleWhiteboardDraw(c *Client, payload json.RawMessage) {
	op, roomID, err := h.svc.WhiteboardDraw(c.connID, payload)
	if err != nil {
		return
	}
	h.broadcastToRoom(roomID, newEvent("whiteboard-draw", whiteboardPayload{
		AuthorID: op.AuthorID,
		Payload:  op.Payload,
	}), c.participantID)
}

func (h *WebSocketHandler) handleWhiteboardClear(c *Client) {
	roomID, err := h.svc.WhiteboardClear(c.connID)
	if err != nil {
		return
	}
	h.broadcastToRoom(roomID, newEvent("whiteboard-clear", userPayload{UserID: c.participantID}), c.participantID)
}

func (h *WebSocketHandler) handleRecording(c *Client, desired bool) {
	roomID, err := h.svc.SetRecording(c.connID, desired)
	if err != nil {
		switch err {
		case service.ErrNotHost:
			h.sendError(c, "only the host can control recording")
		case service.ErrNotInRoom:
			// Stray request after leaving; benign.
		default:
			h.sendError(c, "failed to update recording state")
		}
		return
	}

	eventType := "recording-stopped"
	if desired {
		eventType = "recording-started"
	}
	evt := newEvent(eventType, userPayload{UserID: c.participantID})
	c.enqueue(evt)
	h.broadcastToRoom(roomID, evt, c.participantID)

	log.Printf("Recording state changed: roomId=%s isRecording=%t", roomID, desired)
}

// broadcastToRoom sends an event to every current member of a room except
// the excluded participant. Best-effort: membership is snapshotted at call
// time and each delivery is independent.
func (h *WebSocketHandler) broadcastToRoom(roomID string, evt Event, excludeID string) {
	for _, m := range h.svc.RoomMembers(roomID) {
		if m.ID == excludeID {
			continue
		}
		h.hub.sendTo(m.ID, evt)
	}
}

func (h *WebSocketHandler) sendError(c *Client, msg string) {
	c.enqueue(newEvent("error", errorPayload{Message: msg}))
}
