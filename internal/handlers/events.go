package handlers

import (
	"encoding/json"
	"log"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/models"
)

// Event is the envelope for every message exchanged over the WebSocket, in
// both directions. The payload stays raw until the type is known.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// newEvent builds an outbound event, marshaling the payload. A nil payload
// produces a bare event (ping/pong, whiteboard-clear acks and the like).
func newEvent(eventType string, payload any) Event {
	if payload == nil {
		return Event{Type: eventType}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal %s payload: %v", eventType, err)
		return Event{Type: eventType}
	}
	return Event{Type: eventType, Payload: b}
}

// createRoomPayload is the client request to create a room. The optional
// userName renames the sender for this session.
type createRoomPayload struct {
	RoomName string `json:"roomName"`
	UserName string `json:"userName,omitempty"`
}

// joinRoomPayload is the client request to join an existing room.
type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName,omitempty"`
}

// chatPayload carries a chat message from the client.
type chatPayload struct {
	Content string `json:"content"`
}

// roomInfoPayload answers create-room / join-room.
type roomInfoPayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
	HostID   string `json:"hostId"`
	IsHost   bool   `json:"isHost"`
}

// connectedPayload tells a fresh connection its server-assigned identity.
type connectedPayload struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

// userPayload identifies a participant in join/leave/screen-share/recording
// notifications.
type userPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// signalPayload wraps a relayed offer/answer/ICE blob with its sender so
// receivers can attribute it. The blob itself is never interpreted.
type signalPayload struct {
	From     string          `json:"from"`
	FromName string          `json:"fromName,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// mediaStatePayload notifies a room of a participant's media toggles.
type mediaStatePayload struct {
	UserID   string            `json:"userId"`
	UserName string            `json:"userName,omitempty"`
	Media    models.MediaState `json:"media"`
}

// whiteboardPayload carries a draw op, tagged with its author.
type whiteboardPayload struct {
	AuthorID string          `json:"authorId"`
	Payload  json.RawMessage `json:"payload"`
}

// errorPayload is the explicit error response surfaced to the requesting
// connection only.
type errorPayload struct {
	Message string `json:"message"`
}
