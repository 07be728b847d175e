// Package models defines the data structures shared by the signaling server.
package models

import (
	"encoding/json"
	"sync"
	"time"
)

// MediaState mirrors the media toggles a client has declared.
type MediaState struct {
	AudioEnabled  bool `json:"audioEnabled"`
	VideoEnabled  bool `json:"videoEnabled"`
	ScreenSharing bool `json:"screenSharing"`
}

// Participant is a server-side identity bound to one active connection.
// The connection handle itself lives in the handlers layer and is never
// exposed to other participants. The mutable fields are guarded by the
// ParticipantRegistry lock; other goroutines only ever see copies taken
// under that lock.
type Participant struct {
	ID          string     `json:"id"`          // server-generated, unique per connection
	DisplayName string     `json:"displayName"` // client-supplied, may be renamed on join
	RoomID      string     `json:"-"`           // current room, empty when idle
	Media       MediaState `json:"media"`
}

// ChatMessage is one entry of a room's chat log.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
}

// WhiteboardOp is one draw operation on a room's whiteboard. The payload is
// opaque to the server; it is stored and replayed as-is.
type WhiteboardOp struct {
	Payload    json.RawMessage `json:"payload"`
	AuthorID   string          `json:"authorId"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// Room is one meeting session. Participants holds the current member ids;
// display names and media states live in the participant registry. Mutex
// guards the mutable fields below it; one lock per room so rooms never
// contend with each other. Closed is set, under the mutex, the moment the
// room is removed from the registry: any operation that resolved the room
// pointer just before the removal sees the flag and reports not-found
// instead of mutating a dead room.
type Room struct {
	ID          string    `json:"roomId"`
	DisplayName string    `json:"roomName"`
	HostID      string    `json:"hostId"`
	CreatedAt   time.Time `json:"createdAt"`

	Mutex        sync.RWMutex        `json:"-"`
	Closed       bool                `json:"-"`
	Participants map[string]struct{} `json:"-"`
	ChatLog      []ChatMessage       `json:"-"`
	Whiteboard   []WhiteboardOp      `json:"-"`
	IsRecording  bool                `json:"-"`
}

// RoomSummary is the read-only view served by the REST listing and the
// status feed.
type RoomSummary struct {
	RoomID           string    `json:"roomId"`
	RoomName         string    `json:"roomName"`
	HostID           string    `json:"hostId"`
	ParticipantCount int       `json:"participantCount"`
	IsRecording      bool      `json:"isRecording"`
	CreatedAt        time.Time `json:"createdAt"`
}
