package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/idgen"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/models"
	"github.com/google/uuid"
)

// RoomRegistry maps room ids to live rooms. The registry lock only guards
// the map itself; each room serializes its own mutations through its own
// mutex, so activity in one room never blocks another. Membership is kept as
// participant ids only; resolving them to names and media states is the
// participant registry's job.
type RoomRegistry struct {
	rooms map[string]*models.Room
	mu    sync.RWMutex

	chatMax  int // retained chat messages per room, oldest dropped first
	boardMax int // retained whiteboard ops per room
}

// NewRoomRegistry creates an empty room registry with the given history caps.
// A cap of zero or less means unbounded.
func NewRoomRegistry(chatMax, boardMax int) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string]*models.Room),
		chatMax:  chatMax,
		boardMax: boardMax,
	}
}

// Create allocates a new room with the given host as its first member.
// Room ids are regenerated on the (unlikely) collision with a live room.
func (r *RoomRegistry) Create(displayName, hostID string) (*models.Room, error) {
	const maxRetries = 10

	r.mu.Lock()
	defer r.mu.Unlock()

	var roomID string
	for i := 0; ; i++ {
		id, err := idgen.NewRoomID()
		if err != nil {
			return nil, err
		}
		if _, taken := r.rooms[id]; !taken {
			roomID = id
			break
		}
		if i == maxRetries-1 {
			return nil, ErrRoomIDExhausted
		}
	}

	room := &models.Room{
		ID:           roomID,
		DisplayName:  displayName,
		HostID:       hostID,
		CreatedAt:    time.Now(),
		Participants: map[string]struct{}{hostID: {}},
	}
	r.rooms[roomID] = room
	return room, nil
}

// Get returns a room by id. A miss is a normal outcome (stale invite link),
// reported via the bool, not an error.
func (r *RoomRegistry) Get(roomID string) (*models.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// live resolves a room and takes its mutex, failing if the room was removed
// from the registry after the pointer was resolved. Callers must unlock
// room.Mutex themselves.
func (r *RoomRegistry) live(roomID string) (*models.Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	room.Mutex.Lock()
	if room.Closed {
		room.Mutex.Unlock()
		return nil, ErrNotFound
	}
	return room, nil
}

// Join adds a participant to a room and returns the membership snapshot,
// chat history and whiteboard history the joining client hydrates from.
// There is no capacity ceiling at this layer. A room deleted between lookup
// and lock acquisition reports ErrNotFound like any other miss.
func (r *RoomRegistry) Join(roomID, participantID string) (*models.Room, []string, []models.ChatMessage, []models.WhiteboardOp, error) {
	room, err := r.live(roomID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer room.Mutex.Unlock()

	room.Participants[participantID] = struct{}{}

	memberIDs := make([]string, 0, len(room.Participants))
	for id := range room.Participants {
		memberIDs = append(memberIDs, id)
	}
	chat := make([]models.ChatMessage, len(room.ChatLog))
	copy(chat, room.ChatLog)
	board := make([]models.WhiteboardOp, len(room.Whiteboard))
	copy(board, room.Whiteboard)

	return room, memberIDs, chat, board, nil
}

// Leave removes a participant from a room. The instant the last participant
// leaves, the room is closed and deleted in the same operation; the sweeper
// is only a safety net behind this path. Returns whether the room was
// deleted.
func (r *RoomRegistry) Leave(roomID, participantID string) (deleted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}

	room.Mutex.Lock()
	delete(room.Participants, participantID)
	empty := len(room.Participants) == 0
	if empty {
		room.Closed = true
	}
	room.Mutex.Unlock()

	if empty {
		delete(r.rooms, roomID)
	}
	return empty, nil
}

// AppendChat stores a chat message with a server-assigned id and timestamp
// and returns it for broadcast.
func (r *RoomRegistry) AppendChat(roomID, senderID, senderName, content string) (models.ChatMessage, error) {
	room, err := r.live(roomID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer room.Mutex.Unlock()

	msg := models.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		SentAt:     time.Now(),
	}
	room.ChatLog = append(room.ChatLog, msg)
	if r.chatMax > 0 && len(room.ChatLog) > r.chatMax {
		room.ChatLog = room.ChatLog[len(room.ChatLog)-r.chatMax:]
	}
	return msg, nil
}

// AppendWhiteboard stores a draw operation for replay to late joiners.
func (r *RoomRegistry) AppendWhiteboard(roomID, authorID string, payload json.RawMessage) (models.WhiteboardOp, error) {
	room, err := r.live(roomID)
	if err != nil {
		return models.WhiteboardOp{}, err
	}
	defer room.Mutex.Unlock()

	op := models.WhiteboardOp{
		Payload:    payload,
		AuthorID:   authorID,
		RecordedAt: time.Now(),
	}
	room.Whiteboard = append(room.Whiteboard, op)
	if r.boardMax > 0 && len(room.Whiteboard) > r.boardMax {
		room.Whiteboard = room.Whiteboard[len(room.Whiteboard)-r.boardMax:]
	}
	return op, nil
}

// ClearWhiteboard resets a room's whiteboard log to empty.
func (r *RoomRegistry) ClearWhiteboard(roomID string) error {
	room, err := r.live(roomID)
	if err != nil {
		return err
	}
	defer room.Mutex.Unlock()

	room.Whiteboard = nil
	return nil
}

// SetRecording flips the recording flag. Only the room's host may do this;
// anyone else gets ErrForbidden and the flag is left untouched.
func (r *RoomRegistry) SetRecording(roomID, requesterID string, desired bool) error {
	room, err := r.live(roomID)
	if err != nil {
		return err
	}
	defer room.Mutex.Unlock()

	if room.HostID != requesterID {
		return ErrForbidden
	}
	room.IsRecording = desired
	return nil
}

// MemberIDs returns a snapshot of a room's current member ids.
func (r *RoomRegistry) MemberIDs(roomID string) []string {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	room.Mutex.RLock()
	defer room.Mutex.RUnlock()

	ids := make([]string, 0, len(room.Participants))
	for id := range room.Participants {
		ids = append(ids, id)
	}
	return ids
}

// List returns summaries of every live room.
func (r *RoomRegistry) List() []models.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, summarize(room))
	}
	return out
}

// Summary returns the summary of one room.
func (r *RoomRegistry) Summary(roomID string) (models.RoomSummary, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return models.RoomSummary{}, ErrNotFound
	}
	return summarize(room), nil
}

func summarize(room *models.Room) models.RoomSummary {
	room.Mutex.RLock()
	defer room.Mutex.RUnlock()
	return models.RoomSummary{
		RoomID:           room.ID,
		RoomName:         room.DisplayName,
		HostID:           room.HostID,
		ParticipantCount: len(room.Participants),
		IsRecording:      room.IsRecording,
		CreatedAt:        room.CreatedAt,
	}
}

// Count returns the number of live rooms.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CleanupEmpty deletes rooms with no members and returns how many it
// removed. Under correct operation Leave already deleted them; this is
// defense in depth against rooms leaked by abrupt disconnects. Occupied
// rooms, including ones being joined concurrently, are never touched: the
// emptiness check and the Closed mark happen under the room mutex.
func (r *RoomRegistry) CleanupEmpty() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, room := range r.rooms {
		room.Mutex.Lock()
		empty := len(room.Participants) == 0
		if empty {
			room.Closed = true
		}
		room.Mutex.Unlock()
		if empty {
			delete(r.rooms, id)
			count++
		}
	}
	return count
}
