// Package service implements the session and room operations of the
// signaling server. Every operation resolves the acting participant from its
// connection id and the target room from the participant's own session state;
// client-supplied room ids are never trusted for routing.
package service

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/models"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/registry"
)

// RoomUpdateCallback is invoked after any change to a room's membership or
// recording state, with a snapshot of the room. Deleted rooms are reported
// with a participant count of zero.
type RoomUpdateCallback func(models.RoomSummary)

// SessionService owns the participant and room registries and coordinates
// every state change between them.
type SessionService struct {
	participants *registry.ParticipantRegistry
	rooms        *registry.RoomRegistry

	updateCallbacks []RoomUpdateCallback
}

// NewSessionService creates a session service over the given registries.
func NewSessionService(participants *registry.ParticipantRegistry, rooms *registry.RoomRegistry) *SessionService {
	return &SessionService{participants: participants, rooms: rooms}
}

// RegisterUpdateCallback adds a callback fired on room changes. Must be
// called during wiring, before the server starts accepting connections.
func (s *SessionService) RegisterUpdateCallback(cb RoomUpdateCallback) {
	s.updateCallbacks = append(s.updateCallbacks, cb)
}

func (s *SessionService) notifyRoomUpdate(summary models.RoomSummary) {
	for _, cb := range s.updateCallbacks {
		cb(summary)
	}
}

// JoinResult is everything a joining client needs to hydrate its view.
type JoinResult struct {
	Room    *models.Room
	IsHost  bool
	Members []models.Participant
	Chat    []models.ChatMessage
	Board   []models.WhiteboardOp
}

// LeaveResult reports a membership removal to the caller so it can notify
// the remaining members (if any).
type LeaveResult struct {
	RoomID      string
	RoomDeleted bool
}

// Connect authenticates a fresh connection. A non-empty display name is the
// only hard requirement; without it no participant is created.
func (s *SessionService) Connect(connID, displayName string) (*models.Participant, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrNameRequired
	}
	return s.participants.Register(connID, displayName), nil
}

// Disconnect tears down a connection's participant. If the participant was
// in a room this performs the same removal as an explicit leave.
func (s *SessionService) Disconnect(connID string) (*models.Participant, LeaveResult) {
	p, ok := s.participants.Get(connID)
	if !ok {
		return nil, LeaveResult{}
	}
	left := s.leaveCurrentRoom(p)
	s.participants.Remove(connID)
	return p, left
}

// leaveCurrentRoom removes p from its room, if any, deleting the room when
// it empties. Zero-value result means p was idle.
func (s *SessionService) leaveCurrentRoom(p *models.Participant) LeaveResult {
	roomID := p.RoomID
	if roomID == "" {
		return LeaveResult{}
	}
	deleted, err := s.rooms.Leave(roomID, p.ID)
	s.participants.SetRoom(p.ID, "")
	if err != nil {
		// Room already gone; nothing to report beyond clearing the session.
		return LeaveResult{}
	}
	if deleted {
		s.notifyRoomUpdate(models.RoomSummary{RoomID: roomID})
	} else if summary, err := s.rooms.Summary(roomID); err == nil {
		s.notifyRoomUpdate(summary)
	}
	return LeaveResult{RoomID: roomID, RoomDeleted: deleted}
}

// CreateRoom creates a room with the sender as host and joins it. A
// participant already in a room leaves it implicitly first; the previous
// room is reported so its members can be notified.
func (s *SessionService) CreateRoom(connID, roomName, userName string) (*JoinResult, LeaveResult, error) {
	p, ok := s.participants.Get(connID)
	if !ok {
		return nil, LeaveResult{}, ErrParticipantNotFound
	}
	s.renameIfProvided(p, userName)

	prev := s.leaveCurrentRoom(p)

	room, err := s.rooms.Create(strings.TrimSpace(roomName), p.ID)
	if err != nil {
		if errors.Is(err, registry.ErrRoomIDExhausted) {
			return nil, prev, ErrRoomIDGenerationFailed
		}
		return nil, prev, err
	}
	s.participants.SetRoom(p.ID, room.ID)
	s.notifyRoomUpdate(mustSummary(s.rooms, room.ID))

	return &JoinResult{
		Room:    room,
		IsHost:  true,
		Members: s.participants.SnapshotByIDs(s.rooms.MemberIDs(room.ID)),
	}, prev, nil
}

// JoinRoom adds the sender to an existing room. An unknown or deleted room
// id reports ErrRoomNotFound and leaves the session state untouched.
func (s *SessionService) JoinRoom(connID, roomID, userName string) (*JoinResult, LeaveResult, error) {
	p, ok := s.participants.Get(connID)
	if !ok {
		return nil, LeaveResult{}, ErrParticipantNotFound
	}

	// Validate before the implicit leave so a stale room id does not kick
	// the participant out of its current room.
	if _, ok := s.rooms.Get(roomID); !ok {
		return nil, LeaveResult{}, ErrRoomNotFound
	}

	s.renameIfProvided(p, userName)
	prev := s.leaveCurrentRoom(p)

	room, memberIDs, chat, board, err := s.rooms.Join(roomID, p.ID)
	if err != nil {
		// Deleted between the check and the join; same stale-link outcome.
		return nil, prev, ErrRoomNotFound
	}
	s.participants.SetRoom(p.ID, roomID)
	s.notifyRoomUpdate(mustSummary(s.rooms, roomID))

	return &JoinResult{
		Room:    room,
		IsHost:  room.HostID == p.ID,
		Members: s.participants.SnapshotByIDs(memberIDs),
		Chat:    chat,
		Board:   board,
	}, prev, nil
}

// LeaveRoom removes the sender from its current room.
func (s *SessionService) LeaveRoom(connID string) (LeaveResult, error) {
	p, ok := s.participants.Get(connID)
	if !ok {
		return LeaveResult{}, ErrParticipantNotFound
	}
	if p.RoomID == "" {
		return LeaveResult{}, ErrNotInRoom
	}
	return s.leaveCurrentRoom(p), nil
}

// SendChat appends a chat message to the sender's room and returns the
// stored message for broadcast.
func (s *SessionService) SendChat(connID, content string) (models.ChatMessage, string, error) {
	p, roomID, err := s.inRoom(connID)
	if err != nil {
		return models.ChatMessage{}, "", err
	}
	msg, err := s.rooms.AppendChat(roomID, p.ID, p.DisplayName, content)
	if err != nil {
		return models.ChatMessage{}, "", ErrNotInRoom
	}
	return msg, roomID, nil
}

// WhiteboardDraw records a draw operation in the sender's room.
func (s *SessionService) WhiteboardDraw(connID string, payload json.RawMessage) (models.WhiteboardOp, string, error) {
	p, roomID, err := s.inRoom(connID)
	if err != nil {
		return models.WhiteboardOp{}, "", err
	}
	op, err := s.rooms.AppendWhiteboard(roomID, p.ID, payload)
	if err != nil {
		return models.WhiteboardOp{}, "", ErrNotInRoom
	}
	return op, roomID, nil
}

// WhiteboardClear resets the whiteboard of the sender's room.
func (s *SessionService) WhiteboardClear(connID string) (string, error) {
	_, roomID, err := s.inRoom(connID)
	if err != nil {
		return "", err
	}
	if err := s.rooms.ClearWhiteboard(roomID); err != nil {
		return "", ErrNotInRoom
	}
	return roomID, nil
}

// SetMedia merges a media-state change for the sender. The returned room id
// is empty when the sender is idle; the state is tracked either way.
func (s *SessionService) SetMedia(connID string, upd registry.MediaUpdate) (models.MediaState, string, error) {
	p, ok := s.participants.Get(connID)
	if !ok {
		return models.MediaState{}, "", ErrParticipantNotFound
	}
	state, err := s.participants.UpdateMedia(p.ID, upd)
	if err != nil {
		return models.MediaState{}, "", ErrParticipantNotFound
	}
	return state, p.RoomID, nil
}

// SetRecording flips the recording flag of the sender's room. Host only.
func (s *SessionService) SetRecording(connID string, desired bool) (string, error) {
	p, roomID, err := s.inRoom(connID)
	if err != nil {
		return "", err
	}
	if err := s.rooms.SetRecording(roomID, p.ID, desired); err != nil {
		if errors.Is(err, registry.ErrForbidden) {
			return "", ErrNotHost
		}
		return "", ErrRoomNotFound
	}
	s.notifyRoomUpdate(mustSummary(s.rooms, roomID))
	return roomID, nil
}

// Participant resolves the participant bound to a connection.
func (s *SessionService) Participant(connID string) (*models.Participant, bool) {
	return s.participants.Get(connID)
}

// RoomMembers returns the membership snapshot of a room.
func (s *SessionService) RoomMembers(roomID string) []models.Participant {
	return s.participants.SnapshotByIDs(s.rooms.MemberIDs(roomID))
}

// Rooms lists summaries of every live room.
func (s *SessionService) Rooms() []models.RoomSummary {
	return s.rooms.List()
}

// RoomDetail returns one room's summary and membership.
func (s *SessionService) RoomDetail(roomID string) (models.RoomSummary, []models.Participant, error) {
	summary, err := s.rooms.Summary(roomID)
	if err != nil {
		return models.RoomSummary{}, nil, ErrRoomNotFound
	}
	return summary, s.participants.SnapshotByIDs(s.rooms.MemberIDs(roomID)), nil
}

// Stats reports the live room and participant counts.
func (s *SessionService) Stats() (rooms, participants int) {
	return s.rooms.Count(), s.participants.Count()
}

// CleanupEmptyRooms deletes rooms with no members. Run periodically as a
// safety net behind the synchronous delete in LeaveRoom/Disconnect.
func (s *SessionService) CleanupEmptyRooms() int {
	return s.rooms.CleanupEmpty()
}

// inRoom resolves the sender and its current room for relay operations.
func (s *SessionService) inRoom(connID string) (*models.Participant, string, error) {
	p, ok := s.participants.Get(connID)
	if !ok {
		return nil, "", ErrParticipantNotFound
	}
	if p.RoomID == "" {
		return nil, "", ErrNotInRoom
	}
	return p, p.RoomID, nil
}

func (s *SessionService) renameIfProvided(p *models.Participant, userName string) {
	if name := strings.TrimSpace(userName); name != "" {
		_ = s.participants.SetDisplayName(p.ID, name)
	}
}

func mustSummary(rooms *registry.RoomRegistry, roomID string) models.RoomSummary {
	summary, err := rooms.Summary(roomID)
	if err != nil {
		return models.RoomSummary{RoomID: roomID}
	}
	return summary
}
