// Package registry holds the in-memory state of the signaling server: every
// connected participant and every live room. State is process-resident only
// and dies with the server.
package registry

import (
	"errors"
	"sync"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/idgen"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/models"
)

var (
	// ErrNotFound is returned for lookups of unknown rooms or participants.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a participant attempts a host-only action.
	ErrForbidden = errors.New("forbidden")

	// ErrRoomIDExhausted is returned when a unique room id could not be
	// generated after multiple attempts.
	ErrRoomIDExhausted = errors.New("failed to generate unique room ID after multiple attempts")
)

// MediaUpdate is a partial media-state change; nil fields are left untouched.
type MediaUpdate struct {
	AudioEnabled  *bool
	VideoEnabled  *bool
	ScreenSharing *bool
}

// ParticipantRegistry maps connection ids to participants. Participant ids
// are generated here, never client-supplied, so two tabs with the same
// display name still get distinct identities.
type ParticipantRegistry struct {
	byConn map[string]*models.Participant
	byID   map[string]*models.Participant
	mu     sync.RWMutex
}

// NewParticipantRegistry creates an empty participant registry.
func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{
		byConn: make(map[string]*models.Participant),
		byID:   make(map[string]*models.Participant),
	}
}

// Register allocates a fresh participant for the given connection.
func (r *ParticipantRegistry) Register(connID, displayName string) *models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &models.Participant{
		ID:          idgen.NewULID(),
		DisplayName: displayName,
	}
	r.byConn[connID] = p
	r.byID[p.ID] = p
	return p
}

// Get returns the participant bound to a connection.
func (r *ParticipantRegistry) Get(connID string) (*models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byConn[connID]
	return p, ok
}

// GetByID returns a participant by its participant id.
func (r *ParticipantRegistry) GetByID(participantID string) (*models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[participantID]
	return p, ok
}

// SetRoom records the room a participant currently occupies; an empty id
// marks the participant idle. A participant that already disconnected is
// ignored.
func (r *ParticipantRegistry) SetRoom(participantID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[participantID]; ok {
		p.RoomID = roomID
	}
}

// SnapshotByIDs returns copies of the named participants, skipping ids that
// already disconnected. The copies are taken under the registry lock, so a
// snapshot never tears against a concurrent rename or media update.
func (r *ParticipantRegistry) SnapshotByIDs(ids []string) []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// SetDisplayName renames a participant. Unknown ids report ErrNotFound.
func (r *ParticipantRegistry) SetDisplayName(participantID, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[participantID]
	if !ok {
		return ErrNotFound
	}
	p.DisplayName = displayName
	return nil
}

// UpdateMedia merges a partial media-state change into the participant's
// tracked state and returns the resulting state. The merge is idempotent.
func (r *ParticipantRegistry) UpdateMedia(participantID string, upd MediaUpdate) (models.MediaState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[participantID]
	if !ok {
		return models.MediaState{}, ErrNotFound
	}
	if upd.AudioEnabled != nil {
		p.Media.AudioEnabled = *upd.AudioEnabled
	}
	if upd.VideoEnabled != nil {
		p.Media.VideoEnabled = *upd.VideoEnabled
	}
	if upd.ScreenSharing != nil {
		p.Media.ScreenSharing = *upd.ScreenSharing
	}
	return p.Media, nil
}

// Remove deletes the participant bound to a connection and returns it.
// Safe to call for connections that never registered.
func (r *ParticipantRegistry) Remove(connID string) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	delete(r.byID, p.ID)
	return p, true
}

// Count returns the number of connected participants.
func (r *ParticipantRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
