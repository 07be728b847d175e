package service

import "errors"

var (
	ErrNameRequired           = errors.New("display name required")
	ErrRoomNotFound           = errors.New("room not found")
	ErrNotInRoom              = errors.New("not in a room")
	ErrNotHost                = errors.New("forbidden: not room host")
	ErrParticipantNotFound    = errors.New("participant not found")
	ErrRoomIDGenerationFailed = errors.New("failed to generate unique room ID after multiple attempts")
)
