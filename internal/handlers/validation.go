package handlers

import "fmt"

func validateDisplayName(name string) error {
	if normalizeID(name) == "" {
		return fmt.Errorf("name required")
	}
	return nil
}

func validateRoomId(roomId string) error {
	if normalizeID(roomId) == "" {
		return fmt.Errorf("roomId required")
	}
	return nil
}
