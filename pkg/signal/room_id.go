package signal

import "github.com/google/uuid"

// RoomIDLength is the length of a generated room identifier.
const RoomIDLength = 8

// NewRoomID generates a room identifier: the first eight hex characters
// of a random UUID. Knowledge of the identifier is the only credential
// for a room, so it is regenerated after every session.
func NewRoomID() string {
	return uuid.NewString()[:RoomIDLength]
}

// ValidRoomID reports whether id looks like a room identifier:
// RoomIDLength lowercase hex or alphanumeric characters.
func ValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return true
}
