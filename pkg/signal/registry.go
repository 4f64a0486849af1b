package signal

import (
	"errors"
	"sync"
)

// Registry errors. The broker translates these into wire events; they
// never cross the wire themselves.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomTaken      = errors.New("room already has a host")
	ErrHostMismatch   = errors.New("expected host does not match")
	ErrConsentPending = errors.New("a consent request is already pending")
)

// Registry is the broker's only durable-ish state: the map from room
// identifier to the hosting connection identity, plus the single
// pending consent request per room. A room with no bound host does not
// exist. All mutation goes through Bind/Rejoin/Unbind so the
// single-writer-per-key discipline lives in one place.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*binding
}

type binding struct {
	hostID  string
	pending string // requester identity awaiting consent, "" if none
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*binding)}
}

// Bind binds hostID as the host of roomID. Binding an unbound room
// succeeds exactly once; rebinding by the same host is a no-op; a
// different host is rejected without touching the existing binding.
func (r *Registry) Bind(roomID, hostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.rooms[roomID]; ok {
		if b.hostID == hostID {
			return nil
		}
		return ErrRoomTaken
	}
	r.rooms[roomID] = &binding{hostID: hostID}
	return nil
}

// Rejoin admits a peer into an existing room when expectedHostID
// matches the bound host. The binding is never altered.
func (r *Registry) Rejoin(roomID, expectedHostID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if b.hostID != expectedHostID {
		return ErrHostMismatch
	}
	return nil
}

// Unbind removes the room if hostID is its bound host. Idempotent.
func (r *Registry) Unbind(roomID, hostID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.rooms[roomID]; ok && b.hostID == hostID {
		delete(r.rooms, roomID)
	}
}

// HostOf returns the bound host identity for a room.
func (r *Registry) HostOf(roomID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	return b.hostID, true
}

// SetPending records requesterID as the room's outstanding consent
// request. At most one request is tracked at a time; a second request
// before resolution is rejected.
func (r *Registry) SetPending(roomID, requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if b.pending != "" && b.pending != requesterID {
		return ErrConsentPending
	}
	b.pending = requesterID
	return nil
}

// ClearPending resolves the outstanding consent request for a room.
func (r *Registry) ClearPending(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.rooms[roomID]; ok {
		b.pending = ""
	}
}

// Len returns the number of bound rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
