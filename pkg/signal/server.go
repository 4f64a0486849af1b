package signal

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one persistent connection to the broker.
type client struct {
	conn   *websocket.Conn
	id     string          // connection identity, assigned on upgrade
	rooms  map[string]bool // rooms this connection is a member of; an endpoint hosts one room and may view another
	send   chan []byte
	done   chan struct{}
	broker *Broker
}

// Broker is the rendezvous service: a dumb relay that pairs one host
// with one requester per room and forwards negotiation messages in
// order. It never retries anything; resilience belongs to the
// endpoints.
type Broker struct {
	registry *Registry
	oplog    *OpLog

	mu      sync.RWMutex
	clients map[string]*client          // by connection identity
	members map[string]map[*client]bool // room membership for broadcast

	upgrader websocket.Upgrader
}

// NewBroker creates a broker with an empty registry and log.
func NewBroker() *Broker {
	return &Broker{
		registry: NewRegistry(),
		oplog:    NewOpLog(),
		clients:  make(map[string]*client),
		members:  make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Registry exposes the room registry, read-mostly, for inspection.
func (b *Broker) Registry() *Registry {
	return b.registry
}

// Log exposes the diagnostic log.
func (b *Broker) Log() *OpLog {
	return b.oplog
}

// HandleWebSocket upgrades a persistent signaling connection.
func (b *Broker) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[signal] upgrade failed: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		id:     uuid.NewString(),
		rooms:  make(map[string]bool),
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		broker: b,
	}

	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()

	b.oplog.Append("connection established: %s", c.id)

	go c.writePump()
	go c.readPump()
}

// handleRoot answers the liveness probe and logs the caller address,
// preferring X-Forwarded-For when the broker sits behind a proxy.
func (b *Broker) handleRoot(w http.ResponseWriter, r *http.Request) {
	addr := r.Header.Get("X-Forwarded-For")
	if addr == "" {
		addr = r.RemoteAddr
	}
	log.Printf("[signal] liveness check from %s", addr)
	b.oplog.Append("liveness check from %s", addr)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Welcome to Remote-Desk server"})
}

// handleLogs dumps the full in-memory diagnostic log.
func (b *Broker) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b.oplog.Snapshot())
}

// Handler returns the broker's HTTP surface: /ws for signaling, / for
// liveness, /logs for the diagnostic dump.
func (b *Broker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.HandleWebSocket)
	mux.HandleFunc("/logs", b.handleLogs)
	mux.HandleFunc("/", b.handleRoot)
	return mux
}

// StartServer serves the broker on addr until the listener fails.
func (b *Broker) StartServer(addr string) error {
	log.Printf("[signal] broker listening on %s", addr)
	return http.ListenAndServe(addr, b.Handler())
}

// sendTo queues a message on one connection without blocking; a full
// buffer drops the message, matching best-effort relay semantics.
func (b *Broker) sendTo(c *client, msg Message) {
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
	b.oplog.Append("-> %s: %s room=%s", c.id, msg.Type, msg.Room)
}

// sendToID routes a message point-to-point by connection identity.
func (b *Broker) sendToID(id string, msg Message) {
	b.mu.RLock()
	c, ok := b.clients[id]
	b.mu.RUnlock()
	if ok {
		b.sendTo(c, msg)
	}
}

// broadcast delivers a message to all members of a room except the
// sender, in emission order.
func (b *Broker) broadcast(roomID string, except *client, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, _ := json.Marshal(msg)
	for m := range b.members[roomID] {
		if m == except {
			continue
		}
		select {
		case m.send <- data:
		default:
		}
	}
}

func (b *Broker) addMember(roomID string, c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.members[roomID] == nil {
		b.members[roomID] = make(map[*client]bool)
	}
	b.members[roomID][c] = true
	c.rooms[roomID] = true
}

func (b *Broker) removeMember(roomID string, c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ms, ok := b.members[roomID]; ok {
		delete(ms, c)
		if len(ms) == 0 {
			delete(b.members, roomID)
		}
	}
	delete(c.rooms, roomID)
}

// leaveRoom unbinds the caller from a room and notifies the remaining
// members. Idempotent: leaving a room you are not in does nothing.
func (b *Broker) leaveRoom(c *client, roomID string) {
	if roomID == "" {
		return
	}

	b.registry.Unbind(roomID, c.id)
	b.registry.ClearPending(roomID)
	b.removeMember(roomID, c)
	b.broadcast(roomID, c, Message{Type: "user-left", Room: roomID})
	b.oplog.Append("leave: %s left room %s", c.id, roomID)
}

// dropClient tears down a closed connection, leaving every room it was
// a member of.
func (b *Broker) dropClient(c *client) {
	b.mu.RLock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	b.mu.RUnlock()

	for _, room := range rooms {
		b.leaveRoom(c, room)
	}

	b.mu.Lock()
	delete(b.clients, c.id)
	b.mu.Unlock()

	close(c.done)
	b.oplog.Append("connection closed: %s", c.id)
}
