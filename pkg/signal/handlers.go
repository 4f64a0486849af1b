package signal

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gorilla/websocket"
)

// readPump reads messages from the WebSocket until the connection dies.
func (c *client) readPump() {
	defer func() {
		c.broker.dropClient(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[signal] read error: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[signal] invalid message from %s: %v", c.id, err)
			continue
		}

		c.broker.oplog.Append("<- %s: %s room=%s", c.id, msg.Type, msg.Room)
		c.handleMessage(msg)
	}
}

// writePump drains the send queue onto the WebSocket.
func (c *client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[signal] write error: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleMessage dispatches one inbound signaling message.
func (c *client) handleMessage(msg Message) {
	b := c.broker

	switch {
	case msg.Type == "join-room":
		c.handleJoin(msg)

	case msg.Type == "request-screen-share":
		c.handleRequestAccess(msg)

	case msg.Type == "screen-share-response":
		c.handleRespondAccess(msg)

	case msg.Type == "leave-room":
		b.leaveRoom(c, msg.Room)

	case IsRelayType(msg.Type):
		b.broadcast(msg.Room, c, msg)

	default:
		log.Printf("[signal] unknown message type %q from %s", msg.Type, c.id)
	}
}

// handleJoin binds the caller as host of an unbound room, or admits it
// as the peer when the expected host identity matches the binding. An
// unmatched join on a bound room is rejected and leaves the binding
// untouched.
func (c *client) handleJoin(msg Message) {
	b := c.broker

	if msg.HostID == "" {
		if err := b.registry.Bind(msg.Room, c.id); err != nil {
			b.sendTo(c, Message{Type: "join-rejected", Room: msg.Room, Error: "room already hosted"})
			return
		}
		b.addMember(msg.Room, c)
		b.oplog.Append("join: %s hosts room %s", c.id, msg.Room)
		return
	}

	err := b.registry.Rejoin(msg.Room, msg.HostID)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		b.sendTo(c, Message{Type: "room-not-found", Room: msg.Room})
	case errors.Is(err, ErrHostMismatch):
		b.sendTo(c, Message{Type: "join-rejected", Room: msg.Room, Error: "room already hosted"})
	default:
		b.addMember(msg.Room, c)
		b.oplog.Append("join: %s joined room %s as peer", c.id, msg.Room)
		// The host begins negotiation once its peer is in the room.
		b.sendToID(msg.HostID, Message{Type: "get-offer", Room: msg.Room})
	}
}

// handleRequestAccess forwards a consent request to the room's host.
// Only one request may be outstanding per room; a second one is denied
// immediately instead of silently replacing the first.
func (c *client) handleRequestAccess(msg Message) {
	b := c.broker

	hostID, ok := b.registry.HostOf(msg.Room)
	if !ok {
		b.sendTo(c, Message{Type: "room-not-found", Room: msg.Room})
		return
	}

	if err := b.registry.SetPending(msg.Room, c.id); err != nil {
		b.sendTo(c, Message{Type: "screen-share-denied", Room: msg.Room})
		return
	}

	b.sendToID(hostID, Message{
		Type:      "screen-share-request",
		Room:      msg.Room,
		Requester: c.id,
		HostName:  msg.HostName,
	})
}

// handleRespondAccess routes the host's consent verdict point-to-point
// to the original requester, who has not joined the room yet.
func (c *client) handleRespondAccess(msg Message) {
	b := c.broker

	b.registry.ClearPending(msg.Room)

	if msg.Accepted {
		b.sendToID(msg.Requester, Message{
			Type:   "screen-share-accepted",
			Room:   msg.Room,
			HostID: c.id,
		})
		return
	}
	b.sendToID(msg.Requester, Message{Type: "screen-share-denied", Room: msg.Room})
}
