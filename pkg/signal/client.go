package signal

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is an endpoint's persistent connection to the broker.
type Client struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	msgs chan Message
	done chan struct{}

	closeMu      sync.Mutex
	closed       bool
	onDisconnect func()
}

// Dial connects to the broker at rawURL (http(s):// or ws(s)://) and
// starts the read loop.
func Dial(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}

	log.Printf("[signal] connecting to %s", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	c := &Client{
		conn: conn,
		msgs: make(chan Message, 100),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer func() {
		close(c.msgs)
		c.closeMu.Lock()
		if c.onDisconnect != nil && !c.closed {
			c.onDisconnect()
		}
		c.closeMu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("[signal] read error: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[signal] invalid message: %v", err)
			continue
		}

		select {
		case c.msgs <- msg:
		case <-c.done:
			return
		}
	}
}

// Messages returns the stream of broker messages. The channel closes
// when the connection is lost or Close is called.
func (c *Client) Messages() <-chan Message {
	return c.msgs
}

// SetDisconnectHandler sets the callback invoked when the broker
// connection drops unexpectedly.
func (c *Client) SetDisconnectHandler(handler func()) {
	c.closeMu.Lock()
	c.onDisconnect = handler
	c.closeMu.Unlock()
}

// Send writes one message to the broker.
func (c *Client) Send(msg Message) error {
	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return fmt.Errorf("signal connection closed")
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Join binds the caller as host of roomID, or joins as peer when
// expectedHostID names the bound host.
func (c *Client) Join(roomID, expectedHostID string) error {
	return c.Send(Message{Type: "join-room", Room: roomID, HostID: expectedHostID})
}

// RequestAccess asks the host of roomID for consent, presenting
// hostName in the prompt.
func (c *Client) RequestAccess(roomID, hostName string) error {
	return c.Send(Message{Type: "request-screen-share", Room: roomID, HostName: hostName})
}

// RespondAccess delivers the consent verdict for a pending request.
func (c *Client) RespondAccess(roomID string, accepted bool, requesterID string) error {
	return c.Send(Message{Type: "screen-share-response", Room: roomID, Accepted: accepted, Requester: requesterID})
}

// Leave unbinds the caller from roomID. Idempotent on the broker.
func (c *Client) Leave(roomID string) error {
	return c.Send(Message{Type: "leave-room", Room: roomID})
}

// Relay sends a pass-through message into the room.
func (c *Client) Relay(msg Message) error {
	if !IsRelayType(msg.Type) {
		return fmt.Errorf("%q is not a relay type", msg.Type)
	}
	return c.Send(msg)
}

// Close shuts down the connection. The disconnect handler does not fire
// for an explicit close.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		c.conn.Close()
	}
}
