// Package signal implements the rendezvous protocol shared by the
// broker and the endpoints: a room pairs exactly one host with one
// requester, relays connection negotiation, and gates access behind a
// consent handshake.
package signal

import (
	"encoding/json"

	"github.com/alegralabs/remote-desk/pkg/display"
)

// Message is the rendezvous wire envelope.
type Message struct {
	Type string `json:"type"` // join-room, join-rejected, request-screen-share, screen-share-request, screen-share-response, screen-share-accepted, screen-share-denied, get-offer, offer, answer, icecandidate, available-screens, screen-change, mouse-move, mouse-down, mouse-up, mouse-click, mouse-scroll, key-up, leave-room, user-left, room-not-found
	Room string `json:"room,omitempty"` // room identifier

	HostID    string `json:"hostId,omitempty"`    // host connection identity (expected host on join-room, bound host on screen-share-accepted)
	Requester string `json:"requester,omitempty"` // requester connection identity
	HostName  string `json:"hostName,omitempty"`  // requester machine name shown in the consent prompt
	Accepted  bool   `json:"accepted,omitempty"`  // consent verdict on screen-share-response

	SDP       string `json:"sdp,omitempty"`       // SDP offer/answer
	Candidate string `json:"candidate,omitempty"` // ICE candidate

	Screens []display.Screen `json:"screens,omitempty"` // available-screens payload
	Screen  *display.Screen  `json:"screen,omitempty"`  // screen-change payload

	Payload json.RawMessage `json:"payload,omitempty"` // input envelope in legacy relay mode
	Error   string          `json:"error,omitempty"`   // human-readable error
}

// relayTypes are pure pass-through: the broker broadcasts them to every
// room member except the sender and never inspects the payload.
var relayTypes = map[string]bool{
	"offer":             true,
	"answer":            true,
	"icecandidate":      true,
	"available-screens": true,
	"screen-change":     true,
	"mouse-move":        true,
	"mouse-down":        true,
	"mouse-up":          true,
	"mouse-click":       true,
	"mouse-scroll":      true,
	"key-up":            true,
}

// IsRelayType reports whether the broker relays this message type
// verbatim within a room.
func IsRelayType(t string) bool {
	return relayTypes[t]
}
