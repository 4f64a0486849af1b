// Package session drives the endpoint lifecycle: hosting a room,
// requesting and granting screen-share access, negotiating the peer
// connection with bounded retries, and tearing everything down cleanly.
package session

import (
	"errors"

	"github.com/alegralabs/remote-desk/pkg/signal"
)

// errNoPeer marks an input send with no live transport behind it.
var errNoPeer = errors.New("no active peer connection")

// Signaler is the rendezvous connection as the session sees it.
// *signal.Client implements it; tests substitute a recorder.
type Signaler interface {
	Join(roomID, expectedHostID string) error
	RequestAccess(roomID, hostName string) error
	RespondAccess(roomID string, accepted bool, requesterID string) error
	Leave(roomID string) error
	Relay(msg signal.Message) error
}

// PeerState mirrors the lifecycle of the underlying peer connection.
type PeerState int

const (
	PeerConnecting PeerState = iota
	PeerConnected
	PeerFailed
	PeerDisconnected
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerFailed:
		return "failed"
	case PeerDisconnected:
		return "disconnected"
	default:
		return "closed"
	}
}

// Peer is the external peer-connection collaborator. One Peer serves
// one negotiation attempt; it is closed and replaced, never reused.
type Peer interface {
	// CreateOffer produces the local offer. On the host the capture
	// track and input data channel are attached first via SetScreen.
	CreateOffer() (string, error)

	// HandleOffer applies a remote offer and returns the answer.
	HandleOffer(sdp string) (string, error)

	// HandleAnswer applies the remote answer to a sent offer.
	HandleAnswer(sdp string) error

	// AddCandidate applies a remote ICE candidate.
	AddCandidate(candidate string) error

	// SetScreen points the outgoing media track at a capture surface.
	SetScreen(screenID string) error

	// SendInput transmits one encoded input envelope over the data
	// channel.
	SendInput(data []byte) error

	// Close tears down the connection and unhooks every callback
	// before returning, so a replacement peer can be built without
	// stale events leaking in.
	Close()
}

// PeerEvents receives asynchronous peer callbacks. The controller
// implements it; implementations must tolerate calls racing Close.
type PeerEvents interface {
	PeerStateChanged(state PeerState)
	LocalCandidate(candidate string)
	DataReceived(data []byte)
}

// PeerFactory builds a fresh peer wired to ev.
type PeerFactory func(ev PeerEvents) (Peer, error)
