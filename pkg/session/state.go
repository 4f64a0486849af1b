package session

import "github.com/alegralabs/remote-desk/pkg/display"

// State is the session lifecycle state. Transitions happen only inside
// the controller's event loop.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// ConsentRequest is a pending access request awaiting the user's
// verdict. Destroyed on accept or deny.
type ConsentRequest struct {
	Requester string
	HostName  string
}

// Status is a point-in-time snapshot of the session, safe to read from
// any goroutine.
type Status struct {
	State     State
	LocalRoom string // room this endpoint hosts
	Joined    string // remote room this endpoint is viewing, "" if none
	PeerID    string // remote connection identity, "" if none
	Err       string // last user-visible error, "" if none
	Online    bool   // broker connectivity

	Pending *ConsentRequest  // outstanding consent request, host side
	Screens []display.Screen // remote host's screens, viewer side
	Active  string           // selected remote screen id, viewer side
}
