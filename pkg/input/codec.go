package input

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form carried over the data channel (or, in
// legacy relay mode, through the rendezvous broker).
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsInputType reports whether a message type names one of the input
// event kinds this codec understands.
func IsInputType(kind string) bool {
	switch kind {
	case "mouse-move", "mouse-down", "mouse-up", "mouse-click", "mouse-scroll", "key-up":
		return true
	}
	return false
}

// Encode serializes an event into its {type, payload} envelope.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Kind(), err)
	}
	return json.Marshal(envelope{Type: ev.Kind(), Payload: payload})
}

// Decode parses a wire envelope. Unknown types are dropped silently for
// forward compatibility: ok is false and err is nil.
func Decode(data []byte) (ev Event, ok bool, err error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case "mouse-move":
		var e MouseMove
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "mouse-down":
		ev = MouseDown{}
	case "mouse-up":
		ev = MouseUp{}
	case "mouse-click":
		var e MouseClick
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "mouse-scroll":
		var e MouseScroll
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "key-up":
		var e KeyUp
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	default:
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return ev, true, nil
}
