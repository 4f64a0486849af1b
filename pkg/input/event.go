// Package input carries remote mouse/keyboard events between the viewer
// and the host: a compact wire codec, a debounced sender on the viewer
// side and an injection pipeline on the host side.
package input

// MouseButton uses the browser convention: 0 left, 1 middle, 2 right.
type MouseButton int

const (
	ButtonLeft   MouseButton = 0
	ButtonMiddle MouseButton = 1
	ButtonRight  MouseButton = 2
)

// Name returns the injector-facing button name.
func (b MouseButton) Name() string {
	switch b {
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return "left"
	}
}

// Event is one remote input event. Exactly the six concrete types below
// implement it.
type Event interface {
	Kind() string
}

// MouseMove is a pointer position normalized to [0,1] of the shared
// surface. Continuous; most recent wins.
type MouseMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MouseDown presses the primary button at the current pointer position.
type MouseDown struct{}

// MouseUp releases the primary button.
type MouseUp struct{}

// MouseClick clicks a button. X/Y are viewer viewport coordinates and
// are not used for placement; the pointer is already positioned by the
// preceding MouseMove stream.
type MouseClick struct {
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Button MouseButton `json:"button"`
}

// MouseScroll scrolls by wheel deltas.
type MouseScroll struct {
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
}

// KeyUp is a released key with the modifiers held at release time.
type KeyUp struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"code"`
}

func (MouseMove) Kind() string   { return "mouse-move" }
func (MouseDown) Kind() string   { return "mouse-down" }
func (MouseUp) Kind() string     { return "mouse-up" }
func (MouseClick) Kind() string  { return "mouse-click" }
func (MouseScroll) Kind() string { return "mouse-scroll" }
func (KeyUp) Kind() string       { return "key-up" }
