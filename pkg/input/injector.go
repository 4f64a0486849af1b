package input

import (
	"log"

	"github.com/alegralabs/remote-desk/pkg/display"
)

// Injector turns a normalized event into an actual OS pointer or key
// action. Implementations are platform glue supplied by the embedding
// application.
type Injector interface {
	MoveMouse(x, y int) error
	ToggleMouse(down bool) error
	Click(button string) error
	Scroll(deltaX, deltaY int) error
	TapKey(key string, modifiers []string) error
}

// specialKeys maps browser key names to injector key names. Anything
// absent injects as its lowercased name.
var specialKeys = map[string]string{
	"Shift":      "shift",
	"Enter":      "enter",
	"Control":    "control",
	"Alt":        "alt",
	"Meta":       "command",
	"Backspace":  "backspace",
	"Delete":     "delete",
	"ArrowUp":    "up",
	"ArrowDown":  "down",
	"ArrowLeft":  "left",
	"ArrowRight": "right",
	"Tab":        "tab",
}

// MapKey translates a wire key name into the injector's key name.
func MapKey(key string) string {
	if mapped, ok := specialKeys[key]; ok {
		return mapped
	}
	return lower(key)
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// Applier applies decoded remote events on the host. Injection is
// fire-and-forget: failures are logged and dropped, never surfaced to
// the viewer.
type Applier struct {
	inj Injector
	geo *display.Tracker
}

// NewApplier wires an injector to the active-screen geometry tracker.
func NewApplier(inj Injector, geo *display.Tracker) *Applier {
	return &Applier{inj: inj, geo: geo}
}

// ApplyRaw decodes a wire envelope and applies it. Unknown event types
// and malformed payloads are dropped.
func (a *Applier) ApplyRaw(data []byte) {
	ev, ok, err := Decode(data)
	if err != nil {
		log.Printf("[input] drop: %v", err)
		return
	}
	if !ok {
		return
	}
	a.Apply(ev)
}

// Apply performs one decoded event against the OS.
func (a *Applier) Apply(ev Event) {
	var err error
	switch e := ev.(type) {
	case MouseMove:
		x, y := a.geo.ToAbsolute(e.X, e.Y)
		err = a.inj.MoveMouse(x, y)
	case MouseDown:
		err = a.inj.ToggleMouse(true)
	case MouseUp:
		err = a.inj.ToggleMouse(false)
	case MouseClick:
		err = a.inj.Click(e.Button.Name())
	case MouseScroll:
		err = a.inj.Scroll(int(e.DeltaX), int(e.DeltaY))
	case KeyUp:
		err = a.inj.TapKey(MapKey(e.Key), e.Modifiers)
	}
	if err != nil {
		log.Printf("[input] %s injection failed: %v", ev.Kind(), err)
	}
}
