package input

import (
	"errors"
	"testing"

	"github.com/alegralabs/remote-desk/pkg/display"
)

type recordInjector struct {
	moves   [][2]int
	toggles []bool
	clicks  []string
	scrolls [][2]int
	keys    []string
	err     error
}

func (r *recordInjector) MoveMouse(x, y int) error {
	r.moves = append(r.moves, [2]int{x, y})
	return r.err
}
func (r *recordInjector) ToggleMouse(down bool) error {
	r.toggles = append(r.toggles, down)
	return r.err
}
func (r *recordInjector) Click(button string) error {
	r.clicks = append(r.clicks, button)
	return r.err
}
func (r *recordInjector) Scroll(dx, dy int) error {
	r.scrolls = append(r.scrolls, [2]int{dx, dy})
	return r.err
}
func (r *recordInjector) TapKey(key string, modifiers []string) error {
	r.keys = append(r.keys, key)
	return r.err
}

func testGeometry() *display.Tracker {
	return display.NewTracker(display.Geometry{
		Width:        1000,
		Height:       500,
		ScaleFactor:  2,
		NativeOrigin: display.Origin{X: 100, Y: 50},
	})
}

func TestApply_MoveUsesActiveGeometry(t *testing.T) {
	inj := &recordInjector{}
	a := NewApplier(inj, testGeometry())

	a.Apply(MouseMove{X: 0.5, Y: 0.5})

	if len(inj.moves) != 1 {
		t.Fatalf("moves: %d, want 1", len(inj.moves))
	}
	// 0.5 * 1000 * 2 + 100, 0.5 * 500 * 2 + 50
	if inj.moves[0] != [2]int{1100, 550} {
		t.Errorf("move: got %v, want [1100 550]", inj.moves[0])
	}
}

func TestApply_ButtonAndKeyEvents(t *testing.T) {
	inj := &recordInjector{}
	a := NewApplier(inj, testGeometry())

	a.Apply(MouseDown{})
	a.Apply(MouseUp{})
	a.Apply(MouseClick{Button: ButtonRight})
	a.Apply(MouseScroll{DeltaX: 3, DeltaY: -7})
	a.Apply(KeyUp{Key: "Backspace", Modifiers: []string{"control"}})

	if len(inj.toggles) != 2 || !inj.toggles[0] || inj.toggles[1] {
		t.Errorf("toggles: got %v, want [true false]", inj.toggles)
	}
	if len(inj.clicks) != 1 || inj.clicks[0] != "right" {
		t.Errorf("clicks: got %v", inj.clicks)
	}
	if len(inj.scrolls) != 1 || inj.scrolls[0] != [2]int{3, -7} {
		t.Errorf("scrolls: got %v", inj.scrolls)
	}
	if len(inj.keys) != 1 || inj.keys[0] != "backspace" {
		t.Errorf("keys: got %v", inj.keys)
	}
}

func TestApplyRaw_InjectionFailureIsSwallowed(t *testing.T) {
	inj := &recordInjector{err: errors.New("display asleep")}
	a := NewApplier(inj, testGeometry())

	data, _ := Encode(MouseMove{X: 0.1, Y: 0.2})

	// Fire-and-forget: the error is logged and dropped.
	a.ApplyRaw(data)

	if len(inj.moves) != 1 {
		t.Errorf("injection should still be attempted once, got %d", len(inj.moves))
	}
}

func TestApplyRaw_UnknownAndMalformedDropped(t *testing.T) {
	inj := &recordInjector{}
	a := NewApplier(inj, testGeometry())

	a.ApplyRaw([]byte(`{"type":"gamepad","payload":{}}`))
	a.ApplyRaw([]byte(`garbage`))

	if len(inj.moves)+len(inj.clicks)+len(inj.keys) != 0 {
		t.Error("nothing should have been injected")
	}
}
