// Package display maps normalized pointer coordinates onto physical
// monitor geometry.
package display

import (
	"math"
	"sync"
)

// Origin is the top-left corner of a monitor in the global desktop
// coordinate space.
type Origin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Geometry describes one monitor. Width and Height are logical points;
// multiplying by ScaleFactor yields device pixels.
type Geometry struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	ScaleFactor  float64 `json:"scaleFactor"`
	NativeOrigin Origin  `json:"nativeOrigin"`
}

// ToAbsolute converts a normalized [0,1] position into absolute device
// pixels on the monitor described by g.
func ToAbsolute(nx, ny float64, g Geometry) (int, int) {
	x := int(math.Round(nx*float64(g.Width)*g.ScaleFactor)) + g.NativeOrigin.X
	y := int(math.Round(ny*float64(g.Height)*g.ScaleFactor)) + g.NativeOrigin.Y
	return x, y
}

// Tracker holds the geometry of the screen currently being shared.
// All four fields are replaced together under one lock; a partially
// updated geometry places the cursor on the wrong monitor.
type Tracker struct {
	mu sync.RWMutex
	g  Geometry
}

// NewTracker returns a tracker seeded with the given geometry.
func NewTracker(g Geometry) *Tracker {
	return &Tracker{g: g}
}

// Swap atomically replaces the active geometry.
func (t *Tracker) Swap(g Geometry) {
	t.mu.Lock()
	t.g = g
	t.mu.Unlock()
}

// Current returns the active geometry.
func (t *Tracker) Current() Geometry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.g
}

// ToAbsolute converts a normalized position using the active geometry.
func (t *Tracker) ToAbsolute(nx, ny float64) (int, int) {
	return ToAbsolute(nx, ny, t.Current())
}
