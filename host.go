package main

import (
	"log"

	"github.com/alegralabs/remote-desk/pkg/display"
	"github.com/alegralabs/remote-desk/pkg/input"
)

// hostCatalog describes this machine's capturable screens. Until a
// native enumeration backend is plugged in, a single primary display
// with common desktop geometry is advertised.
// TODO: enumerate real displays through a platform backend.
func hostCatalog() display.Catalog {
	return display.NewStaticCatalog(
		[]display.Screen{
			{ID: "screen:0:0", Name: "Display 1", DisplayID: "0"},
		},
		map[string]display.Geometry{
			"0": {Width: 1920, Height: 1080, ScaleFactor: 1},
		},
	)
}

// logInjector applies remote input by recording it. It stands in for a
// platform injection backend and keeps the host side runnable
// everywhere.
type logInjector struct{}

func newHostInjector() input.Injector { return logInjector{} }

func (logInjector) MoveMouse(x, y int) error {
	log.Printf("[input] move %d,%d", x, y)
	return nil
}

func (logInjector) ToggleMouse(down bool) error {
	log.Printf("[input] toggle down=%v", down)
	return nil
}

func (logInjector) Click(button string) error {
	log.Printf("[input] click %s", button)
	return nil
}

func (logInjector) Scroll(dx, dy int) error {
	log.Printf("[input] scroll %d,%d", dx, dy)
	return nil
}

func (logInjector) TapKey(key string, modifiers []string) error {
	log.Printf("[input] key %s mods=%v", key, modifiers)
	return nil
}
