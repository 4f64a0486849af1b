package display

import "fmt"

// Screen names one capturable surface. ID addresses the capture layer,
// DisplayID addresses the physical monitor for coordinate mapping.
type Screen struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DisplayID string `json:"display_id"`
}

// Catalog enumerates capturable screens. Implementations are thin OS
// calls supplied by the embedding application.
type Catalog interface {
	// Screens returns the capturable surfaces in capture-enumeration
	// order, already paired with display identifiers via OrderScreens.
	Screens() ([]Screen, error)

	// Geometry returns the monitor geometry for a display identifier.
	Geometry(displayID string) (Geometry, error)
}

// StaticCatalog is a fixed Catalog for platforms without a native
// enumeration backend, and for tests.
type StaticCatalog struct {
	screens []Screen
	geos    map[string]Geometry
}

func NewStaticCatalog(screens []Screen, geos map[string]Geometry) *StaticCatalog {
	return &StaticCatalog{screens: screens, geos: geos}
}

func (c *StaticCatalog) Screens() ([]Screen, error) {
	return append([]Screen(nil), c.screens...), nil
}

func (c *StaticCatalog) Geometry(displayID string) (Geometry, error) {
	g, ok := c.geos[displayID]
	if !ok {
		return Geometry{}, fmt.Errorf("unknown display %q", displayID)
	}
	return g, nil
}

// OrderScreens pairs capture sources with display identifiers. Capture
// enumeration order is not guaranteed to match logical display order,
// so when the primary display is not first in displayIDs it is swapped
// to the front before pairing.
func OrderScreens(sources []Screen, displayIDs []string, primaryID string) []Screen {
	ids := make([]string, len(displayIDs))
	copy(ids, displayIDs)

	if len(ids) > 1 && ids[0] != primaryID {
		for i, id := range ids {
			if id == primaryID {
				ids[0], ids[i] = ids[i], ids[0]
				break
			}
		}
	}

	out := make([]Screen, len(sources))
	for i, src := range sources {
		out[i] = Screen{ID: src.ID, Name: src.Name}
		if i < len(ids) {
			out[i].DisplayID = ids[i]
		}
	}
	return out
}
