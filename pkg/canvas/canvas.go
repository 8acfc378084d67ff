package canvas

import "fmt"

// Defaults applied on startup and after a clear.
const (
	DefaultBackground = "white"
	DefaultMode       = "none"
)

// Kind tags one drawing item variant. The set is closed: decoding an item
// with any other tag is a validation error.
type Kind string

const (
	KindLine      Kind = "line"
	KindRectangle Kind = "rectangle"
	KindOval      Kind = "oval"
	KindPolygon   Kind = "polygon"
	KindText      Kind = "text"
)

// Valid reports whether k is one of the known shape kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindLine, KindRectangle, KindOval, KindPolygon, KindText:
		return true
	}
	return false
}

// Item is one drawn element. Items are immutable once constructed by a
// client: every edit arrives as a full replacement of the drawings sequence,
// never as a patch to an existing item.
//
// Tags and Config are opaque to the server and preserved verbatim - clients
// use tags for lookup ("movable", "erasable", "shape", "text_box") and
// config for style attributes (fill, outline, width, font, text content).
type Item struct {
	Kind   Kind           `json:"type"`
	Coords []float64      `json:"coords"`
	Tags   []string       `json:"tags,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// Validate checks the kind tag and the coordinate arity for that kind:
// 4 values for line/rectangle/oval (a bounding box), an even count of at
// least 6 for polygon vertices, 2 for a text anchor.
func (it Item) Validate() error {
	if !it.Kind.Valid() {
		return fmt.Errorf("canvas: unknown item kind %q", it.Kind)
	}
	n := len(it.Coords)
	switch it.Kind {
	case KindLine, KindRectangle, KindOval:
		if n != 4 {
			return fmt.Errorf("canvas: %s wants 4 coords, got %d", it.Kind, n)
		}
	case KindPolygon:
		if n < 6 || n%2 != 0 {
			return fmt.Errorf("canvas: polygon wants an even count of at least 6 coords, got %d", n)
		}
	case KindText:
		if n != 2 {
			return fmt.Errorf("canvas: text wants 2 coords, got %d", n)
		}
	}
	return nil
}

// State is the shared whiteboard snapshot: the drawn items in z-order, the
// background color, and the last broadcast tool mode (informational, so a
// newly joined client can match the room's tool context).
type State struct {
	Drawings    []Item `json:"drawings"`
	Background  string `json:"background"`
	CurrentMode string `json:"current_mode"`
}
