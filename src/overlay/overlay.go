package overlay

import (
	"quick-tools-overlay/src/bus"
	"quick-tools-overlay/src/gesture"
	"quick-tools-overlay/src/menu"
	"quick-tools-overlay/src/messages"
)

// Position is the bubble's top-left anchor in screen pixels.
type Position = gesture.Point

// State of the overlay.
type State int

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

// BubbleSurface is the always-visible floating control. Implementations
// return an error when detaching something that is not attached; the
// controller treats such errors as benign.
type BubbleSurface interface {
	Attach(pos Position) error
	Move(pos Position) error
	Detach() error
	Size() (width, height int)
}

// MenuSurface renders menu entries next to the bubble.
type MenuSurface interface {
	Show(pos Position, entries []menu.Entry) error
	Replace(entries []menu.Entry) error
	Detach() error
}

// Display reports the usable screen width.
type Display interface {
	Width() int
}

// Store is the persisted state the controller reads at start and writes
// through on change.
type Store interface {
	Position() (x, y int, ok bool)
	SetPosition(x, y int) error
	ToolListJSON() (string, bool)
	SetToolListJSON(payload string) error
	SetRunning(running bool) error
}

// ConfigSource delivers configuration updates from the host.
type ConfigSource interface {
	SubscribeConfiguration(name string) (*bus.Subscription[messages.ConfigurationUpdate], error)
}

// DefaultPosition is used when no position was persisted.
var DefaultPosition = Position{X: 0, Y: 100}

// DefaultMenuWidth approximates the rendered menu width in pixels.
const DefaultMenuWidth = 220

// PlaceMenu anchors the menu right of the bubble at the bubble's y, or left
// of it when the right side would overflow the screen. Vertical overflow is
// not corrected.
func PlaceMenu(bubble Position, bubbleWidth, menuWidth, screenWidth int) Position {
	x := bubble.X + bubbleWidth
	if x+menuWidth > screenWidth {
		x = bubble.X - menuWidth
	}
	return Position{X: x, Y: bubble.Y}
}
