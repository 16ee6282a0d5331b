package display

import (
	"errors"
	"image"

	"github.com/kbinani/screenshot"
)

// Fallback dimensions when no display can be queried and no override is set.
const (
	FallbackWidth  = 1080
	FallbackHeight = 1920
)

// ErrNoDisplay is returned when no active display is found.
var ErrNoDisplay = errors.New("no active displays found")

// Active returns the number of active displays.
func Active() int {
	return screenshot.NumActiveDisplays()
}

// Primary returns the bounds of display 0.
func Primary() (image.Rectangle, error) {
	if Active() == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	return screenshot.GetDisplayBounds(0), nil
}

// Screen reports the usable screen size in pixels. Overrides win over the
// queried primary display.
type Screen struct {
	width, height int
}

// New returns a Screen. Non-positive overrides query the primary display.
func New(widthOverride, heightOverride int) *Screen {
	return &Screen{width: widthOverride, height: heightOverride}
}

// Width returns the screen width in pixels.
func (s *Screen) Width() int {
	if s.width > 0 {
		return s.width
	}
	b, err := Primary()
	if err != nil || b.Dx() <= 0 {
		return FallbackWidth
	}
	return b.Dx()
}

// Height returns the screen height in pixels.
func (s *Screen) Height() int {
	if s.height > 0 {
		return s.height
	}
	b, err := Primary()
	if err != nil || b.Dy() <= 0 {
		return FallbackHeight
	}
	return b.Dy()
}
