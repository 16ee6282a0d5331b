// Package gesture turns raw pointer samples on the bubble into drag or tap
// decisions.
package gesture

// Phase of a pointer sample.
type Phase int

const (
	Down Phase = iota
	Move
	Up
)

func (p Phase) String() string {
	switch p {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	default:
		return "unknown"
	}
}

// Kind of action emitted for a sample.
type Kind int

const (
	None Kind = iota
	Reposition
	Activate
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Reposition:
		return "reposition"
	case Activate:
		return "activate"
	default:
		return "unknown"
	}
}

// Point is an integer screen position (the bubble's top-left anchor).
type Point struct {
	X, Y int
}

// Action is the classifier output. For Reposition, Position is the new
// absolute surface position and DX/DY the displacement since Down.
type Action struct {
	Kind     Kind
	Position Point
	DX, DY   int
}

// Session is the state of one Down..Up sequence.
type Session struct {
	Origin   Point   // surface position at Down
	TouchX   float64 // pointer at Down
	TouchY   float64
	Dragging bool
}

// delta returns the pointer displacement since Down, truncated toward zero.
func (s *Session) delta(x, y float64) (int, int) {
	return int(x - s.TouchX), int(y - s.TouchY)
}

// Classifier disambiguates drag from tap. It is not safe for concurrent use;
// the owning event loop serializes calls.
type Classifier struct {
	threshold int
	session   *Session
}

// DefaultThreshold is the tap slop in pixels at density 1.
const DefaultThreshold = 10

// New returns a classifier with the given tap threshold in pixels.
// Non-positive thresholds fall back to DefaultThreshold.
func New(thresholdPx int) *Classifier {
	if thresholdPx <= 0 {
		thresholdPx = DefaultThreshold
	}
	return &Classifier{threshold: thresholdPx}
}

// Threshold returns the tap threshold in pixels.
func (c *Classifier) Threshold() int { return c.threshold }

// Active reports whether a session is in progress.
func (c *Classifier) Active() bool { return c.session != nil }

// OnTouchEvent consumes one pointer sample. current is the surface position,
// only read on Down.
//
// Moves emit nothing until the pointer first leaves the threshold square;
// from then on the session is a drag and every Move repositions. Up is
// classified by the total displacement since Down alone: inside the square
// it is a tap, even if the pointer wandered out and came back.
func (c *Classifier) OnTouchEvent(phase Phase, x, y float64, current Point) Action {
	switch phase {
	case Down:
		c.session = &Session{Origin: current, TouchX: x, TouchY: y}
		return Action{Kind: None}

	case Move:
		s := c.session
		if s == nil {
			return Action{Kind: None}
		}
		dx, dy := s.delta(x, y)
		if !s.Dragging && c.within(dx, dy) {
			return Action{Kind: None}
		}
		s.Dragging = true
		return s.reposition(dx, dy)

	case Up:
		s := c.session
		c.session = nil
		if s == nil {
			return Action{Kind: None}
		}
		dx, dy := s.delta(x, y)
		if c.within(dx, dy) {
			return Action{Kind: Activate}
		}
		if s.Dragging {
			return Action{Kind: None}
		}
		// Down..Up with no intermediate Move samples: apply the drag now.
		return s.reposition(dx, dy)
	}
	return Action{Kind: None}
}

// Reset discards any in-progress session.
func (c *Classifier) Reset() { c.session = nil }

func (c *Classifier) within(dx, dy int) bool {
	return abs(dx) < c.threshold && abs(dy) < c.threshold
}

func (s *Session) reposition(dx, dy int) Action {
	return Action{
		Kind:     Reposition,
		Position: Point{X: s.Origin.X + dx, Y: s.Origin.Y + dy},
		DX:       dx,
		DY:       dy,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
