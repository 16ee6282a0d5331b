package overlay

import (
	"errors"
	"fmt"
	"log"

	"quick-tools-overlay/src/bus"
	"quick-tools-overlay/src/gesture"
	"quick-tools-overlay/src/logutil"
	"quick-tools-overlay/src/menu"
	"quick-tools-overlay/src/messages"
	"quick-tools-overlay/src/tools"
)

// Options wires a Controller to its collaborators.
type Options struct {
	Store   Store
	Bubble  BubbleSurface
	Menu    MenuSurface
	Display Display
	Icons   menu.IconResolver
	Events  menu.EventSink
	// Config is optional; without it only ApplyConfiguration updates the list.
	Config ConfigSource

	TapThreshold int // pixels; gesture.DefaultThreshold when zero
	MenuWidth    int // pixels; DefaultMenuWidth when zero
}

// Controller owns the bubble and menu surfaces, the in-memory position and
// the Collapsed/Expanded state machine. It is not safe for concurrent use:
// every method must be called from the single event-loop goroutine.
type Controller struct {
	store   Store
	bubble  BubbleSurface
	menu    MenuSurface
	display Display
	config  ConfigSource

	classifier *gesture.Classifier
	builder    *menu.Builder
	menuWidth  int

	pos     Position
	dirty   bool
	state   State
	started bool
	closed  bool
	sub     *bus.Subscription[messages.ConfigurationUpdate]
}

// New validates opts and returns a collapsed, not yet started controller.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("overlay: Store is required")
	case opts.Bubble == nil:
		return nil, errors.New("overlay: Bubble is required")
	case opts.Menu == nil:
		return nil, errors.New("overlay: Menu is required")
	case opts.Display == nil:
		return nil, errors.New("overlay: Display is required")
	case opts.Icons == nil:
		return nil, errors.New("overlay: Icons is required")
	case opts.Events == nil:
		return nil, errors.New("overlay: Events is required")
	}
	menuWidth := opts.MenuWidth
	if menuWidth <= 0 {
		menuWidth = DefaultMenuWidth
	}
	return &Controller{
		store:      opts.Store,
		bubble:     opts.Bubble,
		menu:       opts.Menu,
		display:    opts.Display,
		config:     opts.Config,
		classifier: gesture.New(opts.TapThreshold),
		builder:    menu.NewBuilder(opts.Icons, opts.Events),
		menuWidth:  menuWidth,
		pos:        DefaultPosition,
		state:      Collapsed,
	}, nil
}

// Start restores the persisted position, subscribes to configuration updates,
// attaches the bubble and sets the running flag. Calling it again is a no-op.
func (c *Controller) Start() error {
	if c.started {
		return nil
	}
	if c.closed {
		return errors.New("overlay: controller already torn down")
	}

	if x, y, ok := c.store.Position(); ok {
		c.pos = Position{X: x, Y: y}
	}

	if c.config != nil {
		sub, err := c.config.SubscribeConfiguration(messages.SenderOverlay)
		if err != nil {
			log.Printf("overlay: configuration updates unavailable: %v", err)
		} else {
			c.sub = sub
		}
	}

	if err := c.bubble.Attach(c.pos); err != nil {
		c.sub.Unsubscribe()
		c.sub = nil
		return fmt.Errorf("overlay: attach bubble: %w", err)
	}

	if err := c.store.SetRunning(true); err != nil {
		log.Printf("overlay: persist running flag: %v", err)
	}
	c.started = true
	log.Printf("overlay: started at (%d,%d)", c.pos.X, c.pos.Y)
	return nil
}

// Updates returns the configuration stream, or nil when there is none.
func (c *Controller) Updates() <-chan bus.Envelope[messages.ConfigurationUpdate] {
	if c.sub == nil {
		return nil
	}
	return c.sub.C()
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Position returns the in-memory bubble position.
func (c *Controller) Position() Position { return c.pos }

// Rendered returns the menu currently shown, or nil when collapsed.
func (c *Controller) Rendered() *menu.Menu { return c.builder.Current() }

func (c *Controller) live() bool { return c.started && !c.closed }

// HandleTouch feeds one pointer sample on the bubble through the classifier
// and applies the result. The position is persisted when the touch ends.
func (c *Controller) HandleTouch(phase gesture.Phase, x, y float64) {
	if !c.live() {
		return
	}
	action := c.classifier.OnTouchEvent(phase, x, y, c.pos)
	switch action.Kind {
	case gesture.Reposition:
		c.reposition(action.Position)
	case gesture.Activate:
		c.Activate()
	}
	if phase == gesture.Up {
		c.flushPosition()
	}
}

func (c *Controller) reposition(pos Position) {
	c.pos = pos
	c.dirty = true
	if err := c.bubble.Move(pos); err != nil {
		log.Printf("overlay: move bubble: %v", err)
	}
}

func (c *Controller) flushPosition() {
	if !c.dirty {
		return
	}
	if err := c.store.SetPosition(c.pos.X, c.pos.Y); err != nil {
		log.Printf("overlay: persist position: %v", err)
		return
	}
	c.dirty = false
}

// Activate toggles between Collapsed and Expanded.
func (c *Controller) Activate() {
	if !c.live() {
		return
	}
	if c.state == Expanded {
		c.collapse()
		return
	}
	c.expand()
}

func (c *Controller) expand() {
	m := c.builder.Build(c.toolList())
	at := PlaceMenu(c.pos, c.bubbleWidth(), c.menuWidth, c.display.Width())
	if err := c.menu.Show(at, m.Entries()); err != nil {
		log.Printf("overlay: show menu: %v", err)
		c.builder.Discard()
		return
	}
	c.state = Expanded
	log.Printf("overlay: expanded with %d entries at (%d,%d)", m.Len(), at.X, at.Y)
}

func (c *Controller) collapse() {
	if err := c.menu.Detach(); err != nil {
		log.Printf("overlay: detach menu: %v", err)
	}
	c.builder.Discard()
	c.state = Collapsed
}

func (c *Controller) bubbleWidth() int {
	w, _ := c.bubble.Size()
	return w
}

// toolList returns the persisted list, or the built-in default when nothing
// is persisted.
func (c *Controller) toolList() tools.List {
	payload, ok := c.store.ToolListJSON()
	if !ok {
		payload = tools.DefaultJSON
	}
	list, err := tools.Parse(payload)
	if err != nil {
		log.Printf("overlay: %v; rendering empty menu", err)
	}
	return list
}

// HandleToolTap reports a tap on a menu entry to the host and collapses.
// Taps while collapsed, or on ids not in the rendered menu, are ignored.
func (c *Controller) HandleToolTap(id string) {
	if !c.live() || c.state != Expanded {
		return
	}
	if err := c.builder.OnEntryTapped(id); err != nil {
		if errors.Is(err, menu.ErrUnknownEntry) {
			log.Printf("overlay: ignoring tap on unknown entry %q", logutil.Sanitize(id))
			return
		}
		log.Printf("overlay: %v", err)
	}
	c.collapse()
}

// ApplyConfiguration persists a new tool list and, when expanded, rebuilds
// the menu contents in place without changing state.
func (c *Controller) ApplyConfiguration(payload string) {
	if c.closed {
		return
	}
	if err := c.store.SetToolListJSON(payload); err != nil {
		log.Printf("overlay: persist tool list: %v", err)
	}
	if c.state != Expanded {
		return
	}
	list, err := tools.Parse(payload)
	if err != nil {
		log.Printf("overlay: %v; rendering empty menu", err)
	}
	m := c.builder.Build(list)
	if err := c.menu.Replace(m.Entries()); err != nil {
		log.Printf("overlay: rebuild menu: %v", err)
	}
	log.Printf("overlay: menu rebuilt with %d entries", m.Len())
}

// Teardown detaches both surfaces, clears the running flag and unsubscribes.
// It never fails and is safe to call repeatedly or before Start.
func (c *Controller) Teardown() {
	if c.closed {
		return
	}
	c.closed = true
	c.classifier.Reset()

	if c.state == Expanded {
		c.collapse()
	}
	if err := c.bubble.Detach(); err != nil {
		log.Printf("overlay: detach bubble: %v", err)
	}
	c.flushPosition()
	if err := c.store.SetRunning(false); err != nil {
		log.Printf("overlay: clear running flag: %v", err)
	}
	c.sub.Unsubscribe()
	c.sub = nil
	log.Printf("overlay: torn down")
}
