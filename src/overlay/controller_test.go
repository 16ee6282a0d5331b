package overlay

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"fyne.io/fyne/v2"

	"quick-tools-overlay/src/bus"
	"quick-tools-overlay/src/gesture"
	"quick-tools-overlay/src/menu"
	"quick-tools-overlay/src/messages"
	"quick-tools-overlay/src/prefs"
)

type fakeBubble struct {
	attached  bool
	pos       Position
	moves     int
	attachErr error
	detaches  int
}

func (b *fakeBubble) Attach(pos Position) error {
	if b.attachErr != nil {
		return b.attachErr
	}
	b.attached = true
	b.pos = pos
	return nil
}

func (b *fakeBubble) Move(pos Position) error {
	b.pos = pos
	b.moves++
	return nil
}

func (b *fakeBubble) Detach() error {
	b.detaches++
	if !b.attached {
		return errors.New("bubble not attached")
	}
	b.attached = false
	return nil
}

func (b *fakeBubble) Size() (int, int) { return 56, 56 }

type fakeMenu struct {
	shown    bool
	at       Position
	entries  []menu.Entry
	showErr  error
	replaced int
	detaches int
}

func (m *fakeMenu) Show(pos Position, entries []menu.Entry) error {
	if m.showErr != nil {
		return m.showErr
	}
	m.shown = true
	m.at = pos
	m.entries = entries
	return nil
}

func (m *fakeMenu) Replace(entries []menu.Entry) error {
	m.entries = entries
	m.replaced++
	return nil
}

func (m *fakeMenu) Detach() error {
	m.detaches++
	if !m.shown {
		return errors.New("menu not attached")
	}
	m.shown = false
	m.entries = nil
	return nil
}

func (m *fakeMenu) ids() []string {
	ids := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		ids = append(ids, e.Tool.ID)
	}
	return ids
}

type fixedDisplay int

func (d fixedDisplay) Width() int { return int(d) }

type stubIcons struct{}

var placeholder = fyne.NewStaticResource("help.svg", []byte("?"))

func (stubIcons) Lookup(key string) (fyne.Resource, bool) {
	if key == "ic_notes" {
		return fyne.NewStaticResource("notes.svg", []byte("n")), true
	}
	return nil, false
}

func (stubIcons) Placeholder() fyne.Resource { return placeholder }

type harness struct {
	c      *Controller
	store  *prefs.Store
	bubble *fakeBubble
	menu   *fakeMenu
	bus    *bus.Bus
	taps   *bus.Subscription[messages.ToolTapped]
}

func newHarness(t *testing.T, store *prefs.Store) *harness {
	t.Helper()
	if store == nil {
		store = prefs.NewMemory()
	}
	b := bus.New()
	t.Cleanup(b.Close)
	taps, err := b.SubscribeToolTapped(messages.SenderHost)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	h := &harness{store: store, bubble: &fakeBubble{}, menu: &fakeMenu{}, bus: b, taps: taps}
	h.c, err = New(Options{
		Store:   store,
		Bubble:  h.bubble,
		Menu:    h.menu,
		Display: fixedDisplay(1080),
		Icons:   stubIcons{},
		Events:  b,
		Config:  b,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func (h *harness) tap(x, y float64) {
	h.c.HandleTouch(gesture.Down, x, y)
	h.c.HandleTouch(gesture.Up, x, y)
}

func (h *harness) drag(fromX, fromY, toX, toY float64) {
	h.c.HandleTouch(gesture.Down, fromX, fromY)
	h.c.HandleTouch(gesture.Move, toX, toY)
	h.c.HandleTouch(gesture.Up, toX, toY)
}

func (h *harness) tapped() []string {
	var ids []string
	for {
		select {
		case env := <-h.taps.C():
			ids = append(ids, env.Message.ToolID)
		default:
			return ids
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("Expected error for empty options")
	}
}

func TestStartUsesDefaultPosition(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	if h.c.Position() != DefaultPosition {
		t.Errorf("Expected %v, got %v", DefaultPosition, h.c.Position())
	}
	if !h.bubble.attached || h.bubble.pos != DefaultPosition {
		t.Errorf("Expected bubble attached at default, got %+v", h.bubble)
	}
	if h.c.State() != Collapsed {
		t.Errorf("Expected collapsed, got %v", h.c.State())
	}
	if !h.store.Running() {
		t.Error("Expected running flag set")
	}
}

func TestStartUsesPersistedPosition(t *testing.T) {
	store := prefs.NewMemory()
	if err := store.SetPosition(320, 40); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, store)
	h.start(t)

	want := Position{X: 320, Y: 40}
	if h.c.Position() != want || h.bubble.pos != want {
		t.Errorf("Expected %v, got controller %v bubble %v", want, h.c.Position(), h.bubble.pos)
	}
}

func TestStartFailsWhenBubbleCannotAttach(t *testing.T) {
	h := newHarness(t, nil)
	h.bubble.attachErr = errors.New("permission denied")

	if err := h.c.Start(); err == nil {
		t.Fatal("Expected Start to fail")
	}
	if h.store.Running() {
		t.Error("Running flag must stay false when the bubble is not shown")
	}
	h.c.Teardown()
}

func TestPositionSurvivesRestart(t *testing.T) {
	store := prefs.NewMemory()
	h := newHarness(t, store)
	h.start(t)

	h.drag(10, 110, 210, 410)
	h.c.Teardown()

	h2 := newHarness(t, store)
	h2.start(t)
	want := Position{X: 200, Y: 400}
	if h2.c.Position() != want {
		t.Errorf("Expected restored position %v, got %v", want, h2.c.Position())
	}
}

func TestDragPersistsAtRest(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.c.HandleTouch(gesture.Down, 0, 100)
	h.c.HandleTouch(gesture.Move, 50, 100)
	if _, _, ok := h.store.Position(); ok {
		t.Error("Expected nothing persisted mid-drag")
	}
	if h.bubble.pos != (Position{X: 50, Y: 100}) {
		t.Errorf("Expected bubble moved to (50,100), got %v", h.bubble.pos)
	}
	h.c.HandleTouch(gesture.Move, 80, 130)
	h.c.HandleTouch(gesture.Up, 80, 130)

	x, y, ok := h.store.Position()
	if !ok || x != 80 || y != 130 {
		t.Errorf("Expected persisted (80,130), got (%d,%d,%v)", x, y, ok)
	}
	if h.c.State() != Collapsed {
		t.Error("A drag must not toggle the menu")
	}
}

func TestDragBackInsideThresholdActivates(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.c.HandleTouch(gesture.Down, 0, 100)
	h.c.HandleTouch(gesture.Move, 0, 125)
	h.c.HandleTouch(gesture.Move, 0, 102)
	h.c.HandleTouch(gesture.Up, 0, 102)

	if h.c.State() != Expanded {
		t.Fatalf("Expected release near the press point to expand, got %v", h.c.State())
	}
	x, y, ok := h.store.Position()
	if !ok || x != 0 || y != 102 {
		t.Errorf("Expected persisted (0,102), got (%d,%d,%v)", x, y, ok)
	}
}

func TestTapTogglesMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	for n := 1; n <= 5; n++ {
		h.tap(5, 105)
		want := Collapsed
		if n%2 == 1 {
			want = Expanded
		}
		if h.c.State() != want {
			t.Fatalf("After %d taps expected %v, got %v", n, want, h.c.State())
		}
		if h.menu.shown != (want == Expanded) {
			t.Fatalf("After %d taps menu shown=%v", n, h.menu.shown)
		}
	}
	if h.bubble.moves != 0 {
		t.Errorf("Taps must not move the bubble, got %d moves", h.bubble.moves)
	}
}

func TestExpandRendersDefaultTools(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.Activate()

	want := []string{"notes", "qr", "clipboard"}
	if got := h.menu.ids(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := h.c.Rendered().IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected rendered %v, got %v", want, got)
	}
}

func TestMenuPlacement(t *testing.T) {
	tests := []struct {
		name   string
		bubble Position
		screen int
		want   Position
	}{
		{"fits right", Position{X: 0, Y: 100}, 1080, Position{X: 56, Y: 100}},
		{"exactly fits", Position{X: 804, Y: 10}, 1080, Position{X: 860, Y: 10}},
		{"overflows right", Position{X: 900, Y: 300}, 1080, Position{X: 680, Y: 300}},
		{"no vertical correction", Position{X: 0, Y: 5000}, 1080, Position{X: 56, Y: 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlaceMenu(tt.bubble, 56, DefaultMenuWidth, tt.screen)
			if got != tt.want {
				t.Errorf("PlaceMenu(%v) = %v, want %v", tt.bubble, got, tt.want)
			}
		})
	}
}

func TestExpandAnchorsMenuNextToBubble(t *testing.T) {
	store := prefs.NewMemory()
	_ = store.SetPosition(900, 300)
	h := newHarness(t, store)
	h.start(t)
	h.c.Activate()

	if h.menu.at != (Position{X: 680, Y: 300}) {
		t.Errorf("Expected menu left of bubble, got %v", h.menu.at)
	}
}

func TestShowFailureStaysCollapsed(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.menu.showErr = errors.New("surface refused")

	h.c.Activate()
	if h.c.State() != Collapsed {
		t.Errorf("Expected collapsed, got %v", h.c.State())
	}
	if h.c.Rendered() != nil {
		t.Error("Expected no rendered menu")
	}
}

func TestToolTapEmitsOnceAndCollapses(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.ApplyConfiguration(`[{"id":"a","label":"A","icon":""}]`)
	h.c.Activate()

	entries := h.menu.entries
	if len(entries) != 1 || !entries[0].Fallback || entries[0].Icon != placeholder {
		t.Fatalf("Expected one placeholder entry, got %+v", entries)
	}

	h.c.HandleToolTap("a")
	if got := h.tapped(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Expected exactly one tap for a, got %v", got)
	}
	if h.c.State() != Collapsed || h.menu.shown {
		t.Error("Expected menu collapsed after tap")
	}
}

func TestToolTapIgnoredWhenCollapsedOrUnknown(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.c.HandleToolTap("notes")
	h.c.Activate()
	h.c.HandleToolTap("does-not-exist")

	if got := h.tapped(); len(got) != 0 {
		t.Errorf("Expected no taps, got %v", got)
	}
	if h.c.State() != Expanded {
		t.Error("An unknown id must not collapse the menu")
	}
}

func TestEmptyConfigurationRendersEmptyMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.ApplyConfiguration(`[]`)
	h.c.Activate()

	if h.c.State() != Expanded {
		t.Fatalf("Expected expanded, got %v", h.c.State())
	}
	if len(h.menu.entries) != 0 {
		t.Errorf("Expected empty menu, got %v", h.menu.ids())
	}
	if got := h.tapped(); len(got) != 0 {
		t.Errorf("Expected no taps, got %v", got)
	}
}

func TestConfigurationRebuildsExpandedMenuInPlace(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.Activate()

	h.c.ApplyConfiguration(`[{"id":"x","label":"X"},{"label":"no id"},42,{"id":"y","icon":"ic_notes"}]`)

	if h.c.State() != Expanded {
		t.Errorf("Expected state unchanged, got %v", h.c.State())
	}
	if h.menu.replaced != 1 {
		t.Errorf("Expected one in-place rebuild, got %d", h.menu.replaced)
	}
	if got := h.menu.ids(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Expected [x y], got %v", got)
	}

	h.c.HandleToolTap("notes")
	if got := h.tapped(); len(got) != 0 {
		t.Errorf("Stale entry must not emit, got %v", got)
	}
}

func TestConfigurationWhileCollapsedIsUsedOnNextExpand(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	payload := `[{"id":"only","label":"Only"}]`
	h.c.ApplyConfiguration(payload)

	if h.menu.replaced != 0 || h.c.State() != Collapsed {
		t.Error("Collapsed overlay must not render on configuration")
	}
	if got, _ := h.store.ToolListJSON(); got != payload {
		t.Errorf("Expected payload persisted, got %q", got)
	}
	h.c.Activate()
	if got := h.menu.ids(); !reflect.DeepEqual(got, []string{"only"}) {
		t.Errorf("Expected [only], got %v", got)
	}
}

func TestMalformedConfigurationRendersEmptyMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.Activate()
	h.c.ApplyConfiguration(`{not json`)

	if h.c.State() != Expanded || len(h.menu.entries) != 0 {
		t.Errorf("Expected expanded empty menu, got %v %v", h.c.State(), h.menu.ids())
	}
}

func TestUpdatesDeliversPublishedConfiguration(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	if err := h.bus.PublishConfiguration(messages.SenderHost, `[]`); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	select {
	case env := <-h.c.Updates():
		if env.Message.ToolListJSON != `[]` {
			t.Errorf("Expected [], got %q", env.Message.ToolListJSON)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for configuration")
	}
}

func TestDragWhileExpandedKeepsMenuAnchor(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.Activate()
	anchor := h.menu.at

	h.drag(0, 100, 300, 100)
	if h.c.State() != Expanded {
		t.Error("Drag must not collapse the menu")
	}
	if h.menu.at != anchor {
		t.Errorf("Menu moved from %v to %v", anchor, h.menu.at)
	}
	if h.bubble.pos != (Position{X: 300, Y: 100}) {
		t.Errorf("Expected bubble at (300,100), got %v", h.bubble.pos)
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.c.Activate()

	h.c.Teardown()
	h.c.Teardown()

	if h.bubble.attached || h.menu.shown {
		t.Error("Expected both surfaces detached")
	}
	if h.bubble.detaches != 1 {
		t.Errorf("Expected one bubble detach, got %d", h.bubble.detaches)
	}
	if h.store.Running() {
		t.Error("Expected running flag cleared")
	}
	if h.c.Updates() != nil {
		t.Error("Expected no subscription after teardown")
	}

	h.c.Activate()
	h.c.HandleTouch(gesture.Down, 0, 0)
	if h.c.State() != Collapsed || h.menu.shown {
		t.Error("Events after teardown must be ignored")
	}
}

func TestTeardownBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	h.c.Teardown()

	if h.store.Running() {
		t.Error("Expected running flag false")
	}
	if err := h.c.Start(); err == nil {
		t.Error("Expected Start after Teardown to fail")
	}
}
