package fyneui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"quick-tools-overlay/src/gesture"
	"quick-tools-overlay/src/overlay"
)

var bubbleColor = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xee}

// TouchHandler receives raw pointer samples in absolute canvas coordinates.
type TouchHandler func(phase gesture.Phase, x, y float64)

// Bubble is the floating control surface.
type Bubble struct {
	screen *Screen
	w      *bubbleWidget
	size   int

	mu       sync.Mutex
	attached bool
}

// NewBubble returns a detached bubble of sizePx square that reports pointer
// samples to onTouch.
func NewBubble(screen *Screen, sizePx int, onTouch TouchHandler) *Bubble {
	w := &bubbleWidget{onTouch: onTouch}
	w.ExtendBaseWidget(w)
	return &Bubble{screen: screen, w: w, size: sizePx}
}

func (b *Bubble) Attach(pos overlay.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached {
		return ErrAlreadyAttached
	}
	b.screen.run(func() {
		b.w.Resize(fyne.NewSize(float32(b.size), float32(b.size)))
		b.w.Move(toPos(pos.X, pos.Y))
		b.screen.layer.Add(b.w)
	})
	b.attached = true
	return nil
}

func (b *Bubble) Move(pos overlay.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return ErrNotAttached
	}
	b.screen.run(func() { b.w.Move(toPos(pos.X, pos.Y)) })
	return nil
}

func (b *Bubble) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return ErrNotAttached
	}
	b.screen.remove(b.w)
	b.attached = false
	return nil
}

func (b *Bubble) Size() (int, int) { return b.size, b.size }

// bubbleWidget turns mouse and drag callbacks into one Down, zero or more
// Move and exactly one Up per gesture.
type bubbleWidget struct {
	widget.BaseWidget
	onTouch TouchHandler

	mu      sync.Mutex
	pressed bool
	last    fyne.Position
}

var (
	_ desktop.Mouseable = (*bubbleWidget)(nil)
	_ fyne.Draggable    = (*bubbleWidget)(nil)
)

func (b *bubbleWidget) CreateRenderer() fyne.WidgetRenderer {
	circle := canvas.NewCircle(bubbleColor)
	icon := widget.NewIcon(theme.MenuIcon())
	return widget.NewSimpleRenderer(container.NewStack(circle, container.NewPadded(icon)))
}

func (b *bubbleWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.begin(e.AbsolutePosition)
}

func (b *bubbleWidget) MouseUp(e *desktop.MouseEvent) {
	b.end(e.AbsolutePosition)
}

func (b *bubbleWidget) Dragged(e *fyne.DragEvent) {
	b.mu.Lock()
	if !b.pressed {
		// The drag started without a MouseDown; synthesize one where it began.
		b.mu.Unlock()
		b.begin(e.AbsolutePosition.Subtract(fyne.NewPos(e.Dragged.DX, e.Dragged.DY)))
		b.mu.Lock()
	}
	b.last = e.AbsolutePosition
	b.mu.Unlock()
	b.emit(gesture.Move, e.AbsolutePosition)
}

func (b *bubbleWidget) DragEnd() {
	b.mu.Lock()
	last := b.last
	b.mu.Unlock()
	b.end(last)
}

func (b *bubbleWidget) begin(p fyne.Position) {
	b.mu.Lock()
	b.pressed = true
	b.last = p
	b.mu.Unlock()
	b.emit(gesture.Down, p)
}

func (b *bubbleWidget) end(p fyne.Position) {
	b.mu.Lock()
	if !b.pressed {
		b.mu.Unlock()
		return
	}
	b.pressed = false
	b.mu.Unlock()
	b.emit(gesture.Up, p)
}

func (b *bubbleWidget) emit(phase gesture.Phase, p fyne.Position) {
	if b.onTouch != nil {
		b.onTouch(phase, float64(p.X), float64(p.Y))
	}
}
