// Package fyneui draws the bubble and the menu on a fyne canvas. Surfaces are
// positioned absolutely on one layer; all canvas mutations are marshalled
// onto the fyne main goroutine.
package fyneui

import (
	"errors"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
)

var (
	// ErrNotAttached is returned when moving or detaching a surface that is not shown.
	ErrNotAttached = errors.New("surface not attached")
	// ErrAlreadyAttached is returned when attaching a surface twice.
	ErrAlreadyAttached = errors.New("surface already attached")
)

// Screen is the drawing layer shared by the bubble and the menu.
type Screen struct {
	win   fyne.Window
	layer *fyne.Container
	// run executes fn on the fyne main goroutine and waits for it.
	run func(fn func())
}

// NewScreen creates an undecorated-looking window covering width x height
// with an empty absolute layer.
func NewScreen(a fyne.App, width, height int) *Screen {
	w := a.NewWindow("Quick Tools")
	w.SetPadded(false)
	bg := canvas.NewRectangle(color.Transparent)
	bg.Resize(fyne.NewSize(float32(width), float32(height)))
	layer := container.NewWithoutLayout(bg)
	w.SetContent(layer)
	w.Resize(fyne.NewSize(float32(width), float32(height)))
	w.SetFixedSize(true)
	return &Screen{win: w, layer: layer, run: fyne.DoAndWait}
}

// Window returns the backing window.
func (s *Screen) Window() fyne.Window { return s.win }

func (s *Screen) remove(o fyne.CanvasObject) {
	s.run(func() {
		s.layer.Remove(o)
	})
}

func toPos(x, y int) fyne.Position {
	return fyne.NewPos(float32(x), float32(y))
}
