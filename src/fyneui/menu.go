package fyneui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"quick-tools-overlay/src/menu"
	"quick-tools-overlay/src/overlay"
)

var panelColor = color.NRGBA{R: 0x20, G: 0x20, B: 0x24, A: 0xf0}

// Menu is the vertical list of tool buttons shown next to the bubble.
type Menu struct {
	screen *Screen
	width  int
	onTap  func(id string)

	mu    sync.Mutex
	panel *fyne.Container
	list  *fyne.Container
}

// NewMenu returns a detached menu of widthPx that reports button taps to onTap.
func NewMenu(screen *Screen, widthPx int, onTap func(id string)) *Menu {
	return &Menu{screen: screen, width: widthPx, onTap: onTap}
}

func (m *Menu) Show(pos overlay.Position, entries []menu.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panel != nil {
		return ErrAlreadyAttached
	}
	m.screen.run(func() {
		m.list = container.NewVBox(m.buttons(entries)...)
		m.panel = container.NewStack(canvas.NewRectangle(panelColor), container.NewPadded(m.list))
		m.panel.Move(toPos(pos.X, pos.Y))
		m.resize()
		m.screen.layer.Add(m.panel)
	})
	return nil
}

// Replace swaps the rows of a shown menu without moving it.
func (m *Menu) Replace(entries []menu.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panel == nil {
		return ErrNotAttached
	}
	m.screen.run(func() {
		m.list.Objects = m.buttons(entries)
		m.resize()
		m.list.Refresh()
	})
	return nil
}

func (m *Menu) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panel == nil {
		return ErrNotAttached
	}
	m.screen.remove(m.panel)
	m.panel = nil
	m.list = nil
	return nil
}

// Rows returns the number of rendered rows, or -1 when detached.
func (m *Menu) Rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.list == nil {
		return -1
	}
	return len(m.list.Objects)
}

func (m *Menu) resize() {
	h := m.panel.MinSize().Height
	m.panel.Resize(fyne.NewSize(float32(m.width), h))
}

func (m *Menu) buttons(entries []menu.Entry) []fyne.CanvasObject {
	rows := make([]fyne.CanvasObject, 0, len(entries))
	for _, e := range entries {
		id := e.Tool.ID
		btn := widget.NewButtonWithIcon(e.Tool.Label, e.Icon, func() {
			if m.onTap != nil {
				m.onTap(id)
			}
		})
		btn.Alignment = widget.ButtonAlignLeading
		rows = append(rows, btn)
	}
	return rows
}
