package menu

import (
	"errors"
	"fmt"
	"log"

	"fyne.io/fyne/v2"

	"quick-tools-overlay/src/logutil"
	"quick-tools-overlay/src/messages"
	"quick-tools-overlay/src/tools"
)

// ErrUnknownEntry is returned when a tap names an id not in the current menu.
var ErrUnknownEntry = errors.New("menu: unknown entry")

// IconResolver maps icon keys to resources.
type IconResolver interface {
	Lookup(key string) (fyne.Resource, bool)
	Placeholder() fyne.Resource
}

// EventSink receives tool-tap notifications.
type EventSink interface {
	PublishToolTapped(messages.ToolTapped) error
}

// Entry is one renderable menu item.
type Entry struct {
	Tool     tools.Entry
	Icon     fyne.Resource
	Fallback bool // Icon is the placeholder
}

// Menu is a built, renderable set of entries in tool-list order.
type Menu struct {
	entries []Entry
}

// Len returns the number of entries. A nil menu is empty.
func (m *Menu) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries.
func (m *Menu) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// IDs returns entry ids in render order.
func (m *Menu) IDs() []string {
	if m == nil {
		return nil
	}
	ids := make([]string, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.Tool.ID
	}
	return ids
}

// Lookup finds an entry by tool id.
func (m *Menu) Lookup(id string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for _, e := range m.entries {
		if e.Tool.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Builder turns tool lists into menus and routes entry taps to the sink.
type Builder struct {
	icons   IconResolver
	sink    EventSink
	current *Menu
}

// NewBuilder returns a builder resolving icons through icons and emitting taps
// to sink.
func NewBuilder(icons IconResolver, sink EventSink) *Builder {
	return &Builder{icons: icons, sink: sink}
}

// Build discards the previous menu and builds a new one from list. Icon
// resolution failures fall back to the placeholder per entry.
func (b *Builder) Build(list tools.List) *Menu {
	m := &Menu{entries: make([]Entry, 0, list.Len())}
	for _, t := range list.Entries() {
		e := Entry{Tool: t}
		if res, ok := b.icons.Lookup(t.IconRef); ok {
			e.Icon = res
		} else {
			e.Icon = b.icons.Placeholder()
			e.Fallback = true
			log.Printf("menu: icon %q for tool %q not found, using placeholder", logutil.Sanitize(t.IconRef), logutil.Sanitize(t.ID))
		}
		m.entries = append(m.entries, e)
	}
	b.current = m
	return m
}

// Current returns the menu from the last Build, or nil after Discard.
func (b *Builder) Current() *Menu { return b.current }

// Discard drops the current menu.
func (b *Builder) Discard() { b.current = nil }

// OnEntryTapped emits exactly one ToolTapped for an entry of the current menu.
func (b *Builder) OnEntryTapped(id string) error {
	if _, ok := b.current.Lookup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntry, id)
	}
	if err := b.sink.PublishToolTapped(messages.ToolTapped{ToolID: id}); err != nil {
		return fmt.Errorf("menu: publish tap %q: %w", id, err)
	}
	return nil
}
