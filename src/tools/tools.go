package tools

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/tidwall/gjson"

	"quick-tools-overlay/src/logutil"
)

// ErrMalformedPayload is returned when a payload is not a JSON array at all.
// Individual bad records never produce an error; they are skipped.
var ErrMalformedPayload = errors.New("tool list payload is not a JSON array")

// DefaultJSON is the first-run tool list used when nothing is persisted.
const DefaultJSON = `[{"id":"notes","label":"Notes","icon":"ic_notes"},` +
	`{"id":"qr","label":"QR Tools","icon":"ic_qr"},` +
	`{"id":"clipboard","label":"Clipboard","icon":"ic_clipboard"}]`

// Entry is one configurable shortcut.
type Entry struct {
	ID      string
	Label   string
	IconRef string
}

// List is an ordered, immutable sequence of entries. Order is render order.
type List struct {
	entries []Entry
}

// NewList builds a list from entries, dropping entries with an empty or
// duplicate id so the uniqueness invariant always holds.
func NewList(entries ...Entry) List {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return List{entries: out}
}

// Len returns the number of entries.
func (l List) Len() int { return len(l.entries) }

// At returns the i-th entry.
func (l List) At(i int) Entry { return l.entries[i] }

// Entries returns a copy of the entries.
func (l List) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// IDs returns the entry ids in order.
func (l List) IDs() []string {
	ids := make([]string, len(l.entries))
	for i, e := range l.entries {
		ids[i] = e.ID
	}
	return ids
}

// Lookup finds an entry by id.
func (l List) Lookup(id string) (Entry, bool) {
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Default returns the built-in list. It goes through Parse like any other
// payload.
func Default() List {
	l, _ := Parse(DefaultJSON)
	return l
}

// Parse decodes the wire format
//
//	[ { "id": "...", "label": "...", "icon": "..." }, ... ]
//
// Records that are not objects, or that lack a non-empty string id, are
// skipped. Later duplicates of an id are skipped. A missing or non-string
// label falls back to the id; a missing or non-string icon is empty. If the
// payload as a whole is not an array the result is an empty list and
// ErrMalformedPayload.
func Parse(payload string) (List, error) {
	if !gjson.Valid(payload) {
		return List{}, ErrMalformedPayload
	}
	root := gjson.Parse(payload)
	if !root.IsArray() {
		return List{}, ErrMalformedPayload
	}

	var entries []Entry
	skipped := 0
	root.ForEach(func(_, rec gjson.Result) bool {
		if !rec.IsObject() {
			skipped++
			return true
		}
		id := rec.Get("id")
		if id.Type != gjson.String || id.Str == "" {
			skipped++
			return true
		}
		e := Entry{ID: id.Str, Label: id.Str}
		if label := rec.Get("label"); label.Type == gjson.String {
			e.Label = label.Str
		}
		if icon := rec.Get("icon"); icon.Type == gjson.String {
			e.IconRef = icon.Str
		}
		entries = append(entries, e)
		return true
	})

	list := NewList(entries...)
	if dropped := len(entries) - list.Len(); dropped > 0 {
		skipped += dropped
	}
	if skipped > 0 {
		log.Printf("tools: skipped %d malformed record(s) in payload %q", skipped, logutil.Sanitize(payload))
	}
	return list, nil
}

type wireEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// Encode serializes a list in the wire format. An empty list encodes as "[]".
func Encode(l List) string {
	wire := make([]wireEntry, 0, l.Len())
	for _, e := range l.entries {
		wire = append(wire, wireEntry{ID: e.ID, Label: e.Label, Icon: e.IconRef})
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "[]"
	}
	return string(b)
}
