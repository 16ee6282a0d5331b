package host

import (
	"context"
	"fmt"
	"io"
	"strings"

	"quick-tools-overlay/src/logutil"
)

// Action handles one tapped tool on the host side.
type Action func(ctx context.Context, out io.Writer) error

// Dispatcher maps tool ids to host actions for `events --act`.
type Dispatcher struct {
	actions map[string]Action
}

// NewDispatcher returns a dispatcher with the built-in clipboard action,
// which prints the clipboard text read by readClipboard.
func NewDispatcher(readClipboard func() (string, error)) *Dispatcher {
	d := &Dispatcher{actions: make(map[string]Action)}
	if readClipboard != nil {
		d.Register("clipboard", func(_ context.Context, out io.Writer) error {
			text, err := readClipboard()
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				_, err = fmt.Fprintln(out, "clipboard: (empty)")
				return err
			}
			_, err = fmt.Fprintf(out, "clipboard: %s\n", text)
			return err
		})
	}
	return d
}

// Register adds or replaces the action for id.
func (d *Dispatcher) Register(id string, a Action) {
	if id == "" || a == nil {
		return
	}
	d.actions[id] = a
}

// Dispatch runs the action for id, or prints the id when none is registered.
func (d *Dispatcher) Dispatch(ctx context.Context, id string, out io.Writer) error {
	if a, ok := d.actions[id]; ok {
		if err := a(ctx, out); err != nil {
			return fmt.Errorf("tool %q: %w", id, err)
		}
		return nil
	}
	_, err := fmt.Fprintf(out, "tool tapped: %s\n", logutil.Sanitize(id))
	return err
}
