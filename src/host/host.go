// Package host is the command surface a host application uses to drive the
// overlay: start, stop, permission, configuration and image export.
package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"quick-tools-overlay/src/tools"
)

// Acknowledgements returned by the mutating commands.
const (
	AckStarted = "Overlay started"
	AckStopped = "Overlay stopped"
	AckUpdated = "Quick tools updated"
)

// CodeNoBytes prefixes ErrNoImageData when reported to a user.
const CodeNoBytes = "NO_BYTES"

var (
	// ErrNoImageData is returned by ExportImage for empty input.
	ErrNoImageData = errors.New("no image data")
	// ErrNotRunning is returned by Events when no overlay answers.
	ErrNotRunning = errors.New("overlay is not running")
)

// Bridge reaches the resident overlay process.
type Bridge interface {
	DetectResidentPort(ctx context.Context) (int, bool)
	SendConfig(ctx context.Context, payload string) (bool, error)
	Stop(ctx context.Context) (bool, error)
	Events(ctx context.Context, fn func(id string)) (bool, error)
}

// Store is the persisted state shared with the overlay.
type Store interface {
	Running() bool
	SetRunning(running bool) error
	ToolListJSON() (string, bool)
	SetToolListJSON(payload string) error
}

// Launcher starts the resident overlay process.
type Launcher interface {
	Launch(args ...string) error
}

// Opener shows the platform surface where overlay permissions are granted.
type Opener interface {
	OpenSettings() error
}

type Options struct {
	Store      Store
	Bridge     Bridge
	Launcher   Launcher
	Opener     Opener
	GalleryDir string
	// Displays counts active displays; QueryPermission is false without one.
	Displays func() int
	Now      func() time.Time
}

// Host implements the host command table.
type Host struct {
	store      Store
	bridge     Bridge
	launcher   Launcher
	opener     Opener
	galleryDir string
	displays   func() int
	now        func() time.Time
}

func New(opts Options) *Host {
	h := &Host{
		store:      opts.Store,
		bridge:     opts.Bridge,
		launcher:   opts.Launcher,
		opener:     opts.Opener,
		galleryDir: opts.GalleryDir,
		displays:   opts.Displays,
		now:        opts.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.displays == nil {
		h.displays = func() int { return 0 }
	}
	return h
}

// Start shows the overlay, launching the resident process when none answers.
func (h *Host) Start(ctx context.Context) (string, error) {
	if port, ok := h.bridge.DetectResidentPort(ctx); ok {
		log.Printf("host: overlay already running on port %d", port)
		return AckStarted, nil
	}
	if err := h.launcher.Launch("overlay"); err != nil {
		return "", fmt.Errorf("host: launch overlay: %w", err)
	}
	log.Printf("host: overlay launched")
	return AckStarted, nil
}

// Stop tears the overlay down and always acks. When no overlay answers, or
// the bridge fails mid-request, the running flag is cleared so a crashed
// resident does not keep reporting as running. The error result keeps Stop
// interchangeable with Start for callers and is always nil.
func (h *Host) Stop(ctx context.Context) (string, error) {
	delegated, err := h.bridge.Stop(ctx)
	if err != nil {
		log.Printf("host: stop overlay: %v", err)
	}
	if delegated && err == nil {
		return AckStopped, nil
	}
	if err := h.store.SetRunning(false); err != nil {
		log.Printf("host: clear running flag: %v", err)
		return AckStopped, nil
	}
	log.Printf("host: no overlay confirmed stop; running flag cleared")
	return AckStopped, nil
}

// RequestPermission opens the system settings surface. It does not wait for
// the user.
func (h *Host) RequestPermission() error {
	if h.opener == nil {
		return errors.New("host: no settings opener")
	}
	return h.opener.OpenSettings()
}

// QueryPermission reports whether overlays can be drawn right now.
func (h *Host) QueryPermission() bool {
	return h.displays() > 0
}

// QueryRunning returns the persisted running flag.
func (h *Host) QueryRunning() bool {
	return h.store.Running()
}

// UpdateConfig normalises payload, persists it and forwards it to a running
// overlay. A malformed payload is stored as an empty list.
func (h *Host) UpdateConfig(ctx context.Context, payload string) (string, error) {
	list, err := tools.Parse(payload)
	if err != nil {
		log.Printf("host: %v; storing empty list", err)
	}
	normalised := tools.Encode(list)
	if err := h.store.SetToolListJSON(normalised); err != nil {
		return "", fmt.Errorf("host: %w", err)
	}
	delegated, err := h.bridge.SendConfig(ctx, normalised)
	switch {
	case err != nil:
		log.Printf("host: forward configuration: %v", err)
	case !delegated:
		log.Printf("host: overlay not running; configuration applies on next start")
	}
	return AckUpdated, nil
}

// ToolList returns the persisted tool list, or the default when none is stored.
func (h *Host) ToolList() tools.List {
	payload, ok := h.store.ToolListJSON()
	if !ok {
		return tools.Default()
	}
	list, err := tools.Parse(payload)
	if err != nil {
		log.Printf("host: %v", err)
	}
	return list
}

// ExportImage writes data as qr_<millis>.png into the gallery directory and
// returns its file:// location.
func (h *Host) ExportImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoImageData
	}
	dir, err := filepath.Abs(h.galleryDir)
	if err != nil {
		return "", fmt.Errorf("host: gallery dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("host: ensure %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("qr_%d.png", h.now().UnixMilli()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("host: write image: %w", err)
	}
	log.Printf("host: exported %d bytes to %s", len(data), path)
	return "file://" + filepath.ToSlash(path), nil
}

// Events streams tool taps from the running overlay until ctx is done.
func (h *Host) Events(ctx context.Context, fn func(id string)) error {
	delegated, err := h.bridge.Events(ctx, fn)
	if !delegated {
		return ErrNotRunning
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
