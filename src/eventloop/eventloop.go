package eventloop

import (
	"context"
	"log"

	"quick-tools-overlay/src/gesture"
	"quick-tools-overlay/src/hotkey"
	"quick-tools-overlay/src/overlay"
)

// Server is the cross-process bridge the loop owns while running.
type Server interface {
	Start(ctx context.Context) error
	Port() int
	// StopRequested fires when a host asks the overlay to shut down.
	StopRequested() <-chan struct{}
}

// Loop is the single-threaded coordinator of the overlay. Surface callbacks,
// the hotkey and the bridge only post into it; the controller is touched
// from Run's goroutine alone.
type Loop struct {
	ctl      *overlay.Controller
	srv      Server
	touches  chan touch
	taps     chan string
	activate chan struct{}
	done     chan struct{}
}

type touch struct {
	phase gesture.Phase
	x, y  float64
}

// New creates a loop around ctl. srv may be nil.
func New(ctl *overlay.Controller, srv Server) *Loop {
	return &Loop{
		ctl:      ctl,
		srv:      srv,
		touches:  make(chan touch, 64),
		taps:     make(chan string, 4),
		activate: make(chan struct{}, 4),
		done:     make(chan struct{}),
	}
}

// Done is closed once Run has returned and the overlay is torn down.
func (l *Loop) Done() <-chan struct{} { return l.done }

// PostTouch queues a pointer sample. It blocks while the queue is full so
// that no Up is lost, and returns immediately once the loop has stopped.
func (l *Loop) PostTouch(phase gesture.Phase, x, y float64) {
	select {
	case l.touches <- touch{phase: phase, x: x, y: y}:
	case <-l.done:
	}
}

// PostToolTap queues a tap on a menu entry.
func (l *Loop) PostToolTap(id string) {
	select {
	case l.taps <- id:
	case <-l.done:
	}
}

// PostActivate queues a toggle. Bursts beyond the queue are dropped.
func (l *Loop) PostActivate() {
	select {
	case l.activate <- struct{}{}:
	default:
	}
}

// StartHotkey registers a global hotkey that toggles the menu.
func (l *Loop) StartHotkey(combo string) error {
	if combo == "" {
		return nil
	}
	return hotkey.Listen(combo, l.PostActivate)
}

// Run starts the bridge server and the controller, then processes events
// until ctx is cancelled or a host requests a stop. The overlay is always
// torn down before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.ctl.Teardown()

	var stop <-chan struct{}
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return err
		}
		log.Printf("Overlay listening on 127.0.0.1:%d", l.srv.Port())
		stop = l.srv.StopRequested()
	}

	if err := l.ctl.Start(); err != nil {
		return err
	}
	updates := l.ctl.Updates()

	for {
		select {
		case <-ctx.Done():
			log.Printf("eventloop: context done: %v", ctx.Err())
			return ctx.Err()
		case <-stop:
			log.Printf("eventloop: stop requested")
			return nil
		case t := <-l.touches:
			l.ctl.HandleTouch(t.phase, t.x, t.y)
		case id := <-l.taps:
			l.ctl.HandleToolTap(id)
		case <-l.activate:
			l.ctl.Activate()
		case env, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			l.ctl.ApplyConfiguration(env.Message.ToolListJSON)
		}
	}
}
