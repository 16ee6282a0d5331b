package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"quick-tools-overlay/src/bus"
	"quick-tools-overlay/src/display"
	"quick-tools-overlay/src/eventloop"
	"quick-tools-overlay/src/fyneui"
	"quick-tools-overlay/src/gesture"
	"quick-tools-overlay/src/hotkey"
	"quick-tools-overlay/src/icons"
	"quick-tools-overlay/src/overlay"
	"quick-tools-overlay/src/singleinstance"
)

const teardownGrace = 3 * time.Second

func newOverlayCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "overlay",
		Short: "Run the resident overlay (bubble, menu, hotkey and bridge)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			return runOverlay(e)
		},
	}
}

func runOverlay(e *env) error {
	cfg := e.cfg

	// ---------- SINGLE-INSTANCE PRE-FLIGHT ----------
	startPort := singleinstance.ResidentPorts().First
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("Pre-flight: port %d busy → overlay already running", startPort)
		return fmt.Errorf("overlay already running on port %d", startPort)
	}
	// We claimed the port; release it so the bridge can re-bind.
	_ = listener.Close()
	log.Printf("Pre-flight: port %d free", startPort)
	// -------------------------------------------------

	if display.Active() == 0 && cfg.ScreenWidth == 0 {
		return errors.New("no active display; the overlay cannot be drawn")
	}

	registry := icons.Default()
	if cfg.IconDir != "" {
		n, err := registry.LoadDir(cfg.IconDir)
		if err != nil {
			log.Printf("Icons: %v", err)
		}
		log.Printf("Icons: loaded %d from %s", n, cfg.IconDir)
	}

	b := bus.New()
	defer b.Close()

	screen := display.New(cfg.ScreenWidth, cfg.ScreenHeight)
	fyneApp := app.NewWithID("quicktools.overlay")
	canvas := fyneui.NewScreen(fyneApp, screen.Width(), screen.Height())

	var loop *eventloop.Loop
	bubble := fyneui.NewBubble(canvas, cfg.Px(cfg.BubbleSizeDP), func(p gesture.Phase, x, y float64) {
		loop.PostTouch(p, x, y)
	})
	menuSurface := fyneui.NewMenu(canvas, cfg.Px(cfg.MenuWidthDP), func(id string) {
		loop.PostToolTap(id)
	})

	ctl, err := overlay.New(overlay.Options{
		Store:        e.store,
		Bubble:       bubble,
		Menu:         menuSurface,
		Display:      screen,
		Icons:        registry,
		Events:       b,
		Config:       b,
		TapThreshold: cfg.Px(cfg.TapThresholdDP),
		MenuWidth:    cfg.Px(cfg.MenuWidthDP),
	})
	if err != nil {
		return err
	}

	srv := singleinstance.NewServer(b)
	defer srv.Close()
	loop = eventloop.New(ctl, srv)

	if err := loop.StartHotkey(cfg.Hotkey); err != nil {
		log.Printf("Hotkey disabled: %v", err)
	}
	defer hotkey.Stop()

	// Handle SIGINT/SIGTERM and window close the same way: tear down first,
	// then quit the UI.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	canvas.Window().SetCloseIntercept(cancel)

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx)
		fyneApp.Quit()
	}()

	log.Printf("Quick tools overlay started (hotkey %q)", cfg.Hotkey)
	canvas.Window().Show()
	fyneApp.Run()
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case <-time.After(teardownGrace):
		log.Printf("Overlay teardown timed out; clearing running flag")
		if err := e.store.SetRunning(false); err != nil {
			log.Printf("Overlay: %v", err)
		}
	}
	log.Printf("Quick tools overlay stopped")
	return nil
}
