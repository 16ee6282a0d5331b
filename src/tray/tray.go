package tray

import (
	"context"
	"log"
	"time"

	"github.com/getlantern/systray"
)

const statusRefresh = 2 * time.Second

// Actions are the host commands the tray menu drives.
type Actions interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) (string, error)
	RequestPermission() error
	QueryPermission() bool
	QueryRunning() bool
}

// Run shows the tray and blocks until Quit is chosen or ctx is done.
// It must be called from the main goroutine.
func Run(ctx context.Context, actions Actions) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	systray.Run(func() { onReady(ctx, cancel, actions) }, func() {
		log.Printf("tray: exited")
	})
}

// UpdateTooltip sets the tray tooltip.
func UpdateTooltip(text string) {
	systray.SetTooltip(text)
}

func onReady(ctx context.Context, cancel context.CancelFunc, actions Actions) {
	systray.SetIcon(Icon())
	systray.SetTitle("Quick Tools")
	UpdateTooltip("Quick Tools")

	mStatus := systray.AddMenuItem(statusText(actions.QueryRunning()), "Overlay status")
	mStatus.Disable()
	systray.AddSeparator()
	mStart := systray.AddMenuItem("Start overlay", "Show the floating bubble")
	mStop := systray.AddMenuItem("Stop overlay", "Remove the floating bubble")
	mPermission := systray.AddMenuItem("Permissions...", "Open system settings")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the tray")

	refresh := func() {
		running := actions.QueryRunning()
		mStatus.SetTitle(statusText(running))
		if running {
			mStart.Disable()
			mStop.Enable()
		} else {
			mStart.Enable()
			mStop.Disable()
		}
		if !actions.QueryPermission() {
			mStart.Disable()
			mStatus.SetTitle("No display available")
		}
	}
	refresh()

	go func() {
		ticker := time.NewTicker(statusRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				systray.Quit()
				return
			case <-ticker.C:
				refresh()
			case <-mStart.ClickedCh:
				run(ctx, "start", actions.Start)
				refresh()
			case <-mStop.ClickedCh:
				run(ctx, "stop", actions.Stop)
				refresh()
			case <-mPermission.ClickedCh:
				if err := actions.RequestPermission(); err != nil {
					log.Printf("tray: request permission: %v", err)
				}
			case <-mQuit.ClickedCh:
				cancel()
			}
		}
	}()
}

func run(ctx context.Context, name string, cmd func(context.Context) (string, error)) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ack, err := cmd(cctx)
	if err != nil {
		log.Printf("tray: %s: %v", name, err)
		UpdateTooltip("Quick Tools: " + name + " failed")
		return
	}
	log.Printf("tray: %s", ack)
	UpdateTooltip("Quick Tools: " + ack)
}

func statusText(running bool) string {
	if running {
		return "Overlay: running"
	}
	return "Overlay: stopped"
}
