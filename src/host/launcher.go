package host

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/execabs"
)

// SelfLauncher re-executes the running binary with the given arguments,
// detached from the caller.
type SelfLauncher struct {
	// Executable overrides os.Executable, mainly for tests.
	Executable string
}

func (l SelfLauncher) Launch(args ...string) error {
	exe := l.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
	}
	cmd := execabs.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// SystemOpener opens the platform settings page relevant to overlays and
// global input.
type SystemOpener struct{}

// ErrNoSettingsSurface is returned when the platform has no known settings command.
var ErrNoSettingsSurface = errors.New("no settings surface for this platform")

func (SystemOpener) OpenSettings() error {
	name, args, ok := settingsCommand(runtime.GOOS)
	if !ok {
		return ErrNoSettingsSurface
	}
	if _, err := execabs.LookPath(name); err != nil {
		return fmt.Errorf("%w: %v", ErrNoSettingsSurface, err)
	}
	cmd := execabs.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	return cmd.Process.Release()
}

func settingsCommand(goos string) (string, []string, bool) {
	switch goos {
	case "darwin":
		return "open", []string{"x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"}, true
	case "windows":
		return "cmd", []string{"/c", "start", "", "ms-settings:display"}, true
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{"settings://display"}, true
	}
	return "", nil, false
}
