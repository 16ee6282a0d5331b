package hotkey

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	gohook "github.com/robotn/gohook"
)

// repeatGuard swallows auto-repeat KeyDown events of a held combination.
const repeatGuard = 300 * time.Millisecond

var (
	mu      sync.Mutex
	running bool
)

// Listen registers combo (for example "Ctrl+Alt+Space") as a global hotkey
// and starts the hook. callback runs on the hook goroutine and must not block.
func Listen(combo string, callback func()) error {
	keys, err := Parse(combo)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if running {
		return errors.New("hotkey: listener already running")
	}

	var last time.Time
	gohook.Register(gohook.KeyDown, keys, func(gohook.Event) {
		now := time.Now()
		if now.Sub(last) < repeatGuard {
			return
		}
		last = now
		log.Printf("Hotkey %s activated", combo)
		if callback != nil {
			callback()
		}
	})

	evChan := gohook.Start()
	if evChan == nil {
		return errors.New("hotkey: gohook.Start returned nil channel")
	}
	running = true
	log.Printf("Hotkey listener configured for: %s %v", combo, keys)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()
		<-gohook.Process(evChan)
		log.Printf("Hotkey event channel closed")
	}()
	return nil
}

// Stop ends the hook started by Listen. It is a no-op when not running.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if !running {
		return
	}
	gohook.End()
	running = false
}

// Parse converts a combination like "Ctrl+Alt+q" into gohook key names.
func Parse(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, errors.New("hotkey: empty combination")
	}
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		name, ok := keyName(strings.TrimSpace(part))
		if !ok {
			return nil, fmt.Errorf("hotkey: unknown key %q in %q", part, combo)
		}
		keys = append(keys, name)
	}
	return keys, nil
}

var aliases = map[string]string{
	"control": "ctrl",
	"option":  "alt",
	"win":     "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"return":  "enter",
	"escape":  "esc",
	"del":     "delete",
	"ins":     "insert",
	"pgup":    "pageup",
	"pgdn":    "pagedown",
}

var named = map[string]bool{
	"ctrl": true, "alt": true, "shift": true, "cmd": true,
	"space": true, "enter": true, "esc": true, "tab": true,
	"backspace": true, "delete": true, "insert": true,
	"home": true, "end": true, "pageup": true, "pagedown": true,
	"left": true, "up": true, "right": true, "down": true,
}

func keyName(part string) (string, bool) {
	if alias, ok := aliases[part]; ok {
		part = alias
	}
	switch {
	case named[part]:
		return part, true
	case len(part) == 1 && (part[0] >= 'a' && part[0] <= 'z' || part[0] >= '0' && part[0] <= '9'):
		return part, true
	case isFunctionKey(part):
		return part, true
	}
	return "", false
}

func isFunctionKey(part string) bool {
	if len(part) < 2 || part[0] != 'f' {
		return false
	}
	var n int
	if _, err := fmt.Sscanf(part[1:], "%d", &n); err != nil {
		return false
	}
	return fmt.Sprintf("f%d", n) == part && n >= 1 && n <= 24
}
