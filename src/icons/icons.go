package icons

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Registry maps icon keys from tool configuration to renderable resources.
// Unknown or empty keys resolve to the placeholder. Populate it before handing
// it to the menu builder; it is not guarded for concurrent writes.
type Registry struct {
	byKey       map[string]fyne.Resource
	placeholder fyne.Resource
}

// NewRegistry returns an empty registry with the given placeholder.
func NewRegistry(placeholder fyne.Resource) *Registry {
	return &Registry{byKey: make(map[string]fyne.Resource), placeholder: placeholder}
}

// Default returns a registry of built-in theme icons for the stock tool keys.
func Default() *Registry {
	r := NewRegistry(theme.QuestionIcon())
	r.Register("ic_notes", theme.DocumentIcon())
	r.Register("ic_qr", theme.GridIcon())
	r.Register("ic_clipboard", theme.ContentPasteIcon())
	r.Register("ic_copy", theme.ContentCopyIcon())
	r.Register("ic_search", theme.SearchIcon())
	r.Register("ic_settings", theme.SettingsIcon())
	r.Register("ic_camera", theme.MediaPhotoIcon())
	r.Register("ic_mail", theme.MailComposeIcon())
	r.Register("ic_home", theme.HomeIcon())
	r.Register("ic_info", theme.InfoIcon())
	return r
}

// Register binds key to res, replacing any previous binding.
func (r *Registry) Register(key string, res fyne.Resource) {
	if key == "" || res == nil {
		return
	}
	r.byKey[key] = res
}

// Lookup resolves key. ok is false for empty or unknown keys.
func (r *Registry) Lookup(key string) (fyne.Resource, bool) {
	if key == "" {
		return nil, false
	}
	res, ok := r.byKey[key]
	return res, ok
}

// Placeholder returns the fallback resource.
func (r *Registry) Placeholder() fyne.Resource { return r.placeholder }

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var loadableExt = map[string]bool{".png": true, ".svg": true, ".jpg": true, ".jpeg": true}

// LoadDir registers every image file in dir under its base name without
// extension (ic_notes.svg -> ic_notes). Files that fail to load are logged and
// skipped. It returns the number of icons registered.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("icons: read %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !loadableExt[ext] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		res, err := fyne.LoadResourceFromPath(path)
		if err != nil {
			log.Printf("icons: skip %s: %v", path, err)
			continue
		}
		r.Register(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), res)
		n++
	}
	return n, nil
}
