package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// Namespace is the directory (under the store base path) holding the keys.
const Namespace = "overlay_prefs"

// Keys of the persisted layout.
const (
	KeyLastX        = "last_x"
	KeyLastY        = "last_y"
	KeyToolListJSON = "tool_list_json"
	KeyRunning      = "running"
)

// backend is the minimal byte store; *diskv.Diskv satisfies it.
type backend interface {
	Read(key string) ([]byte, error)
	Write(key string, val []byte) error
	Has(key string) bool
}

// Store is the durable key-value state shared by the overlay and the host.
// The overlay writes last_x, last_y and running; the host writes
// tool_list_json (the overlay also persists updates it receives).
type Store struct {
	b   backend
	dir string
}

// Open returns a Store persisted under baseDir/overlay_prefs.
func Open(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("prefs: base directory required")
	}
	dir := filepath.Join(baseDir, Namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prefs: ensure %s: %w", dir, err)
	}
	tmp := filepath.Join(baseDir, ".overlay_prefs_tmp")
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("prefs: ensure %s: %w", tmp, err)
	}
	d := diskv.New(diskv.Options{
		BasePath: dir,
		TempDir:  tmp,
		// The host and the overlay are separate processes writing different
		// keys; an in-process cache would hide the other side's writes.
		CacheSizeMax: 0,
	})
	return &Store{b: d, dir: dir}, nil
}

// NewMemory returns a Store kept only in process memory.
func NewMemory() *Store {
	return &Store{b: &memory{data: make(map[string][]byte)}}
}

// Dir returns the on-disk directory, or "" for memory stores.
func (s *Store) Dir() string { return s.dir }

// Position returns the last persisted bubble position.
func (s *Store) Position() (x, y int, ok bool) {
	x, okX := s.readInt(KeyLastX)
	y, okY := s.readInt(KeyLastY)
	if !okX || !okY {
		return 0, 0, false
	}
	return x, y, true
}

// SetPosition persists the bubble position.
func (s *Store) SetPosition(x, y int) error {
	if err := s.write(KeyLastX, strconv.Itoa(x)); err != nil {
		return err
	}
	return s.write(KeyLastY, strconv.Itoa(y))
}

// ToolListJSON returns the persisted tool list payload, if any.
func (s *Store) ToolListJSON() (string, bool) {
	if !s.b.Has(KeyToolListJSON) {
		return "", false
	}
	v, err := s.b.Read(KeyToolListJSON)
	if err != nil {
		log.Printf("prefs: read %s: %v", KeyToolListJSON, err)
		return "", false
	}
	return string(v), true
}

// SetToolListJSON persists a tool list payload as given.
func (s *Store) SetToolListJSON(payload string) error {
	return s.write(KeyToolListJSON, payload)
}

// Running returns the persisted running flag (false when absent).
func (s *Store) Running() bool {
	v, err := s.b.Read(KeyRunning)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("prefs: read %s: %v", KeyRunning, err)
		}
		return false
	}
	running, err := strconv.ParseBool(strings.TrimSpace(string(v)))
	return err == nil && running
}

// SetRunning persists the running flag.
func (s *Store) SetRunning(running bool) error {
	return s.write(KeyRunning, strconv.FormatBool(running))
}

func (s *Store) readInt(key string) (int, bool) {
	v, err := s.b.Read(key)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(v)))
	if err != nil {
		log.Printf("prefs: ignoring non-integer %s=%q", key, v)
		return 0, false
	}
	return n, true
}

func (s *Store) write(key, value string) error {
	if err := s.b.Write(key, []byte(value)); err != nil {
		return fmt.Errorf("prefs: write %s: %w", key, err)
	}
	return nil
}

type memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (m *memory) Read(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: key, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memory) Write(key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(val))
	copy(v, val)
	m.data[key] = v
	return nil
}

func (m *memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}
