package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func stores(t *testing.T) map[string]func() *Store {
	return map[string]func() *Store{
		"memory": NewMemory,
		"disk": func() *Store {
			s, err := Open(t.TempDir())
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			return s
		},
	}
}

func TestEmptyStore(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			if _, _, ok := s.Position(); ok {
				t.Error("Expected no position")
			}
			if _, ok := s.ToolListJSON(); ok {
				t.Error("Expected no tool list")
			}
			if s.Running() {
				t.Error("Expected running=false")
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			if err := s.SetPosition(-12, 340); err != nil {
				t.Fatalf("SetPosition failed: %v", err)
			}
			if err := s.SetToolListJSON(`[{"id":"a"}]`); err != nil {
				t.Fatalf("SetToolListJSON failed: %v", err)
			}
			if err := s.SetRunning(true); err != nil {
				t.Fatalf("SetRunning failed: %v", err)
			}

			x, y, ok := s.Position()
			if !ok || x != -12 || y != 340 {
				t.Errorf("Expected (-12,340), got (%d,%d) ok=%v", x, y, ok)
			}
			if v, ok := s.ToolListJSON(); !ok || v != `[{"id":"a"}]` {
				t.Errorf("Expected tool list, got %q ok=%v", v, ok)
			}
			if !s.Running() {
				t.Error("Expected running=true")
			}
			if err := s.SetRunning(false); err != nil {
				t.Fatalf("SetRunning failed: %v", err)
			}
			if s.Running() {
				t.Error("Expected running=false")
			}
		})
	}
}

func TestEmptyToolListIsStillPresent(t *testing.T) {
	s := NewMemory()
	if err := s.SetToolListJSON(""); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.ToolListJSON(); !ok || v != "" {
		t.Fatalf("Expected present empty payload, got %q ok=%v", v, ok)
	}
}

func TestDiskLayoutAndReopen(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetPosition(5, 6); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(base, Namespace, KeyLastX))
	if err != nil {
		t.Fatalf("Expected %s file: %v", KeyLastX, err)
	}
	if string(b) != "5" {
		t.Fatalf("Expected stored value 5, got %q", b)
	}

	reopened, err := Open(base)
	if err != nil {
		t.Fatal(err)
	}
	if x, y, ok := reopened.Position(); !ok || x != 5 || y != 6 {
		t.Fatalf("Expected (5,6) after reopen, got (%d,%d) ok=%v", x, y, ok)
	}
}

func TestCorruptPositionIgnored(t *testing.T) {
	base := t.TempDir()
	s, _ := Open(base)
	if err := os.WriteFile(filepath.Join(base, Namespace, KeyLastX), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = s.write(KeyLastY, "1")
	if _, _, ok := s.Position(); ok {
		t.Fatal("Expected corrupt position to be ignored")
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("Expected error for empty base dir")
	}
}
