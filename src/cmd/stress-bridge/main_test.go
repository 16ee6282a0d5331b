package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.mode != "config" {
		t.Fatalf("Expected default mode=config, got %q", opts.mode)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--mode", "ping", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 || opts.mode != "ping" || opts.deadline != 7*time.Second {
		t.Fatalf("Unexpected options %+v", opts)
	}
}

func TestSenderModes(t *testing.T) {
	for _, mode := range []string{"config", "ping"} {
		if _, err := sender(mode); err != nil {
			t.Errorf("sender(%q) failed: %v", mode, err)
		}
	}
	if _, err := sender("bogus"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestRunWithOptionsCounts(t *testing.T) {
	results := []struct {
		delegated bool
		err       error
	}{{true, nil}, {false, nil}, {true, errors.New("reset")}}
	calls := make(chan int, 3)
	for n := 0; n < 3; n++ {
		calls <- n
	}
	send := func(context.Context) (bool, error) {
		r := results[<-calls]
		return r.delegated, r.err
	}

	c := runWithOptions(stressOptions{n: 3, deadline: time.Second}, send)
	if c.ok != 1 || c.absent != 1 || c.failed != 1 {
		t.Errorf("Expected 1/1/1, got %+v", c)
	}
}
