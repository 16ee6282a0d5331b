package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"quick-tools-overlay/src/bus"
	"quick-tools-overlay/src/messages"
)

// useTestPorts points the range at a private port so tests do not collide
// with a real resident.
func useTestPorts(t *testing.T, port int) {
	t.Setenv(PortStartEnv, strconv.Itoa(port))
	t.Setenv(PortEndEnv, strconv.Itoa(port))
}

func startServer(t *testing.T, port int) (*Server, *bus.Bus, context.Context) {
	t.Helper()
	useTestPorts(t, port)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	b := bus.New()
	t.Cleanup(b.Close)
	srv := NewServer(b)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv, b, ctx
}

func TestResidentPorts(t *testing.T) {
	tests := []struct {
		start, end string
		wantStart  int
		wantEnd    int
	}{
		{"", "", defaultPortStart, defaultPortEnd},
		{"50000", "50010", 50000, 50010},
		{"80", "2000", 1024, 2000},
		{"60000", "70000", 60000, 65535},
		{"50010", "50000", 50000, 50010},
		{"abc", "", defaultPortStart, defaultPortEnd},
	}
	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			t.Setenv(PortStartEnv, tt.start)
			t.Setenv(PortEndEnv, tt.end)
			got := ResidentPorts()
			if got.First != tt.wantStart || got.Last != tt.wantEnd {
				t.Errorf("ResidentPorts() = %v, want %d-%d", got, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParseToolLine(t *testing.T) {
	for _, id := range []string{"notes", "with space", "new\nline", ""} {
		got, err := parseToolLine(toolLine(id))
		if err != nil || got != id {
			t.Errorf("parseToolLine(toolLine(%q)) = %q, %v", id, got, err)
		}
	}
	if _, err := parseToolLine("NOPE x\n"); err == nil {
		t.Error("Expected error for foreign line")
	}
}

func TestPingDetectsResident(t *testing.T) {
	srv, _, ctx := startServer(t, 49681)

	port, ok := NewClient().DetectResidentPort(ctx)
	if !ok || port != srv.Port() {
		t.Errorf("Expected resident on %d, got %d (%v)", srv.Port(), port, ok)
	}
}

func TestSecondServerCannotBind(t *testing.T) {
	_, _, ctx := startServer(t, 49682)

	other := NewServer(bus.New())
	if err := other.Start(ctx); err == nil {
		_ = other.Close()
		t.Fatal("Expected second server to fail to bind")
	}
}

func TestSendConfigPublishesToBus(t *testing.T) {
	_, b, ctx := startServer(t, 49683)
	sub, err := b.SubscribeConfiguration(messages.SenderOverlay)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	payload := `[{"id":"notes","label":"Notes\nline"}]`
	delegated, err := NewClient().SendConfig(ctx, payload)
	if err != nil || !delegated {
		t.Fatalf("SendConfig = %v, %v", delegated, err)
	}
	select {
	case env := <-sub.C():
		if env.Message.ToolListJSON != payload {
			t.Errorf("Expected %q, got %q", payload, env.Message.ToolListJSON)
		}
		if env.From != messages.SenderBridge {
			t.Errorf("Expected sender %q, got %q", messages.SenderBridge, env.From)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for configuration")
	}
}

func TestStopSignalsServer(t *testing.T) {
	srv, _, ctx := startServer(t, 49684)

	delegated, err := NewClient().Stop(ctx)
	if err != nil || !delegated {
		t.Fatalf("Stop = %v, %v", delegated, err)
	}
	select {
	case <-srv.StopRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop was not signalled")
	}
}

func TestEventsStreamsToolTaps(t *testing.T) {
	_, b, ctx := startServer(t, 49685)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ids := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		_, err := NewClient().Events(ctx, func(id string) { ids <- id })
		done <- err
	}()

	// Wait for the bridge subscription before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for len(b.Stats()["events"]) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, id := range []string{"qr", "clipboard"} {
		if err := b.PublishToolTapped(messages.ToolTapped{ToolID: id}); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"qr", "clipboard"} {
		select {
		case got := <-ids:
			if got != want {
				t.Errorf("Expected %q, got %q", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Events did not return after cancel")
	}
}

func TestUnknownCommandIsRejected(t *testing.T) {
	srv, _, _ := startServer(t, 49686)

	conn, err := net.DialTimeout("tcp", addrFor(srv.Port()), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	fmt.Fprint(conn, "HELLO\n")

	if _, err := readStatus(bufio.NewReader(conn)); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected, got %v", err)
	}
}

func TestOversizedConfigIsRejected(t *testing.T) {
	srv, _, _ := startServer(t, 49687)

	conn, err := net.DialTimeout("tcp", addrFor(srv.Port()), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	fmt.Fprintf(conn, "CONFIG %d\n", maxConfigBytes+1)

	if _, err := readStatus(bufio.NewReader(conn)); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected, got %v", err)
	}
}

func TestNoResident(t *testing.T) {
	useTestPorts(t, 49688)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := NewClient()

	if _, ok := c.DetectResidentPort(ctx); ok {
		t.Skip("something is listening on the test port")
	}
	if delegated, err := c.SendConfig(ctx, "[]"); delegated || err != nil {
		t.Errorf("SendConfig = %v, %v; want false, nil", delegated, err)
	}
	if delegated, err := c.Stop(ctx); delegated || err != nil {
		t.Errorf("Stop = %v, %v; want false, nil", delegated, err)
	}
	if delegated, err := c.Events(ctx, func(string) {}); delegated || err != nil {
		t.Errorf("Events = %v, %v; want false, nil", delegated, err)
	}
}
