package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Client talks to a resident overlay. Every method reports delegated=false
// with a nil error when no resident answers.
type Client struct {
	timeout time.Duration
}

// NewClient returns a client with a 2s per-request timeout.
func NewClient() *Client { return &Client{timeout: 2 * time.Second} }

func (c *Client) deadline(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < c.timeout {
			return d
		}
	}
	return c.timeout
}

// DetectResidentPort scans the port range and returns (port, true) if a resident responds to PING.
func (c *Client) DetectResidentPort(ctx context.Context) (int, bool) {
	timeout := 300 * time.Millisecond
	if d := c.deadline(ctx); d < timeout {
		timeout = d
	}
	ports := ResidentPorts()
	for port := ports.First; port <= ports.Last; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(addrFor(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

// SendConfig delivers a tool list payload to the resident's bus.
func (c *Client) SendConfig(ctx context.Context, payload string) (bool, error) {
	body := []byte(payload)
	head := cmdConfig + " " + strconv.Itoa(len(body)) + "\n"
	return c.oneShot(ctx, append([]byte(head), body...))
}

// Stop asks the resident to tear down and exit.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	return c.oneShot(ctx, []byte(cmdStop+"\n"))
}

func (c *Client) oneShot(ctx context.Context, request []byte) (bool, error) {
	port, ok := c.DetectResidentPort(ctx)
	if !ok {
		return false, nil
	}
	timeout := c.deadline(ctx)
	conn, err := net.DialTimeout("tcp", addrFor(port), timeout)
	if err != nil {
		return false, nil
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(request); err != nil {
		return true, err
	}
	status, err := readStatus(bufio.NewReader(conn))
	if err != nil {
		return true, err
	}
	if status != respOK {
		return true, fmt.Errorf("singleinstance: unexpected response %q", status)
	}
	return true, nil
}

// Events streams tapped tool ids to fn until ctx is done or the resident
// closes the stream. It returns delegated=false when no resident runs.
func (c *Client) Events(ctx context.Context, fn func(id string)) (bool, error) {
	port, ok := c.DetectResidentPort(ctx)
	if !ok {
		return false, nil
	}
	conn, err := net.DialTimeout("tcp", addrFor(port), c.deadline(ctx))
	if err != nil {
		return false, nil
	}
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if _, err := conn.Write([]byte(cmdEvents + "\n")); err != nil {
		return true, err
	}
	br := bufio.NewReader(conn)
	status, err := readStatus(br)
	if err != nil {
		return true, err
	}
	if status != respOK {
		return true, fmt.Errorf("singleinstance: unexpected response %q", status)
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			return true, nil
		}
		id, err := parseToolLine(line)
		if err != nil {
			return true, fmt.Errorf("singleinstance: %w", err)
		}
		fn(id)
	}
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		return false
	}
	br := bufio.NewReader(conn)
	resp, err := br.ReadString('\n')
	return err == nil && resp == pongResponse
}
