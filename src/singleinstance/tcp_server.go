package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"quick-tools-overlay/src/bus"
	"quick-tools-overlay/src/logutil"
	"quick-tools-overlay/src/messages"
)

const (
	handshakeTimeout = 3 * time.Second
	// eventWriteTimeout bounds each TOOL line; a client that stops reading
	// is disconnected.
	eventWriteTimeout = 2 * time.Second
)

// Server owns the resident port and bridges host processes onto the bus.
type Server struct {
	bus *bus.Bus

	mu     sync.Mutex
	lis    net.Listener
	port   int
	conns  map[net.Conn]struct{}
	closed bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer returns a server that publishes CONFIG payloads to b and streams
// b's ToolTapped messages to EVENTS clients.
func NewServer(b *bus.Bus) *Server {
	return &Server{
		bus:   b,
		conns: make(map[net.Conn]struct{}),
		stop:  make(chan struct{}),
	}
}

// Start binds ONLY the start port of the configured range. If occupied, fail:
// another resident owns it. The server closes when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	if s.closed {
		return errors.New("singleinstance: server closed")
	}
	ports := ResidentPorts()
	addr := addrFor(ports.First)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = ports.First
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return nil
}

// Port returns the bound port (0 if not started).
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// StopRequested is closed when a client sends STOP.
func (s *Server) StopRequested() <-chan struct{} { return s.stop }

// Close stops accepting and drops every open client connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.lis != nil {
		_ = s.lis.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
	return nil
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, c)
	}
	_ = c.Close()
}

func (s *Server) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		if !s.track(c) {
			_ = c.Close()
			return
		}
		go func() {
			defer s.untrack(c)
			s.handle(ctx, c)
		}()
	}
}

func (s *Server) handle(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, err := br.ReadString('\n')
	if err != nil {
		return
	}

	cmd, arg := parseCommand(line)
	switch cmd {
	case cmdPing:
		log.Printf("singleinstance: PING from %s -> PONG", remote)
		reply(bw, respPong)

	case cmdConfig:
		n, err := parseLength(arg)
		if err != nil {
			reply(bw, respError+" "+err.Error())
			return
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(br, payload); err != nil {
			reply(bw, respError+" short payload")
			return
		}
		if err := s.bus.PublishConfiguration(messages.SenderBridge, string(payload)); err != nil {
			log.Printf("singleinstance: publish configuration from %s: %v", remote, err)
			reply(bw, respError+" "+err.Error())
			return
		}
		log.Printf("singleinstance: CONFIG from %s (%d bytes)", remote, n)
		reply(bw, respOK)

	case cmdStop:
		log.Printf("singleinstance: STOP from %s", remote)
		reply(bw, respOK)
		s.stopOnce.Do(func() { close(s.stop) })

	case cmdEvents:
		_ = c.SetDeadline(time.Time{})
		s.streamEvents(ctx, c, br, bw)

	default:
		log.Printf("singleinstance: unknown command %q from %s", logutil.Sanitize(cmd), remote)
		reply(bw, respError+" unknown command")
	}
}

// streamEvents forwards ToolTapped messages until the client goes away, the
// bus closes or ctx is done.
func (s *Server) streamEvents(ctx context.Context, c net.Conn, br *bufio.Reader, bw *bufio.Writer) {
	sub, err := s.bus.SubscribeToolTapped(messages.SenderBridge + ":" + c.RemoteAddr().String())
	if err != nil {
		reply(bw, respError+" "+err.Error())
		return
	}
	defer sub.Unsubscribe()
	if !reply(bw, respOK) {
		return
	}
	log.Printf("singleinstance: streaming events to %s", c.RemoteAddr())

	// The client never writes after EVENTS; a read returning means it left.
	gone := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, br)
		close(gone)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if _, err := bw.WriteString(toolLine(env.Message.ToolID)); err != nil {
				return
			}
			if err := bw.Flush(); err != nil {
				log.Printf("singleinstance: dropping events client %s: %v", c.RemoteAddr(), err)
				return
			}
		}
	}
}

func reply(bw *bufio.Writer, line string) bool {
	if _, err := bw.WriteString(line + "\n"); err != nil {
		return false
	}
	return bw.Flush() == nil
}
