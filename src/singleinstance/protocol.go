package singleinstance

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Line protocol spoken over 127.0.0.1. Every exchange starts with one
// command line from the client:
//
//	PING            -> PONG
//	CONFIG <n>      -> followed by n payload bytes; OK once published
//	STOP            -> OK, then the resident tears down
//	EVENTS          -> OK, then one TOOL line per tapped tool until closed
//
// Anything else is answered with "ERROR <message>".
const (
	residentHost = "127.0.0.1"

	cmdPing   = "PING"
	cmdConfig = "CONFIG"
	cmdStop   = "STOP"
	cmdEvents = "EVENTS"

	respPong  = "PONG"
	respOK    = "OK"
	respError = "ERROR"
	lineTool  = "TOOL"

	pingRequest  = cmdPing + "\n"
	pongResponse = respPong + "\n"

	// maxConfigBytes bounds a CONFIG payload.
	maxConfigBytes = 1 << 20
)

// Environment overrides for the resident port range, both inclusive.
const (
	PortStartEnv = "SINGLEINSTANCE_PORT_START"
	PortEndEnv   = "SINGLEINSTANCE_PORT_END"
)

const (
	defaultPortStart = 49600
	defaultPortEnd   = 49650
	lowestPort       = 1024
	highestPort      = 65535
)

// Ports is the loopback port range of the bridge. The resident binds First;
// clients scan First through Last.
type Ports struct {
	First, Last int
}

// ResidentPorts reads the range from the environment. Unparsable values keep
// the defaults, bounds are clamped to unprivileged ports, and a reversed
// range is swapped.
func ResidentPorts() Ports {
	p := Ports{
		First: max(envPort(PortStartEnv, defaultPortStart), lowestPort),
		Last:  min(envPort(PortEndEnv, defaultPortEnd), highestPort),
	}
	if p.Last < p.First {
		p.First, p.Last = p.Last, p.First
	}
	return p
}

func addrFor(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

func (p Ports) String() string { return fmt.Sprintf("%d-%d", p.First, p.Last) }

func envPort(name string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return n
}

// ErrRejected is returned when the resident answers with ERROR.
var ErrRejected = errors.New("resident rejected request")

func parseCommand(line string) (cmd, arg string) {
	line = strings.TrimRight(line, "\r\n")
	cmd, arg, _ = strings.Cut(line, " ")
	return cmd, strings.TrimSpace(arg)
}

func parseLength(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid length %q", arg)
	}
	if n > maxConfigBytes {
		return 0, fmt.Errorf("payload of %d bytes exceeds %d", n, maxConfigBytes)
	}
	return n, nil
}

// toolLine encodes an id quoted so that ids with spaces or newlines survive.
func toolLine(id string) string {
	return lineTool + " " + strconv.Quote(id) + "\n"
}

func parseToolLine(line string) (string, error) {
	cmd, arg := parseCommand(line)
	if cmd != lineTool {
		return "", fmt.Errorf("unexpected line %q", strings.TrimSpace(line))
	}
	return strconv.Unquote(arg)
}

// readStatus reads one response line and maps ERROR to ErrRejected.
func readStatus(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	status, msg := parseCommand(line)
	if status == respError {
		return "", fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return status, nil
}
