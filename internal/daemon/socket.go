package daemon

import (
	"bufio"
	"context"
	"net"
	"os"

	"go.uber.org/zap"
)

// Control commands accepted on the worker's Unix domain socket (spec §4.5,
// §9 resolved design decision — an fd-local alternative to signals that
// carries a payload-free command word per line).
const (
	CmdProcessNow = "PROCESS_NOW"
	CmdShutdown   = "SHUTDOWN"
)

// ControlServer listens on a Unix domain socket and dispatches newline
// terminated command words to a handler. One connection is expected per
// command; the server closes each connection after handling it.
type ControlServer struct {
	path     string
	log      *zap.Logger
	listener net.Listener
}

func NewControlServer(path string, log *zap.Logger) *ControlServer {
	return &ControlServer{path: path, log: log}
}

// Listen binds the socket, removing any stale file left by a crashed prior
// instance (spec §4.5: the daemon owns cleanup of its own socket path).
func (c *ControlServer) Listen() error {
	_ = os.Remove(c.path)
	l, err := net.Listen("unix", c.path)
	if err != nil {
		return err
	}
	c.listener = l
	return nil
}

// Serve blocks, dispatching each accepted connection's first line to
// onCommand, until ctx is cancelled or the listener is closed.
func (c *ControlServer) Serve(ctx context.Context, onCommand func(cmd string)) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				c.log.Warn("daemon: control socket accept failed", zap.Error(err))
				return
			}
		}
		go c.handle(conn, onCommand)
	}
}

func (c *ControlServer) handle(conn net.Conn, onCommand func(cmd string)) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	if scanner.Scan() {
		onCommand(scanner.Text())
	}
}

func (c *ControlServer) Close() error {
	if c.listener == nil {
		return nil
	}
	err := c.listener.Close()
	_ = os.Remove(c.path)
	return err
}

// SendCommand is the client half: connect, write one line, disconnect.
// Used by the MCP-side orchestrator to nudge a running worker without
// waiting for its next poll tick.
func SendCommand(socketPath, cmd string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte(cmd + "\n"))
	return err
}
