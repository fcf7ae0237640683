package statuslistener

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/logging"
	"github.com/tomtom215/procsupervisor/internal/task"
)

// Listener binds a UDP socket and merges incoming datagrams into exec.
// It implements suture.Service (Serve(ctx) error) so it can run as one
// of the supervisor tree's concurrent helpers.
type Listener struct {
	port     int
	maxBytes int
	exec     *task.Execution
	clock    clock.Clock

	dropped atomic.Int64

	conn   *net.UDPConn
	connCh chan *net.UDPConn
}

// New builds a Listener bound to port, with
// maxBytes the largest datagram accepted before it is dropped (default
// 65536).
func New(port, maxBytes int, exec *task.Execution, clk clock.Clock) *Listener {
	return &Listener{port: port, maxBytes: maxBytes, exec: exec, clock: clk, connCh: make(chan *net.UDPConn, 1)}
}

// Dropped reports the number of datagrams discarded for being oversized
// or malformed.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// Addr blocks until the listener has bound its socket and returns the
// address it bound to (useful in tests that bind to port 0).
func (l *Listener) Addr(ctx context.Context) (*net.UDPAddr, error) {
	select {
	case conn := <-l.connCh:
		l.connCh <- conn
		return conn.LocalAddr().(*net.UDPAddr), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve binds the socket and merges datagrams into exec until ctx is
// canceled.
func (l *Listener) Serve(ctx context.Context) error {
	addr := &net.UDPAddr{Port: l.port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("statuslistener: listen on port %d: %w", l.port, err)
	}
	defer conn.Close()
	l.connCh <- conn

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	buf := make([]byte, l.maxBytes+1)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("statuslistener: read: %w", err)
		}
		if n > l.maxBytes {
			l.dropped.Add(1)
			logging.WithComponent("status_listener").Debug().Int("bytes", n).Int("max_bytes", l.maxBytes).Msg("dropped oversized datagram")
			continue
		}
		l.handleDatagram(buf[:n])
	}
}

func (l *Listener) handleDatagram(data []byte) {
	var update task.StatusUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		l.dropped.Add(1)
		logging.WithComponent("status_listener").Debug().Err(err).Msg("dropped malformed datagram")
		return
	}
	l.exec.MergeStatusUpdate(update, l.clock.Now())
}
