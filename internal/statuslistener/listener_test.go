package statuslistener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/task"
)

func startListener(t *testing.T, maxBytes int) (*Listener, *net.UDPAddr, func()) {
	t.Helper()
	exec := task.NewExecution()
	l := New(0, maxBytes, exec, clock.System{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Serve(ctx) }()

	addr, err := l.Addr(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Addr: %v", err)
	}
	return l, addr, func() {
		cancel()
		<-errCh
	}
}

func send(t *testing.T, addr *net.UDPAddr, payload string) {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestListenerMergesSuccessCountMaxWins(t *testing.T) {
	t.Parallel()

	exec := task.NewExecution()
	l := New(0, 65536, exec, clock.System{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Serve(ctx) }()
	addr, err := l.Addr(ctx)
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}

	send(t, addr, `{"success_count":1}`)
	send(t, addr, `{"success_count":3}`)
	send(t, addr, `{"last_status_message":"done"}`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := exec.Snapshot()
		if snap.Counts.Success == 3 && snap.LastStatusMessage == "done" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := exec.Snapshot()
	if snap.Counts.Success != 3 {
		t.Errorf("expected success_count 3, got %d", snap.Counts.Success)
	}
	if snap.LastStatusMessage != "done" {
		t.Errorf("expected last_status_message done, got %q", snap.LastStatusMessage)
	}

	cancel()
	<-errCh
}

func TestListenerDropsOversizedDatagram(t *testing.T) {
	t.Parallel()

	l, addr, stop := startListener(t, 8)
	defer stop()

	send(t, addr, `{"success_count":999999}`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && l.Dropped() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if l.Dropped() == 0 {
		t.Error("expected oversized datagram to be counted as dropped")
	}
}

func TestListenerDropsMalformedJSON(t *testing.T) {
	t.Parallel()

	l, addr, stop := startListener(t, 65536)
	defer stop()

	send(t, addr, `not json`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && l.Dropped() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if l.Dropped() == 0 {
		t.Error("expected malformed datagram to be counted as dropped")
	}
}
