package coordinator

import (
	"net"
	"testing"
	"time"

	"fbroker/internal/protocol"
)

// dialAndSetStatus opens a TCP connection to addr, sends SetWorkerStatus,
// and returns the open connection (left open so the coordinator keeps
// treating the worker as present, mirroring a real long-lived worker
// connection).
func dialAndSetStatus(t *testing.T, addr string, msg protocol.SetWorkerStatus) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := protocol.WriteMessage(conn, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	return conn
}

func requestWorkerList(t *testing.T, addr string, v uint32, p protocol.Platform) []uint32 {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := protocol.WriteMessage(conn, protocol.RequestWorkerList{ProtocolVersion: v, Platform: p}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	list, ok := msg.(protocol.WorkerList)
	if !ok {
		t.Fatalf("got %T, want WorkerList", msg)
	}
	return list.Addresses
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer()
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func serverAddr(t *testing.T, s *Server) string {
	t.Helper()
	return s.pool.ListenAddr().String()
}

func contains(addrs []uint32, want uint32) bool {
	for _, a := range addrs {
		if a == want {
			return true
		}
	}
	return false
}

// waitForCount polls the registry until it reaches n or the timeout
// expires, since SetWorkerStatus is processed asynchronously by the
// server's connection goroutine.
func waitForCount(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.WorkerCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("registry never reached size %d (stuck at %d)", n, s.WorkerCount())
}

func TestRegistrationIdempotence(t *testing.T) {
	s := startServer(t)
	addr := serverAddr(t, s)

	conn := dialAndSetStatus(t, addr, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 42, Platform: protocol.PlatformLinux})
	defer conn.Close()

	for i := 0; i < 3; i++ {
		if err := protocol.WriteMessage(conn, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 42, Platform: protocol.PlatformLinux}); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	waitForCount(t, s, 1)
	if got := s.WorkerCount(); got != 1 {
		t.Fatalf("got %d entries, want 1", got)
	}
}

func TestMatchmakingFilter(t *testing.T) {
	s := startServer(t)
	addr := serverAddr(t, s)

	w1 := dialAndSetStatus(t, addr, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 42, Platform: protocol.PlatformLinux})
	defer w1.Close()
	// The registry is keyed by peer address, so w2 dials from a second
	// loopback address to count as a distinct worker.
	dialer := net.Dialer{LocalAddr: &net.TCPAddr{IP: net.ParseIP("127.0.0.2")}}
	w2, err := dialer.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial from 127.0.0.2: %v", err)
	}
	defer w2.Close()
	if err := protocol.WriteMessage(w2, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 42, Platform: protocol.PlatformWindows}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	waitForCount(t, s, 2)

	linuxAddrs := requestWorkerList(t, addr, 42, protocol.PlatformLinux)
	if len(linuxAddrs) != 1 {
		t.Fatalf("got %d linux workers, want 1", len(linuxAddrs))
	}

	otherVersion := requestWorkerList(t, addr, 43, protocol.PlatformLinux)
	if len(otherVersion) != 0 {
		t.Fatalf("got %d workers for mismatched version, want 0", len(otherVersion))
	}
}

func TestWithdrawRemovesEntry(t *testing.T) {
	s := startServer(t)
	addr := serverAddr(t, s)

	conn := dialAndSetStatus(t, addr, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 1, Platform: protocol.PlatformLinux})
	waitForCount(t, s, 1)

	if err := protocol.WriteMessage(conn, protocol.SetWorkerStatus{Available: false}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	waitForCount(t, s, 0)
	conn.Close()
}

func TestDisconnectRemovesEntry(t *testing.T) {
	s := startServer(t)
	addr := serverAddr(t, s)

	conn := dialAndSetStatus(t, addr, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 1, Platform: protocol.PlatformLinux})
	waitForCount(t, s, 1)

	conn.Close()
	waitForCount(t, s, 0)
}

func TestUnknownMessageDisconnectsWithoutRegistryChange(t *testing.T) {
	s := startServer(t)
	addr := serverAddr(t, s)

	dialAndSetStatus(t, addr, protocol.SetWorkerStatus{Available: true, ProtocolVersion: 1, Platform: protocol.PlatformLinux})
	waitForCount(t, s, 1)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte{0xFF}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	// registry unchanged (still 1: the *other* worker connection).
	time.Sleep(50 * time.Millisecond)
	if got := s.WorkerCount(); got != 1 {
		t.Fatalf("got %d entries after unknown message, want 1", got)
	}
}

func TestBindErrorOnPortInUse(t *testing.T) {
	first := NewServer()
	if err := first.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Shutdown()

	addr := serverAddr(t, first)

	second := NewServer()
	err := second.Start(addr)
	if err == nil {
		second.Shutdown()
		t.Fatal("expected bind error on already-used port")
	}
}
