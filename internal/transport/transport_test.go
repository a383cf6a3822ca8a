package transport

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"fbroker/internal/protocol"
)

func listenerPort(t *testing.T, p *Pool) int {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		t.Fatal("pool has no listener")
	}
	return p.listener.Addr().(*net.TCPAddr).Port
}

func TestConnectAndExchangeMessage(t *testing.T) {
	received := make(chan protocol.Message, 1)

	server := NewPool(Callbacks{
		OnMessage: func(ci *ConnectionInfo, msg protocol.Message) error {
			received <- msg
			return ci.Send(protocol.WorkerList{Addresses: []uint32{0x0100000A}})
		},
	})
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.ShutdownAllConnections()

	clientReply := make(chan protocol.Message, 1)
	client := NewPool(Callbacks{
		OnMessage: func(_ *ConnectionInfo, msg protocol.Message) error {
			clientReply <- msg
			return nil
		},
	})
	defer client.ShutdownAllConnections()

	conn, err := client.Connect("127.0.0.1", listenerPort(t, server), 2*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	want := protocol.RequestWorkerList{ProtocolVersion: 1, Platform: protocol.PlatformLinux}
	if err := conn.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Fatalf("server got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive message")
	}

	select {
	case got := <-clientReply:
		list, ok := got.(protocol.WorkerList)
		if !ok || len(list.Addresses) != 1 {
			t.Fatalf("client got %+v, want a 1-address WorkerList", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client to receive reply")
	}
}

func TestUnknownMessageDisconnects(t *testing.T) {
	var disconnected sync.WaitGroup
	disconnected.Add(1)

	server := NewPool(Callbacks{
		OnDisconnected: func(*ConnectionInfo) { disconnected.Done() },
	})
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.ShutdownAllConnections()

	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(listenerPort(t, server)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer raw.Close()

	if _, err := raw.Write([]byte{0xFF}); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan struct{})
	go func() {
		disconnected.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not disconnect the offending peer")
	}
}
