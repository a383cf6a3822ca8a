package brokerage

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"fbroker/internal/protocol"
	"fbroker/internal/transport"
)

// dialTimeout is the fixed 2000ms timeout named by spec.md §4.4/§5 for
// every coordinator-transport dial.
const dialTimeout = 2000 * time.Millisecond

// coordinatorTransport is the coordinator-branch half of a Client: one
// short-lived TCP connection per operation, dialed against
// FASTBUILD_COORDINATOR. Replies to RequestWorkerList are routed back to
// the calling goroutine through a request ID stashed in the connection's
// user-data slot and looked up in pending — the typed, generational
// stand-in for the reference's raw per-connection user pointer called for
// by SPEC_FULL.md §4.4/§9.
type coordinatorTransport struct {
	host string
	port int

	pool *transport.Pool

	mu      sync.Mutex
	pending map[uuid.UUID]chan protocol.WorkerList
}

func newCoordinatorTransport(addr string) (*coordinatorTransport, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ct := &coordinatorTransport{
		host:    host,
		port:    port,
		pending: make(map[uuid.UUID]chan protocol.WorkerList),
	}
	ct.pool = transport.NewPool(transport.Callbacks{OnMessage: ct.onMessage})
	return ct, nil
}

// splitHostPort accepts "host" or "host:port", defaulting to the
// well-known coordinator port when none is given.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// no port present at all
		return addr, protocol.CoordinatorPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("brokerage: invalid coordinator port %q: %w", portStr, err)
	}
	return host, port, nil
}

func (ct *coordinatorTransport) onMessage(ci *transport.ConnectionInfo, msg protocol.Message) error {
	list, ok := msg.(protocol.WorkerList)
	if !ok {
		return nil
	}
	id, ok := ci.UserData().(uuid.UUID)
	if !ok {
		return nil
	}

	ct.mu.Lock()
	ch, ok := ct.pending[id]
	delete(ct.pending, id)
	ct.mu.Unlock()

	if ok {
		ch <- list
	}
	return nil
}

// requestWorkerList dials, sends MSG_REQUEST_WORKER_LIST, and blocks for
// the matching MSG_WORKER_LIST reply via explicit channel signaling
// (spec.md §9's "replace with explicit signaling"), bounded by ctx and
// the dial timeout.
func (ct *coordinatorTransport) requestWorkerList(ctx context.Context, version uint32, platform protocol.Platform) ([]uint32, error) {
	ci, err := ct.pool.Connect(ct.host, ct.port, dialTimeout)
	if err != nil {
		return nil, err
	}
	defer ct.pool.Disconnect(ci)

	id := uuid.New()
	replyCh := make(chan protocol.WorkerList, 1)

	ct.mu.Lock()
	ct.pending[id] = replyCh
	ct.mu.Unlock()
	defer func() {
		ct.mu.Lock()
		delete(ct.pending, id)
		ct.mu.Unlock()
	}()

	ci.SetUserData(id)

	if err := ci.Send(protocol.RequestWorkerList{ProtocolVersion: version, Platform: platform}); err != nil {
		return nil, err
	}

	select {
	case list := <-replyCh:
		return list.Addresses, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(dialTimeout):
		return nil, fmt.Errorf("brokerage: timed out waiting for worker list reply")
	}
}

// setStatus dials, sends MSG_SET_WORKER_STATUS, and disconnects without
// awaiting a reply — the coordinator never answers this message.
func (ct *coordinatorTransport) setStatus(available bool, version uint32, platform protocol.Platform) error {
	ci, err := ct.pool.Connect(ct.host, ct.port, dialTimeout)
	if err != nil {
		return err
	}
	defer ct.pool.Disconnect(ci)

	return ci.Send(protocol.SetWorkerStatus{Available: available, ProtocolVersion: version, Platform: platform})
}

// close shuts down every outstanding connection this transport ever
// opened, honoring SPEC_FULL.md §9's ownership-order note: the pool is
// always torn down before the Client that owns it is discarded.
func (ct *coordinatorTransport) close() {
	ct.pool.ShutdownAllConnections()
}
