// Package coordinator implements the Coordinator Service (C3): a TCP
// server that owns the authoritative registry of available workers and
// answers matchmaking queries from build clients. It is grounded on the
// teacher's api-coordinator/internal/tcpserver.Server, generalized from
// JSON-length-prefix framing to the little-endian binary wire protocol
// required by spec.md, and on original_source's
// FBuildCoordinator/Coordinator + FBuildCore/WorkerPool/
// WorkerConnectionPool for the exact message-handling contract.
package coordinator

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"fbroker/internal/protocol"
	"fbroker/internal/transport"
)

// ErrBind is returned by Start when the Coordinator's port is already in
// use (spec.md §4.3, §7 BindError).
var ErrBind = transport.ErrBind

// errUnhandledMessage guards against a future message kind being added to
// protocol.Message without a corresponding case here; it should be
// unreachable in practice, since the transport's own decoder already
// rejects unknown wire tags before onMessage is ever called.
var errUnhandledMessage = errors.New("coordinator: unhandled message type")

// EventSink receives registry churn notifications for observability
// mirrors (internal/registrymirror). It is never consulted for
// matchmaking decisions — the in-memory registry alone is authoritative.
type EventSink interface {
	WorkerJoined(address uint32, protocolVersion uint32, platform protocol.Platform)
	WorkerLeft(address uint32)
}

type noopEventSink struct{}

func (noopEventSink) WorkerJoined(uint32, uint32, protocol.Platform) {}
func (noopEventSink) WorkerLeft(uint32)                              {}

// Server is the Coordinator's TCP service. Its only meaningful state
// beyond "listening" is the registry (spec.md §4.3, "effectively a single
// state ... with a dynamically-sized registry as its data").
type Server struct {
	registry *registry
	pool     *transport.Pool
	sink     EventSink

	// present tracks, per connection, whether that connection currently
	// owns a registry entry, so onDisconnected knows whether to emit a
	// WorkerLeft event and can find the right address to remove even
	// after the socket is gone.
	mu      sync.Mutex
	present map[*transport.ConnectionInfo]bool
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithEventSink attaches an observability mirror. Optional; the default
// sink discards every event.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.sink = sink }
}

// NewServer creates a Coordinator with an empty registry.
func NewServer(opts ...Option) *Server {
	s := &Server{
		registry: newRegistry(),
		sink:     noopEventSink{},
		present:  make(map[*transport.ConnectionInfo]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = transport.NewPool(transport.Callbacks{
		OnMessage:      s.onMessage,
		OnDisconnected: s.onDisconnected,
	})
	return s
}

// Start binds addr and begins serving. It returns immediately once
// bound; the accept loop and per-connection handling continue in the
// background until Shutdown is called. Returns ErrBind if the port is
// already in use.
func (s *Server) Start(addr string) error {
	if err := s.pool.Listen(addr); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	return nil
}

// Shutdown closes the listener and every open connection, and blocks
// until their goroutines have exited.
func (s *Server) Shutdown() {
	s.pool.ShutdownAllConnections()
}

// WorkerCount reports the current registry size, for the supplemental
// status API only.
func (s *Server) WorkerCount() int {
	return s.registry.size()
}

// Addr returns the address the Coordinator is listening on, or nil
// before Start succeeds. Callers that bind to ":0" use this to discover
// the assigned port.
func (s *Server) Addr() net.Addr {
	return s.pool.ListenAddr()
}

func (s *Server) onMessage(ci *transport.ConnectionInfo, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.SetWorkerStatus:
		s.handleSetWorkerStatus(ci, m)
		return nil

	case protocol.RequestWorkerList:
		return s.handleRequestWorkerList(ci, m)

	default:
		return errUnhandledMessage
	}
}

// handleSetWorkerStatus implements spec.md §4.3: available=true inserts
// or refreshes (address, v, p) with the worker's values authoritative;
// available=false removes it, silently succeeding if absent (P1).
func (s *Server) handleSetWorkerStatus(ci *transport.ConnectionInfo, m protocol.SetWorkerStatus) {
	address := ci.RemoteAddress

	if m.Available {
		s.registry.upsert(address, m.ProtocolVersion, m.Platform)
		s.markPresent(ci, true)
		s.sink.WorkerJoined(address, m.ProtocolVersion, m.Platform)
		return
	}

	s.registry.remove(address)
	if s.markPresent(ci, false) {
		s.sink.WorkerLeft(address)
	}
}

// handleRequestWorkerList implements spec.md §4.3: snapshot the matching
// subset and reply with a single MsgWorkerList on the same connection.
// Loopback/self-exclusion is the client's job (§4.4), not ours — we
// return every match, including the requester's own address if it
// happens to also be registered.
func (s *Server) handleRequestWorkerList(ci *transport.ConnectionInfo, m protocol.RequestWorkerList) error {
	addrs := s.registry.matching(m.ProtocolVersion, m.Platform)
	return ci.Send(protocol.WorkerList{Addresses: addrs})
}

// onDisconnected resolves spec.md §9's disconnect-vs-explicit-withdraw
// open question in favor of removing the registry entry here too (see
// SPEC_FULL.md §4.3, §11): a crashed or killed worker should not linger
// in a soft-state registry forever.
func (s *Server) onDisconnected(ci *transport.ConnectionInfo) {
	if s.markPresent(ci, false) {
		s.registry.remove(ci.RemoteAddress)
		s.sink.WorkerLeft(ci.RemoteAddress)
	}
}

// markPresent records whether ci currently owns a registry entry and
// returns the previous value, so callers can tell whether this call is
// the one transitioning present -> absent.
func (s *Server) markPresent(ci *transport.ConnectionInfo, present bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.present[ci]
	if present {
		s.present[ci] = true
	} else {
		delete(s.present, ci)
	}
	return was
}
