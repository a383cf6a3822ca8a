// Package transport implements the abstract message transport (C1):
// a framed, bidirectional TCP substrate with connect/listen, per-
// connection callbacks, and a slot for attaching caller-defined context
// to a connection. It mirrors the shape of the teacher's
// api-coordinator/internal/tcpserver connection pool, generalized so it
// can be shared by both the Coordinator and the Brokerage client.
//
// Framing follows spec.md §4.1: each logical message is delivered in one
// or two reads — first the fixed-size header, then (only if the message
// carries one) the variable-size payload — via protocol.ReadMessage.
// Callbacks for a given connection are always invoked serially, on that
// connection's own goroutine, which is Go's natural rendering of "these
// happen on another thread, but never at the same time."
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"fbroker/internal/protocol"
)

// ErrBind is returned by Pool.Listen when the requested port is already
// in use.
var ErrBind = errors.New("transport: bind failed")

// ErrConnectFailed is returned by Pool.Connect on dial failure or
// timeout.
var ErrConnectFailed = errors.New("transport: connect failed")

// ConnectionInfo is the handle callbacks receive for an accepted or
// dialed connection. RemoteAddress is the wire-format (little-endian
// uint32) IPv4 address of the peer. UserData is an arbitrary slot a
// caller can attach with SetUserData after Connect returns and read back
// inside OnMessage —
// this is the typed stand-in for the C++ reference's raw per-connection
// user pointer (see spec.md §9, "Shared user-context on connections").
type ConnectionInfo struct {
	conn          net.Conn
	RemoteAddress uint32

	mu       sync.RWMutex
	userData any
}

// SetUserData attaches caller-defined context to the connection.
func (c *ConnectionInfo) SetUserData(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userData = v
}

// UserData returns whatever was last attached with SetUserData, or nil.
func (c *ConnectionInfo) UserData() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userData
}

// Send encodes and writes msg on this connection.
func (c *ConnectionInfo) Send(msg protocol.Message) error {
	return protocol.WriteMessage(c.conn, msg)
}

// Close closes the underlying socket.
func (c *ConnectionInfo) Close() error {
	return c.conn.Close()
}

// Callbacks are invoked from the connection's dedicated goroutine, never
// concurrently with each other for the same connection.
type Callbacks struct {
	// OnConnected fires once a connection is accepted or dialed,
	// before any message is read.
	OnConnected func(*ConnectionInfo)
	// OnDisconnected fires exactly once when the connection's read
	// loop exits, for any reason (peer closed, protocol error, local
	// Disconnect call).
	OnDisconnected func(*ConnectionInfo)
	// OnMessage fires for each decoded message. Returning a non-nil
	// error (typically protocol.ErrUnknownMessageType bubbled up from
	// the read loop itself, or a caller-detected violation) causes the
	// transport to disconnect the peer without a reply.
	OnMessage func(*ConnectionInfo, protocol.Message) error
}

// Pool owns a listener (optional) and the set of currently open
// connections dialed or accepted through it.
type Pool struct {
	callbacks Callbacks

	mu       sync.Mutex
	listener net.Listener
	conns    map[*ConnectionInfo]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewPool creates a connection pool that will invoke cb for every
// connection it accepts or dials.
func NewPool(cb Callbacks) *Pool {
	return &Pool{
		callbacks: cb,
		conns:     make(map[*ConnectionInfo]struct{}),
	}
}

// Listen binds addr and starts accepting connections in the background.
// It returns ErrBind (wrapping the underlying error) if the port is
// already in use.
func (p *Pool) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBind, err)
	}

	p.mu.Lock()
	p.listener = ln
	p.mu.Unlock()

	p.wg.Add(1)
	go p.acceptLoop(ln)
	return nil
}

// ListenAddr returns the address the pool is bound to, or nil if Listen
// hasn't been called (or failed). Primarily useful in tests that bind to
// ":0" and need to discover the assigned port.
func (p *Pool) ListenAddr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

func (p *Pool) acceptLoop(ln net.Listener) {
	defer p.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed by Shutdown
		}
		p.adopt(conn)
	}
}

// Connect dials host:port with a millisecond-granularity timeout and, on
// success, registers the resulting connection with the pool exactly like
// an accepted one.
func (p *Pool) Connect(host string, port int, timeout time.Duration) (*ConnectionInfo, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	return p.adopt(conn), nil
}

func (p *Pool) adopt(conn net.Conn) *ConnectionInfo {
	ci := &ConnectionInfo{conn: conn}
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ci.RemoteAddress = protocol.AddressFromIP(tcpAddr.IP)
	}

	p.mu.Lock()
	p.conns[ci] = struct{}{}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.readLoop(ci)
	return ci
}

func (p *Pool) readLoop(ci *ConnectionInfo) {
	defer p.wg.Done()
	defer p.forget(ci)

	if p.callbacks.OnConnected != nil {
		p.callbacks.OnConnected(ci)
	}

	for {
		msg, err := protocol.ReadMessage(ci.conn)
		if err != nil {
			return
		}
		if p.callbacks.OnMessage != nil {
			if err := p.callbacks.OnMessage(ci, msg); err != nil {
				return
			}
		}
	}
}

func (p *Pool) forget(ci *ConnectionInfo) {
	p.mu.Lock()
	_, present := p.conns[ci]
	delete(p.conns, ci)
	p.mu.Unlock()

	if !present {
		return
	}
	_ = ci.conn.Close()
	if p.callbacks.OnDisconnected != nil {
		p.callbacks.OnDisconnected(ci)
	}
}

// Disconnect closes a single connection. Safe to call from any
// goroutine, including from inside OnMessage. The connection's read loop
// then exits and fires OnDisconnected on its own goroutine.
func (p *Pool) Disconnect(ci *ConnectionInfo) {
	_ = ci.conn.Close()
}

// ShutdownAllConnections closes the listener (if any) and every open
// connection, then waits for their read loops to exit.
func (p *Pool) ShutdownAllConnections() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	ln := p.listener
	conns := make([]*ConnectionInfo, 0, len(p.conns))
	for ci := range p.conns {
		conns = append(conns, ci)
	}
	p.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, ci := range conns {
		p.Disconnect(ci)
	}
	p.wg.Wait()
}
