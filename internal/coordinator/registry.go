package coordinator

import (
	"sync"

	"fbroker/internal/protocol"
)

// entry is a registry row: (address, protocolVersion, platform), keyed by
// address. The zero value is never stored; presence in the map is what
// makes a worker "available" (spec.md I2).
type entry struct {
	address         uint32
	protocolVersion uint32
	platform        protocol.Platform
}

// registry is the Coordinator's authoritative, in-memory set of
// available workers. All access holds mu — reads take RLock, writes take
// Lock — matching the teacher's Server.mu in
// api-coordinator/internal/tcpserver.Server. mu is the only lock guarding
// the registry, and no code path holds it together with another lock, so
// there is no deadlock risk (spec.md §5).
type registry struct {
	mu      sync.RWMutex
	entries map[uint32]entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[uint32]entry)}
}

// upsert inserts or refreshes the entry at address. Re-registering from
// the same address is idempotent (P1); the newly advertised
// protocolVersion/platform always overwrite whatever was there before,
// per spec.md §4.3 ("the worker's advertised values are authoritative").
func (r *registry) upsert(address uint32, protocolVersion uint32, platform protocol.Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[address] = entry{address: address, protocolVersion: protocolVersion, platform: platform}
}

// remove deletes the entry at address, if present. Removing an absent
// entry is a silent no-op.
func (r *registry) remove(address uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, address)
}

// matching returns the addresses of every entry whose (protocolVersion,
// platform) equals (v, p), snapshotted atomically under the read lock
// (P2, P3).
func (r *registry) matching(protocolVersion uint32, platform protocol.Platform) []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := make([]uint32, 0, len(r.entries))
	for _, e := range r.entries {
		if e.protocolVersion == protocolVersion && e.platform == platform {
			addrs = append(addrs, e.address)
		}
	}
	return addrs
}

// size returns the number of registered workers, used only by the
// supplemental status API (internal/statusapi) — never by matchmaking.
func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
