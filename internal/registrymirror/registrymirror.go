// Package registrymirror is an optional, non-authoritative observability
// feed of Coordinator registry churn: it implements
// coordinator.EventSink and mirrors join/leave events into Redis, the
// same HSet+SAdd+Expire shape the teacher uses in
// api-coordinator/internal/tcpserver.registerWorkerInRedis. It is never
// consulted for matchmaking — the Coordinator's in-memory registry
// remains the sole source of truth (spec.md §4.3, "no persistence").
package registrymirror

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"fbroker/internal/consolelog"
	"fbroker/internal/protocol"
)

const (
	workerIndexKey  = "fbroker:workers:index"
	workerKeyPrefix = "fbroker:worker:"
	writeTimeout    = 2 * time.Second
	// workerTTL bounds how long a mirrored entry survives a missed
	// WorkerLeft event (e.g. this process crashing mid-update); it does
	// not affect matchmaking, only how long the dashboard's view of a
	// dead worker lingers.
	workerTTL = 5 * time.Minute
)

// Mirror publishes registry churn to Redis. The zero value is not usable;
// construct with New.
type Mirror struct {
	client *redis.Client
}

// New dials addr (host:port) lazily — go-redis connects on first command,
// not at construction — and returns a Mirror ready to be passed as
// coordinator.WithEventSink(mirror).
func New(addr, password string, db int) *Mirror {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	consolelog.Info_("registrymirror: connecting to %s (db %d)", addr, db)
	return &Mirror{client: client}
}

// Close releases the underlying Redis connection pool.
func (m *Mirror) Close() error {
	return m.client.Close()
}

// WorkerJoined mirrors a registry insertion. Failures are logged and
// swallowed: a Redis outage must never affect matchmaking correctness.
func (m *Mirror) WorkerJoined(address uint32, protocolVersion uint32, platform protocol.Platform) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	key := workerKeyPrefix + protocol.AddressToString(address)
	fields := map[string]any{
		"address":          protocol.AddressToString(address),
		"protocol_version": protocolVersion,
		"platform":         platform.String(),
		"joined_at":        time.Now().UnixMilli(),
	}

	if err := m.client.HSet(ctx, key, fields).Err(); err != nil {
		consolelog.Warn_("registrymirror: HSet %s: %v", key, err)
		return
	}
	if err := m.client.SAdd(ctx, workerIndexKey, key).Err(); err != nil {
		consolelog.Warn_("registrymirror: SAdd %s: %v", key, err)
		return
	}
	if err := m.client.Expire(ctx, key, workerTTL).Err(); err != nil {
		consolelog.Warn_("registrymirror: Expire %s: %v", key, err)
	}
}

// WorkerLeft mirrors a registry removal, evicting the key and index entry.
func (m *Mirror) WorkerLeft(address uint32) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	key := workerKeyPrefix + protocol.AddressToString(address)
	if err := m.client.Del(ctx, key).Err(); err != nil {
		consolelog.Warn_("registrymirror: Del %s: %v", key, err)
	}
	if err := m.client.SRem(ctx, workerIndexKey, key).Err(); err != nil {
		consolelog.Warn_("registrymirror: SRem %s: %v", key, err)
	}
}

// Snapshot returns the mirrored worker keys currently indexed. Nothing in
// this repository calls it; internal/statusapi reports only the in-memory
// registry size. It is read-only and best effort: a nil slice on error,
// never propagated as a fatal condition.
func (m *Mirror) Snapshot(ctx context.Context) []string {
	keys, err := m.client.SMembers(ctx, workerIndexKey).Result()
	if err != nil {
		consolelog.Warn_("registrymirror: SMembers: %v", err)
		return nil
	}
	return keys
}
