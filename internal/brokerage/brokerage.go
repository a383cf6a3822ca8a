// Package brokerage implements the Brokerage Client (C4): the two
// operations FindWorkers and SetAvailability, hiding the choice between
// the coordinator transport and the folder transport behind a single
// Client type. It is grounded on original_source's WorkerBrokerage.cpp
// for the operation contracts and on the teacher's habit of taking all
// runtime configuration as an explicit struct rather than reading the
// environment itself (internal/config does that, one layer up).
package brokerage

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"fbroker/internal/consolelog"
	"fbroker/internal/descriptor"
	"fbroker/internal/protocol"
)

// ErrConfigMissing is logged once (never returned) when a Client is used
// without FASTBUILD_WORKERS, FASTBUILD_COORDINATOR, or
// FASTBUILD_BROKERAGE_PATH configured — spec.md §7's ConfigMissing.
var ErrConfigMissing = errors.New("brokerage: no worker source configured")

// publishThrottle is the minimum interval between actual publish I/O
// while SetAvailability(true) is called repeatedly (spec.md §4.4, P5).
const publishThrottle = 10 * time.Second

// Config selects which transport a Client uses. It is the
// "BrokerageConfig" spec.md §6 names as an external-collaborator
// responsibility — internal/config builds one from the environment for
// the cmd/ binaries; tests can build one by hand.
type Config struct {
	// Workers, if non-empty, makes FindWorkers return it verbatim with
	// no transport of any kind (FASTBUILD_WORKERS).
	Workers []string
	// CoordinatorAddr, if set, selects the coordinator transport
	// (FASTBUILD_COORDINATOR). Takes precedence over BrokeragePaths.
	CoordinatorAddr string
	// BrokeragePaths, if set and CoordinatorAddr is empty, selects the
	// folder transport (FASTBUILD_BROKERAGE_PATH). The first entry is
	// the write root; all entries are read roots, searched in order.
	BrokeragePaths []string
	// ProtocolVersion overrides protocol.ProtocolVersionMajor. Left
	// zero, the shared constant is used; tests exercise version-bump
	// isolation by setting this explicitly.
	ProtocolVersion uint32
	// Platform overrides protocol.CurrentPlatform(). Left
	// PlatformUnknown, the running platform is used.
	Platform protocol.Platform
}

func (c Config) protocolVersion() uint32 {
	if c.ProtocolVersion != 0 {
		return c.ProtocolVersion
	}
	return protocol.ProtocolVersionMajor
}

func (c Config) platform() protocol.Platform {
	if c.Platform != protocol.PlatformUnknown {
		return c.Platform
	}
	return protocol.CurrentPlatform()
}

// DescriptorSource supplies the opaque worker descriptor to publish on
// the folder transport. It belongs to the worker's local policy (out of
// scope per spec.md §1); the Client only compares successive values to
// decide whether a presence file needs to be rewritten.
type DescriptorSource func() descriptor.Descriptor

// Client is the worker- and client-side brokerage handle. One Client is
// typically kept for the lifetime of a worker or build client process.
type Client struct {
	cfg    Config
	descFn DescriptorSource

	initOnce  sync.Once
	localHost string

	coord *coordinatorTransport
	fold  *folderTransport

	mu                  sync.Mutex
	available           bool
	lastPublish         time.Time
	lastIdentityRefresh time.Time
	lastSweep           time.Time
	lastWrittenDesc     descriptor.Descriptor
	presencePath        string
	warnedConfigMissing bool
}

// NewClient builds a Client from cfg. descFn may be nil if the caller
// never uses the folder transport (it is only consulted by
// SetAvailability on that branch).
func NewClient(cfg Config, descFn DescriptorSource) (*Client, error) {
	c := &Client{cfg: cfg, descFn: descFn}

	if cfg.CoordinatorAddr != "" {
		ct, err := newCoordinatorTransport(cfg.CoordinatorAddr)
		if err != nil {
			return nil, err
		}
		c.coord = ct
	} else if len(cfg.BrokeragePaths) > 0 {
		c.fold = newFolderTransport(cfg.BrokeragePaths)
		c.fold.version = cfg.protocolVersion()
	}

	return c, nil
}

// ensureInit lazily resolves the local host name, exactly as
// WorkerBrokerage::InitBrokerage does on first use.
func (c *Client) ensureInit() {
	c.initOnce.Do(func() {
		host, err := descriptor.ResolveHostInfo()
		if err != nil {
			consolelog.Warn_("brokerage: resolve host info: %v", err)
			return
		}
		c.localHost = host.HostName
	})
}

// Close releases the coordinator transport's connections and, if this
// host was last known available, withdraws its folder-transport
// presence file — the Go stand-in for the reference's destructor
// behavior (spec.md §4.4, "Destructor").
func (c *Client) Close() {
	c.mu.Lock()
	wasAvailable := c.available
	path := c.presencePath
	c.mu.Unlock()

	if wasAvailable && c.fold != nil && path != "" {
		c.fold.withdraw(path)
	}
	if c.coord != nil {
		c.coord.close()
	}
}

// FindWorkers returns the set of candidate worker addresses, using
// whichever source is configured. Connection failure on the coordinator
// branch is surfaced as an empty result plus a logged warning, per
// spec.md §7 — it never falls back to the folder transport within a
// single call.
func (c *Client) FindWorkers(ctx context.Context) []string {
	if len(c.cfg.Workers) > 0 {
		return append([]string(nil), c.cfg.Workers...)
	}

	c.ensureInit()

	switch {
	case c.coord != nil:
		addrs, err := c.coord.requestWorkerList(ctx, c.cfg.protocolVersion(), c.cfg.platform())
		if err != nil {
			consolelog.Warn_("brokerage: coordinator request failed: %v", err)
			return nil
		}
		return c.excludeSelf(addressesToStrings(addrs))

	case c.fold != nil:
		names := c.fold.findWorkers(c.cfg.platform(), c.localHost)
		return c.excludeSelf(names)

	default:
		c.warnConfigMissingOnce()
		return nil
	}
}

func (c *Client) excludeSelf(names []string) []string {
	out := names[:0:0]
	for _, n := range names {
		if n == c.localHost || n == "127.0.0.1" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func addressesToStrings(addrs []uint32) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = protocol.AddressToString(a)
	}
	return out
}

func (c *Client) warnConfigMissingOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warnedConfigMissing {
		return
	}
	c.warnedConfigMissing = true
	consolelog.Warn_("%v", ErrConfigMissing)
}

// SetAvailability advertises or withdraws this host's willingness to
// accept jobs. Callers invoke it periodically; the Client rate-limits
// actual network/filesystem I/O internally (spec.md §4.4, P5).
func (c *Client) SetAvailability(available bool) {
	c.ensureInit()

	c.mu.Lock()
	defer c.mu.Unlock()

	if available {
		c.publishLocked()
		return
	}

	if c.available {
		c.withdrawLocked()
	}
}

func (c *Client) publishLocked() {
	if time.Since(c.lastPublish) < publishThrottle {
		return
	}
	c.lastPublish = time.Now()

	switch {
	case c.coord != nil:
		if err := c.coord.setStatus(true, c.cfg.protocolVersion(), c.cfg.platform()); err != nil {
			consolelog.Warn_("brokerage: publish availability: %v", err)
			return
		}

	case c.fold != nil:
		c.publishFolderLocked()

	default:
		c.warnConfigMissingLocked()
		return
	}

	c.available = true
}

func (c *Client) publishFolderLocked() {
	if c.descFn == nil {
		consolelog.Warn_("brokerage: folder transport configured with no descriptor source")
		return
	}
	desc := c.descFn()
	platform := c.cfg.platform()

	if time.Since(c.lastIdentityRefresh) >= identityRefreshInterval || c.presencePath == "" {
		c.lastIdentityRefresh = time.Now()
		name := desc.Host.HostName
		if name == "" {
			name = desc.Host.IPv4
		}
		newPath := c.fold.presencePath(platform, name)
		if c.presencePath != "" && c.presencePath != newPath {
			c.fold.withdraw(c.presencePath)
		}
		c.presencePath = newPath
	}

	settingsChanged := desc != c.lastWrittenDesc
	_, statErr := os.Stat(c.presencePath)
	needsRewrite := settingsChanged || statErr != nil

	if !needsRewrite {
		if c.fold.touch(c.presencePath) {
			c.maybeSweepLocked(platform)
			return
		}
		needsRewrite = true
	}

	if err := c.fold.publish(c.presencePath, desc.Render()); err != nil {
		consolelog.Warn_("brokerage: publish presence file: %v", err)
		return
	}
	c.lastWrittenDesc = desc
	c.maybeSweepLocked(platform)
}

func (c *Client) maybeSweepLocked(platform protocol.Platform) {
	if time.Since(c.lastSweep) < sweepInterval && !c.lastSweep.IsZero() {
		return
	}
	c.lastSweep = time.Now()
	c.fold.sweep(platform)
}

func (c *Client) withdrawLocked() {
	switch {
	case c.coord != nil:
		if err := c.coord.setStatus(false, c.cfg.protocolVersion(), c.cfg.platform()); err != nil {
			consolelog.Warn_("brokerage: withdraw availability: %v", err)
		}
	case c.fold != nil && c.presencePath != "":
		c.fold.withdraw(c.presencePath)
	}
	c.available = false
}

func (c *Client) warnConfigMissingLocked() {
	if c.warnedConfigMissing {
		return
	}
	c.warnedConfigMissing = true
	consolelog.Warn_("%v", ErrConfigMissing)
}

// SplitList splits a ';'-separated FASTBUILD_* env value into
// its trimmed, non-empty components. Exported for internal/config.
func SplitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
