package brokerage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fbroker/internal/protocol"
)

// staleAge is the mtime threshold past which a periodic sweep removes a
// presence file (spec.md §4.4, P7).
const staleAge = 24 * time.Hour

// sweepInterval is how often a running client re-runs the sweep, primed
// as already-elapsed on first use so the very first SetAvailability(true)
// call also sweeps — mirroring the reference's
// Timer::Start(sBrokerageElapsedTimeBetweenClean) priming.
const sweepInterval = 12 * time.Hour

// identityRefreshInterval bounds how often SetAvailability recomputes the
// presence-file path from the descriptor's host name (or IPv4) on the
// folder transport. Host identity itself comes from the DescriptorSource.
const identityRefreshInterval = 5 * time.Minute

// folderTransport implements the filesystem-rendezvous half of a Client:
// presence files under <root>/main/<version>.<os>/<host-or-ip>.
type folderTransport struct {
	writeRoot string
	readRoots []string
	// version is the protocol version used as the path component; zero
	// means protocol.ProtocolVersionMajor.
	version uint32
}

func newFolderTransport(roots []string) *folderTransport {
	if len(roots) == 0 {
		return nil
	}
	return &folderTransport{writeRoot: roots[0], readRoots: roots}
}

// versionDir is the effective per-root, per-version, per-platform
// directory named by spec.md §4.4/§6.
func (ft *folderTransport) versionDir(root string, platform protocol.Platform) string {
	version := ft.version
	if version == 0 {
		version = protocol.ProtocolVersionMajor
	}
	return filepath.Join(root, "main", fmt.Sprintf("%d.%s", version, platform.FolderName()))
}

// findWorkers enumerates every read root's version directory (in order),
// unions the basenames, and excludes exclude (the local host name).
// Missing directories are treated as empty, not an error (spec.md §7,
// FilesystemError: "warn; swallow; treat as empty result").
func (ft *folderTransport) findWorkers(platform protocol.Platform, exclude string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, root := range ft.readRoots {
		dir := ft.versionDir(root, platform)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if name == exclude {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// presencePath is the file this host publishes to under the write root.
func (ft *folderTransport) presencePath(platform protocol.Platform, name string) string {
	return filepath.Join(ft.versionDir(ft.writeRoot, platform), name)
}

// publish writes (or overwrites) the presence file at path with the
// rendered descriptor contents.
func (ft *folderTransport) publish(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("brokerage: mkdir presence dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("brokerage: write presence file: %w", err)
	}
	return nil
}

// touch bumps the presence file's mtime without rewriting its contents.
// Returns false if the bump failed (the caller then falls back to a full
// publish), matching spec.md §4.4's "or bumping its mtime failed" case.
func (ft *folderTransport) touch(path string) bool {
	now := time.Now()
	return os.Chtimes(path, now, now) == nil
}

// withdraw deletes the presence file at path. A missing file is not an
// error — the filesystem is intentionally racy (spec.md §9).
func (ft *folderTransport) withdraw(path string) {
	_ = os.Remove(path)
}

// sweep deletes stale presence files under the first read root's version
// directory for platform (spec.md §4.4: "enumerate the first read root").
func (ft *folderTransport) sweep(platform protocol.Platform) {
	if len(ft.readRoots) == 0 {
		return
	}
	dir := ft.versionDir(ft.readRoots[0], platform)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}
