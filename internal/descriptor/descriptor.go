// Package descriptor builds the WorkerDescriptor and its human-readable
// presence blob (spec.md §3, §6). It gathers host identity after
// original_source's WorkerBrokerage.cpp, taking the first non-loopback
// IPv4 of any up interface where the reference prefers "en0" on macOS,
// and CPU/RAM figures via gopsutil, the same
// library the teacher uses in api-coordinator/internal/monitoring —
// there is no C++ SystemInfo equivalent in this codebase, so gopsutil is
// the natural pack-grounded substitute.
package descriptor

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Mode is the worker's local availability policy, received as an opaque
// value from the (out-of-scope) worker local-policy component and simply
// carried through into the presence blob.
type Mode string

const (
	ModeDisabled     Mode = "disabled"
	ModeDedicated    Mode = "dedicated"
	ModeProportional Mode = "proportional"
)

// WhenIdle builds the "when-idle@N%" mode string for a CPU-idle
// threshold of pct percent.
func WhenIdle(pct int) Mode {
	return Mode(fmt.Sprintf("when-idle@%d%%", pct))
}

// HostInfo is the identity half of the presence blob: host name, domain
// name (if joined to one), FQDN, and primary IPv4.
type HostInfo struct {
	HostName   string
	DomainName string
	FQDN       string
	IPv4       string
}

// ResolveHostInfo mirrors WorkerBrokerage::InitBrokerage's host name
// lookup, generalizing the macOS-only "prefer en0" special case
// (ConvertHostNameToLocalIP4) into "prefer the first non-loopback IPv4
// interface", which is the portable equivalent Go exposes uniformly
// across platforms.
func ResolveHostInfo() (HostInfo, error) {
	hostName, err := os.Hostname()
	if err != nil {
		return HostInfo{}, fmt.Errorf("descriptor: hostname: %w", err)
	}

	info := HostInfo{HostName: hostName}

	if fqdn, domain, ok := lookupDomain(hostName); ok {
		info.DomainName = domain
		info.FQDN = fqdn
	}

	info.IPv4 = primaryIPv4()

	return info, nil
}

func lookupDomain(hostName string) (fqdn, domain string, ok bool) {
	names, err := net.LookupCNAME(hostName)
	if err != nil || names == "" {
		return "", "", false
	}
	fqdn = strings.TrimSuffix(names, ".")
	parts := strings.SplitN(fqdn, ".", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return fqdn, parts[1], true
}

// primaryIPv4 returns the first non-loopback IPv4 address bound to any
// up interface. On macOS the reference implementation special-cases
// "en0"; Go's interface enumeration lets us look for the first usable
// address on any platform instead of hardcoding an interface name.
func primaryIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}

// SystemSample is the CPU/RAM snapshot embedded in the presence blob.
// CPUsUsed is not part of the sample — it is the worker's own concurrency
// setting (owned by the out-of-scope local-policy component), not
// something gopsutil can observe.
type SystemSample struct {
	CPUsTotal     int
	FreeMemoryMiB uint64
}

// SampleSystem gathers a fresh CPU/RAM reading via gopsutil.
func SampleSystem() SystemSample {
	total, _ := cpu.Counts(true)
	sample := SystemSample{CPUsTotal: total}

	if vm, err := mem.VirtualMemory(); err == nil {
		sample.FreeMemoryMiB = vm.Available / (1024 * 1024)
	}
	return sample
}

// Descriptor is the full presence blob written to a folder-transport
// presence file (spec.md §6). Version/User/Host/Domain/FQDN/IPv4 are
// human-readable identity fields; the rest describe the worker's current
// capacity and policy.
type Descriptor struct {
	Version    string
	User       string
	Host       HostInfo
	CPUsUsed   int
	CPUsTotal  int
	MinFreeMiB uint64
	Mode       Mode
}

// BuildDescriptor assembles a Descriptor from host info, a system sample,
// and the worker's local policy (cpusUsed, mode, minimum free memory
// threshold — all opaque values supplied by the out-of-scope worker
// policy component).
func BuildDescriptor(version string, host HostInfo, sample SystemSample, cpusUsed int, minFreeMiB uint64, mode Mode) Descriptor {
	userName := "unknown"
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}
	return Descriptor{
		Version:    version,
		User:       userName,
		Host:       host,
		CPUsUsed:   cpusUsed,
		CPUsTotal:  sample.CPUsTotal,
		MinFreeMiB: minFreeMiB,
		Mode:       mode,
	}
}

// Render formats the descriptor exactly as spec.md §6 specifies: one
// key per line, FQDN present only when a domain is known.
func (d Descriptor) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", d.Version)
	fmt.Fprintf(&b, "User: %s\n", d.User)
	fmt.Fprintf(&b, "Host Name: %s\n", d.Host.HostName)
	if d.Host.DomainName != "" {
		fmt.Fprintf(&b, "Domain Name: %s\n", d.Host.DomainName)
		fmt.Fprintf(&b, "FQDN: %s\n", d.Host.FQDN)
	}
	fmt.Fprintf(&b, "IPv4 Address: %s\n", d.Host.IPv4)
	fmt.Fprintf(&b, "CPUs: %d/%d\n", d.CPUsUsed, d.CPUsTotal)
	fmt.Fprintf(&b, "Memory: %d\n", d.MinFreeMiB)
	fmt.Fprintf(&b, "Mode: %s\n", d.Mode)
	return b.String()
}
