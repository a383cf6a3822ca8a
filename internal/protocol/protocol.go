// Package protocol implements the wire protocol spoken between a
// brokerage client (worker or build client) and the Coordinator: three
// message kinds governing worker registration and discovery.
//
// Every integer on the wire is little-endian and fixed width. There is
// no text and no version negotiation handshake — the protocol version is
// carried inside every message and used purely as a matchmaking filter.
package protocol

import "runtime"

// MessageType is the one-byte tag that begins every message header.
type MessageType uint8

const (
	MsgTypeRequestWorkerList MessageType = 1
	MsgTypeWorkerList        MessageType = 2
	MsgTypeSetWorkerStatus   MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MsgTypeRequestWorkerList:
		return "RequestWorkerList"
	case MsgTypeWorkerList:
		return "WorkerList"
	case MsgTypeSetWorkerStatus:
		return "SetWorkerStatus"
	default:
		return "Unknown"
	}
}

// Platform is the OS family tag used for strict matchmaking. Workers and
// clients on different platforms never match, regardless of protocol
// version.
type Platform uint8

const (
	PlatformUnknown Platform = 0
	PlatformWindows Platform = 1
	PlatformDarwin  Platform = 2
	PlatformLinux   Platform = 3
)

func (p Platform) String() string {
	switch p {
	case PlatformWindows:
		return "windows"
	case PlatformDarwin:
		return "osx"
	case PlatformLinux:
		return "linux"
	default:
		return "unknown"
	}
}

// FolderName is the on-disk OS tag used in the folder-transport brokerage
// path, e.g. "R/main/42.linux/".
func (p Platform) FolderName() string {
	switch p {
	case PlatformWindows:
		return "windows"
	case PlatformDarwin:
		return "osx"
	default:
		return "linux"
	}
}

// CurrentPlatform maps runtime.GOOS onto the wire Platform tag.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformDarwin
	default:
		return PlatformLinux
	}
}

// CoordinatorPort is the well-known TCP port the Coordinator listens on.
const CoordinatorPort = 31264

// ProtocolVersionMajor is embedded in every message and used both as a
// matchmaking filter and as the folder-transport path component
// ("R/main/<version>.<os>/"). Bumping it isolates a fleet from older
// workers/clients without a negotiation round trip.
const ProtocolVersionMajor uint32 = 1

// Message is implemented by all three wire messages.
type Message interface {
	Type() MessageType
	HasPayload() bool
}

// RequestWorkerList is sent by a build client to ask the Coordinator for
// the set of currently available workers matching (ProtocolVersion,
// Platform). It carries no payload.
type RequestWorkerList struct {
	ProtocolVersion uint32
	Platform        Platform
}

func (RequestWorkerList) Type() MessageType { return MsgTypeRequestWorkerList }
func (RequestWorkerList) HasPayload() bool  { return false }

// WorkerList is the Coordinator's reply to RequestWorkerList. Addresses
// are IPv4 addresses packed as little-endian uint32, in an unspecified
// but stable-for-the-snapshot order.
type WorkerList struct {
	Addresses []uint32
}

func (WorkerList) Type() MessageType { return MsgTypeWorkerList }
func (WorkerList) HasPayload() bool  { return true }

// SetWorkerStatus is sent by a worker to advertise or withdraw its
// availability. The worker's address is never carried in the message
// itself — the Coordinator takes it from the TCP peer address.
type SetWorkerStatus struct {
	Available       bool
	ProtocolVersion uint32
	Platform        Platform
}

func (SetWorkerStatus) Type() MessageType { return MsgTypeSetWorkerStatus }
func (SetWorkerStatus) HasPayload() bool  { return false }
