package protocol

import (
	"bytes"
	"net"
	"testing"
)

func TestRoundTripRequestWorkerList(t *testing.T) {
	want := RequestWorkerList{ProtocolVersion: 42, Platform: PlatformLinux}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRoundTripSetWorkerStatus(t *testing.T) {
	cases := []SetWorkerStatus{
		{Available: true, ProtocolVersion: 7, Platform: PlatformWindows},
		{Available: false, ProtocolVersion: 7, Platform: PlatformWindows},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteMessage(&buf, want); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
		got, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
}

func TestRoundTripWorkerList(t *testing.T) {
	want := WorkerList{Addresses: []uint32{0x0500000A, 0x0600000A}}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	gotList, ok := got.(WorkerList)
	if !ok {
		t.Fatalf("got %T, want WorkerList", got)
	}
	if len(gotList.Addresses) != len(want.Addresses) {
		t.Fatalf("got %d addresses, want %d", len(gotList.Addresses), len(want.Addresses))
	}
	for i := range want.Addresses {
		if gotList.Addresses[i] != want.Addresses[i] {
			t.Fatalf("address %d: got %#x, want %#x", i, gotList.Addresses[i], want.Addresses[i])
		}
	}
}

func TestWorkerListEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, WorkerList{}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if list := got.(WorkerList); len(list.Addresses) != 0 {
		t.Fatalf("got %d addresses, want 0", len(list.Addresses))
	}
}

func TestReadMessageUnknownType(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF})
	if _, err := ReadMessage(buf); err != ErrUnknownMessageType {
		t.Fatalf("got err %v, want ErrUnknownMessageType", err)
	}
}

func TestAddressFromIPMatchesWireExample(t *testing.T) {
	// spec.md scenario 1: 10.0.0.5 -> 0x0500000A little-endian.
	got := AddressFromIP(net.ParseIP("10.0.0.5"))
	if want := uint32(0x0500000A); got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
	if s := AddressToString(got); s != "10.0.0.5" {
		t.Fatalf("AddressToString: got %q, want 10.0.0.5", s)
	}
}
