package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownMessageType is returned by ReadMessage when the leading type
// tag does not name one of the three known messages. The caller (the
// transport) must disconnect the offending peer without a reply.
var ErrUnknownMessageType = errors.New("protocol: unknown message type")

// headerSize is the number of header bytes to read *after* the leading
// type tag, per message type.
var headerSize = map[MessageType]int{
	MsgTypeRequestWorkerList: 5, // protocolVersion(4) + platform(1)
	MsgTypeSetWorkerStatus:   6, // available(1) + protocolVersion(4) + platform(1)
	MsgTypeWorkerList:        0, // header carries only the type tag
}

// WriteMessage encodes msg and writes it to w. For MsgWorkerList this is
// a header write (the type tag) followed by a payload write (count +
// addresses), mirroring the two-phase delivery a reader performs.
func WriteMessage(w io.Writer, msg Message) error {
	switch m := msg.(type) {
	case RequestWorkerList:
		buf := make([]byte, 1+headerSize[MsgTypeRequestWorkerList])
		buf[0] = byte(MsgTypeRequestWorkerList)
		binary.LittleEndian.PutUint32(buf[1:5], m.ProtocolVersion)
		buf[5] = byte(m.Platform)
		_, err := w.Write(buf)
		return err

	case SetWorkerStatus:
		buf := make([]byte, 1+headerSize[MsgTypeSetWorkerStatus])
		buf[0] = byte(MsgTypeSetWorkerStatus)
		if m.Available {
			buf[1] = 1
		}
		binary.LittleEndian.PutUint32(buf[2:6], m.ProtocolVersion)
		buf[6] = byte(m.Platform)
		_, err := w.Write(buf)
		return err

	case WorkerList:
		if _, err := w.Write([]byte{byte(MsgTypeWorkerList)}); err != nil {
			return err
		}
		payload := make([]byte, 4+4*len(m.Addresses))
		binary.LittleEndian.PutUint32(payload[0:4], uint32(len(m.Addresses)))
		for i, addr := range m.Addresses {
			binary.LittleEndian.PutUint32(payload[4+4*i:8+4*i], addr)
		}
		_, err := w.Write(payload)
		return err

	default:
		return fmt.Errorf("protocol: cannot encode %T", msg)
	}
}

// ReadMessage decodes exactly one message from r, blocking until the
// header (and, for MsgWorkerList, the payload) has arrived in full. It
// returns ErrUnknownMessageType if the leading tag names no known
// message; callers must treat that as fatal for the connection.
func ReadMessage(r io.Reader) (Message, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}

	msgType := MessageType(tag[0])
	switch msgType {
	case MsgTypeRequestWorkerList:
		rest := make([]byte, headerSize[msgType])
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
		return RequestWorkerList{
			ProtocolVersion: binary.LittleEndian.Uint32(rest[0:4]),
			Platform:        Platform(rest[4]),
		}, nil

	case MsgTypeSetWorkerStatus:
		rest := make([]byte, headerSize[msgType])
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
		return SetWorkerStatus{
			Available:       rest[0] != 0,
			ProtocolVersion: binary.LittleEndian.Uint32(rest[1:5]),
			Platform:        Platform(rest[5]),
		}, nil

	case MsgTypeWorkerList:
		var countBuf [4]byte
		if _, err := io.ReadFull(r, countBuf[:]); err != nil {
			return nil, err
		}
		count := binary.LittleEndian.Uint32(countBuf[:])
		addrs := make([]uint32, count)
		if count > 0 {
			payload := make([]byte, 4*int(count))
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, err
			}
			for i := range addrs {
				addrs[i] = binary.LittleEndian.Uint32(payload[4*i : 4*i+4])
			}
		}
		return WorkerList{Addresses: addrs}, nil

	default:
		return nil, ErrUnknownMessageType
	}
}
