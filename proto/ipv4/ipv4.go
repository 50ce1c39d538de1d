// Package ipv4 implements a minimal IPv4 header codec: parse, build, and
// checksum. Options are not supported (Non-goal: anything beyond what the
// end-to-end scenarios require).
package ipv4

import (
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/nip/proto/checksum"
)

// HeaderLen is the length of an IPv4 header with no options.
const HeaderLen = 20

// Protocol identifies the transport-layer payload.
type Protocol uint8

const (
	ProtocolICMP Protocol = 1
	ProtocolTCP  Protocol = 6
	ProtocolUDP  Protocol = 17
)

// Addr is an IPv4 address in network byte order host representation (i.e.
// the plain uint32 the host boundary passes across the FFI surface).
type Addr uint32

func (a Addr) IsUnspecified() bool { return a == 0 }
func (a Addr) IsBroadcast() bool   { return a == 0xffffffff }

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}

// Header is a parsed IPv4 header (no options).
type Header struct {
	TotalLength uint16
	ID          uint16
	TTL         uint8
	Protocol    Protocol
	Src         Addr
	Dst         Addr
}

// Parse decodes an IPv4 header from the front of bytes, returning the
// header and the remaining payload (transport segment). It rejects options
// (IHL != 5) and version != 4, neither of which the engine's scope needs to
// support.
func Parse(bytes []byte) (Header, []byte, error) {
	if len(bytes) < HeaderLen {
		return Header{}, nil, fmt.Errorf("ipv4: packet too short: %d bytes", len(bytes))
	}

	versionIHL := bytes[0]
	version := versionIHL >> 4
	ihl := versionIHL & 0x0f
	if version != 4 {
		return Header{}, nil, fmt.Errorf("ipv4: unsupported version %d", version)
	}
	if ihl != 5 {
		return Header{}, nil, fmt.Errorf("ipv4: options not supported (ihl=%d)", ihl)
	}

	h := Header{
		TotalLength: binary.BigEndian.Uint16(bytes[2:4]),
		ID:          binary.BigEndian.Uint16(bytes[4:6]),
		TTL:         bytes[8],
		Protocol:    Protocol(bytes[9]),
		Src:         Addr(binary.BigEndian.Uint32(bytes[12:16])),
		Dst:         Addr(binary.BigEndian.Uint32(bytes[16:20])),
	}

	if int(h.TotalLength) > len(bytes) {
		return Header{}, nil, fmt.Errorf("ipv4: truncated packet: total length %d > available %d", h.TotalLength, len(bytes))
	}

	return h, bytes[HeaderLen:h.TotalLength], nil
}

// Build encodes an IPv4 header (no options) followed by payload, computing
// the header checksum.
func Build(h Header, payload []byte) []byte {
	total := HeaderLen + len(payload)
	out := make([]byte, total)

	out[0] = 0x45 // version 4, IHL 5
	out[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(out[2:4], uint16(total))
	binary.BigEndian.PutUint16(out[4:6], h.ID)
	binary.BigEndian.PutUint16(out[6:8], 0) // flags/fragment offset
	out[8] = h.TTL
	out[9] = byte(h.Protocol)
	binary.BigEndian.PutUint16(out[10:12], 0) // checksum placeholder
	binary.BigEndian.PutUint32(out[12:16], uint32(h.Src))
	binary.BigEndian.PutUint32(out[16:20], uint32(h.Dst))

	cs := checksum.Sum(out[:HeaderLen])
	binary.BigEndian.PutUint16(out[10:12], cs)

	copy(out[HeaderLen:], payload)
	return out
}

// PseudoHeader builds the 12-byte IPv4 pseudo-header used by UDP/TCP
// checksums.
func PseudoHeader(src, dst Addr, protocol Protocol, segmentLength int) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], uint32(src))
	binary.BigEndian.PutUint32(b[4:8], uint32(dst))
	b[8] = 0
	b[9] = byte(protocol)
	binary.BigEndian.PutUint16(b[10:12], uint16(segmentLength))
	return b
}
