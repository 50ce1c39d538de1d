// Package ethernet implements Ethernet II framing: MAC addresses, EtherType
// dispatch, and frame parse/build. It is one of the "external collaborator"
// protocol layers the engine drives; its internals are deliberately minimal,
// just enough to make the engine's end-to-end scenarios true.
package ethernet

import (
	"encoding/binary"
	"fmt"
)

// HeaderLen is the fixed length of an Ethernet II header (no 802.1Q tag).
const HeaderLen = 14

// EtherType identifies the payload protocol carried by a frame.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
)

// MacAddr is a 48-bit link-layer address.
type MacAddr [6]byte

// IsNil reports whether mac is the all-zero address.
func (m MacAddr) IsNil() bool {
	return m == MacAddr{}
}

// IsUnicast reports whether mac's I/G bit (the low bit of the first octet)
// is clear, i.e. it names a single station rather than a multicast or
// broadcast group.
func (m MacAddr) IsUnicast() bool {
	return m[0]&0x01 == 0
}

// IsBroadcast reports whether mac is ff:ff:ff:ff:ff:ff.
func (m MacAddr) IsBroadcast() bool {
	for _, b := range m {
		if b != 0xff {
			return false
		}
	}
	return true
}

func (m MacAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Broadcast is the reserved all-ones link-layer address.
var Broadcast = MacAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Frame is a parsed Ethernet II frame; Payload aliases the input slice.
type Frame struct {
	Dst     MacAddr
	Src     MacAddr
	Type    EtherType
	Payload []byte
}

// Parse decodes an Ethernet II frame from bytes. It does not copy Payload;
// callers that retain a parsed Frame past the lifetime of bytes must copy it
// themselves.
func Parse(bytes []byte) (Frame, error) {
	if len(bytes) < HeaderLen {
		return Frame{}, fmt.Errorf("ethernet: frame too short: %d bytes", len(bytes))
	}
	var f Frame
	copy(f.Dst[:], bytes[0:6])
	copy(f.Src[:], bytes[6:12])
	f.Type = EtherType(binary.BigEndian.Uint16(bytes[12:14]))
	f.Payload = bytes[HeaderLen:]
	return f, nil
}

// Build encodes an Ethernet II frame.
func Build(dst, src MacAddr, typ EtherType, payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))
	copy(out[0:6], dst[:])
	copy(out[6:12], src[:])
	binary.BigEndian.PutUint16(out[12:14], uint16(typ))
	copy(out[HeaderLen:], payload)
	return out
}
