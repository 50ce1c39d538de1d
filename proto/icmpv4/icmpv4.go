// Package icmpv4 implements ICMPv4 echo request/reply codecs and the error
// report types the engine surfaces to the host as Icmpv4Error events:
// destination-unreachable and fragmentation-needed, mirroring the original
// interop layer's Icmpv4Error C struct and its id.encode() contract.
package icmpv4

import (
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/nip/proto/checksum"
)

// Type is the ICMPv4 message type.
type Type uint8

const (
	TypeEchoReply              Type = 0
	TypeDestinationUnreachable Type = 3
	TypeEchoRequest            Type = 8
)

// Code is the ICMPv4 message code, meaningful only for some Types.
type Code uint8

const (
	CodeNetUnreachable      Code = 0
	CodeHostUnreachable     Code = 1
	CodeProtoUnreachable    Code = 2
	CodePortUnreachable     Code = 3
	CodeFragmentationNeeded Code = 4
)

const headerLen = 8

// EchoMessage is a parsed echo request or reply.
type EchoMessage struct {
	Reply      bool
	Identifier uint16
	SeqNum     uint16
	Data       []byte
}

// ParseEcho decodes an ICMPv4 echo request or reply, rejecting any other
// message type.
func ParseEcho(bytes []byte) (EchoMessage, error) {
	if len(bytes) < headerLen {
		return EchoMessage{}, fmt.Errorf("icmpv4: message too short: %d bytes", len(bytes))
	}
	typ := Type(bytes[0])
	if typ != TypeEchoRequest && typ != TypeEchoReply {
		return EchoMessage{}, fmt.Errorf("icmpv4: not an echo message: type %d", typ)
	}
	return EchoMessage{
		Reply:      typ == TypeEchoReply,
		Identifier: binary.BigEndian.Uint16(bytes[4:6]),
		SeqNum:     binary.BigEndian.Uint16(bytes[6:8]),
		Data:       bytes[headerLen:],
	}, nil
}

// BuildEcho encodes an ICMPv4 echo request or reply with its checksum.
func BuildEcho(m EchoMessage) []byte {
	out := make([]byte, headerLen+len(m.Data))
	if m.Reply {
		out[0] = byte(TypeEchoReply)
	} else {
		out[0] = byte(TypeEchoRequest)
	}
	out[1] = 0                              // code
	binary.BigEndian.PutUint16(out[2:4], 0) // checksum placeholder
	binary.BigEndian.PutUint16(out[4:6], m.Identifier)
	binary.BigEndian.PutUint16(out[6:8], m.SeqNum)
	copy(out[headerLen:], m.Data)

	cs := checksum.Sum(out)
	binary.BigEndian.PutUint16(out[2:4], cs)
	return out
}

// ErrorID identifies the specific class of ICMPv4 error report the engine
// surfaces to the host, encoding to the wire (type, code) pair the way the
// original Icmpv4Error::id() does.
type ErrorID interface {
	// Encode returns the ICMPv4 (type, code) pair this error id maps to.
	Encode() (typ, code uint8)
}

// DestinationUnreachable reports that a datagram could not be delivered,
// for the reason named by Code (net/host/proto/port unreachable).
type DestinationUnreachable struct {
	Code Code
}

func (d DestinationUnreachable) Encode() (typ, code uint8) {
	return uint8(TypeDestinationUnreachable), uint8(d.Code)
}

// FragmentationNeeded reports that a datagram exceeded the next hop's MTU
// and the don't-fragment bit was set.
type FragmentationNeeded struct{}

func (FragmentationNeeded) Encode() (typ, code uint8) {
	return uint8(TypeDestinationUnreachable), uint8(CodeFragmentationNeeded)
}

// BuildError encodes an ICMPv4 error message carrying id's (type, code) and
// nextHopMTU (written into the last two header bytes whatever id is),
// followed by at most the first 8 bytes of originalDatagram. For an IPv4
// datagram those 8 bytes are part of its header; none of its payload is
// echoed.
func BuildError(id ErrorID, nextHopMTU uint16, originalDatagram []byte) []byte {
	const maxEcho = 8
	echoed := originalDatagram
	if len(echoed) > maxEcho {
		echoed = echoed[:maxEcho]
	}

	out := make([]byte, headerLen+len(echoed))
	typ, code := id.Encode()
	out[0] = typ
	out[1] = code
	binary.BigEndian.PutUint16(out[2:4], 0) // checksum placeholder
	out[4] = 0
	out[5] = 0
	binary.BigEndian.PutUint16(out[6:8], nextHopMTU)
	copy(out[headerLen:], echoed)

	cs := checksum.Sum(out)
	binary.BigEndian.PutUint16(out[2:4], cs)
	return out
}
