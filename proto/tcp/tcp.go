// Package tcp implements a minimal TCP segment codec and a per-connection
// state machine covering the passive-open handshake (LISTEN through
// ESTABLISHED) and orderly close, enough to drive the engine's end-to-end
// scenarios. Congestion control, retransmission timers, and window scaling
// are out of scope.
package tcp

import (
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/nip/proto/checksum"
	"github.com/joeycumines/nip/proto/ipv4"
)

const headerLen = 20

// Flags are the TCP control bits relevant to this engine's scope.
type Flags uint8

const (
	FlagFIN Flags = 1 << 0
	FlagSYN Flags = 1 << 1
	FlagRST Flags = 1 << 2
	FlagPSH Flags = 1 << 3
	FlagACK Flags = 1 << 4
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Segment is a parsed TCP segment (no options).
type Segment struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	Flags      Flags
	WindowSize uint16
	Payload    []byte
}

// Parse decodes a TCP segment. Options, if present (data offset > 5), are
// skipped rather than interpreted.
func Parse(bytes []byte) (Segment, error) {
	if len(bytes) < headerLen {
		return Segment{}, fmt.Errorf("tcp: segment too short: %d bytes", len(bytes))
	}
	dataOffset := int(bytes[12]>>4) * 4
	if dataOffset < headerLen || dataOffset > len(bytes) {
		return Segment{}, fmt.Errorf("tcp: invalid data offset %d", dataOffset)
	}
	return Segment{
		SrcPort:    binary.BigEndian.Uint16(bytes[0:2]),
		DstPort:    binary.BigEndian.Uint16(bytes[2:4]),
		SeqNum:     binary.BigEndian.Uint32(bytes[4:8]),
		AckNum:     binary.BigEndian.Uint32(bytes[8:12]),
		Flags:      Flags(bytes[13] & 0x3f),
		WindowSize: binary.BigEndian.Uint16(bytes[14:16]),
		Payload:    bytes[dataOffset:],
	}, nil
}

// Build encodes a TCP segment (no options), computing its checksum over the
// IPv4 pseudo-header plus the segment per RFC 793.
func Build(s Segment, src, dst ipv4.Addr) []byte {
	total := headerLen + len(s.Payload)
	out := make([]byte, total)
	binary.BigEndian.PutUint16(out[0:2], s.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], s.DstPort)
	binary.BigEndian.PutUint32(out[4:8], s.SeqNum)
	binary.BigEndian.PutUint32(out[8:12], s.AckNum)
	out[12] = 5 << 4 // data offset, no options
	out[13] = byte(s.Flags)
	binary.BigEndian.PutUint16(out[14:16], s.WindowSize)
	binary.BigEndian.PutUint16(out[16:18], 0) // checksum placeholder
	binary.BigEndian.PutUint16(out[18:20], 0) // urgent pointer, unused
	copy(out[headerLen:], s.Payload)

	pseudo := ipv4.PseudoHeader(src, dst, ipv4.ProtocolTCP, total)
	cs := checksum.SumWithPseudoHeader(pseudo, out)
	binary.BigEndian.PutUint16(out[16:18], cs)
	return out
}

// State is a TCP connection state, restricted to the subset this engine's
// scope implements.
type State int

const (
	StateListen State = iota
	StateSynReceived
	StateEstablished
	StateFinWait
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListen:
		return "LISTEN"
	case StateSynReceived:
		return "SYN-RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait:
		return "FIN-WAIT"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Conn tracks one passive-open connection's handshake and sequence state.
// It does not itself send or receive segments; callers drive it with
// HandleSegment and act on the returned reply segments.
type Conn struct {
	State      State
	LocalISS   uint32
	RemoteISN  uint32
	RemoteNext uint32
	window     uint16
}

// NewConn creates a connection in LISTEN, with the local initial sequence
// number iss chosen by the caller (typically from a seeded RNG, never a
// real clock).
func NewConn(iss uint32, window uint16) *Conn {
	return &Conn{State: StateListen, LocalISS: iss, window: window}
}

// HandleSegment advances the connection state machine in response to an
// inbound segment, returning a reply segment to send (if any) and whether
// the connection just reached ESTABLISHED on this call.
func (c *Conn) HandleSegment(seg Segment) (reply *Segment, establishedNow bool, closedNow bool) {
	switch c.State {
	case StateListen:
		if !seg.Flags.Has(FlagSYN) {
			return nil, false, false
		}
		c.RemoteISN = seg.SeqNum
		c.RemoteNext = seg.SeqNum + 1
		c.State = StateSynReceived
		return &Segment{
			SeqNum:     c.LocalISS,
			AckNum:     c.RemoteNext,
			Flags:      FlagSYN | FlagACK,
			WindowSize: c.window,
		}, false, false

	case StateSynReceived:
		if seg.Flags.Has(FlagRST) {
			c.State = StateClosed
			return nil, false, true
		}
		if seg.Flags.Has(FlagACK) && seg.AckNum == c.LocalISS+1 {
			c.State = StateEstablished
			return nil, true, false
		}
		return nil, false, false

	case StateEstablished:
		if seg.Flags.Has(FlagFIN) {
			c.RemoteNext = seg.SeqNum + 1
			c.State = StateFinWait
			return &Segment{
				SeqNum:     c.LocalISS + 1,
				AckNum:     c.RemoteNext,
				Flags:      FlagACK,
				WindowSize: c.window,
			}, false, false
		}
		if seg.Flags.Has(FlagRST) {
			c.State = StateClosed
			return nil, false, true
		}
		return nil, false, false

	case StateFinWait:
		c.State = StateClosed
		return nil, false, true

	default:
		return nil, false, false
	}
}
