// Package udp implements a minimal UDP datagram codec.
package udp

import (
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/nip/proto/checksum"
	"github.com/joeycumines/nip/proto/ipv4"
)

const headerLen = 8

// Datagram is a parsed UDP datagram.
type Datagram struct {
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// Parse decodes a UDP datagram, not validating the checksum (the engine's
// transport scope does not require rejecting corrupt datagrams beyond what
// the IPv4 layer already guarantees for its scenarios).
func Parse(bytes []byte) (Datagram, error) {
	if len(bytes) < headerLen {
		return Datagram{}, fmt.Errorf("udp: datagram too short: %d bytes", len(bytes))
	}
	length := binary.BigEndian.Uint16(bytes[4:6])
	if int(length) > len(bytes) {
		return Datagram{}, fmt.Errorf("udp: truncated datagram: length %d > available %d", length, len(bytes))
	}
	return Datagram{
		SrcPort: binary.BigEndian.Uint16(bytes[0:2]),
		DstPort: binary.BigEndian.Uint16(bytes[2:4]),
		Payload: bytes[headerLen:length],
	}, nil
}

// Build encodes a UDP datagram, computing its checksum over the IPv4
// pseudo-header plus the segment per RFC 768.
func Build(d Datagram, src, dst ipv4.Addr) []byte {
	total := headerLen + len(d.Payload)
	out := make([]byte, total)
	binary.BigEndian.PutUint16(out[0:2], d.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], d.DstPort)
	binary.BigEndian.PutUint16(out[4:6], uint16(total))
	binary.BigEndian.PutUint16(out[6:8], 0) // checksum placeholder
	copy(out[headerLen:], d.Payload)

	pseudo := ipv4.PseudoHeader(src, dst, ipv4.ProtocolUDP, total)
	cs := checksum.SumWithPseudoHeader(pseudo, out)
	if cs == 0 {
		cs = 0xffff // RFC 768: a computed zero is transmitted as all-ones
	}
	binary.BigEndian.PutUint16(out[6:8], cs)
	return out
}
