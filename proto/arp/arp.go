// Package arp implements ARP request/reply encoding for IPv4-over-Ethernet,
// RFC 826.
package arp

import (
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/ipv4"
)

// PacketLen is the fixed length of an ARP packet for Ethernet/IPv4.
const PacketLen = 28

// Op is the ARP operation code.
type Op uint16

const (
	OpRequest Op = 1
	OpReply   Op = 2
)

const (
	hardwareTypeEthernet = 1
	protocolTypeIPv4     = 0x0800
)

// Packet is a parsed ARP request or reply.
type Packet struct {
	Op             Op
	SenderHardware ethernet.MacAddr
	SenderProtocol ipv4.Addr
	TargetHardware ethernet.MacAddr
	TargetProtocol ipv4.Addr
}

// Parse decodes an ARP packet, rejecting anything other than Ethernet/IPv4.
func Parse(bytes []byte) (Packet, error) {
	if len(bytes) < PacketLen {
		return Packet{}, fmt.Errorf("arp: packet too short: %d bytes", len(bytes))
	}
	if binary.BigEndian.Uint16(bytes[0:2]) != hardwareTypeEthernet {
		return Packet{}, fmt.Errorf("arp: unsupported hardware type")
	}
	if binary.BigEndian.Uint16(bytes[2:4]) != protocolTypeIPv4 {
		return Packet{}, fmt.Errorf("arp: unsupported protocol type")
	}
	if bytes[4] != 6 || bytes[5] != 4 {
		return Packet{}, fmt.Errorf("arp: unsupported address lengths")
	}

	var p Packet
	p.Op = Op(binary.BigEndian.Uint16(bytes[6:8]))
	copy(p.SenderHardware[:], bytes[8:14])
	p.SenderProtocol = ipv4.Addr(binary.BigEndian.Uint32(bytes[14:18]))
	copy(p.TargetHardware[:], bytes[18:24])
	p.TargetProtocol = ipv4.Addr(binary.BigEndian.Uint32(bytes[24:28]))
	return p, nil
}

// Build encodes an ARP packet for Ethernet/IPv4.
func Build(p Packet) []byte {
	out := make([]byte, PacketLen)
	binary.BigEndian.PutUint16(out[0:2], hardwareTypeEthernet)
	binary.BigEndian.PutUint16(out[2:4], protocolTypeIPv4)
	out[4] = 6
	out[5] = 4
	binary.BigEndian.PutUint16(out[6:8], uint16(p.Op))
	copy(out[8:14], p.SenderHardware[:])
	binary.BigEndian.PutUint32(out[14:18], uint32(p.SenderProtocol))
	copy(out[18:24], p.TargetHardware[:])
	binary.BigEndian.PutUint32(out[24:28], uint32(p.TargetProtocol))
	return out
}
