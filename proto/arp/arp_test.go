package arp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/nip/proto/arp"
	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/ipv4"
)

func TestBuildParse_RoundTrip(t *testing.T) {
	p := arp.Packet{
		Op:             arp.OpRequest,
		SenderHardware: ethernet.MacAddr{1, 2, 3, 4, 5, 6},
		SenderProtocol: ipv4.Addr(0xc0a80001),
		TargetHardware: ethernet.MacAddr{},
		TargetProtocol: ipv4.Addr(0xc0a80002),
	}

	bytes := arp.Build(p)
	parsed, err := arp.Parse(bytes)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestParse_RejectsShortPacket(t *testing.T) {
	_, err := arp.Parse(make([]byte, 10))
	assert.Error(t, err)
}

func TestParse_RejectsNonEthernetHardwareType(t *testing.T) {
	bytes := arp.Build(arp.Packet{Op: arp.OpReply})
	bytes[1] = 0x02 // hardware type != 1
	_, err := arp.Parse(bytes)
	assert.Error(t, err)
}
