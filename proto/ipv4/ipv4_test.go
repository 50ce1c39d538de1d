package ipv4_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/nip/proto/ipv4"
)

func TestBuildParse_RoundTrip(t *testing.T) {
	h := ipv4.Header{
		ID:       0x1234,
		TTL:      64,
		Protocol: ipv4.ProtocolUDP,
		Src:      0xc0a80001,
		Dst:      0xc0a80002,
	}
	payload := []byte("hello")

	packet := ipv4.Build(h, payload)
	parsed, rest, err := ipv4.Parse(packet)
	require.NoError(t, err)
	assert.Equal(t, h.ID, parsed.ID)
	assert.Equal(t, h.TTL, parsed.TTL)
	assert.Equal(t, h.Protocol, parsed.Protocol)
	assert.Equal(t, h.Src, parsed.Src)
	assert.Equal(t, h.Dst, parsed.Dst)
	assert.Equal(t, payload, rest)
}

func TestParse_RejectsOptions(t *testing.T) {
	packet := ipv4.Build(ipv4.Header{Protocol: ipv4.ProtocolTCP}, nil)
	packet[0] = 0x46 // IHL 6: options present
	_, _, err := ipv4.Parse(packet)
	assert.Error(t, err)
}

func TestParse_RejectsNonIPv4Version(t *testing.T) {
	packet := ipv4.Build(ipv4.Header{Protocol: ipv4.ProtocolTCP}, nil)
	packet[0] = 0x65 // version 6
	_, _, err := ipv4.Parse(packet)
	assert.Error(t, err)
}

func TestAddr_Classification(t *testing.T) {
	assert.True(t, ipv4.Addr(0).IsUnspecified())
	assert.True(t, ipv4.Addr(0xffffffff).IsBroadcast())
	assert.Equal(t, "192.168.0.1", ipv4.Addr(0xc0a80001).String())
}
