package udp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/nip/proto/udp"
)

func TestBuildParse_RoundTrip(t *testing.T) {
	d := udp.Datagram{SrcPort: 1234, DstPort: 53, Payload: []byte("query")}
	bytes := udp.Build(d, 0xc0a80001, 0xc0a80002)

	parsed, err := udp.Parse(bytes)
	require.NoError(t, err)
	assert.Equal(t, d.SrcPort, parsed.SrcPort)
	assert.Equal(t, d.DstPort, parsed.DstPort)
	assert.Equal(t, d.Payload, parsed.Payload)
}

func TestParse_RejectsShortDatagram(t *testing.T) {
	_, err := udp.Parse(make([]byte, 4))
	assert.Error(t, err)
}

func TestParse_RejectsTruncatedDatagram(t *testing.T) {
	d := udp.Datagram{SrcPort: 1, DstPort: 2, Payload: []byte("x")}
	bytes := udp.Build(d, 1, 2)
	_, err := udp.Parse(bytes[:len(bytes)-1])
	assert.Error(t, err)
}
