package icmpv4_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/nip/proto/icmpv4"
)

func TestEcho_RoundTrip(t *testing.T) {
	msg := icmpv4.EchoMessage{Identifier: 7, SeqNum: 1, Data: []byte("ping")}
	bytes := icmpv4.BuildEcho(msg)

	parsed, err := icmpv4.ParseEcho(bytes)
	require.NoError(t, err)
	assert.False(t, parsed.Reply)
	assert.Equal(t, msg.Identifier, parsed.Identifier)
	assert.Equal(t, msg.SeqNum, parsed.SeqNum)
	assert.Equal(t, msg.Data, parsed.Data)
}

func TestEcho_ReplyRoundTrip(t *testing.T) {
	msg := icmpv4.EchoMessage{Reply: true, Identifier: 9, SeqNum: 2}
	bytes := icmpv4.BuildEcho(msg)

	parsed, err := icmpv4.ParseEcho(bytes)
	require.NoError(t, err)
	assert.True(t, parsed.Reply)
}

func TestParseEcho_RejectsNonEchoType(t *testing.T) {
	bytes := icmpv4.BuildError(icmpv4.DestinationUnreachable{Code: icmpv4.CodeHostUnreachable}, 0, nil)
	_, err := icmpv4.ParseEcho(bytes)
	assert.Error(t, err)
}

func TestDestinationUnreachable_Encode(t *testing.T) {
	typ, code := icmpv4.DestinationUnreachable{Code: icmpv4.CodeHostUnreachable}.Encode()
	assert.EqualValues(t, 3, typ)
	assert.EqualValues(t, 1, code)
}

func TestFragmentationNeeded_Encode(t *testing.T) {
	typ, code := icmpv4.FragmentationNeeded{}.Encode()
	assert.EqualValues(t, 3, typ)
	assert.EqualValues(t, 4, code)
}

func TestBuildError_TruncatesOriginalDatagramToEightBytes(t *testing.T) {
	original := []byte("this is a much longer original datagram payload")
	bytes := icmpv4.BuildError(icmpv4.FragmentationNeeded{}, 1400, original)
	assert.Len(t, bytes, 8+8)
}
