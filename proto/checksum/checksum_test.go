package checksum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joeycumines/nip/proto/checksum"
)

func TestSum_IPv4HeaderVerifiesToZero(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x3c, 0x1c, 0x46, 0x40, 0x00, 0x40, 0x06,
		0x00, 0x00, 0xac, 0x10, 0x0a, 0x63, 0xac, 0x10, 0x0a, 0x0c}
	cs := checksum.Sum(data)

	data[10] = byte(cs >> 8)
	data[11] = byte(cs)
	assert.Equal(t, uint16(0), checksum.Sum(data))
}

func TestSum_OddLength(t *testing.T) {
	cs := checksum.Sum([]byte{0x01, 0x02, 0x03})
	assert.NotZero(t, cs)
}

func TestSumWithPseudoHeader(t *testing.T) {
	pseudo := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0, 17, 0, 8}
	data := []byte{0, 1, 0, 2, 0, 8, 0, 0}
	combined := append(append([]byte{}, pseudo...), data...)
	assert.Equal(t, checksum.Sum(combined), checksum.SumWithPseudoHeader(pseudo, data))
}
