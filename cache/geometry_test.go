package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecomposeRoundTrips(t *testing.T) {
	addrs := []uint64{0, 1, 31, 32, 255, 256, 1<<40 + 17, 0xFFFFFFFFFFFFFFFF}
	for _, a := range addrs {
		d := Decompose(a)
		assert.Equal(t, a, d.Reassemble(), "address %#x", a)
	}
}

func TestDecomposeFields(t *testing.T) {
	d := Decompose(0b1010_011_00101) // tag=0b1010 index=0b011 offset=0b00101
	assert.Equal(t, uint64(0b1010), d.Tag)
	assert.Equal(t, uint8(0b011), d.Index)
	assert.Equal(t, uint8(0b00101), d.Offset)
}

func TestBlockAddrZeroesOffset(t *testing.T) {
	d := Decompose(100)
	assert.Equal(t, uint64(0), Decompose(d.BlockAddr()).Offset)
}
