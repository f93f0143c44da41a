package mem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWrite(t *testing.T) {
	m := New()

	require.NoError(t, m.Write(4, 0xDEADBEEF))
	got, err := m.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), got)

	// unwritten words are zero
	got, err = m.Read(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestOutOfRange(t *testing.T) {
	m := New()

	_, err := m.Read(NumWords)
	assert.Error(t, err)

	err = m.Write(NumWords+10, 1)
	assert.Error(t, err)
}

func TestDoubleBitReinterpretation(t *testing.T) {
	m := New()

	require.NoError(t, m.WriteDouble(0, 123.456))
	got, err := m.ReadDouble(0)
	require.NoError(t, err)
	assert.Equal(t, 123.456, got)

	// the stored word must be the exact IEEE-754 bit pattern, not a
	// decimal round trip through some other representation
	raw, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(123.456), raw)
}
