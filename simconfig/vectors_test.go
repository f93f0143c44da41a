package simconfig

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesisim/mem"
)

func writeVectorFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadVectorsLayout(t *testing.T) {
	pathA := writeVectorFile(t, "a.txt", "1.5\n2.5\n# comment\n3.5\n")
	pathB := writeVectorFile(t, "b.txt", "10\n20\n30\n")

	m := mem.New()
	require.NoError(t, LoadVectors(pathA, pathB, m))

	n, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	a1, err := m.ReadDouble(1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, a1)

	b1, err := m.ReadDouble(4) // N+1
	require.NoError(t, err)
	assert.Equal(t, 10.0, b1)

	result0, err := m.ReadDouble(7) // 2N+1
	require.NoError(t, err)
	assert.Equal(t, 0.0, result0)

	raw, err := m.Read(1)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(1.5), raw)
}

func TestLoadVectorsLengthMismatch(t *testing.T) {
	pathA := writeVectorFile(t, "a.txt", "1\n2\n")
	pathB := writeVectorFile(t, "b.txt", "1\n")

	m := mem.New()
	err := LoadVectors(pathA, pathB, m)
	assert.Error(t, err)
}

func TestLoadVectorsTooLargeForMemory(t *testing.T) {
	var big string
	for i := 0; i < 200; i++ {
		big += "1\n"
	}
	pathA := writeVectorFile(t, "a.txt", big)
	pathB := writeVectorFile(t, "b.txt", big)

	m := mem.New()
	err := LoadVectors(pathA, pathB, m)
	assert.Error(t, err)
}
