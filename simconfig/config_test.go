package simconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAcceptsCommentsAndTrailingCommas(t *testing.T) {
	path := writeTemp(t, "run.hujson", `{
		// a run config, hand-edited by a student
		"shared_program": "dotproduct.asm",
		"vector_a": "a.txt",
		"vector_b": "b.txt",
		"step": true, // trailing comma below is also fine
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotproduct.asm", cfg.SharedProgram)
	assert.True(t, cfg.Step)
}

func TestLoadRequiresVectors(t *testing.T) {
	path := writeTemp(t, "run.hujson", `{"shared_program": "x.asm"}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresAProgramSource(t *testing.T) {
	path := writeTemp(t, "run.hujson", `{"vector_a": "a.txt", "vector_b": "b.txt"}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.hujson"))
	assert.Error(t, err)
}
