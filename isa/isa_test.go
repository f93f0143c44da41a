package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleSimpleProgram(t *testing.T) {
	prog, err := Assemble([]string{
		"LOAD R0, 100",
		"LOAD R1, 101",
		"ADD R2, R0, R1",
		"STORE R2, 102",
	})
	require.NoError(t, err)
	require.Len(t, prog, 4)
	assert.Equal(t, Instruction{Op: LOAD, Rd: 0, Ra: -1, Rb: -1, Imm: 100}, prog[0])
	assert.Equal(t, Instruction{Op: ADD, Rd: 2, Ra: 0, Rb: 1}, prog[2])
	assert.Equal(t, Instruction{Op: STORE, Rd: 2, Ra: -1, Rb: -1, Imm: 102}, prog[3])
}

func TestAssembleLoadAddressInRegister(t *testing.T) {
	prog, err := Assemble([]string{"LOAD R0, R1"})
	require.NoError(t, err)
	require.Len(t, prog, 1)
	assert.Equal(t, 1, prog[0].Ra)
	assert.Equal(t, 0, prog[0].Imm)
}

func TestAssembleForwardReferencedLabel(t *testing.T) {
	prog, err := Assemble([]string{
		"JNZ done",
		"DEC R0",
		"done:",
		"NOP",
	})
	require.NoError(t, err)
	require.Len(t, prog, 3)
	// JNZ is the first instruction (index 0); done:, declared after it,
	// labels index 2
	assert.Equal(t, 2, prog[0].Imm)
}

func TestAssembleCommentsAndBlankLinesIgnored(t *testing.T) {
	prog, err := Assemble([]string{
		"; a comment",
		"",
		"NOP",
		"# another style of comment",
	})
	require.NoError(t, err)
	require.Len(t, prog, 1)
	assert.Equal(t, NOP, prog[0].Op)
}

func TestAssembleUnknownOpcode(t *testing.T) {
	_, err := Assemble([]string{"FOO R0"})
	require.Error(t, err)
}

func TestAssembleUnresolvedLabel(t *testing.T) {
	_, err := Assemble([]string{"JL nowhere"})
	require.Error(t, err)
}

func TestAssembleBadRegister(t *testing.T) {
	_, err := Assemble([]string{"INC banana"})
	require.Error(t, err)
}

func TestRegIndexAcceptsBothSpellings(t *testing.T) {
	n, ok := regIndex("R3")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = regIndex("reg7")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = regIndex("loop")
	assert.False(t, ok)
}
