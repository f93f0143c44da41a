// Package mem implements the simulator's main memory: a flat, word-addressed
// store shared by every PE. It is mutated only through the interconnect
// (package bus); nothing else may write to it directly.
package mem

import (
	"encoding/binary"
	"math"
	"sync"

	"mesisim/simerr"
)

// NumWords is the size of main memory, in 64-bit words. Fixed at compile
// time, per the simulator's geometry contract.
const NumWords = 512

// WordBits is the width of a memory word.
const WordBits = 64

// Memory is a flat ordered sequence of 64-bit words, addressed by word
// index in [0, NumWords). The interconnect is the serialization point for
// coherence; each word access here additionally takes a mutex, which guards
// against concurrent use from tests or standalone tooling that bypasses the
// bus.
type Memory struct {
	mu    sync.Mutex
	words [NumWords]uint64
}

// New returns a zero-initialized Memory.
func New() *Memory {
	return &Memory{}
}

// Read returns the word at index, or an *simerr.OutOfRangeError if index is
// outside [0, NumWords).
func (m *Memory) Read(index uint32) (uint64, error) {
	if index >= NumWords {
		return 0, &simerr.OutOfRangeError{What: "word index", Value: int64(index), Limit: NumWords}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[index], nil
}

// Write stores word at index, or returns an *simerr.OutOfRangeError if index
// is outside [0, NumWords).
func (m *Memory) Write(index uint32, word uint64) error {
	if index >= NumWords {
		return &simerr.OutOfRangeError{What: "word index", Value: int64(index), Limit: NumWords}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[index] = word
	return nil
}

// ReadDouble reads the word at index and reinterprets its bits as an
// IEEE-754 double, with no arithmetic conversion.
func (m *Memory) ReadDouble(index uint32) (float64, error) {
	raw, err := m.Read(index)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(raw), nil
}

// WriteDouble reinterprets value's bits as a uint64 and stores it at index,
// with no arithmetic conversion.
func (m *Memory) WriteDouble(index uint32, value float64) error {
	return m.Write(index, math.Float64bits(value))
}

// ReadBlock fills buf (whose length must be a multiple of 8) with the words
// starting at the byte address blockAddr. It is one of the two paths by
// which the interconnect touches memory on a cache's behalf.
func (m *Memory) ReadBlock(blockAddr uint64, buf []byte) error {
	if len(buf)%8 != 0 {
		return &simerr.ConfigError{Msg: "block size must be a multiple of the word size"}
	}
	start := blockAddr / 8
	for i := 0; i < len(buf)/8; i++ {
		word, err := m.Read(uint32(start) + uint32(i))
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(buf[i*8:], word)
	}
	return nil
}

// WriteBlock stores buf (whose length must be a multiple of 8) starting at
// the byte address blockAddr.
func (m *Memory) WriteBlock(blockAddr uint64, buf []byte) error {
	if len(buf)%8 != 0 {
		return &simerr.ConfigError{Msg: "block size must be a multiple of the word size"}
	}
	start := blockAddr / 8
	for i := 0; i < len(buf)/8; i++ {
		word := binary.LittleEndian.Uint64(buf[i*8:])
		if err := m.Write(uint32(start)+uint32(i), word); err != nil {
			return err
		}
	}
	return nil
}
