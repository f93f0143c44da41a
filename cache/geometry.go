package cache

import "mesisim/bits"

// Fixed cache geometry: 2-way set-associative, 8 sets, 32-byte blocks.
const (
	BlockSize  = 32
	Ways       = 2
	Sets       = 8
	OffsetBits = 5 // log2(BlockSize)
	IndexBits  = 3 // log2(Sets)
	TagBits    = 64 - OffsetBits - IndexBits
)

// Address is a byte address decomposed into its tag, set index, and
// block offset.
type Address struct {
	Tag    uint64
	Index  uint8
	Offset uint8
}

// Decompose splits a byte address into tag/index/offset per the fixed
// geometry above.
func Decompose(addr uint64) Address {
	return Address{
		Tag:    addr >> (OffsetBits + IndexBits),
		Index:  uint8(bits.LastWord(addr>>OffsetBits, IndexBits)),
		Offset: uint8(bits.LastWord(addr, OffsetBits)),
	}
}

// BlockAddr reassembles the block-aligned byte address (tag and index
// only, offset zeroed) that identifies the line this address belongs to.
func (a Address) BlockAddr() uint64 {
	return (a.Tag << (OffsetBits + IndexBits)) | (uint64(a.Index) << OffsetBits)
}

// Reassemble reconstructs the full byte address, offset included.
func (a Address) Reassemble() uint64 {
	return a.BlockAddr() | uint64(a.Offset)
}
