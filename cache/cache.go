// Package cache implements a single PE's 2-way set-associative, MESI
// coherent cache: bit-matrix LRU replacement, write-back/write-allocate by
// default, and a pluggable bus interface so the cache logic is unit
// testable with no interconnect wired in at all.
package cache

import (
	"encoding/binary"

	"github.com/golang/glog"

	"mesisim/bus"
	"mesisim/mesi"
)

// HitPolicy controls what a write hit does to the line.
type HitPolicy byte

const (
	WriteBack HitPolicy = iota
	WriteThrough
)

// MissPolicy controls whether a write miss allocates a line.
type MissPolicy byte

const (
	WriteAllocate MissPolicy = iota
	NoWriteAllocate
)

// BusInterface is the surface a Cache needs from the interconnect. Leaving
// it nil puts the cache in standalone mode: hits still work, but misses
// that would need memory traffic leave the fetched block zeroed instead of
// erroring, which is enough to exercise MESI/LRU logic in isolation.
type BusInterface interface {
	SubmitAndAwait(tx bus.Transaction) (bus.Transaction, error)
}

// Line is one cache block.
type Line struct {
	Valid bool
	Dirty bool
	MESI  mesi.State
	Tag   uint64
	Data  [BlockSize]byte
}

type cacheSet struct {
	ways [Ways]Line
	lru  lruMatrix
}

func (s *cacheSet) find(tag uint64) (int, bool) {
	for i := range s.ways {
		if s.ways[i].Valid && s.ways[i].Tag == tag {
			return i, true
		}
	}
	return 0, false
}

// Stats counts per-cache events for diagnostics and test assertions.
type Stats struct {
	ReadHits        uint64
	ReadMisses      uint64
	WriteHits       uint64
	WriteMisses     uint64
	Invalidations   uint64
	Writebacks      uint64
	MESITransitions uint64
}

// Cache is one PE's private cache.
type Cache struct {
	peID      int
	sets      [Sets]cacheSet
	bus       BusInterface
	writeHit  HitPolicy
	writeMiss MissPolicy

	Stats Stats
}

// New returns an empty cache for the given PE id, wired to bus (which may
// be nil for standalone use). Policy defaults to write-back/write-allocate,
// the only combination the spec requires end to end.
func New(peID int, busIface BusInterface) *Cache {
	return &Cache{peID: peID, bus: busIface, writeHit: WriteBack, writeMiss: WriteAllocate}
}

// SetPolicy overrides the default write-back/write-allocate policy.
func (c *Cache) SetPolicy(hit HitPolicy, miss MissPolicy) {
	c.writeHit = hit
	c.writeMiss = miss
}

// PEID identifies which PE owns this cache; it satisfies bus.Peer.
func (c *Cache) PEID() int { return c.peID }

func (c *Cache) transition(line *Line, event mesi.Event) mesi.Result {
	r := mesi.Step(line.MESI, event)
	if r.Next != line.MESI {
		c.Stats.MESITransitions++
		glog.V(1).Infof("cache: pe%d %s -> %s on %s", c.peID, line.MESI, r.Next, event)
	}
	return r
}

// Read performs a local load of the 8-byte word at byteAddr, returning the
// word and whether it was a cache hit.
func (c *Cache) Read(byteAddr uint64) (uint64, bool, error) {
	addr := Decompose(byteAddr)
	set := &c.sets[addr.Index]

	if way, ok := set.find(addr.Tag); ok {
		line := &set.ways[way]
		c.transition(line, mesi.LocalRead)
		set.lru.access(way)
		c.Stats.ReadHits++
		return binary.LittleEndian.Uint64(line.Data[addr.Offset:]), true, nil
	}

	c.Stats.ReadMisses++
	way, err := c.allocate(addr)
	if err != nil {
		return 0, false, err
	}
	line := &set.ways[way]
	r := c.transition(line, mesi.LocalRead)
	if err := c.fetchInto(line, addr, &r, bus.BusRd); err != nil {
		return 0, false, err
	}
	line.MESI = r.Next
	set.lru.access(way)
	return binary.LittleEndian.Uint64(line.Data[addr.Offset:]), false, nil
}

// Write performs a local store of word at byteAddr, returning whether it
// was a cache hit.
func (c *Cache) Write(byteAddr uint64, word uint64) (bool, error) {
	addr := Decompose(byteAddr)
	set := &c.sets[addr.Index]

	if way, ok := set.find(addr.Tag); ok {
		line := &set.ways[way]
		r := c.transition(line, mesi.LocalWrite)
		if r.NeedsBusMessage {
			if _, err := c.submit(bus.BusUpgr, addr.BlockAddr(), nil); err != nil {
				return false, err
			}
		}
		line.MESI = r.Next
		c.store(line, addr, word)
		if c.writeHit == WriteBack {
			line.Dirty = true
		} else if err := c.flush(addr.BlockAddr(), line); err != nil {
			return false, err
		}
		set.lru.access(way)
		c.Stats.WriteHits++
		return true, nil
	}

	c.Stats.WriteMisses++
	if c.writeMiss == NoWriteAllocate {
		return false, c.writeThroughNoAllocate(addr, word)
	}

	way, err := c.allocate(addr)
	if err != nil {
		return false, err
	}
	line := &set.ways[way]
	r := c.transition(line, mesi.LocalWrite)
	if err := c.fetchInto(line, addr, &r, bus.BusRdX); err != nil {
		return false, err
	}
	line.MESI = r.Next
	c.store(line, addr, word)
	line.Dirty = true
	set.lru.access(way)
	return false, nil
}

func (c *Cache) writeThroughNoAllocate(addr Address, word uint64) error {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint64(buf[addr.Offset:], word)
	_, err := c.submit(bus.BusWB, addr.BlockAddr(), buf[:])
	return err
}

// allocate picks a victim way in addr's set, evicting it (with writeback if
// dirty) if occupied, and returns the way index now free for installation.
func (c *Cache) allocate(addr Address) (int, error) {
	set := &c.sets[addr.Index]
	way := set.lru.victim()
	line := &set.ways[way]
	if line.Valid {
		r := c.transition(line, mesi.Eviction)
		if r.NeedsWriteback {
			if err := c.flush(Address{Tag: line.Tag, Index: addr.Index}.BlockAddr(), line); err != nil {
				return 0, err
			}
		}
		line.MESI = mesi.Invalid
		line.Valid = false
		line.Dirty = false
	}
	return way, nil
}

// fetchInto issues the bus message the MESI result calls for and, if it
// calls for a memory fetch, installs the returned block into line. A BusRd
// whose snoop finds a peer still holding the block demotes r.Next from the
// optimistic Exclusive to Shared, per the interconnect's authority to
// override the requester's initial guess.
func (c *Cache) fetchInto(line *Line, addr Address, r *mesi.Result, kind bus.Kind) error {
	line.Tag = addr.Tag
	line.Valid = true
	line.Dirty = false
	if !r.NeedsBusMessage {
		return nil
	}
	tx, err := c.submit(kind, addr.BlockAddr(), make([]byte, BlockSize))
	if err != nil {
		return err
	}
	if kind == bus.BusRd && tx.PeerHeld && r.Next == mesi.Exclusive {
		r.Next = mesi.Shared
	}
	if r.FetchFromMemory {
		if tx.Payload != nil {
			copy(line.Data[:], tx.Payload)
		} else {
			line.Data = [BlockSize]byte{}
		}
	}
	return nil
}

func (c *Cache) store(line *Line, addr Address, word uint64) {
	binary.LittleEndian.PutUint64(line.Data[addr.Offset:], word)
}

// flush writes a dirty line back to memory via the bus.
func (c *Cache) flush(blockAddr uint64, line *Line) error {
	if c.bus == nil {
		return nil
	}
	buf := make([]byte, BlockSize)
	copy(buf, line.Data[:])
	if _, err := c.submit(bus.BusWB, blockAddr, buf); err != nil {
		return err
	}
	c.Stats.Writebacks++
	glog.V(1).Infof("cache: pe%d writeback block=0x%x", c.peID, blockAddr)
	return nil
}

func (c *Cache) submit(kind bus.Kind, blockAddr uint64, payload []byte) (bus.Transaction, error) {
	if c.bus == nil {
		return bus.Transaction{Kind: kind, BlockAddr: blockAddr, PEID: c.peID}, nil
	}
	return c.bus.SubmitAndAwait(bus.Transaction{Kind: kind, BlockAddr: blockAddr, PEID: c.peID, Payload: payload})
}

// Snoop runs the MESI controller against a bus event broadcast by another
// PE's transaction, and reports whether this cache held a line matching
// blockAddr (regardless of the state it transitions to), so the
// interconnect can tell a BusRd's requester to install the block Shared
// instead of Exclusive. A tag miss in this cache's set is a silent no-op:
// the line was never held here.
func (c *Cache) Snoop(blockAddr uint64, event mesi.Event) bool {
	addr := Decompose(blockAddr)
	set := &c.sets[addr.Index]
	way, ok := set.find(addr.Tag)
	if !ok {
		return false
	}
	line := &set.ways[way]
	r := c.transition(line, event)
	if r.NeedsWriteback {
		// Snoop has no error channel back to the interconnect; a failure
		// here would mean this cache's own address space is out of range
		// of main memory, which the simulator's wiring never allows.
		_ = c.flush(blockAddr, line)
	}
	if r.NeedsInvalidate {
		c.invalidateLine(line)
	} else {
		line.MESI = r.Next
	}
	return true
}

// Invalidate forces the line holding byteAddr (if any) to the Invalid
// state, independent of any bus event.
func (c *Cache) Invalidate(byteAddr uint64) {
	addr := Decompose(byteAddr)
	set := &c.sets[addr.Index]
	way, ok := set.find(addr.Tag)
	if !ok {
		return
	}
	c.invalidateLine(&set.ways[way])
}

func (c *Cache) invalidateLine(line *Line) {
	c.Stats.Invalidations++
	line.Valid = false
	line.Dirty = false
	line.MESI = mesi.Invalid
}

// Snapshot returns a read-only copy of every line in the cache, indexed
// [set][way], for diagnostics (the TUI) and tests.
func (c *Cache) Snapshot() [Sets][Ways]Line {
	var out [Sets][Ways]Line
	for i := range c.sets {
		out[i] = c.sets[i].ways
	}
	return out
}
