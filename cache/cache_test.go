package cache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesisim/bus"
	"mesisim/mem"
	"mesisim/mesi"
)

func TestStandaloneReadMissThenHit(t *testing.T) {
	c := New(0, nil)

	_, hit, err := c.Read(0)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 1, c.Stats.ReadMisses)

	_, hit, err = c.Read(0)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 1, c.Stats.ReadHits)
}

func TestStandaloneWriteAllocateGoesModified(t *testing.T) {
	c := New(0, nil)

	hit, err := c.Write(0, 0xABCD)
	require.NoError(t, err)
	assert.False(t, hit)

	word, hit, err := c.Read(0)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, uint64(0xABCD), word)
	assert.Equal(t, mesi.Modified, c.sets[0].ways[0].MESI)
}

func TestLRUEvictionWritesBackDirtyLine(t *testing.T) {
	m := mem.New()
	ic := bus.New(m, 1)
	c := New(0, ic)
	ic.Register(c)

	// two blocks that map to the same set (index bits equal, tags differ)
	blockA := uint64(0)
	blockB := uint64(1) << (OffsetBits + IndexBits)
	blockC := uint64(2) << (OffsetBits + IndexBits)

	_, err := c.Write(blockA, 1)
	require.NoError(t, err)
	_, err = c.Write(blockB, 2)
	require.NoError(t, err)

	// both ways of set 0 are now occupied and dirty; a third distinct tag
	// must evict the LRU way (blockA, accessed first) and flush it
	_, err = c.Write(blockC, 3)
	require.NoError(t, err)

	assert.EqualValues(t, 1, c.Stats.Writebacks)

	word, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), word)
}

func TestSnoopBusReadXInvalidatesSharedLine(t *testing.T) {
	c := New(0, nil)
	_, _, err := c.Read(0) // installs Exclusive
	require.NoError(t, err)
	c.sets[0].ways[0].MESI = mesi.Shared

	c.Snoop(0, mesi.BusReadX)
	assert.False(t, c.sets[0].ways[0].Valid)
	assert.Equal(t, mesi.Invalid, c.sets[0].ways[0].MESI)
	assert.EqualValues(t, 1, c.Stats.Invalidations)
}

func TestSnoopOnUnheldTagIsNoOp(t *testing.T) {
	c := New(0, nil)
	_, _, err := c.Read(0)
	require.NoError(t, err)

	otherTag := Decompose(uint64(5) << (OffsetBits + IndexBits))
	c.Snoop(otherTag.BlockAddr(), mesi.BusReadX)

	assert.True(t, c.sets[0].ways[0].Valid)
	assert.EqualValues(t, 0, c.Stats.Invalidations)
}

func TestCoherentReadSharingBetweenTwoCaches(t *testing.T) {
	m := mem.New()
	ic := bus.New(m, 2)
	c0 := New(0, ic)
	c1 := New(1, ic)
	ic.Register(c0)
	ic.Register(c1)

	_, _, err := c0.Read(0)
	require.NoError(t, err)
	assert.Equal(t, mesi.Exclusive, c0.sets[0].ways[0].MESI)

	_, _, err = c1.Read(0)
	require.NoError(t, err)
	assert.Equal(t, mesi.Shared, c1.sets[0].ways[0].MESI)
	assert.Equal(t, mesi.Shared, c0.sets[0].ways[0].MESI, "peer's Exclusive demotes to Shared on a foreign BusRd")
}

func TestCoherentWriteInvalidatesPeer(t *testing.T) {
	m := mem.New()
	ic := bus.New(m, 2)
	c0 := New(0, ic)
	c1 := New(1, ic)
	ic.Register(c0)
	ic.Register(c1)

	_, _, err := c0.Read(0)
	require.NoError(t, err)
	_, _, err = c1.Read(0)
	require.NoError(t, err)

	_, err = c1.Write(0, 0xFF)
	require.NoError(t, err)

	assert.False(t, c0.sets[0].ways[0].Valid, "peer's BusUpgr must invalidate the other Shared copy")
	assert.Equal(t, mesi.Modified, c1.sets[0].ways[0].MESI)
}

// Two standalone caches driven through the identical sequence of reads and
// writes must end up in identical states, independent of peID (which never
// affects local logic in standalone mode).
func TestStandaloneCachesWithSameAccessPatternConverge(t *testing.T) {
	run := func(peID int) [Sets][Ways]Line {
		c := New(peID, nil)
		_, err := c.Write(0, 0xAAAA)
		require.NoError(t, err)
		_, _, err = c.Read(uint64(1) << (OffsetBits + IndexBits))
		require.NoError(t, err)
		return c.Snapshot()
	}

	snapA := run(0)
	snapB := run(3)
	if diff := cmp.Diff(snapA, snapB); diff != "" {
		t.Errorf("snapshots diverged by peID alone (-a +b):\n%s", diff)
	}
}
