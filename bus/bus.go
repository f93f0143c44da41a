// Package bus implements the snooping interconnect: round-robin arbitration
// across a fixed set of PE caches, a processed-transaction log, and the only
// two paths ("read_block"/"write_block", here private to service) by which
// a cache's request actually touches main memory.
package bus

import (
	"sync"

	"github.com/golang/glog"

	"mesisim/mesi"
	"mesisim/simerr"
)

// Kind identifies the bus message a cache issues when a local access cannot
// be satisfied (or fully satisfied) from the line it already holds.
type Kind byte

const (
	BusRd Kind = iota
	BusRdX
	BusUpgr
	BusWB
)

func (k Kind) String() string {
	switch k {
	case BusRd:
		return "BusRd"
	case BusRdX:
		return "BusRdX"
	case BusUpgr:
		return "BusUpgr"
	case BusWB:
		return "BusWB"
	default:
		return "?"
	}
}

// snoopEvent maps a transaction kind to the event broadcast to every other
// cache. BusWB carries no snoop: a writeback is invisible to peers.
func (k Kind) snoopEvent() (mesi.Event, bool) {
	switch k {
	case BusRd:
		return mesi.BusRead, true
	case BusRdX:
		return mesi.BusReadX, true
	case BusUpgr:
		return mesi.BusUpgrade, true
	default:
		return 0, false
	}
}

// Transaction is one bus request. BlockAddr is always block-aligned.
// Payload is sized by the caller to the cache's block size; Step fills it
// in for BusRd/BusRdX, and reads it as the data to flush for BusWB.
// PeerHeld is set by Submit's snoop broadcast: true if some other
// registered cache's line matched BlockAddr, which for a BusRd means the
// requester must install the block Shared rather than Exclusive.
type Transaction struct {
	Kind      Kind
	BlockAddr uint64
	PEID      int
	Payload   []byte
	PeerHeld  bool
}

// Peer is the callback surface a cache registers with the interconnect so
// it can receive snoop events for transactions issued by other PEs. Snoop
// reports whether this peer held a line matching blockAddr, so the
// interconnect can tell a BusRd's requester whether to install the block
// Shared (a peer held it) or Exclusive (no peer did).
type Peer interface {
	PEID() int
	Snoop(blockAddr uint64, event mesi.Event) (held bool)
}

// MemPort is the main-memory surface the interconnect drives; mem.Memory
// satisfies it directly.
type MemPort interface {
	ReadBlock(blockAddr uint64, buf []byte) error
	WriteBlock(blockAddr uint64, buf []byte) error
}

type pending struct {
	tx   Transaction
	done bool
	err  error
}

// Handle refers to a transaction enqueued by Submit, to be polled or driven
// to completion via Step/RunUntilIdle.
type Handle struct {
	ic *Interconnect
	p  *pending
}

// Done reports whether the interconnect has serviced this transaction.
func (h *Handle) Done() bool {
	h.ic.mu.Lock()
	defer h.ic.mu.Unlock()
	return h.p.done
}

// Transaction returns the submitted transaction, with Payload filled in for
// BusRd/BusRdX once Done reports true.
func (h *Handle) Transaction() Transaction {
	h.ic.mu.Lock()
	defer h.ic.mu.Unlock()
	return h.p.tx
}

// Interconnect is the simulator's single global critical section: every
// cache's bus traffic passes through it, one transaction at a time, in
// round-robin order across PEs. It is realized with a plain mutex rather
// than a dedicated goroutine-plus-channel service — the design note's
// explicitly sanctioned alternative — which keeps Submit/Step directly
// callable from both live PE goroutines and sequential unit tests.
type Interconnect struct {
	mu     sync.Mutex
	mem    MemPort
	peers  []Peer
	queues [][]*pending
	cursor int
	log    []Transaction
}

// New returns an Interconnect serializing access to mem for numPEs caches.
func New(mem MemPort, numPEs int) *Interconnect {
	return &Interconnect{
		mem:    mem,
		queues: make([][]*pending, numPEs),
	}
}

// Register adds p as a snoop target. Caches must be registered before any
// transaction touching their address space is submitted.
func (ic *Interconnect) Register(p Peer) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.peers = append(ic.peers, p)
}

// Submit enqueues tx in the sender's FIFO and immediately broadcasts the
// corresponding snoop event to every other registered peer. It does not
// perform tx's memory side effect — call Step, RunUntilIdle, or
// SubmitAndAwait for that.
func (ic *Interconnect) Submit(tx Transaction) (*Handle, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if tx.PEID < 0 || tx.PEID >= len(ic.queues) {
		return nil, &simerr.OutOfRangeError{What: "pe id", Value: int64(tx.PEID), Limit: int64(len(ic.queues))}
	}

	tx.PeerHeld = ic.broadcastLocked(tx)
	p := &pending{tx: tx}
	ic.queues[tx.PEID] = append(ic.queues[tx.PEID], p)
	return &Handle{ic: ic, p: p}, nil
}

// broadcastLocked delivers tx's snoop event to every other registered
// peer and reports whether any of them held a matching line.
func (ic *Interconnect) broadcastLocked(tx Transaction) bool {
	event, hasSnoop := tx.Kind.snoopEvent()
	if !hasSnoop {
		return false
	}
	peerHeld := false
	for _, peer := range ic.peers {
		if peer.PEID() == tx.PEID {
			continue
		}
		glog.V(1).Infof("bus: snoop pe%d <- pe%d %s block=0x%x", peer.PEID(), tx.PEID, event, tx.BlockAddr)
		if peer.Snoop(tx.BlockAddr, event) {
			peerHeld = true
		}
	}
	return peerHeld
}

// Step processes at most one transaction, chosen by round-robin scan of
// the PE queues starting just after whichever PE was served last. It
// reports whether any transaction was processed.
func (ic *Interconnect) Step() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.stepLocked()
}

func (ic *Interconnect) stepLocked() bool {
	n := len(ic.queues)
	for i := 0; i < n; i++ {
		pe := (ic.cursor + i) % n
		if len(ic.queues[pe]) == 0 {
			continue
		}
		p := ic.queues[pe][0]
		ic.queues[pe] = ic.queues[pe][1:]
		ic.service(p)
		p.done = true
		ic.cursor = (pe + 1) % n
		return true
	}
	return false
}

func (ic *Interconnect) service(p *pending) {
	switch p.tx.Kind {
	case BusRd, BusRdX:
		p.err = ic.mem.ReadBlock(p.tx.BlockAddr, p.tx.Payload)
	case BusWB:
		p.err = ic.mem.WriteBlock(p.tx.BlockAddr, p.tx.Payload)
	case BusUpgr:
		// ownership change only; no memory access
	}
	glog.V(1).Infof("bus: serviced pe%d %s block=0x%x err=%v", p.tx.PEID, p.tx.Kind, p.tx.BlockAddr, p.err)
	ic.log = append(ic.log, p.tx)
}

// RunUntilIdle steps the interconnect until every PE's queue is empty.
func (ic *Interconnect) RunUntilIdle() {
	for ic.Step() {
	}
}

// SubmitAndAwait submits tx and drives the round-robin arbitration itself
// until tx has been serviced, returning it with Payload filled in. This is
// the blocking entry point caches use during live execution; standalone
// tests typically use Submit and Step/RunUntilIdle separately instead, to
// observe arbitration ordering across several pending PEs at once.
func (ic *Interconnect) SubmitAndAwait(tx Transaction) (Transaction, error) {
	h, err := ic.Submit(tx)
	if err != nil {
		return Transaction{}, err
	}
	for !h.Done() {
		if !ic.Step() {
			break
		}
	}
	result := h.Transaction()
	return result, h.p.err
}

// Log returns the transactions processed so far, in service order.
func (ic *Interconnect) Log() []Transaction {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	out := make([]Transaction, len(ic.log))
	copy(out, ic.log)
	return out
}
