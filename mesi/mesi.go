// Package mesi implements the MESI coherence controller as a pure function
// from (current state, event) to a result describing the next state plus
// the side effects the calling cache must perform. It holds no reference to
// any cache and is unit-testable on its own, per the design note that
// bus events are a closed set and the controller a plain tagged-sum
// transform.
package mesi

// State is one of the four MESI coherence states.
type State byte

const (
	Invalid State = iota
	Shared
	Exclusive
	Modified
)

// String renders the single-letter state name used throughout the
// simulator's diagnostics (e.g. "cache: pe0 I -> E on LocalRead").
func (s State) String() string {
	switch s {
	case Invalid:
		return "I"
	case Shared:
		return "S"
	case Exclusive:
		return "E"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

// Event is a bus event delivered to a cache's controller: the first two
// are issued by the owning PE, the remaining four arise from other PEs or
// from internal eviction.
type Event byte

const (
	LocalRead Event = iota
	LocalWrite
	BusRead
	BusReadX
	BusUpgrade
	Eviction
)

func (e Event) String() string {
	switch e {
	case LocalRead:
		return "LocalRead"
	case LocalWrite:
		return "LocalWrite"
	case BusRead:
		return "BusRead"
	case BusReadX:
		return "BusReadX"
	case BusUpgrade:
		return "BusUpgrade"
	case Eviction:
		return "Eviction"
	default:
		return "?"
	}
}

// Result carries the controller's verdict for a (state, event) pair: the
// next state, plus the action flags the cache must act on.
type Result struct {
	Next State

	NeedsBusMessage  bool // the cache must issue a request on the interconnect
	NeedsWriteback   bool // the cache must flush the block to memory before proceeding
	NeedsInvalidate  bool // the cache must invalidate this line
	SupplyData       bool // the cache may furnish this block to a peer
	FetchFromMemory  bool // the cache must load the block from memory
}

// transitions mirrors the spec's table directly: unlisted (state, event)
// pairs are no-ops that leave state unchanged, matching the zero Result
// with Next left to the current state by Step.
var transitions = map[State]map[Event]Result{
	Invalid: {
		LocalRead:  {Next: Exclusive, NeedsBusMessage: true, FetchFromMemory: true},
		LocalWrite: {Next: Modified, NeedsBusMessage: true, FetchFromMemory: true},
		// BusRead, BusReadX, BusUpgrade, Eviction: no-ops, line has no data
	},
	Shared: {
		LocalRead:  {Next: Shared},
		LocalWrite: {Next: Modified, NeedsBusMessage: true},
		BusRead:    {Next: Shared, SupplyData: true},
		BusReadX:   {Next: Invalid, NeedsInvalidate: true},
		BusUpgrade: {Next: Invalid, NeedsInvalidate: true},
		Eviction:   {Next: Invalid}, // clean; no writeback
	},
	Exclusive: {
		LocalRead:  {Next: Exclusive},
		LocalWrite: {Next: Modified}, // silent, no bus message
		BusRead:    {Next: Shared, SupplyData: true},
		BusReadX:   {Next: Invalid, NeedsInvalidate: true, SupplyData: true},
		// BusUpgrade: not applicable from E, no-op
		Eviction: {Next: Invalid}, // clean; no writeback
	},
	Modified: {
		LocalRead:  {Next: Modified},
		LocalWrite: {Next: Modified},
		BusRead:    {Next: Shared, NeedsWriteback: true},
		BusReadX:   {Next: Invalid, NeedsWriteback: true, NeedsInvalidate: true},
		// BusUpgrade: not applicable from M, no-op
		Eviction: {Next: Invalid, NeedsWriteback: true}, // dirty; requires writeback
	},
}

// Step runs the controller for one (state, event) pair. Unlisted
// combinations leave state unchanged and return a zero-effects Result. The
// caller is responsible for incrementing its own transition counter when
// Step(state, event).Next != state; only transitions that actually change
// state count, per the spec's resolution of the E->E-silent-write question.
func Step(state State, event Event) Result {
	if byEvent, ok := transitions[state]; ok {
		if r, ok := byEvent[event]; ok {
			return r
		}
	}
	return Result{Next: state}
}
