// Package sim wires together main memory, the interconnect, a fixed set
// of per-PE caches, and the PEs themselves, and drives them to
// completion.
package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mesisim/bus"
	"mesisim/cache"
	"mesisim/isa"
	"mesisim/mem"
	"mesisim/pe"
)

// NumPEs is the fixed number of processing elements the simulator wires
// up, per the spec's small shared-memory multiprocessor.
const NumPEs = 4

// Simulator owns every component: memory, interconnect, and caches sit
// outside both the cache and bus packages, per the design note that
// neither should own the other.
type Simulator struct {
	Memory       *mem.Memory
	Interconnect *bus.Interconnect
	Caches       [NumPEs]*cache.Cache
	PEs          [NumPEs]*pe.PE
}

// New constructs a Simulator with NumPEs caches and PEs wired to a fresh
// Memory through a shared Interconnect.
func New() *Simulator {
	s := &Simulator{Memory: mem.New()}
	s.Interconnect = bus.New(s.Memory, NumPEs)
	for i := 0; i < NumPEs; i++ {
		c := cache.New(i, s.Interconnect)
		s.Interconnect.Register(c)
		s.Caches[i] = c
		s.PEs[i] = pe.New(i, pe.NewPort(c))
	}
	return s
}

// LoadPrograms installs programs[i] on PE i. len(programs) must equal
// NumPEs.
func (s *Simulator) LoadPrograms(programs [][]isa.Instruction) error {
	if len(programs) != NumPEs {
		return fmt.Errorf("sim: expected %d programs, got %d", NumPEs, len(programs))
	}
	for i, prog := range programs {
		s.PEs[i].Load(prog)
	}
	return nil
}

// RunAll runs every PE to completion concurrently, returning the first
// error encountered (e.g. a division by zero), if any.
func (s *Simulator) RunAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range s.PEs {
		p := p
		g.Go(func() error {
			return p.Run(ctx)
		})
	}
	return g.Wait()
}
