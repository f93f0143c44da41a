// Package pe implements one processing element: a small integer/float
// register file, a fetch-decode-execute loop over an isa.Instruction
// slice, and the Port adapter wiring it to a private cache.
package pe

import (
	"context"
	"fmt"
	"math"

	"mesisim/isa"
	"mesisim/simerr"
)

// NumRegisters is the size of a PE's general register file.
const NumRegisters = 8

// Condition register values written by CMP and consulted by JL/JLE/JNZ.
const (
	CondEqual byte = iota
	CondLess
	CondGreater
)

// Stats counts instruction execution for diagnostics.
type Stats struct {
	Instructions uint64
	Loads        uint64
	Stores       uint64
	IntOps       uint64
}

// PE is one processing element: its own registers and program counter,
// a condition register, and a Port through which all memory traffic
// passes.
type PE struct {
	ID      int
	Regs    [NumRegisters]uint64
	Cond    byte
	PC      int
	Program []isa.Instruction
	Port    *Port

	Stats Stats
}

// New returns a PE identified by id, talking to memory through port.
func New(id int, port *Port) *PE {
	return &PE{ID: id, Port: port}
}

// Load installs program and resets the program counter to its start.
func (p *PE) Load(program []isa.Instruction) {
	p.Program = program
	p.PC = 0
}

// Run fetch-decode-executes until the program counter runs past the end
// of the program or ctx is canceled. Division by zero and any port error
// are fatal and returned immediately, mirroring the original's
// runToCompletion/threadMain pair collapsed into a single method.
func (p *PE) Run(ctx context.Context) error {
	for p.PC < len(p.Program) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		inst := p.Program[p.PC]
		next, err := p.execute(inst)
		if err != nil {
			return err
		}
		p.Stats.Instructions++
		p.PC = next
	}
	return nil
}

// Step executes exactly one instruction and reports whether the program
// has finished (PC has run past the end). Used by the interactive
// stepper and TUI, which advance one instruction per PE between bus
// drains rather than running each PE to completion uninterrupted.
func (p *PE) Step() (finished bool, err error) {
	if p.PC >= len(p.Program) {
		return true, nil
	}
	inst := p.Program[p.PC]
	next, err := p.execute(inst)
	if err != nil {
		return false, err
	}
	p.Stats.Instructions++
	p.PC = next
	return p.PC >= len(p.Program), nil
}

func (p *PE) execute(inst isa.Instruction) (int, error) {
	switch inst.Op {
	case isa.NOP:
		// no-op

	case isa.LOAD:
		addr, err := p.loadStoreAddr(inst)
		if err != nil {
			return 0, err
		}
		word, err := p.Port.Load(addr)
		if err != nil {
			return 0, err
		}
		p.Regs[inst.Rd] = word
		p.Stats.Loads++

	case isa.STORE:
		addr, err := p.loadStoreAddr(inst)
		if err != nil {
			return 0, err
		}
		if err := p.Port.Store(addr, p.Regs[inst.Rd]); err != nil {
			return 0, err
		}
		p.Stats.Stores++

	case isa.FMUL:
		a := math.Float64frombits(p.Regs[inst.Ra])
		b := math.Float64frombits(p.Regs[inst.Rb])
		p.Regs[inst.Rd] = math.Float64bits(a * b)

	case isa.FADD:
		a := math.Float64frombits(p.Regs[inst.Ra])
		b := math.Float64frombits(p.Regs[inst.Rb])
		p.Regs[inst.Rd] = math.Float64bits(a + b)

	case isa.MUL:
		p.Regs[inst.Rd] = p.Regs[inst.Ra] * p.Regs[inst.Rb]
		p.Stats.IntOps++

	case isa.DIV:
		divisor := int64(p.Regs[inst.Rb])
		if divisor == 0 {
			return 0, &simerr.ProgramError{Msg: fmt.Sprintf("pe %d: division by zero", p.ID)}
		}
		p.Regs[inst.Rd] = uint64(int64(p.Regs[inst.Ra]) / divisor)
		p.Stats.IntOps++

	case isa.ADD:
		p.Regs[inst.Rd] = p.Regs[inst.Ra] + p.Regs[inst.Rb]
		p.Stats.IntOps++

	case isa.MOVE:
		p.Regs[inst.Rd] = p.Regs[inst.Ra]

	case isa.INC:
		p.Regs[inst.Rd]++

	case isa.DEC:
		p.Regs[inst.Rd]--

	case isa.CMP:
		a, b := p.Regs[inst.Ra], p.Regs[inst.Rb]
		switch {
		case a == b:
			p.Cond = CondEqual
		case a < b:
			p.Cond = CondLess
		default:
			p.Cond = CondGreater
		}

	case isa.JL:
		if p.Cond == CondLess {
			return inst.Imm, nil
		}

	case isa.JLE:
		if p.Cond == CondLess || p.Cond == CondEqual {
			return inst.Imm, nil
		}

	case isa.JNZ:
		if p.Cond != CondEqual {
			return inst.Imm, nil
		}

	default:
		return 0, &simerr.ProgramError{Msg: fmt.Sprintf("pe %d: unhandled opcode %v", p.ID, inst.Op)}
	}
	return p.PC + 1, nil
}

// loadStoreAddr resolves a LOAD/STORE instruction's address operand: Ra
// holds a register-indirect address if set, otherwise Imm is a literal
// word index.
func (p *PE) loadStoreAddr(inst isa.Instruction) (uint64, error) {
	if inst.Ra >= 0 {
		return p.Regs[inst.Ra], nil
	}
	return uint64(inst.Imm), nil
}
