// Command mesisim runs the cycle-level MESI multiprocessor simulator
// described by a hujson run configuration: it assembles each PE's
// program, loads the two input vectors into shared memory, and either
// runs every PE straight through, single-steps them from an
// interactive prompt, or hands control to the bubbletea visualizer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"mesisim/isa"
	"mesisim/pe"
	"mesisim/sim"
	"mesisim/simconfig"
	"mesisim/tui"
)

func main() {
	if err := run(); err != nil {
		glog.Errorf("mesisim: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", "", "path to the run's .hujson configuration file (required)")
	step := flag.BoolP("step", "s", false, "single-step every PE from an interactive prompt instead of running to completion")
	withTUI := flag.Bool("tui", false, "launch the bubbletea register/cache visualizer instead of running to completion")
	flag.Parse()

	if *configPath == "" {
		flag.Usage()
		return fmt.Errorf("--config is required")
	}

	cfg, err := simconfig.Load(*configPath)
	if err != nil {
		return err
	}
	if *step {
		cfg.Step = true
	}
	if *withTUI {
		cfg.TUI = true
	}

	s := sim.New()
	if err := simconfig.LoadVectors(cfg.VectorA, cfg.VectorB, s.Memory); err != nil {
		return err
	}

	programs, err := assemblePrograms(cfg)
	if err != nil {
		return err
	}
	if err := s.LoadPrograms(programs); err != nil {
		return err
	}
	for i, presets := range cfg.RegisterPresets {
		if i >= sim.NumPEs {
			break
		}
		for r, v := range presets {
			if r >= pe.NumRegisters {
				break
			}
			s.PEs[i].Regs[r] = v
		}
	}

	switch {
	case cfg.TUI:
		err = tui.Run(s)
	case cfg.Step:
		err = stepREPL(s)
	default:
		err = s.RunAll(context.Background())
	}
	if err != nil {
		return err
	}

	printStats(s)
	return nil
}

// assemblePrograms reads and assembles every program text file named in
// cfg: either one per PE, or a single shared program run by every PE
// with its own register preset (the dot-product scenario).
func assemblePrograms(cfg *simconfig.RunConfig) ([][]isa.Instruction, error) {
	if cfg.SharedProgram != "" {
		lines, err := readLines(cfg.SharedProgram)
		if err != nil {
			return nil, err
		}
		program, err := isa.Assemble(lines)
		if err != nil {
			return nil, err
		}
		programs := make([][]isa.Instruction, sim.NumPEs)
		for i := range programs {
			programs[i] = program
		}
		return programs, nil
	}

	programs := make([][]isa.Instruction, len(cfg.Programs))
	for i, path := range cfg.Programs {
		lines, err := readLines(path)
		if err != nil {
			return nil, err
		}
		program, err := isa.Assemble(lines)
		if err != nil {
			return nil, err
		}
		programs[i] = program
	}
	return programs, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// stepREPL drives one instruction per unfinished PE, then drains the bus,
// on every Enter press. "q" stops early; any other input advances one
// step just as Enter does.
func stepREPL(s *sim.Simulator) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	finished := make([]bool, sim.NumPEs)
	for {
		allDone := true
		for _, f := range finished {
			if !f {
				allDone = false
			}
		}
		if allDone {
			return nil
		}

		input, err := line.Prompt("mesisim (step)> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				return nil
			}
			return err
		}
		if strings.TrimSpace(strings.ToLower(input)) == "q" {
			return nil
		}

		for i, p := range s.PEs {
			if finished[i] {
				continue
			}
			done, err := p.Step()
			if err != nil {
				return err
			}
			finished[i] = done
		}
		s.Interconnect.RunUntilIdle()
		if log := s.Interconnect.Log(); len(log) > 0 {
			tx := log[len(log)-1]
			fmt.Printf("  bus: pe%d %s block=0x%x\n", tx.PEID, tx.Kind, tx.BlockAddr)
		}
	}
}

func printStats(s *sim.Simulator) {
	fmt.Println("\nfinal state:")
	for i, c := range s.Caches {
		fmt.Printf("pe%d: reads=%d/%d writes=%d/%d invalidations=%d writebacks=%d transitions=%d\n",
			i, c.Stats.ReadHits, c.Stats.ReadMisses, c.Stats.WriteHits, c.Stats.WriteMisses,
			c.Stats.Invalidations, c.Stats.Writebacks, c.Stats.MESITransitions)
	}

	n, err := s.Memory.Read(0)
	if err != nil {
		return
	}
	fmt.Printf("result[0..%d]:", n)
	for i := uint32(0); i < uint32(n); i++ {
		v, err := s.Memory.ReadDouble(1 + 2*uint32(n) + i)
		if err != nil {
			break
		}
		fmt.Printf(" %g", v)
	}
	fmt.Println()
}
