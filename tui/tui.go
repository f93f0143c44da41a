// Package tui implements the optional interactive visualizer: a
// bubbletea model generalizing the single-CPU register/page-table dump
// into a grid of panes, one per PE, each showing its registers and its
// cache's per-set MESI/tag/dirty state.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"mesisim/bus"
	"mesisim/cache"
	"mesisim/sim"
)

type model struct {
	sim      *sim.Simulator
	finished [sim.NumPEs]bool
	lastTx   *bus.Transaction
	err      error
}

// Init performs no initial command; the model is ready to step as soon
// as Run starts it, since programs are already loaded on every PE.
func (m model) Init() tea.Cmd {
	return nil
}

// Update advances one instruction on every unfinished PE, then drains
// whatever bus traffic that produced, on Space, Enter, or "j". "q" and
// ctrl+c quit; other keys are ignored.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "enter", "j":
		before := len(m.sim.Interconnect.Log())
		for i, p := range m.sim.PEs {
			if m.finished[i] {
				continue
			}
			finished, err := p.Step()
			if err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.finished[i] = finished
		}
		m.sim.Interconnect.RunUntilIdle()
		if log := m.sim.Interconnect.Log(); len(log) > before {
			tx := log[len(log)-1]
			m.lastTx = &tx
		}
	}
	return m, nil
}

func (m model) renderPE(i int) string {
	p := m.sim.PEs[i]
	var b strings.Builder
	fmt.Fprintf(&b, "PE%d  PC:%-4d Cond:%d\n", i, p.PC, p.Cond)
	for r, v := range p.Regs {
		fmt.Fprintf(&b, " R%d=%016x", r, v)
		if r%2 == 1 {
			b.WriteByte('\n')
		}
	}
	b.WriteString(m.renderCache(m.sim.Caches[i]))
	return b.String()
}

func (m model) renderCache(c *cache.Cache) string {
	var b strings.Builder
	b.WriteString("set way V D tag      MESI\n")
	snap := c.Snapshot()
	for set, ways := range snap {
		for way, line := range ways {
			mark := " "
			if line.Dirty {
				mark = "*"
			}
			fmt.Fprintf(&b, "%3d %3d %v %s %08x %s\n", set, way, line.Valid, mark, line.Tag, line.MESI)
		}
	}
	return b.String()
}

// View renders all four PE panes side by side, plus a dump of the most
// recently processed bus transaction.
func (m model) View() string {
	panes := make([]string, sim.NumPEs)
	for i := range panes {
		panes[i] = m.renderPE(i)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)

	var txDump string
	if m.lastTx != nil {
		txDump = spew.Sdump(*m.lastTx)
	} else {
		txDump = "(no bus transaction processed yet)"
	}

	footer := "last transaction:\n" + txDump
	if m.err != nil {
		footer = "error: " + m.err.Error() + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, "", footer)
}

// Run starts the interactive visualizer over s, which must already have
// programs loaded on every PE. It blocks until the user quits.
func Run(s *sim.Simulator) error {
	_, err := tea.NewProgram(model{sim: s}).Run()
	return err
}
