// Package debug implements an interactive bubbletea/lipgloss TUI
// monitor over a running *cpu.CPU, generalized from the teacher's
// 6502 single-page/single-accumulator debugger to the 8086's
// fourteen-register, segmented, paged memory model.
package debug

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"github.com/emu8086/emu8086/internal/cpu"
	"github.com/emu8086/emu8086/internal/register"
)

type model struct {
	c         *cpu.CPU
	prevCSIP  uint32
	lastError error
	done      bool
}

// Run starts the interactive monitor over c. Space or 'j' single-steps
// the CPU; 'q' quits.
func Run(c *cpu.CPU) error {
	p := tea.NewProgram(model{c: c})
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	m := finalModel.(model)
	if m.lastError != nil {
		return m.lastError
	}
	return nil
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "j":
			if m.c.Halted() || m.done {
				return m, nil
			}
			m.prevCSIP = physicalCSIP(m.c)
			res, err := m.c.Step()
			if err != nil {
				m.lastError = err
				m.done = true
				return m, nil
			}
			if res == cpu.Halted {
				m.done = true
			}
		}
	}
	return m, nil
}

func physicalCSIP(c *cpu.CPU) uint32 {
	return uint32(c.GetRegister(register.CS))<<4 + uint32(c.GetRegister(register.IP))
}

// renderPage renders 16 bytes starting at a 16-byte-aligned physical
// address, bracketing the byte at the current CS:IP.
func (m model) renderPage(start uint32) string {
	pc := physicalCSIP(m.c)
	s := fmt.Sprintf("%05X | ", start)
	data, err := m.c.ReadBytes(start, 16)
	if err != nil {
		return s + "<unmapped>"
	}
	for i, b := range data {
		if start+uint32(i) == pc {
			s += fmt.Sprintf("[%02x]", b)
		} else {
			s += fmt.Sprintf(" %02x ", b)
		}
	}
	return s
}

func (m model) pageTable() string {
	header := "  addr | "
	for b := 0; b < 16; b++ {
		header += fmt.Sprintf(" %x  ", b)
	}
	rows := []string{header}

	pc := physicalCSIP(m.c)
	base := pc &^ 0xF
	starts := []uint32{0, 0x400, 0x7C00}
	if base > 0x30 {
		starts = append(starts, base-0x20)
	}
	for i := uint32(0); i < 5; i++ {
		starts = append(starts, base+i*16)
	}
	for _, s := range starts {
		rows = append(rows, m.renderPage(s))
	}
	return strings.Join(rows, "\n")
}

func flagGlyph(on bool, letter string) string {
	if on {
		return letter
	}
	return "_"
}

func (m model) status() string {
	regs := m.c.Regs
	flags := strings.Join([]string{
		flagGlyph(regs.OF(), "O"),
		flagGlyph(regs.DF(), "D"),
		flagGlyph(regs.IF(), "I"),
		flagGlyph(regs.TF(), "T"),
		flagGlyph(regs.SF(), "S"),
		flagGlyph(regs.ZF(), "Z"),
		flagGlyph(regs.AF(), "A"),
		flagGlyph(regs.PF(), "P"),
		flagGlyph(regs.CF(), "C"),
	}, " ")

	halted := ""
	if m.c.Halted() {
		halted = " [HALTED]"
	}

	return fmt.Sprintf(`
CS:IP %04X:%04X (was %05X)%s
AX %04x  BX %04x  CX %04x  DX %04x
SP %04x  BP %04x  SI %04x  DI %04x
ES %04x  CS %04x  SS %04x  DS %04x
O D I T S Z A P C
%s
`,
		m.c.GetRegister(register.CS), m.c.GetRegister(register.IP), m.prevCSIP, halted,
		m.c.GetRegister(register.AX), m.c.GetRegister(register.BX), m.c.GetRegister(register.CX), m.c.GetRegister(register.DX),
		m.c.GetRegister(register.SP), m.c.GetRegister(register.BP), m.c.GetRegister(register.SI), m.c.GetRegister(register.DI),
		m.c.GetRegister(register.ES), m.c.GetRegister(register.CS), m.c.GetRegister(register.SS), m.c.GetRegister(register.DS),
		flags,
	)
}

func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.pageTable(),
			m.status(),
		),
		"",
		spew.Sdump(m.c.LastInstruction()),
		"space/j: step   q: quit",
	)
}
