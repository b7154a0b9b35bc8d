package device

// PIC is a minimal stand-in for the 8259 programmable interrupt
// controller. Real edge/level interrupt injection from external
// devices (timer, keyboard) is not modeled (spec §9 Open Questions);
// this only tracks the end-of-interrupt command so BIOS/DOS code that
// issues an EOI after servicing an IRQ doesn't find an unbound port.
type PIC struct {
	// EOICount counts every 0x20 (EOI) command byte received, for
	// tests/monitor display.
	EOICount int
	// lastCommand records the most recent byte written, whatever it
	// was, so callers can inspect non-EOI writes.
	lastCommand byte
}

const (
	picPort    = 0x20
	eoiCommand = 0x20
)

// NewPIC returns a PIC ready to attach via Registry.Attach.
func NewPIC() *PIC { return &PIC{} }

func (p *PIC) Ports() []uint16 { return []uint16{picPort} }

func (p *PIC) ReadU8(port uint16) byte {
	return p.lastCommand
}

func (p *PIC) WriteU8(port uint16, v byte) {
	p.lastCommand = v
	if v == eoiCommand {
		p.EOICount++
	}
}
