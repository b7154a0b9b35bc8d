package cpu

import "errors"

// Sentinel errors surfaced to the step caller (spec §7). DivideError
// is deliberately absent: a divide fault is redirected into software
// interrupt 0 rather than returned as a Go error, matching real 8086
// behavior.
var (
	ErrInvalidInstruction = errors.New("cpu: invalid instruction")
	ErrUnsupported        = errors.New("cpu: unsupported instruction")
)
