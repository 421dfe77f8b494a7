package button

// History masks. The low 6 bits are the settled new level, the high 4 bits
// the settled prior level; the middle 6 bits are ignored as the bounce band.
const (
	Mask        uint16 = 0b1111_0000_0011_1111
	RisePattern uint16 = 0b0000_0000_0011_1111
	FallPattern uint16 = 0b1111_0000_0000_0000
)

// Debouncer classifies a stream of pin samples into rising and falling edges
// using a 16-sample shift register. Not safe for concurrent use.
type Debouncer struct {
	inverted bool
	history  uint16
}

// NewDebouncer returns a debouncer in the idle (released) state. Inverted
// buttons are active-low: idle high, pressed low.
func NewDebouncer(inverted bool) *Debouncer {
	d := &Debouncer{inverted: inverted}
	if inverted {
		d.history = 0xFFFF
	}
	return d
}

// Update shifts one sample into the history, newest in bit 0.
func (d *Debouncer) Update(level bool) {
	var bit uint16
	if level {
		bit = 1
	}
	d.history = d.history<<1 | bit
}

// History returns the raw shift register.
func (d *Debouncer) History() uint16 {
	return d.history
}

// Rose reports a confirmed low-to-high edge. On confirmation the history is
// forced to all ones so the same edge cannot fire again.
func (d *Debouncer) Rose() bool {
	if d.history&Mask == RisePattern {
		d.history = 0xFFFF
		return true
	}
	return false
}

// Fell reports a confirmed high-to-low edge, forcing the history to all zeros.
func (d *Debouncer) Fell() bool {
	if d.history&Mask == FallPattern {
		d.history = 0x0000
		return true
	}
	return false
}

// Down reports a confirmed press.
func (d *Debouncer) Down() bool {
	if d.inverted {
		return d.Fell()
	}
	return d.Rose()
}

// Up reports a confirmed release.
func (d *Debouncer) Up() bool {
	if d.inverted {
		return d.Rose()
	}
	return d.Fell()
}
