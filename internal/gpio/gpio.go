// Package gpio provides the button input with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader samples a single digital input.
type Reader interface {
	// Read returns the electrical level of the pin: true = high.
	// Polarity (active-low vs active-high) is the caller's concern.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default wiring (BCM numbering).
const (
	DefaultChip   = "gpiochip0"
	DefaultPinBtn = 17
)
