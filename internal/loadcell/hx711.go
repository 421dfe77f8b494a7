//go:build linux

package loadcell

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// tareRetryDelay is the wait between polls while the ADC is busy during Tare.
const tareRetryDelay = time.Millisecond

// HX711 drives an HX711 over two GPIO lines: DOUT (input) and PD_SCK (output).
type HX711 struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	dout   *gpiocdev.Line
	sck    *gpiocdev.Line
	gain   Gain
	offset int32
	scale  float32
}

// NewHX711 requests the data and clock lines on chipName.
func NewHX711(chipName string, dataPin, clockPin int, gain Gain) (*HX711, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	dout, err := chip.RequestLine(dataPin, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request hx711 data pin %d: %w", dataPin, err)
	}

	sck, err := chip.RequestLine(clockPin, gpiocdev.AsOutput(0))
	if err != nil {
		dout.Close()
		chip.Close()
		return nil, fmt.Errorf("request hx711 clock pin %d: %w", clockPin, err)
	}

	return &HX711{
		chip:  chip,
		dout:  dout,
		sck:   sck,
		gain:  gain,
		scale: 1.0,
	}, nil
}

// SetScale sets the grams-per-count multiplier.
func (h *HX711) SetScale(factor float32) {
	h.mu.Lock()
	h.scale = factor
	h.mu.Unlock()
}

// Tare averages n conversions and stores the result as the offset.
// Busy conversions are waited out; line errors abort.
func (h *HX711) Tare(n int) error {
	if n <= 0 {
		return fmt.Errorf("tare: sample count must be positive, got %d", n)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var sum int64
	for count := 0; count < n; {
		v, err := h.convert()
		if errors.Is(err, ErrNotReady) {
			time.Sleep(tareRetryDelay)
			continue
		}
		if err != nil {
			return fmt.Errorf("tare: %w", err)
		}
		sum += int64(v)
		count++
	}
	h.offset = int32(sum / int64(n))
	return nil
}

// ReadRaw returns one offset-adjusted conversion.
func (h *HX711) ReadRaw() (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.convert()
	if err != nil {
		return 0, err
	}
	return v - h.offset, nil
}

// ReadScaled returns one conversion in grams.
func (h *HX711) ReadScaled() (float32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.convert()
	if err != nil {
		return 0, err
	}
	return float32(v-h.offset) * h.scale, nil
}

// convert clocks out one 24-bit conversion. DOUT high means the ADC is busy.
func (h *HX711) convert() (int32, error) {
	busy, err := h.dout.Value()
	if err != nil {
		return 0, fmt.Errorf("read hx711 data pin: %w", err)
	}
	if busy == 1 {
		return 0, ErrNotReady
	}

	var raw uint32
	for i := 0; i < 24; i++ {
		if err := h.pulse(); err != nil {
			return 0, err
		}
		bit, err := h.dout.Value()
		if err != nil {
			return 0, fmt.Errorf("read hx711 data pin: %w", err)
		}
		raw = raw<<1 | uint32(bit)
	}

	for i := 0; i < h.gain.pulses(); i++ {
		if err := h.pulse(); err != nil {
			return 0, err
		}
	}

	return signExtend24(raw), nil
}

func (h *HX711) pulse() error {
	if err := h.sck.SetValue(1); err != nil {
		return fmt.Errorf("set hx711 clock: %w", err)
	}
	if err := h.sck.SetValue(0); err != nil {
		return fmt.Errorf("clear hx711 clock: %w", err)
	}
	return nil
}

// Close powers the HX711 down (clock held high) and releases the lines.
func (h *HX711) Close() error {
	var errs []error

	if h.sck != nil {
		if err := h.sck.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("power down hx711: %w", err))
		}
		if err := h.sck.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close clock pin: %w", err))
		}
	}
	if h.dout != nil {
		if err := h.dout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data pin: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
