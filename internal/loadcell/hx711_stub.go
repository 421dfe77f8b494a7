//go:build !linux

package loadcell

import "errors"

var errUnsupported = errors.New("loadcell: hx711 not supported on this platform (requires Linux)")

// HX711 is not available on non-Linux platforms.
type HX711 struct{}

// NewHX711 returns an error on non-Linux platforms.
func NewHX711(chipName string, dataPin, clockPin int, gain Gain) (*HX711, error) {
	return nil, errUnsupported
}

func (h *HX711) SetScale(factor float32) {}

func (h *HX711) Tare(n int) error { return errUnsupported }

func (h *HX711) ReadRaw() (int32, error) { return 0, errUnsupported }

func (h *HX711) ReadScaled() (float32, error) { return 0, errUnsupported }

func (h *HX711) Close() error { return nil }
