// Package loadcell abstracts the weight sensor. The real implementation
// bit-bangs an HX711 24-bit ADC over the Linux GPIO character device.
package loadcell

import "errors"

// ErrNotReady is returned when the ADC has no conversion available yet.
var ErrNotReady = errors.New("loadcell: conversion not ready")

// Sensor is a load cell amplifier with a software offset and scale.
type Sensor interface {
	// SetScale sets the grams-per-count multiplier used by ReadScaled.
	SetScale(factor float32)

	// Tare averages n readings and stores them as the zero offset.
	Tare(n int) error

	// ReadRaw returns one conversion in counts with the offset subtracted.
	ReadRaw() (int32, error)

	// ReadScaled returns one conversion converted to grams.
	ReadScaled() (float32, error)
}

// Gain selects the HX711 input channel and amplification for the next
// conversion.
type Gain int

const (
	GainA128 Gain = 128
	GainA64  Gain = 64
	GainB32  Gain = 32
)

// pulses returns the number of extra clock pulses after the 24 data bits
// that select g for the next conversion.
func (g Gain) pulses() int {
	switch g {
	case GainB32:
		return 2
	case GainA64:
		return 3
	default:
		return 1
	}
}

// signExtend24 converts a 24-bit two's complement value to int32.
func signExtend24(v uint32) int32 {
	v &= 0xFFFFFF
	if v&0x800000 != 0 {
		return int32(v | 0xFF000000)
	}
	return int32(v)
}
