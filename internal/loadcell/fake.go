package loadcell

import "errors"

// FakeSensor is a test double returning scripted conversions.
type FakeSensor struct {
	// Readings are consumed by ReadRaw and ReadScaled in order. Once
	// exhausted the last reading repeats.
	Readings []Reading

	index int

	// Offset is subtracted from every reading; Tare sets it from TareOffset.
	Offset     int32
	TareOffset int32

	// Scale is the factor last passed to SetScale.
	Scale float32

	// ScaleCalls records every SetScale argument.
	ScaleCalls []float32

	// TareCalls records the sample count of every Tare call.
	TareCalls []int

	// TareError, if set, is returned by Tare.
	TareError error

	// Reads counts ReadRaw and ReadScaled calls, failed ones included.
	Reads int
}

// Reading is one scripted conversion result.
type Reading struct {
	Raw int32
	Err error
}

// NewFakeSensor creates a FakeSensor with scale 1.0 returning raws in order.
func NewFakeSensor(raws ...int32) *FakeSensor {
	f := &FakeSensor{Scale: 1.0}
	for _, r := range raws {
		f.Readings = append(f.Readings, Reading{Raw: r})
	}
	return f
}

// SetScale records the factor.
func (f *FakeSensor) SetScale(factor float32) {
	f.Scale = factor
	f.ScaleCalls = append(f.ScaleCalls, factor)
}

// Tare records the call and applies TareOffset.
func (f *FakeSensor) Tare(n int) error {
	f.TareCalls = append(f.TareCalls, n)
	if f.TareError != nil {
		return f.TareError
	}
	f.Offset = f.TareOffset
	return nil
}

func (f *FakeSensor) next() (int32, error) {
	f.Reads++
	if len(f.Readings) == 0 {
		return 0, errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	if r.Err != nil {
		return 0, r.Err
	}
	return r.Raw - f.Offset, nil
}

// ReadRaw returns the next scripted reading minus Offset.
func (f *FakeSensor) ReadRaw() (int32, error) {
	return f.next()
}

// ReadScaled returns the next scripted reading scaled by Scale.
func (f *FakeSensor) ReadScaled() (float32, error) {
	v, err := f.next()
	if err != nil {
		return 0, err
	}
	return float32(v) * f.Scale, nil
}
