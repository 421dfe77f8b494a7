package button

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/load-scale/internal/gpio"
)

const tickStep = 10 * time.Millisecond

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type emitted struct {
	tick  int
	event Event
}

// script concatenates runs of levels.
func script(runs ...[]bool) []bool {
	var out []bool
	for _, r := range runs {
		out = append(out, r...)
	}
	return out
}

func newTestDispatcher(t *testing.T, samples []bool, inverted bool) (*Dispatcher, *Receiver) {
	t.Helper()
	tx, rx := NewChannel()
	d := NewDispatcher(gpio.NewFakeReader(samples), Config{Inverted: inverted, LongPress: DefaultLongPress}, tx, zaptest.NewLogger(t))
	return d, rx
}

// runTicks calls Tick n times at 10ms spacing and records what fired.
func runTicks(d *Dispatcher, n int) []emitted {
	var out []emitted
	for i := 0; i < n; i++ {
		if ev, ok := d.Tick(t0.Add(time.Duration(i) * tickStep)); ok {
			out = append(out, emitted{tick: i, event: ev})
		}
	}
	return out
}

func events(em []emitted) []Event {
	out := make([]Event, len(em))
	for i, e := range em {
		out[i] = e.event
	}
	return out
}

func drainAll(rx *Receiver) []Event {
	var out []Event
	for {
		ev, ok := rx.Poll()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestShortPressInverted(t *testing.T) {
	samples := script(gpio.Repeat(true, 20), gpio.Repeat(false, 30), gpio.Repeat(true, 20))
	d, rx := newTestDispatcher(t, samples, true)

	em := runTicks(d, len(samples))
	require.Equal(t, []Event{EventDown, EventUp}, events(em))

	// Down on the 6th low sample, Up on the 6th high sample
	assert.Equal(t, 25, em[0].tick)
	assert.Equal(t, 55, em[1].tick)

	assert.Equal(t, []Event{EventDown, EventUp}, drainAll(rx))
}

func TestShortPressNonInverted(t *testing.T) {
	samples := script(gpio.Repeat(false, 20), gpio.Repeat(true, 30), gpio.Repeat(false, 20))
	d, rx := newTestDispatcher(t, samples, false)

	em := runTicks(d, len(samples))
	assert.Equal(t, []Event{EventDown, EventUp}, events(em))
	assert.Equal(t, []Event{EventDown, EventUp}, drainAll(rx))
}

func TestHeldWithoutRelease(t *testing.T) {
	// 5 seconds of press, never released
	samples := script(gpio.Repeat(true, 20), gpio.Repeat(false, 500))
	d, rx := newTestDispatcher(t, samples, true)

	em := runTicks(d, len(samples))
	require.Equal(t, []Event{EventDown, EventHeld}, events(em))

	// Held fires exactly long-press after Down
	assert.Equal(t, em[0].tick+int(DefaultLongPress/tickStep), em[1].tick)
	assert.Equal(t, []Event{EventDown, EventHeld}, drainAll(rx))
}

func TestHeldThenRelease(t *testing.T) {
	samples := script(gpio.Repeat(true, 20), gpio.Repeat(false, 400), gpio.Repeat(true, 20))
	d, _ := newTestDispatcher(t, samples, true)

	em := runTicks(d, len(samples))
	assert.Equal(t, []Event{EventDown, EventHeld, EventUp}, events(em))
}

func TestReleaseJustBeforeLongPress(t *testing.T) {
	// Down at tick 25; release confirmed at tick 25+299 < 25+300
	samples := script(gpio.Repeat(true, 20), gpio.Repeat(false, 299), gpio.Repeat(true, 30))
	d, _ := newTestDispatcher(t, samples, true)

	em := runTicks(d, len(samples))
	assert.Equal(t, []Event{EventDown, EventUp}, events(em))
}

func TestBounceProducesNoEvents(t *testing.T) {
	var samples []bool
	samples = append(samples, gpio.Repeat(true, 20)...)
	for i := 0; i < 20; i++ {
		samples = append(samples, false, false, true, false, true)
	}
	samples = append(samples, gpio.Repeat(true, 20)...)
	d, rx := newTestDispatcher(t, samples, true)

	assert.Empty(t, runTicks(d, len(samples)))
	assert.Empty(t, drainAll(rx))
}

func TestRepeatedPresses(t *testing.T) {
	var samples []bool
	samples = append(samples, gpio.Repeat(true, 20)...)
	for i := 0; i < 3; i++ {
		samples = append(samples, gpio.Repeat(false, 15)...)
		samples = append(samples, gpio.Repeat(true, 15)...)
	}
	d, _ := newTestDispatcher(t, samples, true)

	em := runTicks(d, len(samples))
	assert.Equal(t, []Event{EventDown, EventUp, EventDown, EventUp, EventDown, EventUp}, events(em))
}

func TestReadErrorSkipsTick(t *testing.T) {
	pin := gpio.NewFakeReader([]bool{false})
	pin.ReadError = errors.New("gpio fault")
	tx, rx := NewChannel()
	d := NewDispatcher(pin, Config{Inverted: true}, tx, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		_, ok := d.Tick(t0.Add(time.Duration(i) * tickStep))
		assert.False(t, ok)
	}
	assert.Equal(t, uint16(0xFFFF), d.debouncer.History())
	assert.Equal(t, 0, rx.Len())
}

func TestPanicsWhenReceiverClosed(t *testing.T) {
	samples := script(gpio.Repeat(true, 20), gpio.Repeat(false, 10))
	d, rx := newTestDispatcher(t, samples, true)
	rx.Close()

	assert.Panics(t, func() { runTicks(d, len(samples)) })
}

func TestRunClosesSenderWhenTicksStop(t *testing.T) {
	samples := script(gpio.Repeat(true, 20), gpio.Repeat(false, 10), gpio.Repeat(true, 10))
	d, rx := newTestDispatcher(t, samples, true)

	tick := make(chan time.Time, len(samples))
	for range samples {
		tick <- time.Time{}
	}
	close(tick)

	n := 0
	clock := func() time.Time {
		now := t0.Add(time.Duration(n) * tickStep)
		n++
		return now
	}
	d.Run(tick, clock)

	require.NoError(t, rx.WaitFor(EventUp))
	assert.ErrorIs(t, rx.WaitFor(EventDown), ErrClosed)
}

func TestNewDispatcherDefaultsLongPress(t *testing.T) {
	tx, _ := NewChannel()
	d := NewDispatcher(gpio.NewFakeReader([]bool{true}), Config{}, tx, zaptest.NewLogger(t))
	assert.Equal(t, DefaultLongPress, d.longPress)
}
