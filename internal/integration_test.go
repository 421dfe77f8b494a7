package internal

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/load-scale/internal/button"
	"github.com/sweeney/load-scale/internal/display"
	"github.com/sweeney/load-scale/internal/gpio"
	"github.com/sweeney/load-scale/internal/loadcell"
	"github.com/sweeney/load-scale/internal/mqtt"
	"github.com/sweeney/load-scale/internal/scale"
	"github.com/sweeney/load-scale/internal/store"
)

const pollStep = 10 * time.Millisecond

// bench wires a scripted pin through a real dispatcher and channel into a
// scale, with fakes at the hardware and broker edges. Everything runs on the
// test goroutine; the dispatcher is ticked by hand.
type bench struct {
	t          *testing.T
	pin        *gpio.FakeReader
	dispatcher *button.Dispatcher
	events     *button.Receiver
	sensor     *loadcell.FakeSensor
	disp       *display.FakeDisplay
	pub        *mqtt.FakePublisher
	scale      *scale.Scale
	now        time.Time
}

func newBench(t *testing.T, kv store.KV, raws ...int32) *bench {
	t.Helper()
	log := zaptest.NewLogger(t)
	b := &bench{
		t:      t,
		pin:    gpio.NewFakeReader(gpio.Repeat(true, 20)),
		sensor: loadcell.NewFakeSensor(raws...),
		disp:   &display.FakeDisplay{},
		pub:    mqtt.NewFakePublisher(),
		now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	tx, rx := button.NewChannel()
	b.events = rx
	b.dispatcher = button.NewDispatcher(b.pin, button.Config{Inverted: true, LongPress: button.DefaultLongPress}, tx, log)
	b.scale = scale.New(b.sensor, kv, rx, b.disp, scale.DefaultConfig(), log,
		scale.WithEventHandler(func(ev scale.Event) { require.NoError(t, b.pub.Publish(ev)) }),
		scale.WithSleep(func(time.Duration) {}),
	)

	// operator confirms every prompt with a short press
	b.disp.OnShow = func(text string) {
		if strings.HasSuffix(text, "Press to continue") {
			b.press(200 * time.Millisecond)
		}
	}

	b.tick(20)
	return b
}

func (b *bench) tick(n int) {
	for i := 0; i < n; i++ {
		b.dispatcher.Tick(b.now)
		b.now = b.now.Add(pollStep)
	}
}

// press holds the active-low button for hold, then releases it for 200ms.
func (b *bench) press(hold time.Duration) {
	low := int(hold / pollStep)
	b.pin.Append(gpio.Repeat(false, low)...)
	b.pin.Append(gpio.Repeat(true, 20)...)
	b.tick(low + 20)
}

// settle runs every queued button event through the scale.
func (b *bench) settle() {
	for b.events.Len() > 0 {
		if action, ok := b.scale.PollAction(); ok {
			require.NoError(b.t, b.scale.Handle(action))
		}
	}
}

func TestIntegrationShortPressTares(t *testing.T) {
	b := newBench(t, store.NewMemoryStore(), 0)

	b.press(300 * time.Millisecond)
	assert.Equal(t, 2, b.events.Len(), "Down and Up queued")
	b.settle()

	assert.Equal(t, []scale.EventType{scale.EventTare}, b.pub.EventTypes())
	assert.Equal(t, []int{16}, b.sensor.TareCalls)
	assert.Equal(t, "Tare complete.", b.disp.Last())
}

func TestIntegrationLongPressCalibratesWithoutTare(t *testing.T) {
	kv := store.NewMemoryStore()
	b := newBench(t, kv, 4000)

	b.press(3500 * time.Millisecond)
	b.settle()

	assert.Equal(t, []scale.EventType{
		scale.EventCalibrationStarted,
		scale.EventTare,
		scale.EventCalibrationComplete,
	}, b.pub.EventTypes(), "the release after Held must not tare")
	assert.Equal(t, 0, b.events.Len())

	f, ok := b.scale.Factor()
	require.True(t, ok)
	assert.Equal(t, float32(0.5), f)
	assert.Equal(t, 1, kv.SetCalls)
	assert.Equal(t, "Calibration complete", b.disp.Last())
}

func TestIntegrationPressTooShortForHeld(t *testing.T) {
	b := newBench(t, store.NewMemoryStore(), 0)

	b.press(2500 * time.Millisecond)
	b.settle()

	assert.Equal(t, []scale.EventType{scale.EventTare}, b.pub.EventTypes())
}

func TestIntegrationCalibrationSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scale.db")

	db, err := store.Open(path, "scale_storage")
	require.NoError(t, err)
	first := newBench(t, db, 4000)
	require.True(t, first.scale.NeedsCalibration())
	require.NoError(t, first.scale.Start())
	want, _ := first.scale.Factor()
	require.NoError(t, db.Close())

	db, err = store.Open(path, "scale_storage")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	second := newBench(t, db, 1000)
	got, ok := second.scale.Factor()
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, second.scale.Start())
	assert.Equal(t, []scale.EventType{scale.EventTare}, second.pub.EventTypes(), "no calibration on second boot")

	grams, ok := second.scale.PollGrams()
	require.True(t, ok)
	assert.Equal(t, float32(500), grams)
	assert.Equal(t, "Weight 500g", scale.FormatWeight(grams))
}

func TestIntegrationPayloadFormat(t *testing.T) {
	b := newBench(t, store.NewMemoryStore(), 0)

	b.press(300 * time.Millisecond)
	b.settle()

	require.Len(t, b.pub.Payloads, 1)
	var p mqtt.Payload
	require.NoError(t, json.Unmarshal(b.pub.Payloads[0], &p))
	assert.Equal(t, "TARE", p.Scale.Event)
	_, err := time.Parse(time.RFC3339, p.Scale.Timestamp)
	assert.NoError(t, err)
}
