package button

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/load-scale/internal/gpio"
)

// Defaults for the dispatcher timing.
const (
	DefaultPoll      = 10 * time.Millisecond
	DefaultLongPress = 3000 * time.Millisecond
)

// Config controls a Dispatcher.
type Config struct {
	Inverted  bool
	Poll      time.Duration
	LongPress time.Duration
}

// Dispatcher samples the button pin, debounces it and synthesises Held from
// dwell time. It owns the pin and its state exclusively; the only output is
// the event channel.
type Dispatcher struct {
	pin       gpio.Reader
	debouncer *Debouncer
	longPress time.Duration
	events    *Sender
	log       *zap.Logger

	// zero value means unset
	downTime     time.Time
	nextLongTime time.Time
}

// NewDispatcher creates a dispatcher that reads pin and sends to events.
func NewDispatcher(pin gpio.Reader, cfg Config, events *Sender, log *zap.Logger) *Dispatcher {
	if cfg.LongPress <= 0 {
		cfg.LongPress = DefaultLongPress
	}
	return &Dispatcher{
		pin:       pin,
		debouncer: NewDebouncer(cfg.Inverted),
		longPress: cfg.LongPress,
		events:    events,
		log:       log,
	}
}

// Tick processes one poll period. It returns the emitted event, if any.
// A failed pin read skips the tick without shifting the history.
// Panics if the receiver has been closed.
func (d *Dispatcher) Tick(now time.Time) (Event, bool) {
	level, err := d.pin.Read()
	if err != nil {
		d.log.Warn("button read failed", zap.Error(err))
		return 0, false
	}
	d.debouncer.Update(level)

	var ev Event
	pressed := !d.downTime.IsZero()
	switch {
	case pressed && d.debouncer.Up():
		d.downTime = time.Time{}
		d.nextLongTime = time.Time{}
		ev = EventUp
	case pressed && !d.nextLongTime.IsZero():
		if now.Before(d.nextLongTime) {
			return 0, false
		}
		d.nextLongTime = time.Time{}
		ev = EventHeld
	case !pressed && d.debouncer.Down():
		d.downTime = now
		d.nextLongTime = now.Add(d.longPress)
		ev = EventDown
	default:
		return 0, false
	}

	d.log.Info("button event", zap.Stringer("event", ev))
	if err := d.events.Send(ev); err != nil {
		panic(fmt.Sprintf("button: send %s: %v", ev, err))
	}
	return ev, true
}

// Run calls Tick for every value received on tick until the channel closes,
// then closes the sender.
func (d *Dispatcher) Run(tick <-chan time.Time, now func() time.Time) {
	defer d.events.Close()
	for range tick {
		d.Tick(now())
	}
}

// Start launches a dispatcher goroutine polling pin every cfg.Poll for the
// lifetime of the process and returns the receiving end of its channel.
func Start(pin gpio.Reader, cfg Config, log *zap.Logger) *Receiver {
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	tx, rx := NewChannel()
	d := NewDispatcher(pin, cfg, tx, log)
	ticker := time.NewTicker(cfg.Poll)
	go d.Run(ticker.C, time.Now)
	log.Info("button dispatcher started",
		zap.Bool("inverted", cfg.Inverted),
		zap.Duration("poll", cfg.Poll),
		zap.Duration("long_press", d.longPress))
	return rx
}
