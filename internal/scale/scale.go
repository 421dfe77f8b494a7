package scale

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/load-scale/internal/button"
	"github.com/sweeney/load-scale/internal/display"
	"github.com/sweeney/load-scale/internal/loadcell"
	"github.com/sweeney/load-scale/internal/store"
)

// Scale owns the sensor, the calibration state and the display. It is driven
// from a single goroutine and is not safe for concurrent use.
type Scale struct {
	sensor  loadcell.Sensor
	kv      store.KV
	events  Events
	display display.Display
	log     *zap.Logger
	cfg     Config

	resolver   Resolver
	factor     float32
	calibrated bool
	phase      Phase
	counts     Counts

	onEvent func(Event)
	onPhase func(Phase)
	sleep   func(time.Duration)
	now     func() time.Time
}

// Option customises a Scale.
type Option func(*Scale)

// WithEventHandler registers fn to receive every Event.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Scale) { s.onEvent = fn }
}

// WithPhaseHandler registers fn to receive every phase change.
func WithPhaseHandler(fn func(Phase)) Option {
	return func(s *Scale) { s.onPhase = fn }
}

// WithSleep replaces time.Sleep for the sampling delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Scale) { s.sleep = fn }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Scale) { s.now = fn }
}

// New creates a Scale and loads the persisted factor. The sensor starts with
// a factor of 1.0; a stored factor, if any, is applied bit-for-bit. A store
// read error is logged and treated as no stored factor.
func New(sensor loadcell.Sensor, kv store.KV, events Events, disp display.Display, cfg Config, log *zap.Logger, opts ...Option) *Scale {
	s := &Scale{
		sensor:  sensor,
		kv:      kv,
		events:  events,
		display: disp,
		log:     log,
		cfg:     cfg,
		phase:   PhaseIdle,
		sleep:   time.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sensor.SetScale(1.0)

	bits, ok, err := kv.GetU32(FactorKey)
	if err != nil {
		log.Warn("failed to load scale factor", zap.Error(err))
		ok = false
	}
	if ok {
		s.factor = math.Float32frombits(bits)
		s.calibrated = true
		s.sensor.SetScale(s.factor)
		log.Info("loaded scale factor", zap.Float32("factor", s.factor))
	} else {
		log.Info("no stored scale factor, calibration required")
	}
	s.setPhase(s.restPhase())

	return s
}

// NeedsCalibration reports whether no factor has been loaded or computed.
func (s *Scale) NeedsCalibration() bool {
	return !s.calibrated
}

// Factor returns the current grams-per-count factor.
func (s *Scale) Factor() (float32, bool) {
	return s.factor, s.calibrated
}

// Phase returns the current protocol phase.
func (s *Scale) Phase() Phase {
	return s.phase
}

// Counts returns protocol outcome counters.
func (s *Scale) Counts() Counts {
	return s.counts
}

// Start runs the power-on sequence: tare, then calibrate if no factor is stored.
func (s *Scale) Start() error {
	if err := s.Tare(); err != nil {
		return err
	}
	if s.NeedsCalibration() {
		return s.Calibrate()
	}
	return nil
}

// PollAction consumes at most one queued button event without blocking.
func (s *Scale) PollAction() (Action, bool) {
	ev, ok := s.events.Poll()
	if !ok {
		return "", false
	}
	return s.resolver.Resolve(ev)
}

// Handle runs the protocol for action.
func (s *Scale) Handle(action Action) error {
	switch action {
	case ActionTare:
		return s.Tare()
	case ActionCalibrate:
		return s.Calibrate()
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// Tare zeroes the sensor with the platform as it is.
func (s *Scale) Tare() error {
	s.setPhase(PhaseTaring)
	defer s.setPhase(s.restPhase())

	s.log.Info("taring scale", zap.Int("samples", s.cfg.TareSamples))
	if err := s.show("Taring..."); err != nil {
		return err
	}

	if err := s.sensor.Tare(s.cfg.TareSamples); err != nil {
		return fmt.Errorf("tare: %w", err)
	}

	s.log.Info("tare complete")
	s.counts.Tares++
	s.emit(Event{Type: EventTare})
	return s.show("Tare complete.")
}

// Calibrate runs the interactive calibration: confirm the platform is empty,
// tare, confirm the reference weight is on, average the sensor and derive the
// factor. It blocks until the operator presses the button at each prompt.
//
// A zero average is reported on the display and leaves the previous factor
// in place. Failure to persist the new factor is logged; the factor stays in
// effect for this session. An error wrapping button.ErrClosed means the
// input goroutine is gone.
func (s *Scale) Calibrate() error {
	s.events.Drain()

	s.log.Info("starting calibration", zap.Float32("reference_grams", s.cfg.ReferenceGrams))
	s.emit(Event{Type: EventCalibrationStarted})

	s.setPhase(PhaseAwaitEmpty)
	if err := s.show("Empty the scale!\nPress to continue"); err != nil {
		return s.abort(err)
	}
	if err := s.events.WaitFor(button.EventDown); err != nil {
		return s.abort(fmt.Errorf("wait for empty confirmation: %w", err))
	}

	if err := s.Tare(); err != nil {
		return s.abort(err)
	}

	s.setPhase(PhaseAwaitReference)
	if err := s.show(fmt.Sprintf("Place %gg weight\nPress to continue", s.cfg.ReferenceGrams)); err != nil {
		return s.abort(err)
	}
	if err := s.events.WaitFor(button.EventDown); err != nil {
		return s.abort(fmt.Errorf("wait for reference confirmation: %w", err))
	}

	s.setPhase(PhaseSampling)
	if err := s.show("Calibrating..."); err != nil {
		return s.abort(err)
	}

	avg, err := s.averageRaw(s.cfg.CalibrationSamples)
	if err != nil {
		return s.abort(err)
	}

	if avg == 0 {
		s.log.Warn("calibration failed, average reading is 0")
		s.counts.CalibrationFailures++
		s.emit(Event{Type: EventCalibrationFailed})
		s.setPhase(s.restPhase())
		return s.show("Calibration failed")
	}

	factor := s.cfg.ReferenceGrams / avg
	s.sensor.SetScale(factor)
	s.factor = factor
	s.calibrated = true

	showErr := s.show("Calibration complete")
	s.log.Info("calibration complete", zap.Float32("factor", factor), zap.Float32("average_raw", avg))

	persisted := true
	if err := s.kv.SetU32(FactorKey, math.Float32bits(factor)); err != nil {
		s.log.Warn("failed to save scale factor", zap.Error(err))
		persisted = false
	} else {
		s.log.Info("scale factor saved")
	}

	s.events.Drain()
	s.counts.Calibrations++
	s.emit(Event{Type: EventCalibrationComplete, Factor: factor, AverageRaw: avg, Persisted: persisted})
	s.setPhase(PhaseReady)
	return showErr
}

// abort restores the resting phase after an interrupted calibration.
func (s *Scale) abort(err error) error {
	s.setPhase(s.restPhase())
	return err
}

// averageRaw takes n good offset-adjusted readings. Failed reads are retried
// indefinitely after RetryDelay; each good read is followed by SampleDelay.
func (s *Scale) averageRaw(n int) (float32, error) {
	if n <= 0 {
		return 0, errors.New("sample count must be greater than 0")
	}

	var sum int64
	for count := 0; count < n; {
		v, err := s.sensor.ReadRaw()
		if err != nil {
			s.log.Debug("sensor read failed, retrying", zap.Error(err))
			s.sleep(s.cfg.RetryDelay)
			continue
		}
		sum += int64(v)
		count++
		s.sleep(s.cfg.SampleDelay)
	}
	return float32(float64(sum) / float64(n)), nil
}

// PollGrams reads the current weight. A failed read reports false.
func (s *Scale) PollGrams() (float32, bool) {
	g, err := s.sensor.ReadScaled()
	if err != nil {
		s.log.Debug("weight read failed", zap.Error(err))
		return 0, false
	}
	return g, true
}

// ShowWeight displays grams and returns the text shown.
func (s *Scale) ShowWeight(grams float32) (string, error) {
	text := FormatWeight(grams)
	return text, s.show(text)
}

func (s *Scale) show(text string) error {
	if err := s.display.Show(text, display.Origin); err != nil {
		return fmt.Errorf("display %q: %w", text, err)
	}
	return nil
}

func (s *Scale) restPhase() Phase {
	if s.calibrated {
		return PhaseReady
	}
	return PhaseNeedsCalibration
}

func (s *Scale) setPhase(p Phase) {
	if p == s.phase {
		return
	}
	s.phase = p
	if s.onPhase != nil {
		s.onPhase(p)
	}
}

func (s *Scale) emit(ev Event) {
	ev.Timestamp = s.now()
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
