// Package display defines the text sink the scale writes prompts and
// weights to. Rendering is left to the implementation.
package display

import (
	"errors"

	"go.uber.org/zap"
)

// Point is a position in display pixels; the origin is top-left.
type Point struct {
	X, Y int
}

// Origin is the top-left corner.
var Origin = Point{}

// Display shows plain text, replacing whatever was on screen.
type Display interface {
	Show(text string, at Point) error
}

// Log writes every screen update to a logger. It is the display used when
// no panel is attached.
type Log struct {
	log *zap.Logger
}

// NewLog returns a Display that logs at info level.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

// Show logs the text.
func (l *Log) Show(text string, at Point) error {
	l.log.Info("display", zap.String("text", text), zap.Int("x", at.X), zap.Int("y", at.Y))
	return nil
}

// TextSink receives the current screen contents.
type TextSink interface {
	SetDisplay(text string)
}

// Mirror copies every screen update into a TextSink, e.g. the status tracker.
type Mirror struct {
	sink TextSink
}

// NewMirror returns a Display that forwards text to sink.
func NewMirror(sink TextSink) *Mirror {
	return &Mirror{sink: sink}
}

// Show forwards text to the sink.
func (m *Mirror) Show(text string, at Point) error {
	m.sink.SetDisplay(text)
	return nil
}

// Multi fans each update out to every display in order. All displays are
// written even if one fails; the errors are joined.
type Multi []Display

// Show writes text to each display.
func (m Multi) Show(text string, at Point) error {
	var errs []error
	for _, d := range m {
		if err := d.Show(text, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
