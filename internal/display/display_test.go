package display

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	texts []string
}

func (r *recordingSink) SetDisplay(text string) { r.texts = append(r.texts, text) }

func TestLogDisplay(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLog(zap.New(core))

	require.NoError(t, d.Show("Taring...", Origin))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "display", entries[0].Message)
	assert.Equal(t, "Taring...", entries[0].ContextMap()["text"])
}

func TestMirror(t *testing.T) {
	sink := &recordingSink{}
	d := NewMirror(sink)

	require.NoError(t, d.Show("Weight 12g", Origin))
	require.NoError(t, d.Show("Weight 13g", Origin))
	assert.Equal(t, []string{"Weight 12g", "Weight 13g"}, sink.texts)
}

func TestMultiWritesAll(t *testing.T) {
	a := &FakeDisplay{ShowError: errors.New("i2c nack")}
	b := &FakeDisplay{}

	err := Multi{a, b}.Show("Calibrating...", Point{X: 1, Y: 2})
	assert.Error(t, err)
	assert.Equal(t, []string{"Calibrating..."}, a.Texts)
	assert.Equal(t, []string{"Calibrating..."}, b.Texts)
	assert.Equal(t, Point{X: 1, Y: 2}, b.Points[0])
}

func TestMultiNoErrors(t *testing.T) {
	assert.NoError(t, Multi{&FakeDisplay{}, &FakeDisplay{}}.Show("x", Origin))
}

func TestFakeDisplayLast(t *testing.T) {
	f := &FakeDisplay{}
	assert.Equal(t, "", f.Last())

	var seen []string
	f.OnShow = func(text string) { seen = append(seen, text) }
	f.Show("a", Origin)
	f.Show("b", Origin)
	assert.Equal(t, "b", f.Last())
	assert.Equal(t, []string{"a", "b"}, seen)
}
