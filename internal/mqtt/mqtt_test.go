package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/load-scale/internal/scale"
)

var testTime = time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC)

func TestTopics(t *testing.T) {
	assert.Equal(t, "home/scale/events", Topic)
	assert.Equal(t, "home/scale/system", TopicSystem)
}

func TestFormatPayloadExactJSON(t *testing.T) {
	tests := []struct {
		name  string
		event scale.Event
		want  string
	}{
		{
			name:  "tare",
			event: scale.Event{Timestamp: testTime, Type: scale.EventTare},
			want:  `{"scale":{"timestamp":"2026-02-10T14:30:00Z","event":"TARE"}}`,
		},
		{
			name:  "weight",
			event: scale.Event{Timestamp: testTime, Type: scale.EventWeight, Grams: 512.5},
			want:  `{"scale":{"timestamp":"2026-02-10T14:30:00Z","event":"WEIGHT","grams":512.5}}`,
		},
		{
			name:  "zero weight is kept",
			event: scale.Event{Timestamp: testTime, Type: scale.EventWeight},
			want:  `{"scale":{"timestamp":"2026-02-10T14:30:00Z","event":"WEIGHT","grams":0}}`,
		},
		{
			name:  "calibration complete",
			event: scale.Event{Timestamp: testTime, Type: scale.EventCalibrationComplete, Factor: 0.5, AverageRaw: 4000},
			want:  `{"scale":{"timestamp":"2026-02-10T14:30:00Z","event":"CALIBRATION_COMPLETE","factor":0.5,"average_raw":4000,"persisted":false}}`,
		},
		{
			name:  "calibration failed",
			event: scale.Event{Timestamp: testTime, Type: scale.EventCalibrationFailed},
			want:  `{"scale":{"timestamp":"2026-02-10T14:30:00Z","event":"CALIBRATION_FAILED"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatPayload(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ev := scale.Event{Timestamp: time.Date(2026, 2, 10, 16, 30, 0, 0, loc), Type: scale.EventTare}

	got, err := FormatPayload(ev)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(got, &parsed))
	assert.Equal(t, "2026-02-10T14:30:00Z", parsed.Scale.Timestamp)
}

func TestFormatSystemPayload(t *testing.T) {
	got, err := FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: EventShutdown, Reason: "SIGTERM"})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(got))

	got, err = FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: EventReconnected})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`, string(got))
}

func TestFormatSystemPayloadRawWins(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	got, err := FormatSystemPayload(SystemEvent{Event: EventHeartbeat, RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.Publish(scale.Event{Timestamp: testTime, Type: scale.EventTare}))
	require.NoError(t, f.Publish(scale.Event{Timestamp: testTime, Type: scale.EventWeight, Grams: 10}))
	require.NoError(t, f.PublishSystem(SystemEvent{Timestamp: testTime, Event: EventStartup, Retained: true}))

	assert.Equal(t, []scale.EventType{scale.EventTare, scale.EventWeight}, f.EventTypes())
	assert.Len(t, f.Payloads, 2)
	require.Len(t, f.SystemEvents, 1)
	assert.True(t, f.SystemEvents[0].Retained)

	f.PublishError = errors.New("broker gone")
	assert.Error(t, f.Publish(scale.Event{Type: scale.EventTare}))
	assert.Len(t, f.Events, 2)

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)

	f.Reset()
	assert.Empty(t, f.Events)
	assert.Empty(t, f.SystemEvents)
	assert.False(t, f.Closed)
	assert.NoError(t, f.Publish(scale.Event{Type: scale.EventTare}))
}

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

func newTestPublisher(t *testing.T, size int) (*RealPublisher, *[]sent) {
	t.Helper()
	var out []sent
	p := newPublisher(size, zaptest.NewLogger(t), func(topic string, qos byte, retained bool, payload []byte) error {
		out = append(out, sent{topic, qos, retained, string(payload)})
		return nil
	})
	p.now = func() time.Time { return testTime }
	return p, &out
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	p, out := newTestPublisher(t, 10)

	require.NoError(t, p.Publish(scale.Event{Timestamp: testTime, Type: scale.EventTare}))
	require.NoError(t, p.PublishSystem(SystemEvent{Timestamp: testTime, Event: EventStartup, Retained: true}))

	assert.False(t, p.IsConnected())
	assert.Empty(t, *out)
	assert.Equal(t, 2, p.Buffered())

	p.handleConnect()

	assert.True(t, p.IsConnected())
	assert.Equal(t, 0, p.Buffered())
	require.Len(t, *out, 2, "first connect replays without RECONNECTED")
	assert.Equal(t, Topic, (*out)[0].topic)
	assert.Equal(t, byte(0), (*out)[0].qos)
	assert.Equal(t, TopicSystem, (*out)[1].topic)
	assert.Equal(t, byte(1), (*out)[1].qos)
	assert.True(t, (*out)[1].retained)
}

func TestRealPublisherSendsWhenConnected(t *testing.T) {
	p, out := newTestPublisher(t, 10)
	p.handleConnect()

	require.NoError(t, p.Publish(scale.Event{Timestamp: testTime, Type: scale.EventCalibrationFailed}))

	require.Len(t, *out, 1)
	assert.Contains(t, (*out)[0].payload, "CALIBRATION_FAILED")
}

func TestRealPublisherReconnect(t *testing.T) {
	p, out := newTestPublisher(t, 10)
	p.handleConnect()
	p.handleConnectionLost(errors.New("eof"))
	assert.False(t, p.IsConnected())

	require.NoError(t, p.Publish(scale.Event{Timestamp: testTime, Type: scale.EventTare}))
	assert.Empty(t, *out)

	p.handleConnect()

	require.Len(t, *out, 2)
	assert.Equal(t, TopicSystem, (*out)[0].topic)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`, (*out)[0].payload)
	assert.Contains(t, (*out)[1].payload, `"event":"TARE"`)
}

func TestRealPublisherSendError(t *testing.T) {
	p := newPublisher(10, zaptest.NewLogger(t), func(string, byte, bool, []byte) error {
		return errors.New("publish timeout")
	})
	p.handleConnect()

	err := p.Publish(scale.Event{Type: scale.EventTare})
	assert.ErrorContains(t, err, "publish timeout")
	assert.NoError(t, p.Close())
}
