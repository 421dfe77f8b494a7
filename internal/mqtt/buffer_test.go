package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(b byte) bufferedMsg {
	return bufferedMsg{topic: Topic, payload: []byte{b}}
}

func payloads(msgs []bufferedMsg) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.payload[0])
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Nil(t, rb.drainAll())
	assert.Equal(t, 0, rb.len())
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		assert.False(t, rb.push(msg(byte(i))))
	}
	assert.Equal(t, 5, rb.len())

	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloads(rb.drainAll()))
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)

	var drops int
	for i := 0; i < 8; i++ {
		if rb.push(msg(byte(i))) {
			drops++
		}
	}

	assert.Equal(t, 1, drops, "only the first overflow is reported")
	assert.Equal(t, 5, rb.len())
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloads(rb.drainAll()))
}

func TestRingBufferOverflowReportedAgainAfterDrain(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(msg(0))
	rb.push(msg(1))
	require.True(t, rb.push(msg(2)))
	rb.drainAll()

	rb.push(msg(3))
	rb.push(msg(4))
	assert.True(t, rb.push(msg(5)))
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	rb.push(msg(1))
	rb.push(msg(2))
	rb.push(msg(3))
	assert.Equal(t, []byte{1, 2, 3}, payloads(rb.drainAll()))

	for i := 10; i < 17; i++ {
		rb.push(msg(byte(i)))
	}
	assert.Equal(t, []byte{12, 13, 14, 15, 16}, payloads(rb.drainAll()))
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	rb.push(msg(1))
	rb.push(msg(2))
	assert.Equal(t, []byte{2}, payloads(rb.drainAll()))
}
