// Package button turns a bouncing push-button input into Down, Up and Held
// events delivered over an unbounded single-consumer channel.
package button

// Event is a debounced button transition. The zero value means "no event".
type Event uint8

const (
	EventDown Event = iota + 1
	EventUp
	EventHeld
)

func (e Event) String() string {
	switch e {
	case EventDown:
		return "DOWN"
	case EventUp:
		return "UP"
	case EventHeld:
		return "HELD"
	default:
		return "NONE"
	}
}
