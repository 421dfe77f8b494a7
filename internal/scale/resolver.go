package scale

import "github.com/sweeney/load-scale/internal/button"

// Action is a user-facing request derived from button events.
type Action string

const (
	ActionTare      Action = "TARE"
	ActionCalibrate Action = "CALIBRATE"
)

// Resolver folds Down/Up/Held into actions. Down only arms; Up yields Tare
// and Held yields Calibrate, each only when the event immediately before was
// Down.
//
// A single slot holds the last event, so Up after Held in the same press
// sees Held and yields nothing: a long press calibrates but never also tares.
type Resolver struct {
	last button.Event
}

// Resolve consumes ev and returns the resulting action, if any.
func (r *Resolver) Resolve(ev button.Event) (Action, bool) {
	switch ev {
	case button.EventDown:
		r.last = ev
		return "", false
	case button.EventHeld:
		prev := r.last
		r.last = ev
		if prev == button.EventDown {
			return ActionCalibrate, true
		}
	case button.EventUp:
		prev := r.last
		r.last = ev
		if prev == button.EventDown {
			return ActionTare, true
		}
	}
	return "", false
}

// Last returns the most recently consumed event (zero if none).
func (r *Resolver) Last() button.Event {
	return r.last
}
