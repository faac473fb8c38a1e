package toggle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is what an activation amounted to.
type Outcome int

const (
	// OK: the device answered with a 2xx status.
	OK Outcome = iota
	// NotOK: the device answered with any other status.
	NotOK
	// NetworkError: no response was received.
	NetworkError
	// Skipped: PolicyDrop suppressed the activation, no request was sent.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "OK"
	case NotOK:
		return "NOT OK"
	case NetworkError:
		return "NETWORK ERROR"
	case Skipped:
		return "SKIPPED"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Label is the metric label form of the outcome.
func (o Outcome) Label() string {
	switch o {
	case OK:
		return "ok"
	case NotOK:
		return "not_ok"
	case NetworkError:
		return "network_error"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Outcomes lists every outcome, in declaration order.
func Outcomes() []Outcome { return []Outcome{OK, NotOK, NetworkError, Skipped} }

// Result describes one activation.
type Result struct {
	ID         uuid.UUID
	Outcome    Outcome
	StatusCode int // 0 unless a response arrived
	Err        error
	Duration   time.Duration
}

// OK reports whether the device accepted the toggle.
func (r Result) OK() bool { return r.Outcome == OK }

func (r Result) String() string {
	switch r.Outcome {
	case OK, NotOK:
		return fmt.Sprintf("%s (%d)", r.Outcome, r.StatusCode)
	case NetworkError:
		if r.Err != nil {
			return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
		}
	}
	return r.Outcome.String()
}
