package domain

import "fmt"

// RSVPStatus is a participant's declared or confirmed attendance state.
type RSVPStatus string

const (
	RSVPNotGoing  RSVPStatus = "not-going"
	RSVPMaybe     RSVPStatus = "maybe"
	RSVPGoing     RSVPStatus = "going"
	RSVPCheckedIn RSVPStatus = "checked-in"
)

// ParseRSVPStatus parses one of the four wire values.
func ParseRSVPStatus(s string) (RSVPStatus, error) {
	switch st := RSVPStatus(s); st {
	case RSVPNotGoing, RSVPMaybe, RSVPGoing, RSVPCheckedIn:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown rsvp status %q", ErrInvalidInput, s)
}

// SelfService reports whether a participant may pick this status themselves.
func (s RSVPStatus) SelfService() bool {
	return s == RSVPNotGoing || s == RSVPMaybe || s == RSVPGoing
}

// Terminal reports whether no transition may leave the status.
func (s RSVPStatus) Terminal() bool {
	return s == RSVPCheckedIn
}

// TransitionTo validates a self-service change from s to next.
// checked-in is never reachable this way and nothing leaves it.
func (s RSVPStatus) TransitionTo(next RSVPStatus) error {
	if s.Terminal() {
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, s)
	}
	if !next.SelfService() {
		return fmt.Errorf("%w: cannot move to %s", ErrInvalidTransition, next)
	}
	return nil
}

// CheckIn validates the organizer-gated going -> checked-in transition.
func (s RSVPStatus) CheckIn() (RSVPStatus, error) {
	if s != RSVPGoing {
		return s, fmt.Errorf("%w: cannot check in from %s", ErrInvalidTransition, s)
	}
	return RSVPCheckedIn, nil
}
