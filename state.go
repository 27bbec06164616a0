package ping

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a target is asked to move to a
// state it cannot reach from its current one.
var ErrInvalidTransition = errors.New("invalid target state transition")

// State is the progress of a single target within a session. Targets only
// ever move forward; terminal states are never left.
type State uint8

const (
	// StatePending targets are resolved and wait for their Echo Request.
	StatePending State = iota
	// StateUnreachable targets failed name resolution. They never see any
	// traffic.
	StateUnreachable
	// StateSent targets had their Echo Request transmitted.
	StateSent
	// StateUp targets answered before the deadline.
	StateUp
	// StateTimedOut targets did not answer before the deadline, or their
	// request could not be transmitted at all.
	StateTimedOut
)

var stateNames = [...]string{
	StatePending:     "pending",
	StateUnreachable: "unreachable",
	StateSent:        "sent",
	StateUp:          "up",
	StateTimedOut:    "timed out",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether s is a final outcome.
func (s State) Terminal() bool {
	switch s {
	case StateUnreachable, StateUp, StateTimedOut:
		return true
	}
	return false
}

// canTransition lists the allowed moves. A reply for a pending target is
// accepted: it proves that a request made it out even though the write
// was reported as incomplete.
func (s State) canTransition(to State) bool {
	switch s {
	case StatePending:
		return to == StateSent || to == StateUp || to == StateTimedOut
	case StateSent:
		return to == StateUp || to == StateTimedOut
	}
	return false
}

// Flags is the classic bitset view of a target state.
type Flags uint8

const (
	FlagSent        Flags = 0x01
	FlagDone        Flags = 0x02
	FlagUnreachable Flags = 0x04
	FlagUp          Flags = 0x08
)

// Flags returns the bitset equivalent of s.
func (s State) Flags() Flags {
	switch s {
	case StateUnreachable:
		return FlagUnreachable
	case StateSent:
		return FlagSent
	case StateUp:
		return FlagSent | FlagDone | FlagUp
	case StateTimedOut:
		return FlagSent | FlagDone
	}
	return 0
}

// Has reports whether all bits of mask are set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Outcome classifies a target once its session has ended.
type Outcome uint8

const (
	// OutcomeOK means a valid reply was received in time.
	OutcomeOK Outcome = iota
	// OutcomeTimedOut means a request was attempted but no valid reply
	// arrived in time.
	OutcomeTimedOut
	// OutcomeUnreachable means the host name could not be resolved.
	OutcomeUnreachable
	// OutcomePending means the target is not settled yet.
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomePending:
		return "pending"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// outcome derives the classification from the flags, UP first.
func (f Flags) outcome() Outcome {
	switch {
	case f.Has(FlagUp):
		return OutcomeOK
	case f.Has(FlagDone):
		return OutcomeTimedOut
	case f.Has(FlagUnreachable):
		return OutcomeUnreachable
	default:
		return OutcomePending
	}
}
