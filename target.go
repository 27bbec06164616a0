package ping

import (
	"fmt"
	"iter"
	"net/netip"
	"time"
)

// Target is one host under test. The payload is owned by the caller and
// handed back untouched.
type Target[P any] struct {
	host    string
	addr    netip.Addr // invalid if unreachable
	id      uint32     // correlation id, unique within the session
	state   State
	latency time.Duration
	payload P
}

// Host returns the name the target was added with.
func (t *Target[P]) Host() string { return t.host }

// Addr returns the resolved address. It is the zero Addr for unreachable
// targets.
func (t *Target[P]) Addr() netip.Addr { return t.addr }

// ID returns the correlation id embedded into requests for this target.
func (t *Target[P]) ID() uint32 { return t.id }

// State returns the current state.
func (t *Target[P]) State() State { return t.state }

// Flags returns the state as a bitset.
func (t *Target[P]) Flags() Flags { return t.state.Flags() }

// Latency returns the time between the session start and the reply. It is
// zero unless the target is up.
func (t *Target[P]) Latency() time.Duration { return t.latency }

// Micros returns the latency in microseconds.
func (t *Target[P]) Micros() float64 {
	return float64(t.latency) / float64(time.Microsecond)
}

// Payload returns the caller supplied payload.
func (t *Target[P]) Payload() P { return t.payload }

// Outcome classifies the target. It is OutcomePending until the session
// has ended.
func (t *Target[P]) Outcome() Outcome { return t.Flags().outcome() }

func (t *Target[P]) transition(to State) error {
	if !t.state.canTransition(to) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrInvalidTransition, t.host, t.state, to)
	}
	t.state = to
	return nil
}

// registry holds the targets of a session. Enumeration yields the most
// recently added target first.
type registry[P any] struct {
	targets []*Target[P]
	byID    map[uint32]*Target[P]
	lastID  uint32 // wraps around
}

func newRegistry[P any]() registry[P] {
	return registry[P]{
		byID: make(map[uint32]*Target[P]),
	}
}

// add appends a target. An invalid addr marks it unreachable.
func (r *registry[P]) add(host string, addr netip.Addr, payload P) *Target[P] {
	t := &Target[P]{
		host:    host,
		addr:    addr,
		id:      r.lastID,
		payload: payload,
	}
	r.lastID++

	if addr.IsValid() {
		r.byID[t.id] = t
	} else {
		t.state = StateUnreachable
	}

	r.targets = append(r.targets, t)
	return t
}

func (r *registry[P]) len() int {
	return len(r.targets)
}

// all returns a restartable sequence over the targets in registry order.
func (r *registry[P]) all() iter.Seq[*Target[P]] {
	return func(yield func(*Target[P]) bool) {
		for i := len(r.targets) - 1; i >= 0; i-- {
			if !yield(r.targets[i]) {
				return
			}
		}
	}
}

// lookup finds a resolved target by correlation id.
func (r *registry[P]) lookup(id uint32) *Target[P] {
	return r.byID[id]
}

// complete reports whether no target waits for an outcome anymore.
func (r *registry[P]) complete() bool {
	for _, t := range r.targets {
		if !t.state.Terminal() {
			return false
		}
	}
	return true
}

// release hands every payload to fn, if given, and drops all targets.
func (r *registry[P]) release(fn func(P)) {
	if fn != nil {
		for t := range r.all() {
			fn(t.payload)
		}
	}
	clear(r.byID)
	r.targets = nil
}
