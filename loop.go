package ping

import (
	"time"

	"github.com/vincentbernat/riemann-puppet-ping/internal"
	"k8s.io/utils/clock"
)

type (
	// PollFd describes a descriptor handed to a Poller.
	PollFd = internal.PollFd
	// Interest is a set of readiness conditions.
	Interest = internal.Interest
)

const (
	Readable = internal.Readable
	Writable = internal.Writable
)

// Poller waits until one of fds is ready or timeout has elapsed, and
// reports readiness in Revents. Returning with nothing ready is fine.
type Poller interface {
	Poll(fds []PollFd, timeout time.Duration) error
}

// systemPoller waits with poll(2).
type systemPoller struct{}

func (systemPoller) Poll(fds []PollFd, timeout time.Duration) error {
	return internal.Poll(fds, timeout)
}

// Event tells a handler why it was invoked.
type Event uint8

const (
	// EventReady means the socket became ready for the watched operation.
	EventReady Event = iota
	// EventTimeout means the watch deadline passed first.
	EventTimeout
)

func (e Event) String() string {
	if e == EventTimeout {
		return "timeout"
	}
	return "ready"
}

type actionKind uint8

const (
	actionDone actionKind = iota
	actionRearm
	actionExit
)

// action is what a handler asks the loop to do next.
type action struct {
	kind actionKind
	wait time.Duration
}

var (
	// done drops the watch.
	done = action{kind: actionDone}
	// exit stops the loop after the current iteration.
	exit = action{kind: actionExit}
)

// rearm registers the same watch again, expiring after d.
func rearm(d time.Duration) action {
	return action{kind: actionRearm, wait: d}
}

type handler func(Event) action

// watch is a one-shot registration. It fires once, either on readiness or
// on its deadline, and is gone afterwards unless the handler rearms it.
type watch struct {
	fd       int
	interest Interest
	deadline time.Time
	handle   handler
}

// loop is a single threaded reactor over a handful of watches.
type loop struct {
	clock   clock.PassiveClock
	poller  Poller
	watches []*watch
	exiting bool
}

func newLoop(clk clock.PassiveClock, poller Poller) *loop {
	return &loop{
		clock:  clk,
		poller: poller,
	}
}

// add registers a one-shot watch on fd, expiring after timeout.
func (l *loop) add(fd int, interest Interest, timeout time.Duration, h handler) {
	l.watches = append(l.watches, &watch{
		fd:       fd,
		interest: interest,
		deadline: l.clock.Now().Add(timeout),
		handle:   h,
	})
}

// run dispatches events until no watch is left or a handler asked to exit.
func (l *loop) run() error {
	defer func() {
		l.watches = nil
		l.exiting = false
	}()

	for len(l.watches) > 0 && !l.exiting {
		if err := l.once(); err != nil {
			return err
		}
	}
	return nil
}

// once waits for the earliest deadline and fires every watch which is
// either ready or expired. Readiness wins over expiry.
func (l *loop) once() error {
	fds := make([]PollFd, len(l.watches))
	next := l.watches[0].deadline
	for i, w := range l.watches {
		fds[i] = PollFd{Fd: w.fd, Events: w.interest}
		if w.deadline.Before(next) {
			next = w.deadline
		}
	}

	wait := next.Sub(l.clock.Now())
	if wait < 0 {
		wait = 0
	}
	if err := l.poller.Poll(fds, wait); err != nil {
		return err
	}

	now := l.clock.Now()
	fired := l.watches
	l.watches = nil

	for i, w := range fired {
		if l.exiting {
			break
		}

		var ev Event
		switch {
		case fds[i].Revents&w.interest != 0:
			ev = EventReady
		case !now.Before(w.deadline):
			ev = EventTimeout
		default:
			l.watches = append(l.watches, w)
			continue
		}

		switch a := w.handle(ev); a.kind {
		case actionRearm:
			l.add(w.fd, w.interest, a.wait, w.handle)
		case actionExit:
			l.exiting = true
		}
	}
	return nil
}
