package ping

import (
	"fmt"
)

// sender transmits one Echo Request to every pending target. A transient
// failure aborts the pass and schedules a new one from the top, with
// whatever is left of the deadline window. Targets already sent are
// skipped on the next pass.
func (s *Session[P]) sender(ev Event) action {
	if ev == EventTimeout {
		debugf("session %d: send window elapsed", s.id)
		return exit
	}

	pkt := newEchoRequest(s.id)
	var seq uint16

	for t := range s.targets.all() {
		if t.state != StatePending {
			continue
		}

		seq++
		pkt.setSeq(seq)
		pkt.setCorrelation(t.id)
		pkt.seal()

		n, err := s.send.WriteTo(pkt[:], t.addr)
		if err == nil && n < PacketSize {
			err = fmt.Errorf("%w: %d of %d bytes", errShortWrite, n, PacketSize)
		}

		switch {
		case err == nil:
			s.stats.Sent++
			s.advance(t, StateSent)

		case isTransient(err):
			debugf("%s: sending echo request to %s: %v, retrying", t.host, t.addr, err)
			s.stats.SendRetries++
			return s.next()

		default:
			log.Errorf("%s: sending echo request to %s: %v", t.host, t.addr, err)
			s.stats.SendFailures++
			s.advance(t, StateTimedOut)
		}
	}

	if s.targets.complete() {
		return exit
	}
	return done
}
