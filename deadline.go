package ping

import "time"

// Remaining returns how much of timeout is left at now for a session
// started at start. The result is within [0, timeout].
func Remaining(now, start time.Time, timeout time.Duration) time.Duration {
	left := timeout - now.Sub(start)
	switch {
	case left < 0:
		return 0
	case left > timeout:
		return timeout
	}
	return left
}

// remaining is the deadline window of the running session.
func (s *Session[P]) remaining() time.Duration {
	return Remaining(s.clock.Now(), s.start, s.timeout)
}

// next rearms a handler for the rest of the deadline window, or stops the
// loop when nothing is left of it.
func (s *Session[P]) next() action {
	if d := s.remaining(); d > 0 {
		return rearm(d)
	}
	return exit
}
