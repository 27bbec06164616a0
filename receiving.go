package ping

import (
	"golang.org/x/net/ipv4"
)

// receiver reads one datagram and, if it is a reply to one of our
// requests, marks the matching target up. It stops the loop once every
// target is settled.
func (s *Session[P]) receiver(ev Event) action {
	if ev == EventTimeout {
		debugf("session %d: receive window elapsed", s.id)
		return exit
	}

	var buf [PacketSize]byte
	n, from, err := s.recv.ReadFrom(buf[:])
	if err != nil {
		if isTransient(err) {
			debugf("reading icmp packet: %v", err)
			return s.next()
		}
		log.Infof("short read on icmp packet: %v", err)
		s.stats.ShortReads++
		return s.next()
	}

	reply, err := s.decoder.decode(buf[:n])
	if err != nil {
		log.Infof("short read on icmp packet from %s: %v", from, err)
		s.stats.ShortReads++
		return s.next()
	}

	// looped back requests and other people's pings
	if reply.Type != ipv4.ICMPTypeEchoReply || reply.ID != s.id {
		s.stats.Foreign++
		return s.next()
	}

	t := s.targets.lookup(reply.Correlation)
	if t == nil {
		log.Errorf("stray icmp packet received from %s (id %d)", from, reply.Correlation)
		s.stats.Stray++
		return s.next()
	}

	if from != t.addr {
		log.Errorf("%s: spoofed icmp packet? got reply from %s instead of %s", t.host, from, t.addr)
		s.stats.Spoofed++
		return s.next()
	}

	if t.state.Terminal() {
		debugf("%s: duplicate reply ignored", t.host)
		return s.next()
	}

	latency := s.clock.Since(s.start)
	if s.advance(t, StateUp) {
		t.latency = latency
		s.stats.Replies++
		debugf("%s: reply after %s", t.host, latency)
	}

	if s.targets.complete() {
		return exit
	}
	return s.next()
}
