package ping

import (
	"context"
	"iter"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/vincentbernat/riemann-puppet-ping/internal"
	"k8s.io/utils/clock"
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// PacketConn is a non-blocking datagram socket carrying ICMP over IPv4.
// Reads return the IPv4 header too.
type PacketConn interface {
	Fd() int
	WriteTo(b []byte, addr netip.Addr) (int, error)
	ReadFrom(b []byte) (int, netip.Addr, error)
	Close() error
}

// Stats counts what happened on the wire during a session.
type Stats struct {
	Sent         uint // Echo Requests fully written
	SendRetries  uint // send steps rescheduled after a transient failure
	SendFailures uint // targets given up after a permanent send failure
	Replies      uint // replies attributed to a target
	Foreign      uint // ICMP packets not belonging to this session
	Stray        uint // packets with an unknown correlation id
	Spoofed      uint // replies from an unexpected address
	ShortReads   uint // failed or undecodable reads
}

type options struct {
	resolver Resolver
	clock    clock.PassiveClock
	send     PacketConn
	recv     PacketConn
	poller   Poller
}

// Option configures a Session.
type Option func(*options)

// WithResolver sets the resolver used by Add. The default is
// net.DefaultResolver.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithClock replaces the wall clock.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) { o.clock = c }
}

// WithTransport replaces the raw sockets and poll(2). The session takes
// ownership of both connections.
func WithTransport(send, recv PacketConn, poller Poller) Option {
	return func(o *options) {
		o.send = send
		o.recv = recv
		o.poller = poller
	}
}

// Session pings a set of targets once, all of them in parallel, within a
// global timeout. It is driven by a single threaded event loop and is not
// safe for concurrent use.
type Session[P any] struct {
	id      uint16 // ICMP identifier
	timeout time.Duration
	start   time.Time
	ran     bool

	send     PacketConn
	recv     PacketConn
	poller   Poller
	clock    clock.PassiveClock
	resolver Resolver

	targets registry[P]
	decoder *replyDecoder
	stats   Stats
}

// New creates a new Session. This will open the raw sockets, which usually
// requires elevated privileges. You'll need to call Close() to cleanup.
func New[P any](timeout time.Duration, opts ...Option) (*Session[P], error) {
	o := options{
		resolver: net.DefaultResolver,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.send == nil || o.recv == nil {
		send, err := internal.Listen()
		if err != nil {
			return nil, err
		}
		recv, err := internal.Listen()
		if err != nil {
			send.Close()
			return nil, err
		}
		o.send, o.recv, o.poller = send, recv, systemPoller{}
	}
	if o.poller == nil {
		o.poller = systemPoller{}
	}

	return &Session[P]{
		id:       uint16(os.Getpid() & 0xffff),
		timeout:  timeout,
		send:     o.send,
		recv:     o.recv,
		poller:   o.poller,
		clock:    o.clock,
		resolver: o.resolver,
		targets:  newRegistry[P](),
		decoder:  newReplyDecoder(),
	}, nil
}

// ID returns the ICMP identifier of the session.
func (s *Session[P]) ID() uint16 {
	return s.id
}

// Add resolves host and registers it. A host which cannot be resolved is
// still registered, as unreachable. A host added after Run is never pinged
// and is registered as timed out.
func (s *Session[P]) Add(ctx context.Context, host string, payload P) *Target[P] {
	var addr netip.Addr

	addrs, err := s.resolver.LookupNetIP(ctx, "ip4", host)
	switch {
	case err != nil:
		log.Errorf("%s: resolver failed: %v", host, err)
	case len(addrs) == 0:
		log.Errorf("%s: resolver failed: no IPv4 address", host)
	default:
		addr = addrs[0].Unmap()
	}

	t := s.targets.add(host, addr, payload)
	if s.ran && t.state == StatePending {
		log.Errorf("%s: added after session %d ran, not pinged", host, s.id)
		s.advance(t, StateTimedOut)
	}
	debugf("%s: added as %s with id %d", host, t.State(), t.ID())
	return t
}

// Targets returns the registered targets, most recently added first.
func (s *Session[P]) Targets() iter.Seq[*Target[P]] {
	return s.targets.all()
}

// Len returns the number of registered targets.
func (s *Session[P]) Len() int {
	return s.targets.len()
}

// Stats returns the wire counters.
func (s *Session[P]) Stats() Stats {
	return s.stats
}

// Run sends one Echo Request to every resolved target and collects the
// replies until all of them answered or the timeout elapsed. Afterwards,
// every target is in a terminal state. Run can only be called once.
func (s *Session[P]) Run() error {
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true
	s.start = s.clock.Now()
	defer s.finalize()

	if s.targets.complete() {
		debugf("nothing to ping")
		return nil
	}

	l := newLoop(s.clock, s.poller)
	l.add(s.send.Fd(), Writable, s.timeout, s.sender)
	l.add(s.recv.Fd(), Readable, s.timeout, s.receiver)

	err := l.run()
	debugf("session %d ended after %s", s.id, s.clock.Since(s.start))
	return err
}

// finalize moves every target still waiting to StateTimedOut.
func (s *Session[P]) finalize() {
	for t := range s.targets.all() {
		if t.state.Terminal() {
			continue
		}
		s.advance(t, StateTimedOut)
	}
}

// advance moves t to state to. Refused transitions are logged and leave t
// untouched.
func (s *Session[P]) advance(t *Target[P], to State) bool {
	if err := t.transition(to); err != nil {
		log.Errorf("%v", err)
		return false
	}
	return true
}

// Release hands every payload to fn, then forgets all targets. fn may be
// nil.
func (s *Session[P]) Release(fn func(P)) {
	s.targets.release(fn)
}

// Close will close the ICMP sockets.
func (s *Session[P]) Close() error {
	err := s.send.Close()
	if e := s.recv.Close(); err == nil {
		err = e
	}
	return err
}
