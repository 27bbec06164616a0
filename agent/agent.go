// Package agent periodically pings every host known to puppet and reports
// the outcome to Riemann.
package agent

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/spf13/afero"
	ping "github.com/vincentbernat/riemann-puppet-ping"
	"github.com/vincentbernat/riemann-puppet-ping/config"
	"github.com/vincentbernat/riemann-puppet-ping/monitor"
	"github.com/vincentbernat/riemann-puppet-ping/resolve"
	"github.com/vincentbernat/riemann-puppet-ping/riemann"
	"k8s.io/utils/clock"
)

// Event fields set on every emitted event.
const (
	Service     = "ping"
	Description = "ping latency"

	descTimedOut    = "ping timed out"
	descUnreachable = "unreachable host"

	resolveCacheSize = 4096
)

// Sender delivers a message to Riemann. *riemann.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *riemann.Msg) error
}

// SessionFactory opens a ping session. The default one opens raw sockets
// and resolves through the configured resolver chain.
type SessionFactory func(timeout time.Duration) (*ping.Session[*riemann.Event], error)

// Agent runs sweeps: discover hosts, ping them, report to Riemann.
type Agent struct {
	cfg      *config.Config
	fs       afero.Fs
	clock    clock.Clock
	resolver ping.Resolver
	open     SessionFactory
	sender   Sender
	monitor  *monitor.Monitor
	counters *monitor.Counters
	progress func(host string)
}

// Option configures an Agent.
type Option func(*Agent)

// WithFs replaces the file system the reports directory is read from.
func WithFs(fs afero.Fs) Option {
	return func(a *Agent) { a.fs = fs }
}

// WithClock replaces the wall clock of the main loop.
func WithClock(c clock.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithSessionFactory replaces how ping sessions are opened.
func WithSessionFactory(f SessionFactory) Option {
	return func(a *Agent) { a.open = f }
}

// WithSender replaces the Riemann client.
func WithSender(s Sender) Option {
	return func(a *Agent) { a.sender = s }
}

// WithMonitor records every result into m.
func WithMonitor(m *monitor.Monitor) Option {
	return func(a *Agent) { a.monitor = m }
}

// WithCounters updates c after every sweep.
func WithCounters(c *monitor.Counters) Option {
	return func(a *Agent) { a.counters = c }
}

// WithProgress calls fn after each host has been resolved.
func WithProgress(fn func(host string)) Option {
	return func(a *Agent) { a.progress = fn }
}

// New creates an agent for cfg.
func New(cfg *config.Config, opts ...Option) *Agent {
	a := &Agent{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		clock:    clock.RealClock{},
		resolver: NewResolver(cfg),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.open == nil {
		a.open = func(timeout time.Duration) (*ping.Session[*riemann.Event], error) {
			return ping.New[*riemann.Event](timeout, ping.WithResolver(a.resolver))
		}
	}
	if a.sender == nil {
		a.sender = riemann.NewClient(cfg.RiemannAddr(), cfg.Timeout)
	}
	if a.monitor == nil {
		a.monitor = monitor.New(cfg.HistorySize)
	}
	if a.counters == nil {
		a.counters = monitor.NewCounters(prometheus.NewRegistry())
	}
	return a
}

// NewResolver builds the resolver chain described by cfg: the system
// resolver or an explicit nameserver, then pacing, then caching.
func NewResolver(cfg *config.Config) ping.Resolver {
	var r resolve.Resolver = net.DefaultResolver
	if cfg.Nameserver != "" {
		r = resolve.NewDNS(cfg.Nameserver, cfg.Timeout)
	}
	if cfg.ResolveRate > 0 {
		r = resolve.Limit(r, cfg.ResolveRate, 1)
	}
	if cfg.ResolveCacheTTL > 0 {
		r = resolve.NewCache(r, resolveCacheSize, cfg.ResolveCacheTTL)
	}
	return r
}

// Monitor returns the monitor results are recorded into.
func (a *Agent) Monitor() *monitor.Monitor {
	return a.monitor
}

// Sweep pings hosts once and returns one event per host.
func (a *Agent) Sweep(ctx context.Context, hosts []string) (*riemann.Msg, error) {
	id := xid.New()
	start := a.clock.Now()

	s, err := a.open(a.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("cannot create ping session: %w", err)
	}
	defer s.Close()

	if a.cfg.Mark != 0 {
		if err := s.SetMark(a.cfg.Mark); err != nil {
			return nil, fmt.Errorf("cannot set mark %d: %w", a.cfg.Mark, err)
		}
	}

	for _, host := range hosts {
		debugf("sweep %s: adding host: %s", id, host)
		s.Add(ctx, host, &riemann.Event{Host: host})
		if a.progress != nil {
			a.progress(host)
		}
	}

	if err := s.Run(); err != nil {
		return nil, fmt.Errorf("sweep %s: %w", id, err)
	}

	now := a.clock.Now()
	msg := &riemann.Msg{Events: make([]*riemann.Event, 0, s.Len())}
	for t := range s.Targets() {
		ev := t.Payload()
		a.fill(ev, t, now)
		msg.Events = append(msg.Events, ev)

		a.monitor.Record(t.Host(), t.Outcome(), t.Latency())
		a.counters.Outcome(t.Outcome())
	}
	s.Release(nil)
	a.monitor.Retain(hosts)

	a.counters.Sweeps.Inc()
	a.counters.Targets.Set(float64(len(hosts)))
	a.counters.ObserveStats(s.Stats())
	a.counters.SweepDuration.Observe(a.clock.Since(start).Seconds())

	log.Infof("sweep %s: %d hosts in %s", id, len(hosts), a.clock.Since(start))
	return msg, nil
}

// fill completes the event of t once its session is over.
func (a *Agent) fill(ev *riemann.Event, t *ping.Target[*riemann.Event], now time.Time) {
	ev.Time = now.Unix()
	ev.Service = Service
	ev.Description = Description
	ev.Tags = a.cfg.Tags
	ev.TTL = float32(a.cfg.TTL().Seconds())
	ev.Metric = float32(t.Micros())

	switch t.Outcome() {
	case ping.OutcomeOK:
		ev.State = riemann.StateOK
	case ping.OutcomeTimedOut:
		ev.State = riemann.StateCritical
		ev.Description = descTimedOut
	case ping.OutcomeUnreachable:
		ev.State = riemann.StateCritical
		ev.Description = descUnreachable
	}
}

// Run sweeps every interval until ctx is done. Failures are logged and
// the loop goes on.
func (a *Agent) Run(ctx context.Context) error {
	log.Infof("starting main loop, interval %s", a.cfg.Interval)

	for {
		start := a.clock.Now()
		a.runOnce(ctx)

		wait := a.cfg.Interval - a.clock.Since(start)
		debugf("got wait interval: %s", wait)

		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-a.clock.After(wait):
		}
	}
}

func (a *Agent) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	hosts, err := Discover(a.fs, a.cfg.ReportsDir)
	if err != nil {
		log.Errorf("cannot open reports dir %q: %v", a.cfg.ReportsDir, err)
		return
	}

	msg, err := a.Sweep(ctx, hosts)
	if err != nil {
		log.Errorf("%v", err)
		return
	}

	if err := a.Send(ctx, msg); err != nil {
		log.Errorf("could not send to riemann %s: %v", a.cfg.RiemannAddr(), err)
	}
}

// Send delivers msg to Riemann.
func (a *Agent) Send(ctx context.Context, msg *riemann.Msg) error {
	debugf("sending riemann message with %d events", len(msg.Events))
	err := a.sender.Send(ctx, msg)
	if err != nil {
		a.counters.RiemannErrors.Inc()
	}
	return err
}

// Close releases the Riemann connection.
func (a *Agent) Close() error {
	if c, ok := a.sender.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
