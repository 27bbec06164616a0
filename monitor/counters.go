package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	ping "github.com/vincentbernat/riemann-puppet-ping"
)

// Counters are the process wide sweep metrics.
type Counters struct {
	Sweeps        prometheus.Counter
	SweepDuration prometheus.Histogram
	Targets       prometheus.Gauge
	Outcomes      *prometheus.CounterVec
	Packets       *prometheus.CounterVec
	RiemannErrors prometheus.Counter
}

// NewCounters creates the counters and registers them with reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	factory := promauto.With(reg)

	return &Counters{
		Sweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Histogram of sweep duration in seconds, resolution included",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}),
		Targets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "targets",
			Help:      "Number of hosts in the last sweep",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Total per host outcomes by kind",
		}, []string{"outcome"}),
		Packets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Total ICMP packets handled by kind",
		}, []string{"kind"}),
		RiemannErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "riemann_errors_total",
			Help:      "Total failed deliveries to Riemann",
		}),
	}
}

// Outcome counts one host outcome.
func (c *Counters) Outcome(o ping.Outcome) {
	c.Outcomes.WithLabelValues(o.String()).Inc()
}

// ObserveStats adds the wire counters of a session.
func (c *Counters) ObserveStats(s ping.Stats) {
	for kind, n := range map[string]uint{
		"sent":         s.Sent,
		"send_retry":   s.SendRetries,
		"send_failure": s.SendFailures,
		"reply":        s.Replies,
		"foreign":      s.Foreign,
		"stray":        s.Stray,
		"spoofed":      s.Spoofed,
		"short_read":   s.ShortReads,
	} {
		c.Packets.WithLabelValues(kind).Add(float64(n))
	}
}
