package monitor

import (
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ping "github.com/vincentbernat/riemann-puppet-ping"
)

const (
	namespace          = "puppet_ping"
	defaultHistorySize = 10
)

// Monitor keeps the recent sweep results of every host. It is safe for
// concurrent use and can be registered as a Prometheus collector.
type Monitor struct {
	HistorySize int // Number of results per host to keep

	targets map[string]*target
	mtx     sync.RWMutex
	now     func() time.Time
}

// New creates a Monitor keeping historySize results per host.
func New(historySize int) *Monitor {
	if historySize < 1 {
		historySize = defaultHistorySize
	}
	return &Monitor{
		HistorySize: historySize,
		targets:     make(map[string]*target),
		now:         time.Now,
	}
}

// Record adds the result of a sweep for host.
func (m *Monitor) Record(host string, outcome ping.Outcome, latency time.Duration) {
	m.mtx.Lock()
	t, found := m.targets[host]
	if !found {
		t = &target{history: NewHistory(m.HistorySize)}
		m.targets[host] = t
	}
	t.seen = m.now()
	m.mtx.Unlock()

	t.history.AddResult(latency, outcome)
}

// Retain forgets every host not in hosts.
func (m *Monitor) Retain(hosts []string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for host := range m.targets {
		if !slices.Contains(hosts, host) {
			delete(m.targets, host)
		}
	}
}

// Hosts returns the known hosts, sorted.
func (m *Monitor) Hosts() []string {
	m.mtx.RLock()
	hosts := make([]string, 0, len(m.targets))
	for host := range m.targets {
		hosts = append(hosts, host)
	}
	m.mtx.RUnlock()

	slices.Sort(hosts)
	return hosts
}

// Last returns the most recent result for host and when it was recorded.
func (m *Monitor) Last(host string) (Result, time.Time, bool) {
	m.mtx.RLock()
	t, found := m.targets[host]
	m.mtx.RUnlock()

	if !found {
		return Result{}, time.Time{}, false
	}
	r, found := t.history.Last()
	return r, t.seen, found
}

// Export calculates the metrics for each host and returns it as a simple map.
func (m *Monitor) Export() map[string]*Metrics {
	result := make(map[string]*Metrics)

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	for host, t := range m.targets {
		if metrics := t.history.Compute(); metrics != nil {
			result[host] = metrics
		}
	}

	return result
}

var (
	descLatency = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "latency_seconds"),
		"Echo reply latency over the recent sweeps",
		[]string{"host", "stat"}, nil,
	)
	descSent = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "sweeps"),
		"Number of recent sweeps the host took part in",
		[]string{"host"}, nil,
	)
	descLost = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "lost"),
		"Number of recent sweeps without reply from the host",
		[]string{"host"}, nil,
	)
	descUnreachable = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "unreachable"),
		"Number of recent sweeps where the host did not resolve",
		[]string{"host"}, nil,
	)
)

func (m *Monitor) Describe(ch chan<- *prometheus.Desc) {
	ch <- descLatency
	ch <- descSent
	ch <- descLost
	ch <- descUnreachable
}

func (m *Monitor) Collect(ch chan<- prometheus.Metric) {
	for host, metrics := range m.Export() {
		for stat, d := range map[string]time.Duration{
			"best":   metrics.Best,
			"worst":  metrics.Worst,
			"median": metrics.Median,
			"mean":   metrics.Mean,
			"stddev": metrics.StdDev,
		} {
			ch <- prometheus.MustNewConstMetric(descLatency, prometheus.GaugeValue, d.Seconds(), host, stat)
		}
		ch <- prometheus.MustNewConstMetric(descSent, prometheus.GaugeValue, float64(metrics.PacketsSent), host)
		ch <- prometheus.MustNewConstMetric(descLost, prometheus.GaugeValue, float64(metrics.PacketsLost), host)
		ch <- prometheus.MustNewConstMetric(descUnreachable, prometheus.GaugeValue, float64(metrics.Unreachable), host)
	}
}
