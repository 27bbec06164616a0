package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ping "github.com/vincentbernat/riemann-puppet-ping"
)

func TestMonitorRecordAndExport(t *testing.T) {
	assert := assert.New(t)

	m := New(3)
	m.Record("web1", up, 10*ms)
	m.Record("web1", up, 20*ms)
	m.Record("db1", unreachable, 0)

	assert.Equal([]string{"db1", "web1"}, m.Hosts())

	exported := m.Export()
	assert.Len(exported, 2)
	assert.Equal(15*ms, exported["web1"].Mean)
	assert.Zero(exported["web1"].PacketsLost)
	assert.Equal(1, exported["db1"].Unreachable)

	last, seen, found := m.Last("web1")
	assert.True(found)
	assert.Equal(20*ms, last.Latency)
	assert.False(seen.IsZero())

	_, _, found = m.Last("nowhere")
	assert.False(found)
}

func TestMonitorRetain(t *testing.T) {
	m := New(3)
	m.Record("web1", up, 10*ms)
	m.Record("web2", timedOut, 0)
	m.Record("web3", up, 10*ms)

	m.Retain([]string{"web3", "web1", "new"})
	assert.Equal(t, []string{"web1", "web3"}, m.Hosts())
}

func TestMonitorDefaultHistory(t *testing.T) {
	assert.Equal(t, defaultHistorySize, New(0).HistorySize)
}

func TestMonitorCollector(t *testing.T) {
	m := New(4)
	m.Record("web1", up, 250*ms)
	m.Record("web1", timedOut, 0)

	expected := `
# HELP puppet_ping_lost Number of recent sweeps without reply from the host
# TYPE puppet_ping_lost gauge
puppet_ping_lost{host="web1"} 1
# HELP puppet_ping_sweeps Number of recent sweeps the host took part in
# TYPE puppet_ping_sweeps gauge
puppet_ping_sweeps{host="web1"} 2
# HELP puppet_ping_unreachable Number of recent sweeps where the host did not resolve
# TYPE puppet_ping_unreachable gauge
puppet_ping_unreachable{host="web1"} 0
`
	err := testutil.CollectAndCompare(m, strings.NewReader(expected),
		"puppet_ping_lost", "puppet_ping_sweeps", "puppet_ping_unreachable")
	assert.NoError(t, err)

	// 5 latency stats and 3 counts
	assert.Equal(t, 8, testutil.CollectAndCount(m))
}

func TestCounters(t *testing.T) {
	assert := assert.New(t)

	reg := prometheus.NewRegistry()
	c := NewCounters(reg)

	c.Sweeps.Inc()
	c.Outcome(ping.OutcomeOK)
	c.Outcome(ping.OutcomeOK)
	c.Outcome(ping.OutcomeUnreachable)
	c.ObserveStats(ping.Stats{Sent: 3, SendRetries: 1, Spoofed: 2})
	c.ObserveStats(ping.Stats{Sent: 1})

	assert.InDelta(1, testutil.ToFloat64(c.Sweeps), 0)
	assert.InDelta(2, testutil.ToFloat64(c.Outcomes.WithLabelValues("ok")), 0)
	assert.InDelta(1, testutil.ToFloat64(c.Outcomes.WithLabelValues("unreachable")), 0)
	assert.InDelta(4, testutil.ToFloat64(c.Packets.WithLabelValues("sent")), 0)
	assert.InDelta(1, testutil.ToFloat64(c.Packets.WithLabelValues("send_retry")), 0)
	assert.InDelta(2, testutil.ToFloat64(c.Packets.WithLabelValues("spoofed")), 0)

	// registering twice fails
	assert.Panics(func() { NewCounters(reg) })
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(2)
	reg.MustRegister(m)
	m.Record("web1", up, 5*ms)

	srv := httptest.NewServer(NewExporter("", reg).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `puppet_ping_latency_seconds{host="web1",stat="median"} 0.005`)
}

func TestExporterRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewExporter("127.0.0.1:0", prometheus.NewRegistry())
	addr, err := e.Run(ctx)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := http.Get("http://" + addr.String() + "/metrics")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
