package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	assert := assert.New(t)
	cfg := Default()

	assert.Equal("localhost", cfg.RiemannHost)
	assert.Equal(5555, cfg.RiemannPort)
	assert.Equal(30*time.Second, cfg.Interval)
	assert.Equal(2*time.Second, cfg.Delay)
	assert.Equal("/var/lib/puppet/reports", cfg.ReportsDir)
	assert.Equal("info", cfg.LogLevel)
	assert.Equal(10, cfg.HistorySize)
	assert.Equal("localhost:5555", cfg.RiemannAddr())
	assert.Equal(32*time.Second, cfg.TTL())
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestParseValidConfig(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Parse([]byte(`
riemann_host: riemann.example.net
riemann_port: 5556
interval: 1m
delay: 5s
reports_dir: /srv/reports
tags:
  - puppet
  - ping
log_level: debug
log_format: json
metrics_listen: "127.0.0.1:9100"
nameserver: "192.0.2.53:53"
resolve_cache_ttl: 10m
resolve_rate: 20
mark: 42
history_size: 5
`))
	require.NoError(t, err)

	assert.Equal("riemann.example.net:5556", cfg.RiemannAddr())
	assert.Equal(time.Minute, cfg.Interval)
	assert.Equal(30*time.Second, cfg.Timeout)
	assert.Equal(65*time.Second, cfg.TTL())
	assert.Equal([]string{"puppet", "ping"}, cfg.Tags)
	assert.Equal("json", cfg.LogFormat)
	assert.Equal("192.0.2.53:53", cfg.Nameserver)
	assert.Equal(10*time.Minute, cfg.ResolveCacheTTL)
	assert.InDelta(20.0, cfg.ResolveRate, 0)
	assert.EqualValues(42, cfg.Mark)
	assert.Equal(5, cfg.HistorySize)
}

func TestParseExplicitTimeout(t *testing.T) {
	cfg, err := Parse([]byte("interval: 10s\ntimeout: 3s\n"))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestParseEnvExpansion(t *testing.T) {
	t.Setenv("RPP_RIEMANN", "collector.example.net")

	cfg, err := Parse([]byte(`
riemann_host: ${RPP_RIEMANN}
reports_dir: ${RPP_UNSET_DIR:-/tmp/reports}
`))
	require.NoError(t, err)
	assert.Equal(t, "collector.example.net", cfg.RiemannHost)
	assert.Equal(t, "/tmp/reports", cfg.ReportsDir)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "interval: [", "failed to parse config"},
		{"bad duration", "interval: soon", "failed to parse config"},
		{"zero interval", "interval: 0s\ntimeout: 1s", "interval must be positive"},
		{"timeout too long", "interval: 10s\ntimeout: 11s", "timeout must be positive"},
		{"bad port", "riemann_port: 70000", "riemann_port"},
		{"bad level", "log_level: chatty", "invalid log_level"},
		{"bad format", "log_format: xml", "invalid log_format"},
		{"bad listen", "metrics_listen: nowhere", "invalid metrics_listen"},
		{"bad nameserver", "nameserver: 192.0.2.53", "invalid nameserver"},
		{"bad history", "history_size: 0", "history_size"},
		{"negative rate", "resolve_rate: -1", "resolve_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestTooManyTags(t *testing.T) {
	cfg := Default()
	cfg.Timeout = time.Second
	for i := 0; i <= MaxTags; i++ {
		cfg.Tags = append(cfg.Tags, "tag")
	}
	assert.ErrorContains(t, cfg.Validate(), "too many tags")

	cfg.Tags = cfg.Tags[:MaxTags]
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: 20s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Timeout)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
