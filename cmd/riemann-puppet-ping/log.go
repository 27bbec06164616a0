package main

import (
	"fmt"
	"strings"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	ping "github.com/vincentbernat/riemann-puppet-ping"
	"github.com/vincentbernat/riemann-puppet-ping/agent"
	"github.com/vincentbernat/riemann-puppet-ping/monitor"
	"github.com/vincentbernat/riemann-puppet-ping/resolve"
)

// logger forwards the library log calls to gologger.
type logger struct{}

func (logger) Infof(format string, args ...interface{}) {
	gologger.Info().Msgf(format, args...)
}

func (logger) Errorf(format string, args ...interface{}) {
	gologger.Error().Msgf(format, args...)
}

// parseLevel maps a log_level setting to a gologger level.
func parseLevel(s string) (levels.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return levels.LevelDebug, nil
	case "info", "":
		return levels.LevelInfo, nil
	case "warn", "warning":
		return levels.LevelWarning, nil
	case "error":
		return levels.LevelError, nil
	}
	return levels.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// setupLogging configures gologger and plugs it into every package. Each
// -d flag raises verbosity one step above the configured level. At debug
// level, the packages trace sweeps and packets.
func setupLogging(level, format string, debug int) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	switch {
	case debug > 1:
		lvl = levels.LevelVerbose
	case debug == 1:
		lvl = levels.LevelDebug
	}
	gologger.DefaultLogger.SetMaxLevel(lvl)

	if format == "json" {
		gologger.DefaultLogger.SetFormatter(&formatter.JSON{})
	}

	ping.SetLogger(logger{})
	agent.SetLogger(logger{})
	monitor.SetLogger(logger{})
	resolve.SetLogger(logger{})

	// traces are logged at info level
	trace := debug > 0 || lvl >= levels.LevelDebug
	ping.SetDebug(trace)
	agent.SetDebug(trace)
	monitor.SetDebug(trace)
	return nil
}
