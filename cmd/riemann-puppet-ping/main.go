// Command riemann-puppet-ping pings every host having puppet reports and
// sends the outcome to Riemann.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectdiscovery/gologger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vincentbernat/riemann-puppet-ping/agent"
	"github.com/vincentbernat/riemann-puppet-ping/config"
	"github.com/vincentbernat/riemann-puppet-ping/monitor"
)

// Version is set at build time
var Version = "dev"

type globalOptions struct {
	configPath string
	debug      int
}

func main() {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:   "riemann-puppet-ping",
		Short: "Ping puppet hosts and report to Riemann",
		Long: `riemann-puppet-ping periodically pings every host having a puppet
reports directory, all of them at once, and sends one event per host
to Riemann with the measured latency.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), &opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "f", config.DefaultPath, "Path to configuration file")
	rootCmd.PersistentFlags().CountVarP(&opts.debug, "debug", "d", "Increase verbosity")

	rootCmd.AddCommand(runCmd(&opts))
	rootCmd.AddCommand(onceCmd(&opts))
	rootCmd.AddCommand(watchCmd(&opts))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// load reads the configuration and sets up logging from it. A missing
// file at the default location means defaults.
func (opts *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if errors.Is(err, fs.ErrNotExist) && opts.configPath == config.DefaultPath {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat, opts.debug); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent (default)",
		Long:  "Sweep every interval and send the results to Riemann, until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}
}

func runAgent(ctx context.Context, opts *globalOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mon := monitor.New(cfg.HistorySize)
	reg.MustRegister(mon)

	a := agent.New(cfg,
		agent.WithMonitor(mon),
		agent.WithCounters(monitor.NewCounters(reg)),
	)
	defer a.Close()

	if cfg.MetricsListen != "" {
		if _, err := monitor.NewExporter(cfg.MetricsListen, reg).Run(ctx); err != nil {
			return fmt.Errorf("failed to start metrics exporter: %w", err)
		}
	}

	gologger.Info().Msgf("sending to riemann at %s, reports from %s", cfg.RiemannAddr(), cfg.ReportsDir)
	return a.Run(ctx)
}
