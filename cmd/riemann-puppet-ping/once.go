package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vincentbernat/riemann-puppet-ping/agent"
	"github.com/vincentbernat/riemann-puppet-ping/riemann"
	"gopkg.in/cheggaaa/pb.v1"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func onceCmd(opts *globalOptions) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "once [host...]",
		Short: "Run a single sweep and print the results",
		Long: `Ping the given hosts, or every host of the reports directory, once
and print the outcome. With --send, the events are sent to Riemann too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			hosts := args
			if len(hosts) == 0 {
				if hosts, err = agent.Discover(afero.NewOsFs(), cfg.ReportsDir); err != nil {
					return fmt.Errorf("cannot open reports dir: %w", err)
				}
			}
			if len(hosts) == 0 {
				return fmt.Errorf("no host to ping")
			}

			bar := pb.New(len(hosts)).Prefix("resolving ")
			bar.Output = os.Stderr
			bar.ShowSpeed = false
			bar.ShowTimeLeft = false

			a := agent.New(cfg, agent.WithProgress(func(string) { bar.Increment() }))
			defer a.Close()

			bar.Start()
			msg, err := a.Sweep(cmd.Context(), hosts)
			bar.Finish()
			if err != nil {
				return err
			}

			printEvents(cmd.OutOrStdout(), msg.Events)

			if send {
				if err := a.Send(cmd.Context(), msg); err != nil {
					return fmt.Errorf("could not send to riemann %s: %w", cfg.RiemannAddr(), err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf("%d events sent to %s", len(msg.Events), cfg.RiemannAddr())))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&send, "send", "s", false, "Send the events to Riemann")

	return cmd
}

// printEvents renders one line per event.
func printEvents(w io.Writer, events []*riemann.Event) {
	width := len("host")
	for _, ev := range events {
		width = max(width, len(ev.Host))
	}
	host := lipgloss.NewStyle().Width(width + 2)
	state := lipgloss.NewStyle().Width(10)
	latency := lipgloss.NewStyle().Width(12).Align(lipgloss.Right)

	fmt.Fprintln(w, headerStyle.Render(host.Render("host")+state.Render("state")+latency.Render("latency")+"  description"))

	var up int
	for _, ev := range events {
		style, rtt := criticalStyle, "-"
		if ev.State == riemann.StateOK {
			style = okStyle
			rtt = formatLatency(time.Duration(ev.Metric) * time.Microsecond)
			up++
		}
		fmt.Fprintln(w, host.Render(ev.Host)+style.Render(state.Render(ev.State))+latency.Render(rtt)+"  "+ev.Description)
	}

	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s of %s hosts up", humanize.Comma(int64(up)), humanize.Comma(int64(len(events))))))
}

func formatLatency(d time.Duration) string {
	return humanize.SIWithDigits(d.Seconds(), 2, "s")
}
