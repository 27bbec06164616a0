package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/rivo/tview"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vincentbernat/riemann-puppet-ping/agent"
	"github.com/vincentbernat/riemann-puppet-ping/monitor"
)

func watchCmd(opts *globalOptions) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "watch [host...]",
		Short: "Sweep repeatedly and show live statistics",
		Long: `Ping the given hosts, or every host of the reports directory, every
interval and show rolling statistics per host. Press q to exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if opts.debug == 0 {
				// the table owns the terminal
				gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
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

			mon := monitor.New(cfg.HistorySize)
			a := agent.New(cfg, agent.WithMonitor(mon))
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ui := buildTUI(hosts, mon)
			go ui.sweep(ctx, a, hosts, cfg.Interval, send)
			go func() {
				<-ctx.Done()
				ui.app.Stop()
			}()
			return ui.Run()
		},
	}

	cmd.Flags().BoolVarP(&send, "send", "s", false, "Send the events to Riemann")

	return cmd
}

type userInterface struct {
	app    *tview.Application
	table  *tview.Table
	status *tview.TextView
	hosts  []string
	mon    *monitor.Monitor
}

func buildTUI(hosts []string, mon *monitor.Monitor) *userInterface {
	ui := &userInterface{
		app:    tview.NewApplication(),
		table:  tview.NewTable().SetBorders(false).SetFixed(2, 0),
		status: tview.NewTextView(),
		hosts:  hosts,
		mon:    mon,
	}

	ui.table.SetTitle(" riemann-puppet-ping (press [q] to exit) ")

	ui.table.SetCell(0, 0, tview.NewTableCell("host").SetAlign(tview.AlignLeft))
	ui.table.SetCell(0, 1, tview.NewTableCell("sweeps").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 2, tview.NewTableCell("loss").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 3, tview.NewTableCell("last").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 4, tview.NewTableCell("best").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 5, tview.NewTableCell("worst").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 6, tview.NewTableCell("median").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 7, tview.NewTableCell("stddev").SetAlign(tview.AlignRight))
	ui.table.SetCell(0, 8, tview.NewTableCell("outcome").SetAlign(tview.AlignLeft))

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			ui.app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				ui.app.Stop()
				return nil
			}
		}
		return event
	})

	cols := 9
	for r, host := range hosts {
		for c := range cols {
			var cell *tview.TableCell
			switch c {
			case 0:
				cell = tview.NewTableCell(host).SetAlign(tview.AlignLeft)
			case 8:
				cell = tview.NewTableCell("").SetAlign(tview.AlignLeft)
			default:
				cell = tview.NewTableCell("n/a").SetAlign(tview.AlignRight)
			}
			ui.table.SetCell(r+2, c, cell)
		}
	}

	return ui
}

func (ui *userInterface) Run() error {
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.table, 0, 1, true).
		AddItem(ui.status, 1, 0, false)
	ui.app.SetRoot(layout, true).SetFocus(ui.table)
	return ui.app.Run()
}

// sweep pings every interval until ctx is done and refreshes the table
// after each sweep.
func (ui *userInterface) sweep(ctx context.Context, a *agent.Agent, hosts []string, interval time.Duration, send bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		status := ""
		msg, err := a.Sweep(ctx, hosts)
		switch {
		case err != nil:
			status = err.Error()
		case send:
			if err := a.Send(ctx, msg); err != nil {
				status = fmt.Sprintf("could not send to riemann: %v", err)
			}
		}
		if status == "" {
			status = fmt.Sprintf("last sweep at %s took %s", start.Format(time.TimeOnly), ts(time.Since(start)))
		}
		ui.update(status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (ui *userInterface) update(status string) {
	metrics := ui.mon.Export()

	ui.app.QueueUpdateDraw(func() {
		for i, host := range ui.hosts {
			m, found := metrics[host]
			if !found {
				continue
			}
			r := i + 2

			ui.table.GetCell(r, 1).SetText(strconv.Itoa(m.PacketsSent))
			ui.table.GetCell(r, 2).SetText(fmt.Sprintf("%0.2f%%", 100*m.Loss()))
			ui.table.GetCell(r, 4).SetText(ts(m.Best))
			ui.table.GetCell(r, 5).SetText(ts(m.Worst))
			ui.table.GetCell(r, 6).SetText(ts(m.Median))
			ui.table.GetCell(r, 7).SetText(ts(m.StdDev))

			if last, _, found := ui.mon.Last(host); found {
				color := tcell.ColorGreen
				if last.Lost() {
					color = tcell.ColorRed
				}
				ui.table.GetCell(r, 3).SetText(ts(last.Latency))
				ui.table.GetCell(r, 8).SetText(last.Outcome.String()).SetTextColor(color)
			}
		}
		ui.status.SetText(status)
	})
}

const tsDividend = float64(time.Millisecond) / float64(time.Nanosecond)

func ts(dur time.Duration) string {
	if 10*time.Microsecond < dur && dur < time.Second {
		return fmt.Sprintf("%0.2fms", float64(dur.Nanoseconds())/tsDividend)
	}
	return dur.String()
}
