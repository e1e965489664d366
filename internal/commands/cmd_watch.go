package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/erpsync/internal/desk"
	"github.com/colonyops/erpsync/internal/profiler"
	"github.com/colonyops/erpsync/internal/tui"
)

type WatchCmd struct {
	flags *Flags

	// flags
	metricsAddr string
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Open a live table of an endpoint",
		UsageText: "erpsync watch [--metrics-addr addr] [endpoint]",
		Description: `Subscribes to the endpoint and keeps a table current by polling.
Deletes made from the view can be undone from the toast that reports them.

Without an argument the first entry of watch.endpoints in the config is used.
With --metrics-addr, Prometheus metrics are served on /metrics and pprof on
/debug/pprof/.`,
		ShellComplete: EndpointCompleter(cmd.flags),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve /metrics and pprof on this address (e.g. :9464)",
				Sources:     cli.EnvVars("ERPSYNC_METRICS_ADDR"),
				Destination: &cmd.metricsAddr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config

	endpoint := c.Args().First()
	if endpoint == "" {
		if len(cfg.Watch.Endpoints) == 0 {
			return fmt.Errorf("no endpoint given and watch.endpoints is empty")
		}
		endpoint = cfg.Watch.Endpoints[0]
	}

	addr := cmd.metricsAddr
	if addr == "" {
		addr = cfg.Watch.MetricsAddr
	}

	var (
		opts desk.Options
		reg  *prometheus.Registry
	)
	if addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts.Registerer = reg
	}

	app, err := cmd.flags.OpenApp(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if addr != "" {
		srv := profiler.New(addr, reg)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()
		log.Info().
			Str("url", fmt.Sprintf("http://%s/metrics", srv.Addr())).
			Msg("metrics endpoint available")
	}

	live := app.Live(endpoint)
	defer live.Close()

	m := tui.New(ctx, tui.Options{
		Live:    live,
		Queue:   app.Queue,
		Actions: app.Actions,
		IDField: app.Cache.IdentityField(),
	})
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
