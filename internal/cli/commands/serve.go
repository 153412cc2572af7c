package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/api"
)

type serveOptions struct {
	watch    bool
	debounce time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gold layer over HTTP",
		Long: `Start the HTTP API:

  GET  /healthz            liveness and namespace
  GET  /relations          every relation with version and staleness
  GET  /relations/{name}   one relation with its rows (?limit=N)
  POST /refresh            refresh; body {"select": [...], "load": true}
  GET  /queries            available analytical queries
  GET  /queries/{name}     run a query; parameters as query string
  GET  /runs, /runs/{id}   refresh history
  GET  /metrics            Prometheus metrics
  GET  /events             server-sent events for new commits

With --watch and a csv source, changed files are loaded and the gold layer
refreshed automatically.`,
		Example: `  # Serve on the configured address
  leapgold serve

  # Serve on another port and follow the silver directory
  leapgold serve --addr :9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from serve.addr)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload and refresh when silver CSV files change")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Quiet period before a watch-triggered refresh")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var watchDir string
	if opts.watch {
		if cc.Cfg.Source.Type != "csv" {
			cc.Logger.Warn("--watch only follows csv sources, ignoring", slog.String("source_type", cc.Cfg.Source.Type))
		} else {
			watchDir = cc.Cfg.Source.Path
		}
	}

	srv := api.NewServer(api.Config{
		Engine:   cc.Engine,
		Addr:     cc.Cfg.Serve.Addr,
		WatchDir: watchDir,
		Debounce: opts.debounce,
		Logger:   cc.Logger,
	})
	cc.Renderer.Muted("listening on " + cc.Cfg.Serve.Addr)
	return srv.Serve(cmd.Context())
}
