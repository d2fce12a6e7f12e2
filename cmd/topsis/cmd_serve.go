package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/topsisrun/internal/application"
	httpserver "github.com/sawpanic/topsisrun/internal/interfaces/http"
	"github.com/sawpanic/topsisrun/internal/interfaces/http/handlers"
	"github.com/sawpanic/topsisrun/internal/metrics"
	"github.com/sawpanic/topsisrun/internal/topsis"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ranking API over HTTP",
		Long:  "Starts an HTTP server with POST /rank, GET /runs/{id}, /health and /metrics. Stops on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled
func (a *app) serve(ctx context.Context) error {
	res, err := openResources(ctx, a.cfg, true)
	if err != nil {
		return err
	}
	defer res.Close()

	m := metrics.New(true)
	opts := []application.Option{
		application.WithScorer(topsis.NewScorer(topsis.WithPolicy(a.cfg.Policy()))),
		application.WithFormat(a.format()),
		application.WithMetrics(m),
	}
	if res.store != nil {
		opts = append(opts, application.WithStore(res.store))
	}
	if res.cache != nil {
		opts = append(opts, application.WithCache(res.cache, a.cfg.Cache.TTL))
	}

	h := handlers.NewHandlers(handlers.Deps{
		Ranker:       application.NewRanker(opts...),
		Health:       res.health,
		Format:       a.format(),
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
		CacheEnabled: res.cache != nil,
	})

	srv, err := httpserver.NewServer(a.cfg.Server, h, m)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info().Str("app", appName).Str("version", version).Str("addr", srv.Addr()).Msg("Ranking API ready")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
