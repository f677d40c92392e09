package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/insights-dashboard/pkg/dashboard"
	"github.com/ritzau/insights-dashboard/pkg/fetch"
	"github.com/ritzau/insights-dashboard/pkg/logging"
	"github.com/ritzau/insights-dashboard/pkg/model"
	"github.com/ritzau/insights-dashboard/pkg/pubsub"
	"github.com/ritzau/insights-dashboard/pkg/watcher"
	"github.com/ritzau/insights-dashboard/pkg/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	pub := pubsub.NewDashboardPublisher()
	defer pub.Close()

	client := fetch.NewClient(cfg.Endpoint)
	ctrl := dashboard.New(client, dashboard.Options{
		DiscardStale: cfg.Fetch.DiscardStale,
		Publisher:    pub,
	})
	srv := web.NewServer(ctrl, pub)

	logging.Info("serving dashboard", "endpoint", client.Endpoint(), "url", serveURL(cfg.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx, cfg.Port) })

	if cfg.FiltersFile != "" {
		g.Go(func() error {
			return watcher.WatchPreset(gctx, cfg.FiltersFile, func(ctx context.Context, set model.FilterSet) error {
				_, err := ctrl.ApplyFilters(ctx, set)
				return err
			})
		})
	}

	if cfg.OpenBrowser {
		go openBrowser(serveURL(cfg.Port))
	}

	return g.Wait()
}
