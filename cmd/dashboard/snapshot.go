package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/insights-dashboard/pkg/dashboard"
	"github.com/ritzau/insights-dashboard/pkg/fetch"
	"github.com/ritzau/insights-dashboard/pkg/filters"
	"github.com/ritzau/insights-dashboard/pkg/listing"
	"github.com/ritzau/insights-dashboard/pkg/logging"
	"github.com/ritzau/insights-dashboard/pkg/model"
	"github.com/ritzau/insights-dashboard/pkg/pubsub"
	"github.com/ritzau/insights-dashboard/pkg/render"
)

func newSnapshotCmd() *cobra.Command {
	var assignments []string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch once and write the four charts to files",
		Example: `  dashboard snapshot --filter topic=oil --filter region="Northern America"
  dashboard snapshot --filters_file filters.yaml --snapshot.format png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := snapshotFilters(assignments)
			if err != nil {
				return err
			}
			return snapshot(cmd.Context(), set)
		},
	}
	cmd.Flags().StringArrayVar(&assignments, "filter", nil, "Filter as key=value, repeatable")
	return cmd
}

// snapshotFilters starts from the preset file, if any, and applies --filter on top
func snapshotFilters(assignments []string) (model.FilterSet, error) {
	var set model.FilterSet
	if cfg.FiltersFile != "" {
		var err error
		if set, err = filters.LoadPreset(cfg.FiltersFile); err != nil {
			return set, err
		}
	}
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return set, fmt.Errorf("invalid filter %q, want key=value", a)
		}
		key, err := model.ParseFilterKey(name)
		if err != nil {
			return set, err
		}
		set = set.With(key, value)
	}
	return set, nil
}

func snapshot(ctx context.Context, set model.FilterSet) error {
	format, err := render.ParseFormat(cfg.Snapshot.Format)
	if err != nil {
		return err
	}

	pub := pubsub.NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := pub.Subscribe(ctx, pubsub.TopicDashboard)
	if err != nil {
		return err
	}

	ctrl := dashboard.New(fetch.NewClient(cfg.Endpoint), dashboard.Options{Publisher: pub, Filters: set})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return awaitFirstFetch(gctx, sub)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Snapshot.Out, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, slot := range ctrl.Slots() {
		path := filepath.Join(cfg.Snapshot.Out, slot+"."+string(format))
		if err := writeChart(ctrl, path, slot, format); err != nil {
			return err
		}
		logging.Info("wrote chart", "path", path)
	}

	listing.Print(os.Stdout, ctrl.View().Dataset)
	return nil
}

// awaitFirstFetch returns once the initial fetch has been rendered or has failed
func awaitFirstFetch(ctx context.Context, sub pubsub.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.Events():
			if !ok {
				return errors.New("dashboard stopped before the first fetch completed")
			}
			switch event.Type {
			case pubsub.EventFetchFailed:
				var status pubsub.FetchStatus
				_ = json.Unmarshal(event.Data, &status)
				return fmt.Errorf("fetch failed: %s", status.Error)
			case pubsub.EventRendered:
				var r pubsub.Rendered
				if err := json.Unmarshal(event.Data, &r); err != nil {
					return err
				}
				// version 1 is the empty dataset drawn before the fetch
				if r.Version > 1 {
					logging.Info("snapshot fetched", "records", r.Records)
					return nil
				}
			}
		}
	}
}

func writeChart(ctrl *dashboard.Controller, path, slot string, format render.Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = ctrl.Chart(f, slot, format)
	return err
}
