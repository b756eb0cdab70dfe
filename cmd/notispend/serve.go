package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/notispend/internal/consumer"
	"github.com/ArionMiles/notispend/internal/server"
	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/metrics"
	"github.com/ArionMiles/notispend/pkg/pipeline"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func serveCmd() *cobra.Command {
	var consume bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the notifications HTTP API on PORT.

With --consume the AMQP consumer runs alongside the server and both stop together.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), consume)
		},
	}

	cmd.Flags().BoolVar(&consume, "consume", false, "also consume notifications from AMQP_QUEUE")
	return cmd
}

func (a *app) serve(ctx context.Context, consume bool) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := newRegistry()
	p := pipeline.New(store, metrics.New(reg), a.logger.With("component", "pipeline"))

	var c *consumer.Consumer
	if consume {
		if c, err = a.dialConsumer(ctx, p); err != nil {
			return err
		}
		defer c.Close()
	}

	srv := server.New(p, reg, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, fmt.Sprintf(":%d", a.cfg.Port))
	})
	if c != nil {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}

	return g.Wait()
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume notifications from AMQP without serving HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p := pipeline.New(store, nil, a.logger.With("component", "pipeline"))
			c, err := a.dialConsumer(ctx, p)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Run(ctx)
		},
	}
}

func backfillCmd() *cobra.Command {
	page := api.Page{Limit: api.DefaultLimit}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Recompute amounts for one page of stored notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p := pipeline.New(store, nil, a.logger.With("component", "pipeline"))
			updates, err := p.Backfill(ctx, page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, u := range updates {
				fmt.Fprintf(out, "%d\t%.2f\t%s\n", u.SerialID, u.Amount, u.Currency)
			}
			fmt.Fprintf(out, "updated %d notifications\n", len(updates))
			return nil
		},
	}

	cmd.Flags().IntVar(&page.Limit, "limit", api.DefaultLimit, "rows to read (1-1000)")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "rows to skip, newest first")
	return cmd
}
