package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/notispend/pkg/amount"
	"github.com/ArionMiles/notispend/pkg/classifier"
	"github.com/ArionMiles/notispend/pkg/config"
	"github.com/ArionMiles/notispend/pkg/export"
	"github.com/ArionMiles/notispend/pkg/store/postgres"
	"github.com/ArionMiles/notispend/pkg/store/sqlite"
)

func classifyCmd() *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "classify TITLE [TEXT]",
		Short: "Print the expense type detected for a title and text",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, text := args[0], ""
			if len(args) == 2 {
				text = args[1]
			}
			printClassification(cmd.OutOrStdout(), title, text, explain)
			return nil
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "show the keyword score of every category")
	return cmd
}

func printClassification(w io.Writer, title, text string, explain bool) {
	category, stage := classifier.Detect(title, text)
	fmt.Fprintf(w, "%s\t(%s)\n", category, stage)

	if !explain {
		return
	}
	if emoji := classifier.ClassifyEmoji(text); emoji != classifier.Unknown {
		fmt.Fprintf(w, "emoji fast path: %s\n", emoji)
	}
	for _, s := range classifier.Scores(title, text) {
		if s.Matches == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-14s %d\n", s.Category, s.Matches)
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract TEXT",
		Short: "Print the amount and currency found in a notification text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := amount.Extract(strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res == nil {
				fmt.Fprintln(out, "no amount found")
				return nil
			}
			fmt.Fprintf(out, "%g\t%s\t(%s)\n", res.Amount, res.Currency, res.Raw)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored notifications as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

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

			rows, err := export.Collect(ctx, store, limit)
			if err != nil {
				return err
			}
			return export.ToFile(export.Config{FilePath: out, Format: f, Output: cmd.OutOrStdout()}, rows, a.logger)
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows, newest first (0 for all)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			switch a.cfg.Store {
			case config.StorePostgres:
				err = postgres.Migrate(a.cfg.Postgres().ConnString())
			case config.StoreSQLite:
				err = sqlite.Migrate(a.cfg.SQLitePath)
			default:
				a.logger.Info("store has no migrations", "store", a.cfg.Store)
				return nil
			}
			if err != nil {
				return err
			}
			a.logger.Info("migrations applied", "store", a.cfg.Store)
			return nil
		},
	}
}
