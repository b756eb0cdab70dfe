// Command notispend ingests payment notifications over HTTP or AMQP and
// stores them with their amount and expense type.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "notispend",
		Short: "Turn payment notifications into categorised expenses",
		Long: `notispend receives mobile notifications, keeps the ones about payments,
extracts the amount and currency, guesses the expense type and stores the result.

Configuration is read from .env.local, .env and the environment.`,
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(consumeCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(extractCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(migrateCmd())
	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	err := rootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
