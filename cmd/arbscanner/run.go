package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arbscanner/internal/app"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scan loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("Failed to start scanner", "error", err)
				return err
			}
			defer a.Close()

			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Scanner stopped with error", "error", err)
				return err
			}
			logger.Info("Scanner stopped")
			return nil
		},
	}
}

// contextOrBackground guards commands executed without a context.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
