package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/ingest"
	"github.com/sells-group/dialer-cli/internal/model"
)

var watchTestMode bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the lead directory and dispatch calls for dropped files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, watchTestMode)
		if err != nil {
			return err
		}
		defer env.Close()

		w, err := ingest.NewWatcher(cfg.Ingest.WatchDir, func(ctx context.Context, leads []model.Lead) {
			if _, err := env.Dispatcher.Run(ctx, leads); err != nil {
				zap.L().Error("batch dispatch interrupted", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchTestMode, "test", false, "dial the configured test number instead of lead numbers")
	rootCmd.AddCommand(watchCmd)
}
