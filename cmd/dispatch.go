package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/dispatch"
	"github.com/sells-group/dialer-cli/internal/ingest"
	"github.com/sells-group/dialer-cli/internal/model"
)

var dispatchTestMode bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <lead-file>",
	Short: "Place calls for every lead in a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		leads, err := ingest.ParseLeads(args[0])
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			return eris.Errorf("no valid leads in %s", args[0])
		}

		env, err := initEnv(ctx, dispatchTestMode)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Dispatcher.Run(ctx, leads)
		if err != nil {
			return eris.Wrap(err, "campaign interrupted")
		}

		for _, r := range results {
			if r.Outcome != model.OutcomePlaced {
				zap.L().Warn("lead not placed",
					zap.String("lead", r.Lead.Name),
					zap.String("outcome", string(r.Outcome)),
				)
			}
		}

		sids := dispatch.PlacedSIDs(results)
		zap.L().Info("calls placed", zap.Int("count", len(sids)), zap.Strings("call_sids", sids))
		return nil
	},
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchTestMode, "test", false, "dial the configured test number instead of lead numbers")
	rootCmd.AddCommand(dispatchCmd)
}
