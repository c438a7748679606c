package main

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dialer-cli/internal/ledger"
	"github.com/sells-group/dialer-cli/internal/model"
	"github.com/sells-group/dialer-cli/internal/store"
)

var (
	runsOutcome     string
	runsStatus      string
	runsLimit       int
	runsConcurrency int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and reprocess recorded call runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List call runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		runs, err := env.Store.ListRuns(ctx, store.RunFilter{
			Outcome:       model.Outcome(runsOutcome),
			ProcessStatus: model.ProcessStatus(runsStatus),
			Limit:         runsLimit,
		})
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no call runs found")
			return nil
		}

		fmt.Printf("%-36s  %-14s  %-34s  %-14s  %-14s  %s\n",
			"ID", "PHONE", "CALL SID", "OUTCOME", "PROCESSING", "CREATED")
		for _, r := range runs {
			fmt.Printf("%-36s  %-14s  %-34s  %-14s  %-14s  %s\n",
				r.ID, r.Phone, r.CallSID, r.Outcome, r.ProcessStatus,
				r.CreatedAt.Format(ledger.TimeFormat))
		}
		return nil
	},
}

var runsReprocessCmd = &cobra.Command{
	Use:   "reprocess [call-sid]",
	Short: "Re-run post-call processing for placed calls that never finished it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			run, err := env.Store.GetByCallSID(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Pipeline.Run(ctx, run.CallSID, run.Phone)
		}

		runs, err := env.Store.ListRuns(ctx, store.RunFilter{
			Outcome: model.OutcomePlaced,
			Limit:   runsLimit,
		})
		if err != nil {
			return err
		}

		var processed, failed, skipped atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runsConcurrency)
		for _, r := range runs {
			if r.ProcessStatus == model.ProcessStatusProcessed || r.CallSID == "" {
				skipped.Add(1)
				continue
			}
			r := r
			g.Go(func() error {
				if err := env.Pipeline.Run(gctx, r.CallSID, r.Phone); err != nil {
					zap.L().Warn("reprocess failed",
						zap.String("call_sid", r.CallSID),
						zap.Error(err),
					)
					failed.Add(1)
					return nil
				}
				processed.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("reprocessed %d, failed %d, skipped %d\n", processed.Load(), failed.Load(), skipped.Load())
		return nil
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsOutcome, "outcome", "", "filter by outcome (placed, failed, invalid_number, unverified)")
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by processing status (processing, processed, process_failed)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to show")
	runsReprocessCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to consider")
	runsReprocessCmd.Flags().IntVar(&runsConcurrency, "concurrency", 4, "calls processed in parallel")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsReprocessCmd)
	rootCmd.AddCommand(runsCmd)
}
