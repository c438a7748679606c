package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/ivr"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the IVR webhook server",
	Long:  "Serves the voice webhooks the telephony provider posts to during a call, and kicks off post-call processing when each call completes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		questions := cfg.IVR.Questions
		machine := ivr.NewMachine(questions, cfg.Twilio.AgentNumber, env.Responses, env.Summarizer)

		handler := ivr.NewRouter(machine, func(ctx context.Context, callSID, phone string) {
			if err := env.Pipeline.Run(ctx, callSID, phone); err != nil {
				zap.L().Error("post-call processing failed",
					zap.String("call_sid", callSID),
					zap.Error(err),
				)
			}
		})

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("ivr server listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return eris.Wrap(err, "serve")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "shutdown")
		}
		zap.L().Info("ivr server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
