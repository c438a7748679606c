package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dialer-cli/internal/dispatch"
	"github.com/sells-group/dialer-cli/internal/ledger"
	"github.com/sells-group/dialer-cli/internal/pipeline"
	"github.com/sells-group/dialer-cli/internal/recording"
	"github.com/sells-group/dialer-cli/internal/store"
	"github.com/sells-group/dialer-cli/pkg/anthropic"
	"github.com/sells-group/dialer-cli/pkg/twilio"
	"github.com/sells-group/dialer-cli/pkg/whisper"
)

// appEnv wires the shared components behind the commands.
type appEnv struct {
	Twilio     twilio.Client
	Store      store.Store
	Responses  *ledger.ResponseLedger
	Summaries  *ledger.SummaryLedger
	Summarizer *pipeline.Summarizer
	Pipeline   *pipeline.CallPipeline
	Dispatcher *dispatch.Dispatcher
}

func initEnv(ctx context.Context, testMode bool) (*appEnv, error) {
	tw := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open call run store")
	}

	responses := ledger.NewResponseLedger(cfg.Ledger.ResponsesPath)
	summaries := ledger.NewSummaryLedger(cfg.Ledger.SummariesPath)

	summarizer := pipeline.NewSummarizer(
		anthropic.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
		responses,
		summaries,
	)

	retriever := recording.New(tw, recording.Options{
		PollRetries: cfg.Recording.PollRetries,
		PollDelay:   cfg.Recording.PollDelay(),
		MinBytes:    cfg.Recording.MinBytes,
		DownloadDir: cfg.Recording.DownloadDir,
	})

	transcriber := whisper.NewClient(cfg.Whisper.Key,
		whisper.WithBaseURL(cfg.Whisper.BaseURL),
		whisper.WithModel(cfg.Whisper.Model),
	)

	opts := dispatch.Options{
		From:        cfg.Twilio.PhoneNumber,
		CallbackURL: callbackURL("/voice"),
		LaunchDelay: cfg.Dispatch.Delay(),
		MaxRetries:  cfg.Dispatch.MaxRetries,
		RetryDelay:  cfg.Dispatch.RetryDelay(),
	}
	if testMode {
		opts.TestNumber = cfg.Twilio.TestNumber
	}

	return &appEnv{
		Twilio:     tw,
		Store:      st,
		Responses:  responses,
		Summaries:  summaries,
		Summarizer: summarizer,
		Pipeline:   pipeline.New(retriever, transcriber, summarizer, summaries, st),
		Dispatcher: dispatch.New(tw, st, opts),
	}, nil
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func callbackURL(path string) string {
	return strings.TrimRight(cfg.Twilio.CallbackBaseURL, "/") + path
}
