// Package dispatch launches the outbound call campaign: one placement
// attempt per lead, paced by a rate limiter, with transient provider
// failures retried on a fixed delay.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dialer-cli/internal/model"
	"github.com/sells-group/dialer-cli/internal/phone"
	"github.com/sells-group/dialer-cli/internal/resilience"
	"github.com/sells-group/dialer-cli/internal/store"
	"github.com/sells-group/dialer-cli/pkg/twilio"
)

// Caller places one outbound call and returns the provider's call SID.
type Caller interface {
	PlaceCall(ctx context.Context, to, from, callbackURL string) (string, error)
}

// Options configures a campaign run.
type Options struct {
	From        string        // caller ID number
	CallbackURL string        // absolute webhook URL the provider posts to
	LaunchDelay time.Duration // minimum spacing between lead launches
	MaxRetries  int           // attempts per lead, including the first
	RetryDelay  time.Duration // fixed delay between attempts
	TestNumber  string        // when set, every call dials this number instead
}

func (o Options) withDefaults() Options {
	if o.LaunchDelay <= 0 {
		o.LaunchDelay = 2 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	return o
}

// Result is the terminal outcome for one lead.
type Result struct {
	Lead    model.Lead
	To      string
	CallSID string
	Outcome model.Outcome
	Err     error
}

// Dispatcher runs call campaigns against a lead batch.
type Dispatcher struct {
	caller Caller
	runs   store.Store // optional
	opts   Options
}

// New creates a dispatcher. runs may be nil when no run store is
// configured.
func New(caller Caller, runs store.Store, opts Options) *Dispatcher {
	return &Dispatcher{caller: caller, runs: runs, opts: opts.withDefaults()}
}

// Run dispatches every lead in the batch and returns one result per
// lead, in input order. Launches are spaced by the rate limiter;
// placed calls then retry independently, so a slow retry never blocks
// the next lead's launch. Cancelling ctx stops new launches but lets
// in-flight attempts finish.
func (d *Dispatcher) Run(ctx context.Context, leads []model.Lead) ([]Result, error) {
	limiter := rate.NewLimiter(rate.Every(d.opts.LaunchDelay), 1)
	results := make([]Result, len(leads))

	var wg sync.WaitGroup
	var launchErr error
	for i, lead := range leads {
		if err := limiter.Wait(ctx); err != nil {
			launchErr = err
			for j := i; j < len(leads); j++ {
				results[j] = Result{Lead: leads[j], Outcome: model.OutcomePending, Err: err}
			}
			break
		}

		wg.Add(1)
		go func(i int, lead model.Lead) {
			defer wg.Done()
			// In-flight attempts outlive a cancelled campaign.
			results[i] = d.dispatchOne(context.WithoutCancel(ctx), lead)
		}(i, lead)
	}
	wg.Wait()

	logSummary(results)
	return results, launchErr
}

// dispatchOne places the call for a single lead and records its run.
func (d *Dispatcher) dispatchOne(ctx context.Context, lead model.Lead) Result {
	log := zap.L().With(
		zap.String("lead", lead.Name),
		zap.String("phone", lead.Phone),
	)

	to := phone.Normalize(lead.Phone)
	if to == "" {
		log.Warn("skipping lead with invalid phone number")
		res := Result{Lead: lead, To: to, Outcome: model.OutcomeInvalidNumber}
		d.record(ctx, log, lead, res)
		return res
	}
	if d.opts.TestNumber != "" {
		to = phone.Normalize(d.opts.TestNumber)
	}

	cfg := resilience.FixedRetryConfig(d.opts.MaxRetries, d.opts.RetryDelay)
	cfg.OnRetry = resilience.RetryLogger("twilio", "place call")

	sid, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return d.caller.PlaceCall(ctx, to, d.opts.From, d.opts.CallbackURL)
	})

	res := Result{Lead: lead, To: to, CallSID: sid, Outcome: classify(err), Err: err}
	switch res.Outcome {
	case model.OutcomePlaced:
		log.Info("call placed", zap.String("call_sid", sid))
	default:
		log.Error("call failed", zap.String("outcome", string(res.Outcome)), zap.Error(err))
	}

	d.record(ctx, log, lead, res)
	return res
}

// classify maps a placement error to its terminal outcome.
func classify(err error) model.Outcome {
	switch {
	case err == nil:
		return model.OutcomePlaced
	case twilio.IsInvalidNumber(err):
		return model.OutcomeInvalidNumber
	case twilio.IsUnverified(err):
		return model.OutcomeUnverified
	default:
		return model.OutcomeFailed
	}
}

func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, lead model.Lead, res Result) {
	if d.runs == nil {
		return
	}

	run, err := d.runs.CreateCallRun(ctx, lead, res.To)
	if err != nil {
		log.Warn("create call run failed", zap.Error(err))
		return
	}

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	if err := d.runs.SetOutcome(ctx, run.ID, res.Outcome, res.CallSID, errMsg); err != nil {
		log.Warn("record outcome failed", zap.Error(err))
	}
}

// PlacedSIDs extracts the call SIDs of the successfully placed results.
func PlacedSIDs(results []Result) []string {
	var sids []string
	for _, r := range results {
		if r.Outcome == model.OutcomePlaced && r.CallSID != "" {
			sids = append(sids, r.CallSID)
		}
	}
	return sids
}

func logSummary(results []Result) {
	var placed, failed, skipped int
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomePlaced:
			placed++
		case model.OutcomeInvalidNumber:
			skipped++
		default:
			failed++
		}
	}
	zap.L().Info("campaign finished",
		zap.Int("total", len(results)),
		zap.Int("placed", placed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)
}
