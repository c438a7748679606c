package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dialer-cli/internal/model"
	"github.com/sells-group/dialer-cli/internal/resilience"
	"github.com/sells-group/dialer-cli/pkg/twilio"
)

type fakeCaller struct {
	mu       sync.Mutex
	attempts map[string]int
	errs     map[string]error // error per destination; nil means success
	sids     map[string]string
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		attempts: make(map[string]int),
		errs:     make(map[string]error),
		sids:     make(map[string]string),
	}
}

func (f *fakeCaller) PlaceCall(_ context.Context, to, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[to]++
	if err := f.errs[to]; err != nil {
		return "", err
	}
	sid := f.sids[to]
	if sid == "" {
		sid = "CA-" + to
	}
	return sid, nil
}

func (f *fakeCaller) attemptCount(to string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[to]
}

func fastOptions() Options {
	return Options{
		From:        "+15550009999",
		CallbackURL: "https://dialer.example.com/voice",
		LaunchDelay: time.Millisecond,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	}
}

func TestRunSkipsInvalidNumbers(t *testing.T) {
	caller := newFakeCaller()
	d := New(caller, nil, fastOptions())

	leads := []model.Lead{
		{Name: "Alice", Phone: "555-000-1111"},
		{Name: "Bob", Phone: ""},
		{Name: "Carol", Phone: "n/a"},
		{Name: "Dave", Phone: "(555) 000-2222"},
	}

	results, err := d.Run(context.Background(), leads)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, model.OutcomePlaced, results[0].Outcome)
	assert.Equal(t, "+15550001111", results[0].To)
	assert.Equal(t, model.OutcomeInvalidNumber, results[1].Outcome)
	assert.Equal(t, model.OutcomeInvalidNumber, results[2].Outcome)
	assert.Equal(t, model.OutcomePlaced, results[3].Outcome)

	// Skipped leads never reach the provider.
	assert.Equal(t, 0, caller.attemptCount(""))
	assert.Equal(t, 1, caller.attemptCount("+15550001111"))
	assert.Equal(t, 1, caller.attemptCount("+15550002222"))
}

func TestRunPermanentRejectionSingleAttempt(t *testing.T) {
	caller := newFakeCaller()
	caller.errs["+15550001111"] = resilience.NewPermanentError(errors.New("number is not a valid phone number"), "invalid_number")
	caller.errs["+15550002222"] = resilience.NewPermanentError(errors.New("number is unverified"), "unverified")

	d := New(caller, nil, fastOptions())

	results, err := d.Run(context.Background(), []model.Lead{
		{Name: "Alice", Phone: "5550001111"},
		{Name: "Bob", Phone: "5550002222"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeInvalidNumber, results[0].Outcome)
	assert.Equal(t, model.OutcomeUnverified, results[1].Outcome)

	// Provider rejections are not retried.
	assert.Equal(t, 1, caller.attemptCount("+15550001111"))
	assert.Equal(t, 1, caller.attemptCount("+15550002222"))
}

func TestRunTransientFailureRetries(t *testing.T) {
	caller := newFakeCaller()
	caller.errs["+15550001111"] = resilience.NewTransientError(errors.New("service unavailable"), 503)

	d := New(caller, nil, fastOptions())

	results, err := d.Run(context.Background(), []model.Lead{{Name: "Alice", Phone: "5550001111"}})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFailed, results[0].Outcome)
	assert.Error(t, results[0].Err)
	// All configured attempts are spent on transient failures.
	assert.Equal(t, 3, caller.attemptCount("+15550001111"))
}

func TestRunTestModeOverridesDestination(t *testing.T) {
	caller := newFakeCaller()
	opts := fastOptions()
	opts.TestNumber = "5559990000"
	d := New(caller, nil, opts)

	results, err := d.Run(context.Background(), []model.Lead{
		{Name: "Alice", Phone: "5550001111"},
		{Name: "Bob", Phone: "5550002222"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both calls dialed the test number instead of the leads' numbers.
	assert.Equal(t, 2, caller.attemptCount("+15559990000"))
	assert.Equal(t, 0, caller.attemptCount("+15550001111"))
	for _, r := range results {
		assert.Equal(t, model.OutcomePlaced, r.Outcome)
		assert.Equal(t, "+15559990000", r.To)
	}
}

func TestRunCancelledContextStopsLaunches(t *testing.T) {
	caller := newFakeCaller()
	opts := fastOptions()
	opts.LaunchDelay = time.Hour // second launch would wait forever
	d := New(caller, nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	results, err := d.Run(ctx, []model.Lead{
		{Name: "Alice", Phone: "5550001111"},
		{Name: "Bob", Phone: "5550002222"},
	})
	require.Error(t, err)
	require.Len(t, results, 2)

	// The first lead launched and completed despite the cancel.
	assert.Equal(t, model.OutcomePlaced, results[0].Outcome)
	assert.Equal(t, model.OutcomePending, results[1].Outcome)
	assert.Equal(t, 0, caller.attemptCount("+15550002222"))
}

func TestRunMixedBatchTestMode(t *testing.T) {
	caller := newFakeCaller()
	opts := fastOptions()
	opts.TestNumber = "5559990000"
	d := New(caller, nil, opts)

	results, err := d.Run(context.Background(), []model.Lead{
		{Name: "A", Phone: "5551234567"},
		{Name: "B", Phone: "notaphone"},
	})
	require.NoError(t, err)

	sids := PlacedSIDs(results)
	assert.Len(t, sids, 1)
	assert.Equal(t, model.OutcomeInvalidNumber, results[1].Outcome)
	// B never reaches the provider, not even via the test number.
	assert.Equal(t, 1, caller.attemptCount("+15559990000"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.Outcome
	}{
		{"success", nil, model.OutcomePlaced},
		{"invalid number", resilience.NewPermanentError(errors.New("bad number"), "invalid_number"), model.OutcomeInvalidNumber},
		{"unverified", resilience.NewPermanentError(errors.New("unverified"), "unverified"), model.OutcomeUnverified},
		{"other", errors.New("boom"), model.OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

var _ Caller = twilio.Client(nil)
