package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dialer-cli/pkg/twilio"
)

// fakeProvider scripts ListRecordings responses per poll and writes
// artifacts of a scripted size per download.
type fakeProvider struct {
	listResponses [][]twilio.Recording
	listCalls     int
	sizes         map[string][]int // per recording SID, size per successive download
	downloads     map[string]int
}

func (f *fakeProvider) PlaceCall(ctx context.Context, to, from, callbackURL string) (string, error) {
	panic("not used")
}

func (f *fakeProvider) ListRecordings(ctx context.Context, callSID string) ([]twilio.Recording, error) {
	i := f.listCalls
	f.listCalls++
	if i >= len(f.listResponses) {
		return nil, nil
	}
	return f.listResponses[i], nil
}

func (f *fakeProvider) DownloadRecording(ctx context.Context, rec twilio.Recording, dir string) (string, error) {
	if f.downloads == nil {
		f.downloads = make(map[string]int)
	}
	n := f.downloads[rec.SID]
	f.downloads[rec.SID]++

	sizes := f.sizes[rec.SID]
	size := 0
	if n < len(sizes) {
		size = sizes[n]
	} else if len(sizes) > 0 {
		size = sizes[len(sizes)-1]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "recording_"+rec.SID+".mp3")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func fastOpts(dir string) Options {
	return Options{PollRetries: 5, PollDelay: time.Millisecond, MinBytes: 2000, DownloadDir: dir}
}

func TestRetrieveValidOnThirdPoll(t *testing.T) {
	rec := twilio.Recording{SID: "RE1", CallSID: "CA1", URI: "/r/RE1.json"}
	provider := &fakeProvider{
		listResponses: [][]twilio.Recording{{rec}, {rec}, {rec}},
		// Undersized twice per round 1 and 2, valid on round 3.
		sizes: map[string][]int{"RE1": {100, 100, 100, 100, 3000}},
	}

	r := New(provider, fastOpts(t.TempDir()))
	paths, err := r.Retrieve(context.Background(), "CA1")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 3, provider.listCalls, "exactly 3 poll calls")
}

func TestRetrieveNothingEverAppears(t *testing.T) {
	provider := &fakeProvider{}

	r := New(provider, fastOpts(t.TempDir()))
	paths, err := r.Retrieve(context.Background(), "CA1")
	require.ErrorIs(t, err, ErrNoRecording)
	assert.Nil(t, paths)
	assert.Equal(t, 5, provider.listCalls, "all poll rounds consumed")
}

func TestRetrieveImmediateSuccessMultipleArtifacts(t *testing.T) {
	r1 := twilio.Recording{SID: "RE1", CallSID: "CA1", URI: "/r/RE1.json"}
	r2 := twilio.Recording{SID: "RE2", CallSID: "CA1", URI: "/r/RE2.json"}
	provider := &fakeProvider{
		listResponses: [][]twilio.Recording{{r1, r2}},
		sizes:         map[string][]int{"RE1": {4000}, "RE2": {2500}},
	}

	r := New(provider, fastOpts(t.TempDir()))
	paths, err := r.Retrieve(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Equal(t, 1, provider.listCalls)
}

func TestRetrieveUndersizedRedownloadWithinRound(t *testing.T) {
	rec := twilio.Recording{SID: "RE1", CallSID: "CA1", URI: "/r/RE1.json"}
	provider := &fakeProvider{
		listResponses: [][]twilio.Recording{{rec}},
		// First download undersized, re-download in same round is valid.
		sizes: map[string][]int{"RE1": {500, 2600}},
	}

	r := New(provider, fastOpts(t.TempDir()))
	paths, err := r.Retrieve(context.Background(), "CA1")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 1, provider.listCalls, "re-download happens within the poll round")
	assert.Equal(t, 2, provider.downloads["RE1"])
}

func TestRetrieveContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{}
	r := New(provider, Options{PollRetries: 5, PollDelay: time.Hour, MinBytes: 2000, DownloadDir: t.TempDir()})

	_, err := r.Retrieve(ctx, "CA1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecording)
}
