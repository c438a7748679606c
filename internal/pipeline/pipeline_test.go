package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dialer-cli/internal/ledger"
)

type fakeRetriever struct {
	paths []string
	err   error
	calls int
}

func (f *fakeRetriever) Retrieve(context.Context, string) ([]string, error) {
	f.calls++
	return f.paths, f.err
}

type fakeTranscriber struct {
	texts map[string]string
	err   error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[path], nil
}

type fakeSummarizer struct {
	summary string
	items   string
	err     error
}

func (f *fakeSummarizer) SummarizeTranscript(context.Context, string) (string, string, error) {
	return f.summary, f.items, f.err
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	summaries := ledger.NewSummaryLedger(filepath.Join(dir, "summaries.csv"))
	a := writeAudio(t, dir, "a.mp3")
	b := writeAudio(t, dir, "b.mp3")

	p := New(
		&fakeRetriever{paths: []string{a, b}},
		&fakeTranscriber{texts: map[string]string{a: "Hi, this is the office.", b: "Patient confirmed appointment for Tuesday."}},
		&fakeSummarizer{summary: "Patient confirmed appointment for Tuesday.", items: "- Send a confirmation text."},
		summaries,
		nil,
	)

	require.NoError(t, p.Run(context.Background(), "CA123", "+15550001111"))

	has, err := summaries.HasSummary("CA123")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPipelineRunDedupe(t *testing.T) {
	dir := t.TempDir()
	summaries := ledger.NewSummaryLedger(filepath.Join(dir, "summaries.csv"))
	a := writeAudio(t, dir, "a.mp3")

	retriever := &fakeRetriever{paths: []string{a}}
	p := New(
		retriever,
		&fakeTranscriber{texts: map[string]string{a: "hello"}},
		&fakeSummarizer{summary: "s", items: "- i"},
		summaries,
		nil,
	)

	ctx := context.Background()
	require.NoError(t, p.Run(ctx, "CA123", "+15550001111"))
	require.NoError(t, p.Run(ctx, "CA123", "+15550001111"))

	// The second run short-circuits before retrieval.
	assert.Equal(t, 1, retriever.calls)
}

func TestPipelineRunRetrieveFailure(t *testing.T) {
	dir := t.TempDir()
	summaries := ledger.NewSummaryLedger(filepath.Join(dir, "summaries.csv"))

	p := New(
		&fakeRetriever{err: errors.New("no recording")},
		&fakeTranscriber{},
		&fakeSummarizer{},
		summaries,
		nil,
	)

	err := p.Run(context.Background(), "CA123", "+15550001111")
	require.Error(t, err)

	has, herr := summaries.HasSummary("CA123")
	require.NoError(t, herr)
	assert.False(t, has, "failed run must not append a summary")
}

func TestPipelineRunAllTranscriptionsFail(t *testing.T) {
	dir := t.TempDir()
	summaries := ledger.NewSummaryLedger(filepath.Join(dir, "summaries.csv"))
	a := writeAudio(t, dir, "a.mp3")

	p := New(
		&fakeRetriever{paths: []string{a}},
		&fakeTranscriber{err: errors.New("whisper down")},
		&fakeSummarizer{summary: "s", items: "- i"},
		summaries,
		nil,
	)

	err := p.Run(context.Background(), "CA123", "+15550001111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transcribable audio")
}

func TestPipelineRunPartialTranscription(t *testing.T) {
	dir := t.TempDir()
	summaries := ledger.NewSummaryLedger(filepath.Join(dir, "summaries.csv"))
	a := writeAudio(t, dir, "a.mp3")
	b := writeAudio(t, dir, "b.mp3")

	// One leg transcribes empty; the call still processes on the other.
	p := New(
		&fakeRetriever{paths: []string{a, b}},
		&fakeTranscriber{texts: map[string]string{a: "", b: "usable text"}},
		&fakeSummarizer{summary: "s", items: "- i"},
		summaries,
		nil,
	)

	require.NoError(t, p.Run(context.Background(), "CA123", "+15550001111"))
}
