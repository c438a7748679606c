package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/model"
	"github.com/sells-group/dialer-cli/internal/store"
)

// RecordingRetriever fetches the recordings of a completed call to
// local files.
type RecordingRetriever interface {
	Retrieve(ctx context.Context, callSID string) ([]string, error)
}

// Transcriber converts one audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TranscriptSummarizer produces the summary and action items for a
// transcript.
type TranscriptSummarizer interface {
	SummarizeTranscript(ctx context.Context, transcript string) (summary, actionItems string, err error)
}

// SummaryWriter is the summary ledger surface the pipeline needs.
type SummaryWriter interface {
	Append(rec model.CallSummaryRecord) error
	HasSummary(callSID string) (bool, error)
}

// CallPipeline runs the post-call stages for one completed call:
// retrieve recordings, transcribe them, summarize the transcript, and
// append exactly one summary row. Reruns for an already-summarized
// call SID are no-ops.
type CallPipeline struct {
	retriever  RecordingRetriever
	transcribe Transcriber
	summarizer TranscriptSummarizer
	summaries  SummaryWriter
	runs       store.Store // optional
	now        func() time.Time
}

// New creates a pipeline. runs may be nil when no run store is
// configured; processing state then lives only in the logs.
func New(retriever RecordingRetriever, transcribe Transcriber, summarizer TranscriptSummarizer, summaries SummaryWriter, runs store.Store) *CallPipeline {
	return &CallPipeline{
		retriever:  retriever,
		transcribe: transcribe,
		summarizer: summarizer,
		summaries:  summaries,
		runs:       runs,
		now:        time.Now,
	}
}

// Run processes one completed call. Failures are recorded against the
// run and returned, but a failed pipeline never affects the live call
// path that triggered it.
func (p *CallPipeline) Run(ctx context.Context, callSID, phone string) error {
	log := zap.L().With(
		zap.String("call_sid", callSID),
		zap.String("phone", phone),
	)

	done, err := p.summaries.HasSummary(callSID)
	if err != nil {
		return p.fail(ctx, log, callSID, eris.Wrap(err, "pipeline: dedupe check"))
	}
	if done {
		log.Info("call already processed, skipping")
		return nil
	}

	log.Info("processing call")
	p.setStatus(ctx, log, callSID, model.ProcessStatusProcessing, "")

	paths, err := p.retriever.Retrieve(ctx, callSID)
	if err != nil {
		return p.fail(ctx, log, callSID, eris.Wrap(err, "pipeline: retrieve recordings"))
	}

	var parts []string
	for _, path := range paths {
		text, err := p.transcribe.Transcribe(ctx, path)
		if err != nil {
			log.Warn("transcription failed", zap.String("path", path), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return p.fail(ctx, log, callSID, eris.New("pipeline: no transcribable audio"))
	}
	transcript := strings.Join(parts, " ")

	summary, actionItems, err := p.summarizer.SummarizeTranscript(ctx, transcript)
	if err != nil {
		return p.fail(ctx, log, callSID, eris.Wrap(err, "pipeline: summarize transcript"))
	}

	if err := p.summaries.Append(model.CallSummaryRecord{
		PhoneNumber: phone,
		CallSID:     callSID,
		Transcript:  transcript,
		Summary:     summary,
		ActionItems: actionItems,
		Timestamp:   p.now(),
	}); err != nil {
		return p.fail(ctx, log, callSID, eris.Wrap(err, "pipeline: append summary"))
	}

	p.setStatus(ctx, log, callSID, model.ProcessStatusProcessed, "")
	log.Info("call processed")
	return nil
}

func (p *CallPipeline) fail(ctx context.Context, log *zap.Logger, callSID string, err error) error {
	log.Error("pipeline failed", zap.Error(err))
	p.setStatus(ctx, log, callSID, model.ProcessStatusFailed, err.Error())
	return err
}

func (p *CallPipeline) setStatus(ctx context.Context, log *zap.Logger, callSID string, status model.ProcessStatus, errMsg string) {
	if p.runs == nil || callSID == "" {
		return
	}
	if err := p.runs.SetProcessStatus(ctx, callSID, status, errMsg); err != nil {
		log.Warn("update process status failed",
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
