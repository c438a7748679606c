package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/ledger"
	"github.com/sells-group/dialer-cli/internal/model"
	"github.com/sells-group/dialer-cli/pkg/anthropic"
)

// DefaultActionItems is the follow-up list used when the model does
// not produce one.
const DefaultActionItems = "- Transfer the call to an agent.; - Schedule a follow-up appointment.; - Send a summary email."

const summarySystemPrompt = `You summarize phone calls for a dental office's outreach team.
Given a call transcript or a statement of the customer's answers, respond in exactly this format:

Summary: <two or three sentences covering what the customer said and wants>
Action Items:
- <first follow-up>
- <second follow-up>

Be factual. Do not invent details that are not in the input.`

// Summarizer produces call summaries with the Anthropic API: the
// first-pass summary of a caller's keypad answers during the call, and
// the transcript summary after it.
type Summarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	responses *ledger.ResponseLedger
	summaries *ledger.SummaryLedger
	now       func() time.Time
}

// NewSummarizer creates a summarizer. responses and summaries back
// SummarizeAnswers; SummarizeTranscript needs only the model client.
func NewSummarizer(client anthropic.Client, modelName string, maxTokens int64, responses *ledger.ResponseLedger, summaries *ledger.SummaryLedger) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Summarizer{
		client:    client,
		model:     modelName,
		maxTokens: maxTokens,
		responses: responses,
		summaries: summaries,
		now:       time.Now,
	}
}

// SummarizeTranscript returns a summary and action-item list for the
// transcript text.
func (s *Summarizer) SummarizeTranscript(ctx context.Context, transcript string) (string, string, error) {
	return s.summarize(ctx, "Call transcript:\n\n"+transcript)
}

// SummarizeAnswers summarizes the caller's keypad answers collected so
// far and appends the result to the summary ledger. This first-pass
// row carries no call SID, so it never satisfies the post-call dedupe
// check. A caller with no recorded responses is a no-op.
func (s *Summarizer) SummarizeAnswers(ctx context.Context, phone string) error {
	responses, err := s.responses.ReadByPhone(phone)
	if err != nil {
		return eris.Wrap(err, "pipeline: read responses")
	}
	if len(responses) == 0 {
		zap.L().Info("no responses to summarize", zap.String("phone", phone))
		return nil
	}

	answerContext := BuildAnswerContext(responses)
	summary, actionItems, err := s.summarize(ctx, answerContext)
	if err != nil {
		return err
	}

	if err := s.summaries.Append(model.CallSummaryRecord{
		PhoneNumber: phone,
		Summary:     summary,
		ActionItems: actionItems,
		Timestamp:   s.now(),
	}); err != nil {
		return eris.Wrap(err, "pipeline: append answer summary")
	}

	zap.L().Info("answer summary saved", zap.String("phone", phone))
	return nil
}

func (s *Summarizer) summarize(ctx context.Context, input string) (string, string, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    summarySystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: input},
		},
	})
	if err != nil {
		return "", "", eris.Wrap(err, "pipeline: summarize")
	}

	summary, actionItems := parseSummary(resp.Text())
	return summary, actionItems, nil
}

// parseSummary splits the model output into its summary and action-item
// parts. Output that ignores the requested format becomes the summary
// wholesale, with the default action items.
func parseSummary(text string) (summary, actionItems string) {
	text = strings.TrimSpace(text)

	before, after, found := cutFold(text, "Action Items:")
	summary = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(before), "Summary:"))
	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = text
	}
	if !found {
		return summary, DefaultActionItems
	}

	var items []string
	for _, line := range strings.Split(after, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "-") {
			line = "- " + line
		}
		items = append(items, line)
	}
	if len(items) == 0 {
		return summary, DefaultActionItems
	}
	return summary, strings.Join(items, "; ")
}

// cutFold is strings.Cut with a case-insensitive separator.
func cutFold(s, sep string) (before, after string, found bool) {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(sep))
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
