// Package ivr drives the scripted digit-collection dialogue for each
// outbound call and renders the TwiML the provider executes.
package ivr

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/internal/model"
)

// ResponseAppender persists one answered question.
type ResponseAppender interface {
	Append(rec model.ResponseRecord) error
}

// AnswerSummarizer produces the first-pass summary of a caller's
// collected answers when the scripted questions are exhausted.
type AnswerSummarizer interface {
	SummarizeAnswers(ctx context.Context, phone string) error
}

// StepEvent is one /voice webhook callback.
type StepEvent struct {
	Step    int
	Digits  string
	From    string
	CallSID string
}

// Machine is the per-call IVR state machine. It is safe for concurrent
// use by the webhook handlers.
type Machine struct {
	questions   []string
	agentNumber string
	responses   ResponseAppender
	summarizer  AnswerSummarizer
	sessions    *SessionStore
	now         func() time.Time
}

// NewMachine creates a machine for the scripted question list.
// summarizer may be nil, in which case the first-pass summary is
// skipped.
func NewMachine(questions []string, agentNumber string, responses ResponseAppender, summarizer AnswerSummarizer) *Machine {
	return &Machine{
		questions:   questions,
		agentNumber: agentNumber,
		responses:   responses,
		summarizer:  summarizer,
		sessions:    NewSessionStore(),
		now:         time.Now,
	}
}

// Sessions exposes the session store.
func (m *Machine) Sessions() *SessionStore {
	return m.sessions
}

// HandleStep advances the session for one callback and returns the
// TwiML to speak: either the next question's gather prompt or the
// terminal agent transfer.
func (m *Machine) HandleStep(ctx context.Context, ev StepEvent) *Document {
	if ev.Step < 1 {
		ev.Step = 1
	}

	log := zap.L().With(
		zap.String("call_sid", ev.CallSID),
		zap.String("from", ev.From),
		zap.Int("step", ev.Step),
	)

	sess := m.sessions.GetOrCreate(ev.CallSID, ev.From)

	// The callback for step N carries the digits answering question
	// N-1.
	if answered := ev.Step - 1; ev.Digits != "" && answered >= 1 && answered <= len(m.questions) {
		question := m.questions[answered-1]
		at := m.now()
		if sess.RecordAnswer(answered, question, ev.Digits, at) {
			if err := m.responses.Append(model.ResponseRecord{
				PhoneNumber: ev.From,
				Question:    question,
				Answer:      ev.Digits,
				Timestamp:   at,
				CallSID:     ev.CallSID,
			}); err != nil {
				log.Error("append response failed", zap.Error(err))
			} else {
				log.Info("logged response", zap.String("question", question), zap.String("answer", ev.Digits))
			}
		} else {
			log.Info("duplicate callback for step, re-logged idempotently")
		}
	}

	if ev.Step <= len(m.questions) {
		sess.Step = ev.Step
		action := fmt.Sprintf("/voice?step=%d", ev.Step+1)
		return GatherDocument(m.questions[ev.Step-1], action)
	}

	// Questions exhausted: first-pass summary of the collected
	// answers, then hand the caller to a live agent with recording on.
	if m.summarizer != nil {
		if err := m.summarizer.SummarizeAnswers(ctx, ev.From); err != nil {
			log.Error("answer summary failed", zap.Error(err))
		}
	}

	sess.State = StateTransferring
	log.Info("transferring to agent", zap.String("agent_number", m.agentNumber))
	return TransferDocument(m.agentNumber, "/call-complete")
}

// HandleComplete closes the session after the agent transfer ends and
// returns the caller's number for post-call processing. The session is
// evicted; late callbacks for it are harmless.
func (m *Machine) HandleComplete(callSID, from string) {
	sess := m.sessions.GetOrCreate(callSID, from)
	sess.State = StateDone
	m.sessions.Evict(callSID, from)

	zap.L().Info("call complete",
		zap.String("call_sid", callSID),
		zap.String("from", from),
	)
}
