package ivr

import (
	"sort"
	"sync"
	"time"

	"github.com/sells-group/dialer-cli/internal/model"
)

// SessionState tracks where a call is in the scripted dialogue.
type SessionState string

const (
	StateCollecting   SessionState = "collecting"
	StateTransferring SessionState = "transferring"
	StateDone         SessionState = "done"
)

// Session holds the per-call dialogue state. Sessions are keyed by
// call SID, with the caller's number as a fallback key for callbacks
// that arrive before the SID is known.
type Session struct {
	CallSID string
	Phone   string
	Step    int
	State   SessionState

	mu      sync.Mutex
	answers map[int]model.Answer
}

func newSession(callSID, phone string) *Session {
	return &Session{
		CallSID: callSID,
		Phone:   phone,
		Step:    1,
		State:   StateCollecting,
		answers: make(map[int]model.Answer),
	}
}

// RecordAnswer logs the answer for one question step. Redelivery of
// the same step with the same digits is an idempotent re-log and
// returns false; a new or changed answer is stored and returns true.
func (s *Session) RecordAnswer(step int, question, answer string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.answers[step]; ok && prev.Answer == answer {
		return false
	}
	s.answers[step] = model.Answer{Question: question, Answer: answer, Timestamp: at}
	return true
}

// Answers returns the collected answers in question order.
func (s *Session) Answers() []model.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]int, 0, len(s.answers))
	for step := range s.answers {
		steps = append(steps, step)
	}
	sort.Ints(steps)

	out := make([]model.Answer, 0, len(steps))
	for _, step := range steps {
		out = append(out, s.answers[step])
	}
	return out
}

// SessionStore maps session keys to live sessions with explicit
// create-on-first-access and eviction on terminal transition.
type SessionStore struct {
	mu sync.Mutex
	m  map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{m: make(map[string]*Session)}
}

// GetOrCreate returns the session for the call, creating it on first
// access. A session created under the phone-number fallback key is
// migrated to its call SID key as soon as the SID is seen, so two
// calls briefly sharing a phone number cannot collide once their SIDs
// are known.
func (st *SessionStore) GetOrCreate(callSID, phone string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if callSID != "" {
		if s, ok := st.m[callSID]; ok {
			return s
		}
		// Migrate a fallback-keyed session for this caller.
		if s, ok := st.m[phone]; ok && phone != "" && s.CallSID == "" {
			delete(st.m, phone)
			s.CallSID = callSID
			st.m[callSID] = s
			return s
		}
		s := newSession(callSID, phone)
		st.m[callSID] = s
		return s
	}

	if s, ok := st.m[phone]; ok {
		return s
	}
	s := newSession("", phone)
	st.m[phone] = s
	return s
}

// Evict removes the session for the call, trying the SID key first and
// the phone fallback second. Late or duplicate callbacks after
// eviction simply create a fresh session and cannot corrupt the old
// one.
func (st *SessionStore) Evict(callSID, phone string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if callSID != "" {
		if _, ok := st.m[callSID]; ok {
			delete(st.m, callSID)
			return
		}
	}
	if s, ok := st.m[phone]; ok && (s.CallSID == callSID || s.CallSID == "") {
		delete(st.m, phone)
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.m)
}
