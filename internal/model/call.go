package model

import "time"

// Outcome is the terminal result of a dispatch attempt for one lead.
type Outcome string

const (
	OutcomePending       Outcome = "pending"
	OutcomePlaced        Outcome = "placed"
	OutcomeFailed        Outcome = "failed"
	OutcomeInvalidNumber Outcome = "invalid_number"
	OutcomeUnverified    Outcome = "unverified"
)

// Terminal reports whether the outcome will not change again.
func (o Outcome) Terminal() bool {
	return o != OutcomePending && o != ""
}

// ProcessStatus tracks the post-call pipeline for a placed call.
type ProcessStatus string

const (
	ProcessStatusNone       ProcessStatus = ""
	ProcessStatusProcessing ProcessStatus = "processing"
	ProcessStatusProcessed  ProcessStatus = "processed"
	ProcessStatusFailed     ProcessStatus = "process_failed"
)

// Lead is a prospective customer record from an ingested batch.
// Name and Phone are required; any other columns from the source file
// are preserved in Extra.
type Lead struct {
	Name  string            `json:"name"`
	Phone string            `json:"phone"`
	Extra map[string]string `json:"extra,omitempty"`
}

// CallAttempt is the dispatcher's working record for one lead.
// CallSID is assigned by the telephony provider on successful placement
// and is immutable once set; it joins all later webhook events and
// pipeline stages back to this attempt.
type CallAttempt struct {
	Lead    Lead    `json:"lead"`
	To      string  `json:"to"`
	From    string  `json:"from"`
	CallSID string  `json:"call_sid,omitempty"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// CallRun is the persisted record of one lead's dispatch and, once the
// call completes, its post-call processing.
type CallRun struct {
	ID            string        `json:"id"`
	LeadName      string        `json:"lead_name"`
	Phone         string        `json:"phone"`
	CallSID       string        `json:"call_sid,omitempty"`
	Outcome       Outcome       `json:"outcome"`
	ProcessStatus ProcessStatus `json:"process_status,omitempty"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Answer is one collected IVR response within a session.
type Answer struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseRecord is one appended row of the response ledger.
type ResponseRecord struct {
	PhoneNumber string    `json:"phone_number"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Timestamp   time.Time `json:"timestamp"`
	CallSID     string    `json:"call_sid"`
}

// CallSummaryRecord is one appended row of the summary ledger, written
// at most once per processed call.
type CallSummaryRecord struct {
	PhoneNumber string    `json:"phone_number"`
	CallSID     string    `json:"call_sid"`
	Transcript  string    `json:"transcript"`
	Summary     string    `json:"summary"`
	ActionItems string    `json:"action_items"`
	Timestamp   time.Time `json:"timestamp"`
}
