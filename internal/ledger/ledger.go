// Package ledger persists IVR answers and call summaries as
// append-only CSV files. Rows are never updated or deleted; every
// append opens the file, writes one record, flushes, and closes, so
// concurrent appenders through the same Ledger interleave whole rows.
package ledger

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dialer-cli/internal/model"
)

// TimeFormat is the timestamp layout used in ledger rows.
const TimeFormat = "2006-01-02 15:04:05"

var (
	responseHeader = []string{"phone_number", "question", "answer", "timestamp", "call_sid"}
	summaryHeader  = []string{"phone_number", "call_sid", "transcript", "summary", "action_items", "timestamp"}
)

// ResponseLedger appends one row per answered IVR question.
type ResponseLedger struct {
	mu   sync.Mutex
	path string
}

// NewResponseLedger creates a response ledger writing to path.
func NewResponseLedger(path string) *ResponseLedger {
	return &ResponseLedger{path: path}
}

// Append writes one response record, creating the file (and its
// header) on first use.
func (l *ResponseLedger) Append(rec model.ResponseRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return appendRow(l.path, responseHeader, []string{
		rec.PhoneNumber,
		rec.Question,
		rec.Answer,
		rec.Timestamp.Format(TimeFormat),
		rec.CallSID,
	})
}

// ReadByPhone returns all recorded responses for the given phone
// number, in append order. A missing ledger file yields an empty slice.
func (l *ResponseLedger) ReadByPhone(phone string) ([]model.ResponseRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := readRows(l.path)
	if err != nil {
		return nil, err
	}

	var out []model.ResponseRecord
	for _, row := range rows {
		if len(row) < 5 || row[0] != phone {
			continue
		}
		rec := model.ResponseRecord{
			PhoneNumber: row[0],
			Question:    row[1],
			Answer:      row[2],
			CallSID:     row[4],
		}
		out = append(out, rec)
	}
	return out, nil
}

// SummaryLedger appends one row per fully processed call.
type SummaryLedger struct {
	mu   sync.Mutex
	path string
}

// NewSummaryLedger creates a summary ledger writing to path.
func NewSummaryLedger(path string) *SummaryLedger {
	return &SummaryLedger{path: path}
}

// Append writes one call summary record, creating the file (and its
// header) on first use.
func (l *SummaryLedger) Append(rec model.CallSummaryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return appendRow(l.path, summaryHeader, []string{
		rec.PhoneNumber,
		rec.CallSID,
		rec.Transcript,
		rec.Summary,
		rec.ActionItems,
		rec.Timestamp.Format(TimeFormat),
	})
}

// HasSummary reports whether a summary row already exists for the call
// SID. The pipeline uses this as its dedupe check before appending.
func (l *SummaryLedger) HasSummary(callSID string) (bool, error) {
	if callSID == "" {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := readRows(l.path)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if len(row) >= 2 && row[1] == callSID {
			return true, nil
		}
	}
	return false, nil
}

// appendRow opens path for append, writing the header first if the
// file is being created, then writes exactly one row and flushes.
func appendRow(path string, header, row []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "ledger: create dir")
		}
	}

	info, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "ledger: open file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return eris.Wrap(err, "ledger: write header")
		}
	}
	if err := w.Write(row); err != nil {
		return eris.Wrap(err, "ledger: write row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "ledger: flush")
	}
	return nil
}

// readRows returns all data rows (header skipped) of the CSV at path.
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "ledger: open file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "ledger: read row")
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, row)
	}
}
