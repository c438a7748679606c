package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dialer-cli/internal/model"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestResponseLedgerHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "responses.csv")
	l := NewResponseLedger(path)

	ts := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	require.NoError(t, l.Append(model.ResponseRecord{
		PhoneNumber: "+15551234567",
		Question:    "Do you currently have dental insurance?",
		Answer:      "1",
		Timestamp:   ts,
		CallSID:     "CA1",
	}))
	require.NoError(t, l.Append(model.ResponseRecord{
		PhoneNumber: "+15551234567",
		Question:    "Would you like to be connected with a dental care specialist now?",
		Answer:      "2",
		Timestamp:   ts,
		CallSID:     "CA1",
	}))

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"phone_number", "question", "answer", "timestamp", "call_sid"}, rows[0])
	assert.Equal(t, "2026-08-30 10:30:00", rows[1][3])
	assert.Equal(t, "CA1", rows[2][4])
}

func TestResponseLedgerReadByPhone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.csv")
	l := NewResponseLedger(path)
	ts := time.Now()

	require.NoError(t, l.Append(model.ResponseRecord{PhoneNumber: "+15550001111", Question: "Q1", Answer: "1", Timestamp: ts, CallSID: "CA1"}))
	require.NoError(t, l.Append(model.ResponseRecord{PhoneNumber: "+15550002222", Question: "Q1", Answer: "2", Timestamp: ts, CallSID: "CA2"}))
	require.NoError(t, l.Append(model.ResponseRecord{PhoneNumber: "+15550001111", Question: "Q2", Answer: "2", Timestamp: ts, CallSID: "CA1"}))

	recs, err := l.ReadByPhone("+15550001111")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Q1", recs[0].Question)
	assert.Equal(t, "Q2", recs[1].Question)

	none, err := l.ReadByPhone("+19999999999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResponseLedgerReadMissingFile(t *testing.T) {
	l := NewResponseLedger(filepath.Join(t.TempDir(), "nope.csv"))
	recs, err := l.ReadByPhone("+15551234567")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSummaryLedgerAppendAndDedupe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.csv")
	l := NewSummaryLedger(path)

	found, err := l.HasSummary("CA1")
	require.NoError(t, err)
	assert.False(t, found, "empty ledger has no summaries")

	require.NoError(t, l.Append(model.CallSummaryRecord{
		PhoneNumber: "+15551234567",
		CallSID:     "CA1",
		Transcript:  "Patient confirmed appointment for Tuesday",
		Summary:     "Appointment confirmed.",
		ActionItems: "- Transfer the call to an agent.",
		Timestamp:   time.Now(),
	}))

	found, err = l.HasSummary("CA1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = l.HasSummary("CA2")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = l.HasSummary("")
	require.NoError(t, err)
	assert.False(t, found, "empty call sid never matches")

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"phone_number", "call_sid", "transcript", "summary", "action_items", "timestamp"}, rows[0])
}

func TestSummaryLedgerQuotedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.csv")
	l := NewSummaryLedger(path)

	require.NoError(t, l.Append(model.CallSummaryRecord{
		PhoneNumber: "+15551234567",
		CallSID:     "CA1",
		Transcript:  "He said, \"see you Tuesday\"\nand hung up",
		Summary:     "Summary, with commas",
		ActionItems: "- a; - b",
		Timestamp:   time.Now(),
	}))

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "He said, \"see you Tuesday\"\nand hung up", rows[1][2])
	assert.Equal(t, "Summary, with commas", rows[1][3])
}

func TestLedgerConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.csv")
	l := NewResponseLedger(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Append(model.ResponseRecord{
				PhoneNumber: "+15551234567",
				Question:    "Q",
				Answer:      "1",
				Timestamp:   time.Now(),
				CallSID:     "CA1",
			})
		}()
	}
	wg.Wait()

	rows := readAll(t, path)
	assert.Len(t, rows, 21, "header plus one row per append")
}
