package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dialer-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS call_runs (
	id             TEXT PRIMARY KEY,
	lead_name      TEXT NOT NULL,
	phone          TEXT NOT NULL,
	call_sid       TEXT,
	outcome        TEXT NOT NULL DEFAULT 'pending',
	process_status TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_call_runs_call_sid ON call_runs(call_sid);
CREATE INDEX IF NOT EXISTS idx_call_runs_outcome ON call_runs(outcome);
CREATE INDEX IF NOT EXISTS idx_call_runs_process_status ON call_runs(process_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCallRun(ctx context.Context, lead model.Lead, to string) (*model.CallRun, error) {
	now := time.Now().UTC()
	run := &model.CallRun{
		ID:        uuid.NewString(),
		LeadName:  lead.Name,
		Phone:     to,
		Outcome:   model.OutcomePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_runs (id, lead_name, phone, outcome, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.LeadName, run.Phone, string(run.Outcome), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create call run")
	}
	return run, nil
}

func (s *SQLiteStore) SetOutcome(ctx context.Context, runID string, outcome model.Outcome, callSID, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE call_runs SET outcome = ?, call_sid = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(outcome), callSID, errMsg, time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "sqlite: set outcome")
}

func (s *SQLiteStore) SetProcessStatus(ctx context.Context, callSID string, status model.ProcessStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE call_runs SET process_status = ?, error = ?, updated_at = ? WHERE call_sid = ?`,
		string(status), errMsg, time.Now().UTC(), callSID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set process status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ErrNotFound{Key: callSID}
	}
	return nil
}

func (s *SQLiteStore) GetByCallSID(ctx context.Context, callSID string) (*model.CallRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_name, phone, call_sid, outcome, process_status, error, created_at, updated_at
		 FROM call_runs WHERE call_sid = ? ORDER BY created_at DESC LIMIT 1`,
		callSID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Key: callSID}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get by call sid")
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.CallRun, error) {
	query := `SELECT id, lead_name, phone, call_sid, outcome, process_status, error, created_at, updated_at FROM call_runs`
	var conds []string
	var args []any
	if filter.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.ProcessStatus != "" {
		conds = append(conds, "process_status = ?")
		args = append(args, string(filter.ProcessStatus))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.CallRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.CallRun, error) {
	var run model.CallRun
	var callSID sql.NullString
	var outcome, status string
	if err := row.Scan(&run.ID, &run.LeadName, &run.Phone, &callSID, &outcome, &status, &run.Error, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.CallSID = callSID.String
	run.Outcome = model.Outcome(outcome)
	run.ProcessStatus = model.ProcessStatus(status)
	return &run, nil
}
