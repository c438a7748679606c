package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dialer-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS call_runs (
	id             TEXT PRIMARY KEY,
	lead_name      TEXT NOT NULL,
	phone          TEXT NOT NULL,
	call_sid       TEXT,
	outcome        TEXT NOT NULL DEFAULT 'pending',
	process_status TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_call_runs_call_sid ON call_runs(call_sid);
CREATE INDEX IF NOT EXISTS idx_call_runs_outcome ON call_runs(outcome);
CREATE INDEX IF NOT EXISTS idx_call_runs_process_status ON call_runs(process_status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCallRun(ctx context.Context, lead model.Lead, to string) (*model.CallRun, error) {
	now := time.Now().UTC()
	run := &model.CallRun{
		ID:        uuid.NewString(),
		LeadName:  lead.Name,
		Phone:     to,
		Outcome:   model.OutcomePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_runs (id, lead_name, phone, outcome, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.LeadName, run.Phone, string(run.Outcome), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create call run")
	}
	return run, nil
}

func (s *PostgresStore) SetOutcome(ctx context.Context, runID string, outcome model.Outcome, callSID, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE call_runs SET outcome = $1, call_sid = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(outcome), callSID, errMsg, time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "postgres: set outcome")
}

func (s *PostgresStore) SetProcessStatus(ctx context.Context, callSID string, status model.ProcessStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE call_runs SET process_status = $1, error = $2, updated_at = $3 WHERE call_sid = $4`,
		string(status), errMsg, time.Now().UTC(), callSID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set process status")
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Key: callSID}
	}
	return nil
}

func (s *PostgresStore) GetByCallSID(ctx context.Context, callSID string) (*model.CallRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lead_name, phone, call_sid, outcome, process_status, error, created_at, updated_at
		 FROM call_runs WHERE call_sid = $1 ORDER BY created_at DESC LIMIT 1`,
		callSID,
	)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Key: callSID}
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get by call sid")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.CallRun, error) {
	query := `SELECT id, lead_name, phone, call_sid, outcome, process_status, error, created_at, updated_at FROM call_runs`
	var args []any
	argn := 0
	addCond := func(expr string, val any) {
		argn++
		if argn == 1 {
			query += " WHERE "
		} else {
			query += " AND "
		}
		query += fmt.Sprintf(expr, argn)
		args = append(args, val)
	}
	if filter.Outcome != "" {
		addCond("outcome = $%d", string(filter.Outcome))
	}
	if filter.ProcessStatus != "" {
		addCond("process_status = $%d", string(filter.ProcessStatus))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		argn++
		query += fmt.Sprintf(" LIMIT $%d", argn)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.CallRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs")
}
