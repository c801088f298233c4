package pg

import (
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// endQuery reports the end of an observed statement and returns the error
// the caller should see.
type endQuery func(err error) error

// rowsAdapter adapts pgx.Rows to session.Rows. The statement counts as
// ended once its rows are released, so the reported response time covers
// streaming and a failure while iterating reaches QueryEnded observers.
type rowsAdapter struct {
	rows  pgx.Rows
	end   endQuery
	ended bool
	err   error
}

func (r *rowsAdapter) Close() error {
	r.rows.Close()
	r.finish()
	return r.err
}

func (r *rowsAdapter) Err() error {
	if r.ended {
		return r.err
	}
	return r.rows.Err()
}

// Next finishes the observation when the rows are exhausted; pgx closes
// them at that point too.
func (r *rowsAdapter) Next() bool {
	if r.ended {
		return false
	}
	if r.rows.Next() {
		return true
	}
	r.finish()
	return false
}

func (r *rowsAdapter) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *rowsAdapter) finish() {
	if r.ended {
		return
	}
	r.ended = true
	r.err = r.end(r.rows.Err())
}

// rowAdapter adapts pgx.Row to session.Row. pgx runs the statement on
// Scan, which is where the observation ends. A missing row is a result,
// not a failed statement.
type rowAdapter struct {
	row   pgx.Row
	end   endQuery
	ended bool
	err   error
}

func (r *rowAdapter) Err() error {
	return r.err
}

func (r *rowAdapter) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if !r.ended {
		r.ended = true
		failure := err
		if errors.Is(err, pgx.ErrNoRows) {
			failure = nil
		}
		if endErr := r.end(failure); endErr != nil {
			err = endErr
		}
	}
	if r.err == nil {
		r.err = err
	}
	return err
}

type errorRow struct {
	err error
}

func (r *errorRow) Err() error {
	return r.err
}

func (r *errorRow) Scan(...any) error {
	return r.err
}
