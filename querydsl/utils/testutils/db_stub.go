package testutils

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/result"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/signals"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/utils"
)

// NewDbSessionStub answers every query with rows. The identity map is
// Serializable so hydration behaves as inside a transaction.
func NewDbSessionStub(rows ...*RowsStub) *DbSessionStub {
	stub := &DbSessionStub{
		Rows:           rows,
		identityMap:    identitymap.New(100, identitymap.Serializable),
		onStarted:      signals.NewSignal[session.SessionScopeStartedEvent](),
		onEnded:        signals.NewSignal[session.SessionScopeEndedEvent](),
		onQueryStarted: signals.NewSignal[session.QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[session.QueryEndedEvent](),
	}
	stub.conn = &connectionStub{session: stub}
	return stub
}

type RecordedQuery struct {
	Query  string
	Params []any
}

type DbSessionStub struct {
	// Rows are handed out in order, one per Query or QueryRow call; an
	// empty result follows once they run out.
	Rows           []*RowsStub
	ActualQuery    string
	ActualParams   []any
	Queries        []RecordedQuery
	lastInsertId   int64
	conn           *connectionStub
	identityMap    *identitymap.IdentityMap
	onStarted      signals.Signal[session.SessionScopeStartedEvent]
	onEnded        signals.Signal[session.SessionScopeEndedEvent]
	onQueryStarted signals.Signal[session.QueryStartedEvent]
	onQueryEnded   signals.Signal[session.QueryEndedEvent]
}

func (s *DbSessionStub) Context() context.Context {
	return context.Background()
}

func (s *DbSessionStub) Atomic(callback session.SessionCallback) error {
	return callback(s)
}

func (s *DbSessionStub) Connection() session.DbConnection {
	return s.conn
}

func (s *DbSessionStub) IdentityMap() *identitymap.IdentityMap {
	return s.identityMap
}

// Session lets the stub stand in for a pool that always hands out itself.
func (s *DbSessionStub) Session(_ context.Context, callback session.SessionPoolCallback) error {
	if err := s.onStarted.Notify(session.SessionScopeStartedEvent{Session: s}); err != nil {
		return err
	}
	err := callback(s)
	if endedErr := s.onEnded.Notify(session.SessionScopeEndedEvent{Session: s}); err == nil {
		err = endedErr
	}
	return err
}

func (s *DbSessionStub) OnSessionStarted() signals.Signal[session.SessionScopeStartedEvent] {
	return s.onStarted
}

func (s *DbSessionStub) OnSessionEnded() signals.Signal[session.SessionScopeEndedEvent] {
	return s.onEnded
}

func (s *DbSessionStub) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.onQueryStarted
}

func (s *DbSessionStub) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.onQueryEnded
}

func (s *DbSessionStub) record(query string, args []any) {
	s.start(query, args)
	s.end(query, args, nil)
}

func (s *DbSessionStub) start(query string, args []any) {
	s.ActualQuery = query
	s.ActualParams = args
	s.Queries = append(s.Queries, RecordedQuery{Query: query, Params: args})
	_ = s.onQueryStarted.Notify(session.QueryStartedEvent{Query: query, Params: args, Session: s})
}

func (s *DbSessionStub) end(query string, args []any, err error) {
	_ = s.onQueryEnded.Notify(session.QueryEndedEvent{
		Query:        query,
		Params:       args,
		Session:      s,
		Err:          err,
		ResponseTime: time.Millisecond,
	})
}

func (s *DbSessionStub) nextRows() *RowsStub {
	if len(s.Rows) == 0 {
		return NewRowsStub()
	}
	rows := s.Rows[0]
	s.Rows = s.Rows[1:]
	return rows
}

type connectionStub struct {
	session *DbSessionStub
}

func (c *connectionStub) Exec(query string, args ...any) (session.Result, error) {
	c.session.record(query, args)
	if utils.IsAutoincrementInsertQuery(query) {
		c.session.lastInsertId++
		return result.NewInsertResult(c.session.lastInsertId), nil
	}
	return result.NewAffectedResult(0), nil
}

// Query ends the observed statement when the rows are closed, as the pg
// session does.
func (c *connectionStub) Query(query string, args ...any) (session.Rows, error) {
	c.session.start(query, args)
	rows := c.session.nextRows()
	rows.onClose = func(err error) { c.session.end(query, args, err) }
	return rows, nil
}

func (c *connectionStub) QueryRow(query string, args ...any) session.Row {
	c.session.record(query, args)
	rows := c.session.nextRows()
	rows.Next()
	return &RowStub{rows: rows}
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows   [][]any
	idx    int
	Closed bool
	// IterationErr is reported by Err once the rows are exhausted.
	IterationErr error
	onClose      func(err error)
}

func (r *RowsStub) Close() error {
	if r.Closed {
		return nil
	}
	r.Closed = true
	if r.onClose != nil {
		r.onClose(r.Err())
	}
	return nil
}

func (r *RowsStub) Err() error {
	if r.idx < len(r.rows) {
		return nil
	}
	return r.IterationErr
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return pgx.ErrNoRows
	}

	row := r.rows[r.idx]
	for i, val := range row {
		if i >= len(dest) {
			break
		}

		switch d := dest[i].(type) {
		case *any:
			*d = val
		case *int:
			*d = toInt(val)
		case *int64:
			*d = toInt64(val)
		case *int32:
			*d = toInt32(val)
		case *string:
			*d = val.(string)
		case **string:
			if val == nil {
				*d = nil
			} else {
				v := val.(string)
				*d = &v
			}
		case *bool:
			*d = val.(bool)
		case *[]byte:
			*d = val.([]byte)
		case *float64:
			*d = toFloat64(val)
		case sql.Scanner:
			if err := d.Scan(val); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

func toInt(val any) int {
	return int(toInt64(val))
}

func toInt32(val any) int32 {
	return int32(toInt64(val))
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		panic("cannot convert to int64")
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		panic("cannot convert to float64")
	}
}

type RowStub struct {
	rows *RowsStub
}

func (r *RowStub) Err() error {
	return r.rows.Err()
}

func (r *RowStub) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}
