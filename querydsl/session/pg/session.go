package pg

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/result"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/signals"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/utils"
)

type querySignals struct {
	onQueryStarted signals.Signal[session.QueryStartedEvent]
	onQueryEnded   signals.Signal[session.QueryEndedEvent]
}

func newQuerySignals() querySignals {
	return querySignals{
		onQueryStarted: signals.NewSignal[session.QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[session.QueryEndedEvent](),
	}
}

func (q querySignals) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return q.onQueryStarted
}

func (q querySignals) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return q.onQueryEnded
}

// Session represents a database session without transaction
type Session struct {
	querySignals
	ctx          context.Context
	conn         *pgxpool.Conn
	identityMap  *identitymap.IdentityMap
	identitySize int
}

func NewSession(ctx context.Context, conn *pgxpool.Conn, identitySize int) *Session {
	return &Session{
		querySignals: newQuerySignals(),
		ctx:          ctx,
		conn:         conn,
		identityMap:  identitymap.New(identitySize, identitymap.ReadUncommitted),
		identitySize: identitySize,
	}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Connection() session.DbConnection {
	return &connection{ctx: s.ctx, exec: s.conn, session: s}
}

func (s *Session) IdentityMap() *identitymap.IdentityMap {
	return s.identityMap
}

func (s *Session) Atomic(callback session.SessionCallback) error {
	tx, err := s.conn.Begin(s.ctx)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}

	im := identitymap.New(s.identitySize, identitymap.Serializable)
	atomicSession := newAtomicSession(s.ctx, tx, im, s.querySignals)

	err = callback(atomicSession)
	im.Clear()

	if err != nil {
		if txErr := tx.Rollback(s.ctx); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}

	if txErr := tx.Commit(s.ctx); txErr != nil {
		return errors.Wrap(txErr, "failed to commit transaction")
	}

	return nil
}

// AtomicSession represents a session inside transaction. Nested Atomic
// calls become savepoints sharing the identity map and query signals.
type AtomicSession struct {
	querySignals
	ctx         context.Context
	tx          pgx.Tx
	identityMap *identitymap.IdentityMap
}

func newAtomicSession(ctx context.Context, tx pgx.Tx, identityMap *identitymap.IdentityMap, qs querySignals) *AtomicSession {
	return &AtomicSession{
		querySignals: qs,
		ctx:          ctx,
		tx:           tx,
		identityMap:  identityMap,
	}
}

func (s *AtomicSession) Context() context.Context {
	return s.ctx
}

func (s *AtomicSession) Connection() session.DbConnection {
	return &connection{ctx: s.ctx, exec: s.tx, session: s}
}

func (s *AtomicSession) IdentityMap() *identitymap.IdentityMap {
	return s.identityMap
}

func (s *AtomicSession) Atomic(callback session.SessionCallback) error {
	nestedTx, err := s.tx.Begin(s.ctx)
	if err != nil {
		return errors.Wrap(err, "unable to start savepoint")
	}

	atomicSession := newAtomicSession(s.ctx, nestedTx, s.identityMap, s.querySignals)

	err = callback(atomicSession)
	if err != nil {
		if txErr := nestedTx.Rollback(s.ctx); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}

	if txErr := nestedTx.Commit(s.ctx); txErr != nil {
		return errors.Wrap(txErr, "failed to commit savepoint")
	}

	return nil
}

// executor interface for both *pgxpool.Conn and pgx.Tx
type executor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// connection implements session.DbConnection
type connection struct {
	ctx     context.Context
	exec    executor
	session session.DbSession
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	if utils.IsAutoincrementInsertQuery(query) {
		return c.insert(query, args...)
	}

	var res session.Result
	err := c.observe(query, args, func() error {
		tag, err := c.exec.Exec(c.ctx, query, args...)
		if err != nil {
			return err
		}
		res = result.NewAffectedResult(tag.RowsAffected())
		return nil
	})
	return res, err
}

func (c *connection) insert(query string, args ...any) (session.Result, error) {
	var id int64
	err := c.observe(query, args, func() error {
		return c.exec.QueryRow(c.ctx, query, args...).Scan(&id)
	})
	if err != nil {
		return nil, err
	}
	return result.NewInsertResult(id), nil
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	end, err := c.start(query, args)
	if err != nil {
		return nil, err
	}
	rows, err := c.exec.Query(c.ctx, query, args...)
	if err != nil {
		return nil, end(err)
	}
	return &rowsAdapter{rows: rows, end: end}, nil
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	end, err := c.start(query, args)
	if err != nil {
		return &errorRow{err: err}
	}
	return &rowAdapter{row: c.exec.QueryRow(c.ctx, query, args...), end: end}
}

func (c *connection) observe(query string, args []any, run func() error) error {
	end, err := c.start(query, args)
	if err != nil {
		return err
	}
	return end(run())
}

// start notifies QueryStarted and returns the callback that notifies
// QueryEnded with the elapsed time. The statement error wins over an
// observer error.
func (c *connection) start(query string, args []any) (endQuery, error) {
	if err := c.session.OnQueryStarted().Notify(session.QueryStartedEvent{
		Query:   query,
		Params:  args,
		Session: c.session,
	}); err != nil {
		return nil, err
	}
	started := time.Now()
	return func(err error) error {
		endedErr := c.session.OnQueryEnded().Notify(session.QueryEndedEvent{
			Query:        query,
			Params:       args,
			Session:      c.session,
			Err:          err,
			ResponseTime: time.Since(started),
		})
		if err != nil {
			return err
		}
		return endedErr
	}, nil
}
