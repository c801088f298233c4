package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/signals"
)

const defaultIdentityMapSize = 100

type Option func(*SessionPool)

// WithIdentityMapSize sizes the identity maps opened through the pool. The
// Serializable map of a transaction keeps every entity it tracks.
func WithIdentityMapSize(size int) Option {
	return func(p *SessionPool) {
		if size > 0 {
			p.identityMapSize = size
		}
	}
}

type SessionPool struct {
	pool             *pgxpool.Pool
	identityMapSize  int
	onSessionStarted signals.Signal[session.SessionScopeStartedEvent]
	onSessionEnded   signals.Signal[session.SessionScopeEndedEvent]
}

func NewSessionPool(pool *pgxpool.Pool, opts ...Option) *SessionPool {
	p := &SessionPool{
		pool:             pool,
		identityMapSize:  defaultIdentityMapSize,
		onSessionStarted: signals.NewSignal[session.SessionScopeStartedEvent](),
		onSessionEnded:   signals.NewSignal[session.SessionScopeEndedEvent](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SessionPool) OnSessionStarted() signals.Signal[session.SessionScopeStartedEvent] {
	return p.onSessionStarted
}

func (p *SessionPool) OnSessionEnded() signals.Signal[session.SessionScopeEndedEvent] {
	return p.onSessionEnded
}

func (p *SessionPool) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to acquire connection")
	}
	defer conn.Release()

	sess := NewSession(ctx, conn, p.identityMapSize)

	if err := p.onSessionStarted.Notify(session.SessionScopeStartedEvent{Session: sess}); err != nil {
		return err
	}

	err = callback(sess)

	if endedErr := p.onSessionEnded.Notify(session.SessionScopeEndedEvent{Session: sess}); err == nil {
		err = endedErr
	}

	return err
}
