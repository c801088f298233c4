// Package querylog writes every statement a session runs to a zap logger.
package querylog

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/disposable"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
)

type QueryLogger struct {
	log *zap.Logger
}

func New(log *zap.Logger) *QueryLogger {
	return &QueryLogger{log: log.Named("query")}
}

// Attach logs the queries of one session under a fresh session id until
// the returned disposable is disposed.
func (l *QueryLogger) Attach(s session.DbSession) disposable.Disposable {
	id := uuid.NewString()
	log := l.log.With(zap.String("session", id))

	started := s.OnQueryStarted().Attach(func(e session.QueryStartedEvent) error {
		if ce := log.Check(zapcore.DebugLevel, "query started"); ce != nil {
			ce.Write(zap.String("sql", e.Query), zap.Any("params", e.Params))
		}
		return nil
	}, id)
	ended := s.OnQueryEnded().Attach(func(e session.QueryEndedEvent) error {
		if e.Err != nil {
			log.Warn("query failed",
				zap.String("sql", e.Query),
				zap.Duration("duration", e.ResponseTime),
				zap.Error(e.Err),
			)
			return nil
		}
		log.Debug("query ended",
			zap.String("sql", e.Query),
			zap.Duration("duration", e.ResponseTime),
		)
		return nil
	}, id)

	return disposable.NewDisposable(func() {
		started.Dispose()
		ended.Dispose()
	})
}

// AttachPool attaches to every DbSession the pool opens.
func (l *QueryLogger) AttachPool(p session.SessionPoolObservable) disposable.Disposable {
	var mu sync.Mutex
	attached := map[session.Session]disposable.Disposable{}

	started := p.OnSessionStarted().Attach(func(e session.SessionScopeStartedEvent) error {
		if s, ok := e.Session.(session.DbSession); ok {
			mu.Lock()
			attached[e.Session] = l.Attach(s)
			mu.Unlock()
		}
		return nil
	}, l)
	ended := p.OnSessionEnded().Attach(func(e session.SessionScopeEndedEvent) error {
		mu.Lock()
		d, ok := attached[e.Session]
		delete(attached, e.Session)
		mu.Unlock()
		if ok {
			d.Dispose()
		}
		return nil
	}, l)

	return disposable.NewDisposable(func() {
		started.Dispose()
		ended.Dispose()
	})
}
