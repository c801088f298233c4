package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/config"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	pgsession "github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/pg"
)

var (
	containerOnce sync.Once
	containerCfg  *config.Config
	containerErr  error

	dockerOnce sync.Once
	dockerErr  error
)

// NewPgSessionPool connects to the database named by DB_* variables or,
// when DB_HOST is unset, to a PostgreSQL container shared by the whole test
// binary. The test is skipped when neither is available.
func NewPgSessionPool(t *testing.T) *pgsession.SessionPool {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	if !config.PostgresFromEnv() {
		dockerOnce.Do(func() {
			dockerErr = checkProvider(ctx, dockerHealth)
		})
		if dockerErr != nil {
			t.Skipf("docker is not available: %v", dockerErr)
		}
		containerOnce.Do(func() {
			containerCfg, containerErr = startPostgres(ctx, *cfg)
		})
		require.NoError(t, containerErr)
		cfg = containerCfg
	}

	pool, err := pgsession.Connect(ctx, cfg.Postgres)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(pool.Close)

	return pgsession.NewSessionPool(pool, pgsession.WithIdentityMapSize(cfg.Session.IdentityMapSize))
}

func dockerHealth(ctx context.Context) error {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return err
	}
	defer provider.Close()
	return provider.Health(ctx)
}

// checkProvider runs the health check and turns a panic into an error: testcontainers
// panics when it cannot locate a Docker host.
func checkProvider(ctx context.Context, health func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%v", r)
		}
	}()
	return health(ctx)
}

func startPostgres(ctx context.Context, cfg config.Config) (*config.Config, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(cfg.Postgres.DBName),
		postgres.WithUsername(cfg.Postgres.User),
		postgres.WithPassword(cfg.Postgres.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "start postgres container")
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "container host")
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, errors.Wrap(err, "container port")
	}

	cfg.Postgres.Host = host
	cfg.Postgres.Port = port.Int()
	cfg.Postgres.SSLMode = "disable"
	return &cfg, nil
}

var errRollback = errors.New("rollback")

// WithRollback runs callback inside a transaction that is always rolled back.
func WithRollback(t *testing.T, pool session.SessionPool, callback func(s session.DbSession)) {
	t.Helper()
	err := pool.Session(context.Background(), func(s session.Session) error {
		return s.Atomic(func(tx session.Session) error {
			callback(tx.(session.DbSession))
			return errRollback
		})
	})
	if !errors.Is(err, errRollback) {
		require.NoError(t, err)
	}
}
