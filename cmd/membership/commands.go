package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krew-solutions/ascetic-querydsl-go/examples/membership"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/config"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/logger"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/persistence"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	pgsession "github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/pg"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/querylog"
)

// app holds what PersistentPreRunE resolves for every subcommand.
type app struct {
	envFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "membership",
		Short:         "Query the membership example database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "file with DB_* and LOG_LEVEL variables")

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newSeedCommand(a))
	cmd.AddCommand(newQueryCommand(a))
	return cmd
}

func (a *app) init() error {
	cfg, err := config.NewConfig(a.envFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// withPool opens the database, logs every query of the pool and closes the
// pool afterwards.
func (a *app) withPool(ctx context.Context, callback func(pool *pgsession.SessionPool) error) error {
	pgPool, err := pgsession.Connect(ctx, a.cfg.Postgres)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	pool := pgsession.NewSessionPool(pgPool, pgsession.WithIdentityMapSize(a.cfg.Session.IdentityMapSize))
	detach := querylog.New(a.log).AttachPool(pool)
	defer detach.Dispose()

	return callback(pool)
}

// inTransaction runs callback in one transaction of a pooled session.
func inTransaction(ctx context.Context, pool session.SessionPool, callback func(sess session.DbSession) error) error {
	return pool.Session(ctx, func(s session.Session) error {
		return s.Atomic(func(tx session.Session) error {
			return callback(tx.(session.DbSession))
		})
	})
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printCatalog(cmd.OutOrStdout())
			return nil
		},
	}
}

func printCatalog(w io.Writer) {
	for _, e := range membership.Catalog() {
		fmt.Fprintf(w, "%-18s %s\n", e.Name, e.Description)
	}
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the teams and members tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPool(cmd.Context(), func(pool *pgsession.SessionPool) error {
				if err := membership.Migrate(cmd.Context(), pool.Pool()); err != nil {
					return err
				}
				a.log.Info("schema is up to date")
				return nil
			})
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	var bulk int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the fixture teams and members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bulk < 0 {
				return errors.Errorf("--bulk must not be negative, got %d", bulk)
			}
			return a.withPool(cmd.Context(), func(pool *pgsession.SessionPool) error {
				return inTransaction(cmd.Context(), pool, func(sess session.DbSession) error {
					em := persistence.NewEntityManager(sess)
					data, err := membership.Fixture(em)
					if err != nil {
						return err
					}
					added, err := membership.BulkFixture(em, []*membership.Team{data.TeamA, data.TeamB}, bulk)
					if err != nil {
						return err
					}
					a.log.Info("seeded",
						zap.Int64("teamA", data.TeamA.ID),
						zap.Int64("teamB", data.TeamB.ID),
						zap.Int("members", len(data.Members)+len(added)),
					)
					return nil
				})
			})
		},
	}
	cmd.Flags().IntVar(&bulk, "bulk", 0, "number of extra random members")
	return cmd
}

func newQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <name>",
		Short: "Run a catalog query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok := membership.Lookup(args[0])
			if !ok {
				return errors.Errorf("unknown query %q, see the list command", args[0])
			}
			return a.withPool(cmd.Context(), func(pool *pgsession.SessionPool) error {
				return inTransaction(cmd.Context(), pool, func(sess session.DbSession) error {
					lines, err := entry.Run(sess)
					if err != nil {
						return errors.Wrap(err, entry.Name)
					}
					for _, line := range lines {
						fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", entry.Name, line)
					}
					return nil
				})
			})
		},
	}
}
