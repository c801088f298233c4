package persistence

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	q "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/domain"
	fetch "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/infrastructure"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
)

var (
	ErrTransientReference = errors.New("persistence: reference to a transient entity")
	ErrNotFound           = errors.New("persistence: entity not found")
)

// EntityManager is a persistence context over one DbSession. Persisted
// entities are written on Flush in the order they were persisted.
type EntityManager struct {
	session session.DbSession
	pending []pendingInsert
}

type pendingInsert struct {
	table  string
	insert func(conn session.DbConnection, im *identitymap.IdentityMap) error
}

func NewEntityManager(sess session.DbSession) *EntityManager {
	return &EntityManager{session: sess}
}

func (em *EntityManager) Session() session.DbSession {
	return em.session
}

// Pending returns the number of entities waiting for Flush.
func (em *EntityManager) Pending() int {
	return len(em.pending)
}

// Persist queues entity for insertion. Entities that already have an
// identifier are left untouched by Flush.
func Persist[T any](em *EntityManager, m Mapper[T], entity T) {
	em.pending = append(em.pending, pendingInsert{
		table: m.Table(),
		insert: func(conn session.DbConnection, im *identitymap.IdentityMap) error {
			if m.ID(entity) != 0 {
				return nil
			}
			values, err := m.InsertValues(entity)
			if err != nil {
				return err
			}
			res, err := conn.Exec(insertSQL(m.Table(), m.Columns()), values...)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			m.SetID(entity, id)
			identitymap.Add(im, m.Key(id), entity)
			return nil
		},
	})
}

// Flush writes queued entities. On failure the failed entity and the ones
// after it stay queued.
func (em *EntityManager) Flush() error {
	conn := em.session.Connection()
	im := em.session.IdentityMap()
	for len(em.pending) > 0 {
		next := em.pending[0]
		if err := next.insert(conn, im); err != nil {
			return errors.Wrapf(err, "flush %s", next.table)
		}
		em.pending = em.pending[1:]
	}
	return nil
}

// Clear drops queued entities and detaches every tracked one, so later
// reads go to the database.
func (em *EntityManager) Clear() {
	em.pending = nil
	em.session.IdentityMap().Clear()
}

// Find loads an entity by identifier, answering from the identity map when
// it already tracks the identifier.
func Find[T any](em *EntityManager, m Mapper[T], id int64) (T, error) {
	var zero T
	im := em.session.IdentityMap()
	key := m.Key(id)
	entity, err := identitymap.Get(im, key)
	switch {
	case err == nil:
		return entity, nil
	case errors.Is(err, identitymap.ErrObjectNotFound):
		return zero, errors.Wrapf(ErrNotFound, "%s %d", m.Table(), id)
	}

	path := q.NewEntityPath[T](alias(m.Table()), m)
	query := q.SelectFrom(path)
	query.Where = []s.Visitable{s.Equal(path.ID(), s.Value(id))}
	entity, err = fetch.FetchOne[T](em.session, query)
	if errors.Is(err, q.ErrNoResult) {
		identitymap.AddAbsent(im, key)
		return zero, errors.Wrapf(ErrNotFound, "%s %d", m.Table(), id)
	}
	return entity, err
}

func insertSQL(table string, columns []string) string {
	placeholders := make([]string, len(columns)-1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(columns[1:], ", "), strings.Join(placeholders, ", "), columns[0],
	)
}

func alias(table string) string {
	return table[:1]
}
