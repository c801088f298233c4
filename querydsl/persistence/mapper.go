package persistence

import (
	q "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/domain"
)

// Mapper extends the read-side mapping of an entity with what is needed to
// insert it.
type Mapper[T any] interface {
	q.EntityMapper[T]
	// ID returns 0 while the entity is transient.
	ID(entity T) int64
	SetID(entity T, id int64)
	// InsertValues returns the values of Columns()[1:]. It returns
	// ErrTransientReference when the entity refers to a transient entity.
	InsertValues(entity T) ([]any, error)
}
