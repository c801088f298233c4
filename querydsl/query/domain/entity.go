package query

import (
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
)

// EntityMapper describes how rows of one table become entities.
type EntityMapper[T any] interface {
	Table() string
	// Columns lists the mapped columns, identifier first.
	Columns() []string
	Key(id int64) identitymap.IdentityKey[T]
	// Hydrate builds an entity from values in Columns order.
	Hydrate(values []any) (T, error)
	// Link resolves references of entity against instances already tracked
	// by the identity map.
	Link(im *identitymap.IdentityMap, entity T)
}

// EntityProjection is a projection that expands to all mapped columns of a
// source and yields one entity per row.
type EntityProjection interface {
	Source
	s.Visitable
	Columns() []string
	Hydrate(im *identitymap.IdentityMap, values []any) (any, error)
	Link(im *identitymap.IdentityMap, entity any)
}

// EntityPath binds a mapper to a table alias. As an expression it stands
// for the identifier column, so Count(path) counts entities.
type EntityPath[T any] struct {
	alias  string
	mapper EntityMapper[T]
}

func NewEntityPath[T any](alias string, mapper EntityMapper[T]) EntityPath[T] {
	return EntityPath[T]{alias: alias, mapper: mapper}
}

func (p EntityPath[T]) Table() string {
	return p.mapper.Table()
}

func (p EntityPath[T]) Alias() string {
	return p.alias
}

func (p EntityPath[T]) Columns() []string {
	return p.mapper.Columns()
}

func (p EntityPath[T]) Mapper() EntityMapper[T] {
	return p.mapper
}

func (p EntityPath[T]) Field(column string) s.FieldNode {
	return Column(p, column)
}

func (p EntityPath[T]) ID() s.FieldNode {
	return p.Field(p.mapper.Columns()[0])
}

func (p EntityPath[T]) Accept(v s.Visitor) error {
	return p.ID().Accept(v)
}

// Hydrate returns nil when the identifier is NULL, which happens for the
// unmatched side of an outer join. A row whose identity is already tracked
// yields the tracked instance.
func (p EntityPath[T]) Hydrate(im *identitymap.IdentityMap, values []any) (any, error) {
	if len(values) != len(p.mapper.Columns()) {
		return nil, errors.Errorf("%s: expected %d values, got %d", p.Table(), len(p.mapper.Columns()), len(values))
	}
	if values[0] == nil {
		return nil, nil
	}
	id, err := Convert[int64](values[0])
	if err != nil {
		return nil, errors.Wrapf(err, "%s: identifier", p.Table())
	}
	entity, _, err := identitymap.GetOrAdd(im, p.mapper.Key(id), func() (T, error) {
		return p.mapper.Hydrate(values)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: hydrate", p.Table())
	}
	return entity, nil
}

func (p EntityPath[T]) Link(im *identitymap.IdentityMap, entity any) {
	if e, ok := entity.(T); ok {
		p.mapper.Link(im, e)
	}
}
