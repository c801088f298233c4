package query

import (
	"errors"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/option"
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
)

var (
	ErrNoResult         = errors.New("query: no result")
	ErrNonUniqueResult  = errors.New("query: more than one result")
	ErrEmptyProjection  = errors.New("query: empty projection")
	ErrEmptySource      = errors.New("query: no source to select from")
	ErrNullValue        = errors.New("query: NULL value")
	ErrUnsupportedQuery = errors.New("query: unsupported subquery value")
)

// Query is a SELECT statement as a plain value. The zero Offset and Limit
// leave the result unbounded.
type Query struct {
	Select   []s.Visitable
	Distinct bool
	From     []Source
	Joins    []Join
	// Where is a conjunction; nil entries are skipped.
	Where   []s.Visitable
	GroupBy []s.Visitable
	Having  []s.Visitable
	OrderBy []OrderSpecifier
	Offset  option.Option[int64]
	Limit   option.Option[int64]
}

// SelectFrom selects the entity of path from its own table.
func SelectFrom(path EntityProjection) Query {
	return Query{
		Select: []s.Visitable{path},
		From:   []Source{path},
	}
}

func (Query) IsSelectable() {}

// Unordered drops ordering and paging, leaving a query suitable for counting.
func (q Query) Unordered() Query {
	q.OrderBy = nil
	q.Offset = option.Nothing[int64]()
	q.Limit = option.Nothing[int64]()
	return q
}

// WithLimit returns a copy of q limited to n rows, keeping a tighter
// existing limit.
func (q Query) WithLimit(n int64) Query {
	if q.Limit.IsNothing() || q.Limit.Unwrap() > n {
		q.Limit = option.Some(n)
	}
	return q
}

// Results is one page of a query together with the unpaged total.
type Results[T any] struct {
	Items  []T
	Total  int64
	Offset int64
	Limit  option.Option[int64]
}

func (r Results[T]) IsEmpty() bool {
	return len(r.Items) == 0
}
