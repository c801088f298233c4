package query

import (
	"github.com/pkg/errors"

	q "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/domain"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
	spec "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/infrastructure"
)

// FetchTuples runs query and returns one tuple per row. Entity projections
// are hydrated through the session identity map, so inside one transaction
// a row identity always yields the same instance.
func FetchTuples(sess session.DbSession, query q.Query, opts ...spec.PostgresqlVisitorOption) ([]q.Tuple, error) {
	sql, params, err := Compile(query, opts...)
	if err != nil {
		return nil, err
	}
	rows, err := sess.Connection().Query(sql, params...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	plan := newRowPlan(query.Select)
	var result []q.Tuple
	for rows.Next() {
		tuple, err := plan.scan(sess.IdentityMap(), rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tuple)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return result, nil
}

// FetchAll returns the first projected value of every row converted to T,
// or the whole tuple when T is q.Tuple.
func FetchAll[T any](sess session.DbSession, query q.Query, opts ...spec.PostgresqlVisitorOption) ([]T, error) {
	tuples, err := FetchTuples(sess, query, opts...)
	if err != nil {
		return nil, err
	}
	result := make([]T, 0, len(tuples))
	for i, tuple := range tuples {
		item, err := project[T](tuple)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		result = append(result, item)
	}
	return result, nil
}

// FetchOne returns the only row, ErrNoResult for none and
// ErrNonUniqueResult for more than one.
func FetchOne[T any](sess session.DbSession, query q.Query, opts ...spec.PostgresqlVisitorOption) (T, error) {
	var zero T
	items, err := FetchAll[T](sess, query.WithLimit(2), opts...)
	if err != nil {
		return zero, err
	}
	switch len(items) {
	case 0:
		return zero, q.ErrNoResult
	case 1:
		return items[0], nil
	default:
		return zero, q.ErrNonUniqueResult
	}
}

// FetchFirst returns the first row or ErrNoResult.
func FetchFirst[T any](sess session.DbSession, query q.Query, opts ...spec.PostgresqlVisitorOption) (T, error) {
	var zero T
	items, err := FetchAll[T](sess, query.WithLimit(1), opts...)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, q.ErrNoResult
	}
	return items[0], nil
}

func FetchCount(sess session.DbSession, query q.Query, opts ...spec.PostgresqlVisitorOption) (int64, error) {
	sql, params, err := CompileCount(query, opts...)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := sess.Connection().QueryRow(sql, params...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return count, nil
}

// FetchResults returns the requested page along with the unpaged total.
// The page query is skipped when the total is zero.
func FetchResults[T any](sess session.DbSession, query q.Query, opts ...spec.PostgresqlVisitorOption) (q.Results[T], error) {
	results := q.Results[T]{
		Offset: query.Offset.UnwrapOr(0),
		Limit:  query.Limit,
	}
	total, err := FetchCount(sess, query, opts...)
	if err != nil {
		return results, err
	}
	results.Total = total
	if total == 0 {
		return results, nil
	}
	results.Items, err = FetchAll[T](sess, query, opts...)
	return results, err
}

func project[T any](tuple q.Tuple) (T, error) {
	if t, ok := any(tuple).(T); ok {
		return t, nil
	}
	if tuple.Len() != 1 {
		var zero T
		return zero, errors.Errorf("cannot project %d values onto a single %T", tuple.Len(), zero)
	}
	return q.Get[T](tuple, 0)
}

type slot struct {
	width  int
	entity q.EntityProjection
}

// rowPlan maps result columns back onto projection items: an entity
// projection spans all its mapped columns, any other item spans one.
type rowPlan struct {
	slots   []slot
	columns int
}

func newRowPlan(projection []s.Visitable) rowPlan {
	plan := rowPlan{slots: make([]slot, len(projection))}
	for i, item := range projection {
		if entity, ok := item.(q.EntityProjection); ok {
			plan.slots[i] = slot{width: len(entity.Columns()), entity: entity}
		} else {
			plan.slots[i] = slot{width: 1}
		}
		plan.columns += plan.slots[i].width
	}
	return plan
}

func (p rowPlan) scan(im *identitymap.IdentityMap, rows session.Rows) (q.Tuple, error) {
	raw := make([]any, p.columns)
	dest := make([]any, p.columns)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return q.Tuple{}, errors.Wrap(err, "scan")
	}

	values := make([]any, len(p.slots))
	offset := 0
	for i, sl := range p.slots {
		if sl.entity == nil {
			values[i] = raw[offset]
		} else {
			entity, err := sl.entity.Hydrate(im, raw[offset:offset+sl.width])
			if err != nil {
				return q.Tuple{}, err
			}
			values[i] = entity
		}
		offset += sl.width
	}
	for i, sl := range p.slots {
		if sl.entity != nil && values[i] != nil {
			sl.entity.Link(im, values[i])
		}
	}
	return q.NewTuple(values...), nil
}
