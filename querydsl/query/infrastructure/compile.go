package query

import (
	"github.com/pkg/errors"

	q "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/domain"
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
	spec "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/infrastructure"
)

// SchemaSource is a source that knows which of its collections are stored
// in child tables. Wildcards over a query rooted at such a source compile
// against its schema without a spec.WithSchema option.
type SchemaSource interface {
	q.Source
	Schema() *spec.SchemaRegistry
}

// Compile renders query as a parameterised PostgreSQL SELECT. Options are
// passed to the expression visitor and override the schema of the root
// source.
func Compile(query q.Query, opts ...spec.PostgresqlVisitorOption) (sql string, params []any, err error) {
	v := newVisitor(query, opts)
	if err := renderSelect(v, query); err != nil {
		return "", nil, err
	}
	return v.Result()
}

// CompileCount renders the number of rows query yields, ignoring ordering
// and paging. The query is wrapped as a derived table so that DISTINCT and
// GROUP BY count groups rather than source rows.
func CompileCount(query q.Query, opts ...spec.PostgresqlVisitorOption) (sql string, params []any, err error) {
	v := newVisitor(query, opts)
	v.Write("SELECT count(*) FROM (")
	if err := renderSelect(v, query.Unordered()); err != nil {
		return "", nil, err
	}
	v.Write(") AS counted")
	return v.Result()
}

func newVisitor(query q.Query, opts []spec.PostgresqlVisitorOption) *spec.PostgresqlVisitor {
	all := make([]spec.PostgresqlVisitorOption, 0, len(opts)+2)
	if len(query.From) > 0 {
		if root, ok := query.From[0].(SchemaSource); ok {
			all = append(all, spec.WithSchema(root.Schema()))
		}
	}
	all = append(all, opts...)
	all = append(all, spec.WithSubqueryRenderer(renderSubquery))
	return spec.NewPostgresqlVisitor(all...)
}

func renderSubquery(v *spec.PostgresqlVisitor, selectable s.Selectable) error {
	switch sub := selectable.(type) {
	case q.Query:
		return renderSelect(v, sub)
	case *q.Query:
		return renderSelect(v, *sub)
	}
	return errors.Wrapf(q.ErrUnsupportedQuery, "%T", selectable)
}

func renderSelect(v *spec.PostgresqlVisitor, query q.Query) error {
	if len(query.Select) == 0 {
		return q.ErrEmptyProjection
	}
	if len(query.From) == 0 {
		return q.ErrEmptySource
	}

	v.Write("SELECT ")
	if query.Distinct {
		v.Write("DISTINCT ")
	}
	if err := renderProjection(v, query.Select); err != nil {
		return errors.Wrap(err, "projection")
	}

	v.Write(" FROM ")
	for i, source := range query.From {
		if i > 0 {
			v.Write(", ")
		}
		writeSource(v, source)
	}

	for _, join := range query.Joins {
		v.Write(" " + string(join.Kind) + " ")
		writeSource(v, join.Target())
		v.Write(" ON ")
		if err := v.Render(join.Condition()); err != nil {
			return errors.Wrapf(err, "join %s", join.Target().Alias())
		}
	}

	if where := q.AllOf(query.Where); where != nil {
		v.Write(" WHERE ")
		if err := v.Render(where); err != nil {
			return errors.Wrap(err, "where")
		}
	}

	if len(query.GroupBy) > 0 {
		v.Write(" GROUP BY ")
		if err := v.RenderList(query.GroupBy); err != nil {
			return errors.Wrap(err, "group by")
		}
	}

	if having := q.AllOf(query.Having); having != nil {
		v.Write(" HAVING ")
		if err := v.Render(having); err != nil {
			return errors.Wrap(err, "having")
		}
	}

	if len(query.OrderBy) > 0 {
		v.Write(" ORDER BY ")
		for i, order := range query.OrderBy {
			if i > 0 {
				v.Write(", ")
			}
			if err := v.Render(order.Expr); err != nil {
				return errors.Wrap(err, "order by")
			}
			v.Write(" " + string(order.Direction))
			if order.Nulls != q.DefaultNulls {
				v.Write(" " + string(order.Nulls))
			}
		}
	}

	if query.Limit.IsSome() {
		v.Write(" LIMIT " + v.Bind(query.Limit.Unwrap()))
	}
	if query.Offset.IsSome() {
		v.Write(" OFFSET " + v.Bind(query.Offset.Unwrap()))
	}
	return nil
}

func renderProjection(v *spec.PostgresqlVisitor, projection []s.Visitable) error {
	for i, item := range projection {
		if i > 0 {
			v.Write(", ")
		}
		if entity, ok := item.(q.EntityProjection); ok {
			for j, column := range entity.Columns() {
				if j > 0 {
					v.Write(", ")
				}
				v.Write(entity.Alias() + "." + column)
			}
			continue
		}
		if err := v.Render(item); err != nil {
			return err
		}
	}
	return nil
}

func writeSource(v *spec.PostgresqlVisitor, source q.Source) {
	v.Write(source.Table() + " AS " + source.Alias())
}
