package query

import (
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
)

type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

type NullHandling string

const (
	DefaultNulls NullHandling = ""
	NullsFirst   NullHandling = "NULLS FIRST"
	NullsLast    NullHandling = "NULLS LAST"
)

type OrderSpecifier struct {
	Expr      s.Visitable
	Direction Direction
	Nulls     NullHandling
}

func Asc(expr s.Visitable) OrderSpecifier {
	return OrderSpecifier{Expr: expr, Direction: Ascending}
}

func Desc(expr s.Visitable) OrderSpecifier {
	return OrderSpecifier{Expr: expr, Direction: Descending}
}

func (o OrderSpecifier) NullsFirst() OrderSpecifier {
	o.Nulls = NullsFirst
	return o
}

func (o OrderSpecifier) NullsLast() OrderSpecifier {
	o.Nulls = NullsLast
	return o
}
