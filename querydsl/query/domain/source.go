package query

import (
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
)

// Source is a table reference in FROM or JOIN.
type Source interface {
	Table() string
	Alias() string
}

type TableSource struct {
	table string
	alias string
}

func Table(table, alias string) TableSource {
	return TableSource{table: table, alias: alias}
}

func (t TableSource) Table() string {
	return t.table
}

func (t TableSource) Alias() string {
	return t.alias
}

// Ref returns the object node that qualifies columns of src.
func Ref(src Source) s.ObjectNode {
	return s.Object(s.GlobalScope(), src.Alias())
}

// Column returns the alias-qualified column of src.
func Column(src Source, name string) s.FieldNode {
	return s.Field(Ref(src), name)
}
