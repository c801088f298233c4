package query

import (
	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
)

// Association is a foreign key relation navigated from Source to Target:
// Target.TargetColumn = Source.SourceColumn.
type Association struct {
	Source       Source
	SourceColumn string
	Target       Source
	TargetColumn string
}

func NewAssociation(source Source, sourceColumn string, target Source, targetColumn string) Association {
	return Association{
		Source:       source,
		SourceColumn: sourceColumn,
		Target:       target,
		TargetColumn: targetColumn,
	}
}

func (a Association) Predicate() s.InfixNode {
	return s.Equal(Column(a.Target, a.TargetColumn), Column(a.Source, a.SourceColumn))
}

type JoinKind string

const (
	InnerJoinKind JoinKind = "INNER JOIN"
	LeftJoinKind  JoinKind = "LEFT JOIN"
)

type Join struct {
	Kind        JoinKind
	Association Association
	// On holds extra predicates ANDed with the association predicate.
	On []s.Visitable
}

func InnerJoin(association Association, on ...s.Visitable) Join {
	return Join{Kind: InnerJoinKind, Association: association, On: on}
}

func LeftJoin(association Association, on ...s.Visitable) Join {
	return Join{Kind: LeftJoinKind, Association: association, On: on}
}

func (j Join) Target() Source {
	return j.Association.Target
}

// Condition returns the full ON predicate.
func (j Join) Condition() s.Visitable {
	return AllOf(append([]s.Visitable{j.Association.Predicate()}, j.On...))
}

// AllOf joins the non-nil predicates with AND. It returns nil when none is
// left, so optional filters can be listed inline as nil.
func AllOf(predicates []s.Visitable) s.Visitable {
	conjuncts := make([]s.Visitable, 0, len(predicates))
	for _, p := range predicates {
		if p != nil {
			conjuncts = append(conjuncts, p)
		}
	}
	switch len(conjuncts) {
	case 0:
		return nil
	case 1:
		return conjuncts[0]
	default:
		return s.And(conjuncts[0], conjuncts[1:]...)
	}
}
