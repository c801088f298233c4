package specification

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"

	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain/operators"
)

var (
	ErrEmptyList           = errors.New("empty value list")
	ErrEmptyCase           = errors.New("CASE without WHEN branches")
	ErrNoSubqueryRenderer  = errors.New("subquery rendering is not configured")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrUnknownCollection   = errors.New("collection is not registered in the schema")
)

// CompileToSQL renders a standalone expression.
func CompileToSQL(exp s.Visitable, opts ...PostgresqlVisitorOption) (sql string, params []any, err error) {
	v := NewPostgresqlVisitor(opts...)
	err = exp.Accept(v)
	if err != nil {
		return "", nil, err
	}
	return v.Result()
}

// SubqueryRenderer writes a nested SELECT for q through v, so that the
// nested statement shares the placeholder sequence of the outer one.
type SubqueryRenderer func(v *PostgresqlVisitor, q s.Selectable) error

type PostgresqlVisitorOption func(*PostgresqlVisitor)

// PlaceholderIndex offsets placeholder numbering: index 2 makes the first
// parameter $3.
func PlaceholderIndex(index int) PostgresqlVisitorOption {
	return func(v *PostgresqlVisitor) {
		v.placeholderIndex = index
	}
}

// WithSchema sets the schema registry for relational collection support
func WithSchema(schema *SchemaRegistry) PostgresqlVisitorOption {
	return func(v *PostgresqlVisitor) {
		v.schema = schema
	}
}

func WithSubqueryRenderer(renderer SubqueryRenderer) PostgresqlVisitorOption {
	return func(v *PostgresqlVisitor) {
		v.subqueryRenderer = renderer
	}
}

func NewPostgresqlVisitor(opts ...PostgresqlVisitorOption) *PostgresqlVisitor {
	v := &PostgresqlVisitor{
		precedenceMapping: make(map[string]int),
	}
	// https://www.postgresql.org/docs/14/sql-syntax-lexical.html#SQL-PRECEDENCE-TABLE
	v.setPrecedence(160, ". LEFT")
	v.setPrecedence(160, ":: LEFT")
	v.setPrecedence(150, "[ LEFT")
	v.setPrecedence(140, "+ RIGHT", "- RIGHT", "-neg RIGHT")
	v.setPrecedence(130, "^ LEFT")
	v.setPrecedence(120, "* LEFT", "/ LEFT", "% LEFT")
	v.setPrecedence(110, "+ LEFT", "- LEFT")
	// all other native and user-defined operators 👇️
	v.setPrecedence(100, "(any other operator) LEFT")
	v.setPrecedence(90, "BETWEEN NON", "IN NON", "NOT IN NON", "LIKE NON", "ILIKE NON", "SIMILAR NON")
	v.setPrecedence(80, "< NON", "> NON", "= NON", "<= NON", ">= NON", "!= NON")
	v.setPrecedence(70, "IS NON", "IS NULL NON", "IS NOT NULL NON")
	v.setPrecedence(60, "NOT RIGHT")
	v.setPrecedence(50, "AND LEFT")
	v.setPrecedence(40, "OR LEFT")
	for i := range opts {
		opts[i](v)
	}
	return v
}

type PostgresqlVisitor struct {
	sql               string
	placeholderIndex  int
	parameters        []any
	precedence        int
	precedenceMapping map[string]int
	// Operator key of the enclosing node and the side being rendered.
	parentKey   string
	operandSide operandSide
	// Wildcard context tracking
	inWildcard      bool   // Are we inside a wildcard predicate?
	wildcardAlias   string // Current wildcard item alias (e.g., "member_1")
	wildcardCounter int    // Counter for unique aliases
	// Schema registry for relational collections
	schema           *SchemaRegistry
	subqueryRenderer SubqueryRenderer
}

func (v PostgresqlVisitor) getNodePrecedenceKey(n s.Operable) string {
	operator := n.Operator()
	return fmt.Sprintf("%s %s", operator, n.Associativity())
}

func (v PostgresqlVisitor) setPrecedence(precedence int, operators ...string) {
	for _, op := range operators {
		v.precedenceMapping[op] = precedence
	}
}

type operandSide int

const (
	noOperand operandSide = iota
	leftOperand
	rightOperand
)

func (v *PostgresqlVisitor) visit(precedenceKey string, callable func() error) error {
	outerPrecedence := v.precedence
	innerPrecedence, ok := v.precedenceMapping[precedenceKey]
	if !ok {
		innerPrecedence, ok = v.precedenceMapping["(any other operator) LEFT"]
		if !ok {
			innerPrecedence = outerPrecedence
		}
	}
	wrap := innerPrecedence < outerPrecedence ||
		(innerPrecedence == outerPrecedence && v.groupsEqualPrecedence())

	outerKey, outerSide := v.parentKey, v.operandSide
	v.precedence = innerPrecedence
	v.parentKey, v.operandSide = precedenceKey, noOperand
	if wrap {
		v.sql += "("
	}
	err := callable()
	if err != nil {
		return err
	}
	if wrap {
		v.sql += ")"
	}
	v.precedence = outerPrecedence
	v.parentKey, v.operandSide = outerKey, outerSide
	return nil
}

// groupsEqualPrecedence reports whether an operand binding exactly as tight
// as its parent needs parentheses on the side being rendered. AND and OR
// are associative, so their chains stay flat.
func (v *PostgresqlVisitor) groupsEqualPrecedence() bool {
	if v.operandSide == noOperand {
		return false
	}
	operator, associativity := v.parentKey, ""
	if i := strings.LastIndex(v.parentKey, " "); i >= 0 {
		operator, associativity = v.parentKey[:i], v.parentKey[i+1:]
	}
	switch {
	case operator == string(operators.OperatorAnd), operator == string(operators.OperatorOr):
		return false
	case associativity == string(s.NonAssociative):
		return true
	case associativity == string(s.LeftAssociative):
		return v.operandSide == rightOperand
	default:
		return v.operandSide == leftOperand
	}
}

// operand renders n as the given side of the node being visited.
func (v *PostgresqlVisitor) operand(side operandSide, n s.Visitable) error {
	v.operandSide = side
	err := n.Accept(v)
	v.operandSide = noOperand
	return err
}

// Write appends raw SQL.
func (v *PostgresqlVisitor) Write(sql string) {
	v.sql += sql
}

// Bind registers a parameter and returns its placeholder.
func (v *PostgresqlVisitor) Bind(value any) string {
	v.parameters = append(v.parameters, value)
	return fmt.Sprintf("$%d", len(v.parameters)+v.placeholderIndex)
}

// Render writes exp as a self-contained expression: the operator
// precedence of the enclosing node does not leak into it.
func (v *PostgresqlVisitor) Render(exp s.Visitable) error {
	outerPrecedence, outerKey, outerSide := v.precedence, v.parentKey, v.operandSide
	v.precedence, v.parentKey, v.operandSide = 0, "", noOperand
	err := exp.Accept(v)
	v.precedence, v.parentKey, v.operandSide = outerPrecedence, outerKey, outerSide
	return err
}

// RenderList writes expressions separated by ", ".
func (v *PostgresqlVisitor) RenderList(exps []s.Visitable) error {
	for i, exp := range exps {
		if i > 0 {
			v.sql += ", "
		}
		if err := v.Render(exp); err != nil {
			return err
		}
	}
	return nil
}

func (v *PostgresqlVisitor) VisitGlobalScope(_ s.GlobalScopeNode) error {
	return nil
}

func (v *PostgresqlVisitor) VisitObject(_ s.ObjectNode) error {
	return nil
}

// VisitCollection renders a wildcard as EXISTS over either an embedded
// array (unnest) or a child table registered in the schema. With a schema
// set, a top-level collection must be registered either way.
func (v *PostgresqlVisitor) VisitCollection(n s.CollectionNode) error {
	collectionName := v.extractCollectionName(n)
	fieldName := v.extractFieldName(n)

	if v.schema != nil && !v.inWildcard {
		if _, ok := v.schema.Get(fieldName); !ok {
			return errors.Wrapf(ErrUnknownCollection, "%s.%s", v.schema.ParentTable, fieldName)
		}
	}
	if v.schema != nil && v.schema.IsRelational(fieldName) {
		return v.visitRelationalCollection(n, fieldName, collectionName)
	}
	return v.visitEmbeddedCollection(n, collectionName)
}

func (v *PostgresqlVisitor) visitEmbeddedCollection(n s.CollectionNode, collectionName string) error {
	collectionPath := v.extractCollectionPath(n)

	v.wildcardCounter++
	alias := fmt.Sprintf("%s_%d", strings.ToLower(collectionName), v.wildcardCounter)

	v.sql += "EXISTS (SELECT 1 FROM unnest(" + collectionPath + ") AS " + alias + " WHERE "
	if err := v.visitWildcardPredicate(n, alias); err != nil {
		return err
	}
	v.sql += ")"
	return nil
}

func (v *PostgresqlVisitor) visitRelationalCollection(n s.CollectionNode, fieldName, collectionName string) error {
	mapping, _ := v.schema.Get(fieldName)

	v.wildcardCounter++
	alias := mapping.Alias
	if alias == "" {
		alias = strings.ToLower(collectionName)
	}
	alias = fmt.Sprintf("%s_%d", alias, v.wildcardCounter)

	// The outer reference is resolved before the new alias takes over.
	parentRef := v.schema.GetParentRef()
	if v.inWildcard && v.wildcardAlias != "" {
		parentRef = v.wildcardAlias
	}

	v.sql += "EXISTS (SELECT 1 FROM " + mapping.Table + " AS " + alias + " WHERE "
	for i, fk := range mapping.ForeignKeys {
		if i > 0 {
			v.sql += " AND "
		}
		v.sql += alias + "." + fk.ChildColumn + " = " + parentRef + "." + fk.ParentColumn
	}
	v.sql += " AND "
	if err := v.visitWildcardPredicate(n, alias); err != nil {
		return err
	}
	v.sql += ")"
	return nil
}

func (v *PostgresqlVisitor) visitWildcardPredicate(n s.CollectionNode, alias string) error {
	outerInWildcard := v.inWildcard
	outerWildcardAlias := v.wildcardAlias
	v.inWildcard = true
	v.wildcardAlias = alias

	err := v.Render(n.Predicate())

	v.inWildcard = outerInWildcard
	v.wildcardAlias = outerWildcardAlias
	return err
}

func (v *PostgresqlVisitor) extractFieldName(n s.CollectionNode) string {
	parent := n.Parent()
	if !parent.IsRoot() {
		return parent.Name()
	}
	return ""
}

func (v *PostgresqlVisitor) extractCollectionPath(n s.CollectionNode) string {
	var parts []string
	parent := n.Parent()
	for !parent.IsRoot() {
		parts = append([]string{parent.Name()}, parts...)
		parent = parent.Parent()
	}

	// A nested wildcard over Item() addresses the enclosing item.
	if v.inWildcard && v.isItemReference(parent) {
		if len(parts) > 0 {
			return v.wildcardAlias + "." + strings.Join(parts, ".")
		}
		return v.wildcardAlias
	}
	return strings.Join(parts, ".")
}

// extractCollectionName singularises the collection name for alias
// generation: "members" -> "member".
func (v *PostgresqlVisitor) extractCollectionName(n s.CollectionNode) string {
	parent := n.Parent()
	if !parent.IsRoot() {
		return inflection.Singular(parent.Name())
	}
	return "item"
}

func (v *PostgresqlVisitor) VisitItem(_ s.ItemNode) error {
	return nil
}

func (v *PostgresqlVisitor) VisitField(n s.FieldNode) error {
	if v.inWildcard && v.isItemReference(n.Object()) {
		v.sql += v.wildcardAlias + "." + n.Name()
		return nil
	}
	v.sql += strings.Join(s.ExtractFieldPath(n), ".")
	return nil
}

func (v *PostgresqlVisitor) isItemReference(obj s.EmptiableObject) bool {
	_, isItem := obj.(s.ItemNode)
	return isItem
}

func (v *PostgresqlVisitor) VisitValue(n s.ValueNode) error {
	v.sql += v.Bind(n.Value())
	return nil
}

func (v *PostgresqlVisitor) VisitPrefix(node s.PrefixNode) error {
	precedenceKey := v.getNodePrecedenceKey(node)
	return v.visit(precedenceKey, func() error {
		switch operator := node.Operator(); operator {
		case operators.OperatorNeg:
			v.sql += "-"
			// "--" opens a line comment.
			if inner, ok := node.Operand().(s.PrefixNode); ok && inner.Operator() == operators.OperatorNeg {
				v.sql += " "
			}
		default:
			v.sql += fmt.Sprintf("%s ", operator)
		}
		return v.operand(rightOperand, node.Operand())
	})
}

func (v *PostgresqlVisitor) VisitInfix(n s.InfixNode) error {
	switch n.Operator() {
	case operators.OperatorIn, operators.OperatorNotIn:
		switch n.Right().(type) {
		case s.ListNode, s.SubqueryNode:
		default:
			return errors.Wrapf(ErrUnsupportedOperator, "%s expects a list or a subquery, got %T", n.Operator(), n.Right())
		}
	}
	precedenceKey := v.getNodePrecedenceKey(n)
	return v.visit(precedenceKey, func() error {
		err := v.operand(leftOperand, n.Left())
		if err != nil {
			return err
		}
		v.sql += fmt.Sprintf(" %s ", n.Operator())
		return v.operand(rightOperand, n.Right())
	})
}

func (v *PostgresqlVisitor) VisitPostfix(node s.PostfixNode) error {
	precedenceKey := v.getNodePrecedenceKey(node)
	return v.visit(precedenceKey, func() error {
		err := v.operand(leftOperand, node.Operand())
		if err != nil {
			return err
		}
		v.sql += fmt.Sprintf(" %s", node.Operator())
		return nil
	})
}

func (v *PostgresqlVisitor) VisitFunction(n s.FunctionNode) error {
	v.sql += n.Name() + "("
	if n.Star() {
		v.sql += "*"
	} else {
		if n.Distinct() {
			v.sql += "DISTINCT "
		}
		if err := v.RenderList(n.Args()); err != nil {
			return err
		}
	}
	v.sql += ")"
	return nil
}

func (v *PostgresqlVisitor) VisitList(n s.ListNode) error {
	if len(n.Items()) == 0 {
		return ErrEmptyList
	}
	v.sql += "("
	if err := v.RenderList(n.Items()); err != nil {
		return err
	}
	v.sql += ")"
	return nil
}

func (v *PostgresqlVisitor) VisitBetween(n s.BetweenNode) error {
	return v.visit("BETWEEN NON", func() error {
		if err := v.operand(leftOperand, n.Operand()); err != nil {
			return err
		}
		v.sql += " BETWEEN "
		if err := v.operand(rightOperand, n.Low()); err != nil {
			return err
		}
		v.sql += " AND "
		return v.operand(rightOperand, n.High())
	})
}

func (v *PostgresqlVisitor) VisitCase(n s.CaseNode) error {
	if len(n.Whens()) == 0 {
		return ErrEmptyCase
	}
	v.sql += "CASE"
	if n.Operand() != nil {
		v.sql += " "
		if err := v.Render(n.Operand()); err != nil {
			return err
		}
	}
	for _, when := range n.Whens() {
		v.sql += " WHEN "
		if err := v.Render(when.Condition()); err != nil {
			return err
		}
		v.sql += " THEN "
		if err := v.Render(when.Result()); err != nil {
			return err
		}
	}
	if n.Otherwise() != nil {
		v.sql += " ELSE "
		if err := v.Render(n.Otherwise()); err != nil {
			return err
		}
	}
	v.sql += " END"
	return nil
}

func (v *PostgresqlVisitor) VisitSubquery(n s.SubqueryNode) error {
	if v.subqueryRenderer == nil {
		return ErrNoSubqueryRenderer
	}
	outerPrecedence := v.precedence
	outerInWildcard := v.inWildcard
	v.precedence = 0
	v.inWildcard = false

	v.sql += "("
	err := v.subqueryRenderer(v, n.Query())
	v.sql += ")"

	v.precedence = outerPrecedence
	v.inWildcard = outerInWildcard
	return err
}

func (v *PostgresqlVisitor) VisitAlias(n s.AliasNode) error {
	if err := v.Render(n.Expr()); err != nil {
		return err
	}
	v.sql += " AS " + n.Alias()
	return nil
}

func (v PostgresqlVisitor) Result() (sql string, params []any, err error) {
	return v.sql, v.parameters, nil
}
