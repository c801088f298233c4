package specification

// FunctionNode is a SQL function call such as count(m.id) or avg(m.age).
type FunctionNode struct {
	name     string
	args     []Visitable
	distinct bool
	star     bool
}

func Function(name string, args ...Visitable) FunctionNode {
	return FunctionNode{name: name, args: args}
}

func Count(arg Visitable) FunctionNode {
	return Function("count", arg)
}

func CountDistinct(arg Visitable) FunctionNode {
	return FunctionNode{name: "count", args: []Visitable{arg}, distinct: true}
}

// CountAll renders count(*).
func CountAll() FunctionNode {
	return FunctionNode{name: "count", star: true}
}

func Sum(arg Visitable) FunctionNode {
	return Function("sum", arg)
}

func Avg(arg Visitable) FunctionNode {
	return Function("avg", arg)
}

func Max(arg Visitable) FunctionNode {
	return Function("max", arg)
}

func Min(arg Visitable) FunctionNode {
	return Function("min", arg)
}

func (n FunctionNode) Name() string {
	return n.name
}

func (n FunctionNode) Args() []Visitable {
	return n.args
}

func (n FunctionNode) Distinct() bool {
	return n.distinct
}

func (n FunctionNode) Star() bool {
	return n.star
}

func (n FunctionNode) Accept(v Visitor) error {
	return v.VisitFunction(n)
}

// ListNode is a parenthesised value list, the right side of IN.
type ListNode struct {
	items []Visitable
}

func List(items ...Visitable) ListNode {
	return ListNode{items: items}
}

// Values wraps every argument into a ValueNode.
func Values[T any](values ...T) ListNode {
	items := make([]Visitable, len(values))
	for i, value := range values {
		items[i] = Value(value)
	}
	return ListNode{items: items}
}

func (n ListNode) Items() []Visitable {
	return n.items
}

func (n ListNode) Accept(v Visitor) error {
	return v.VisitList(n)
}

// BetweenNode is inclusive on both bounds.
type BetweenNode struct {
	operand Visitable
	low     Visitable
	high    Visitable
}

func Between(operand, low, high Visitable) BetweenNode {
	return BetweenNode{operand: operand, low: low, high: high}
}

func (n BetweenNode) Operand() Visitable {
	return n.operand
}

func (n BetweenNode) Low() Visitable {
	return n.low
}

func (n BetweenNode) High() Visitable {
	return n.high
}

func (n BetweenNode) Accept(v Visitor) error {
	return v.VisitBetween(n)
}

type WhenClause struct {
	condition Visitable
	result    Visitable
}

// When pairs a WHEN operand with its THEN result. For a simple CASE the
// condition is the value compared with the CASE operand.
func When(condition, result Visitable) WhenClause {
	return WhenClause{condition: condition, result: result}
}

func (w WhenClause) Condition() Visitable {
	return w.condition
}

func (w WhenClause) Result() Visitable {
	return w.result
}

type CaseNode struct {
	operand   Visitable
	whens     []WhenClause
	otherwise Visitable
}

// SimpleCase renders CASE operand WHEN v THEN r ... ELSE otherwise END.
// A nil otherwise omits the ELSE branch.
func SimpleCase(operand, otherwise Visitable, whens ...WhenClause) CaseNode {
	return CaseNode{operand: operand, whens: whens, otherwise: otherwise}
}

// SearchedCase renders CASE WHEN predicate THEN r ... ELSE otherwise END.
func SearchedCase(otherwise Visitable, whens ...WhenClause) CaseNode {
	return CaseNode{whens: whens, otherwise: otherwise}
}

// Operand is nil for a searched CASE.
func (n CaseNode) Operand() Visitable {
	return n.operand
}

func (n CaseNode) Whens() []WhenClause {
	return n.whens
}

func (n CaseNode) Otherwise() Visitable {
	return n.otherwise
}

func (n CaseNode) Accept(v Visitor) error {
	return v.VisitCase(n)
}

// Selectable is implemented by query values that can be nested as a subquery.
type Selectable interface {
	IsSelectable()
}

type SubqueryNode struct {
	query Selectable
}

func Subquery(query Selectable) SubqueryNode {
	return SubqueryNode{query: query}
}

func (n SubqueryNode) Query() Selectable {
	return n.query
}

func (n SubqueryNode) Accept(v Visitor) error {
	return v.VisitSubquery(n)
}

// AliasNode names a projected expression.
type AliasNode struct {
	expr  Visitable
	alias string
}

func As(expr Visitable, alias string) AliasNode {
	return AliasNode{expr: expr, alias: alias}
}

func (n AliasNode) Expr() Visitable {
	return n.expr
}

func (n AliasNode) Alias() string {
	return n.alias
}

func (n AliasNode) Accept(v Visitor) error {
	return v.VisitAlias(n)
}
