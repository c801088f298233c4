package specification

import "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain/operators"

type Associativity string

const (
	LeftAssociative  Associativity = "LEFT"
	RightAssociative Associativity = "RIGHT"
	NonAssociative   Associativity = "NON"
)

type Operable interface {
	Associativity() Associativity
	Operator() operators.Operator
}

type Visitable interface {
	Accept(Visitor) error
}

type Visitor interface {
	VisitGlobalScope(GlobalScopeNode) error
	VisitObject(ObjectNode) error
	VisitCollection(CollectionNode) error
	VisitItem(ItemNode) error
	VisitField(FieldNode) error
	VisitValue(ValueNode) error
	VisitPrefix(PrefixNode) error
	VisitInfix(InfixNode) error
	VisitPostfix(PostfixNode) error
	VisitFunction(FunctionNode) error
	VisitList(ListNode) error
	VisitBetween(BetweenNode) error
	VisitCase(CaseNode) error
	VisitSubquery(SubqueryNode) error
	VisitAlias(AliasNode) error
}

func Value(value any) ValueNode {
	return ValueNode{
		value: value,
	}
}

type ValueNode struct {
	value any
}

func (n ValueNode) Value() any {
	return n.value
}

func (n ValueNode) Accept(v Visitor) error {
	return v.VisitValue(n)
}

func Not(operand Visitable) PrefixNode {
	return NewPrefixNode(operators.OperatorNot, operand, RightAssociative)
}

func Neg(operand Visitable) PrefixNode {
	return NewPrefixNode(operators.OperatorNeg, operand, RightAssociative)
}

func NewPrefixNode(operator operators.Operator, operand Visitable, associativity Associativity) PrefixNode {
	return PrefixNode{
		operator:      operator,
		operand:       operand,
		associativity: associativity,
	}
}

type PrefixNode struct {
	operator      operators.Operator
	operand       Visitable
	associativity Associativity
}

func (n PrefixNode) Operand() Visitable {
	return n.operand
}
func (n PrefixNode) Operator() operators.Operator {
	return n.operator
}
func (n PrefixNode) Associativity() Associativity {
	return n.associativity
}
func (n PrefixNode) Accept(v Visitor) error {
	return v.VisitPrefix(n)
}

func Equal(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorEq, right, NonAssociative)
}

func NotEqual(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorNe, right, NonAssociative)
}

func GreaterThan(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorGt, right, NonAssociative)
}

func GreaterThanEqual(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorGte, right, NonAssociative)
}

func LessThan(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLt, right, NonAssociative)
}

func LessThanEqual(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLte, right, NonAssociative)
}

func Is(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorIs, right, NonAssociative)
}

func Like(left, pattern Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLike, pattern, NonAssociative)
}

// In tests membership in a ListNode or a SubqueryNode.
func In(left, set Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorIn, set, NonAssociative)
}

func NotIn(left, set Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorNotIn, set, NonAssociative)
}

func And(left Visitable, rights ...Visitable) InfixNode {
	left, right := foldRights(And, left, rights...)
	return NewInfixNode(left, operators.OperatorAnd, right, LeftAssociative)
}

func Or(left Visitable, rights ...Visitable) InfixNode {
	left, right := foldRights(Or, left, rights...)
	return NewInfixNode(left, operators.OperatorOr, right, LeftAssociative)
}

func Add(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorAdd, right, LeftAssociative)
}

func Sub(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorSub, right, LeftAssociative)
}

func Mul(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorMul, right, LeftAssociative)
}

func Div(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorDiv, right, LeftAssociative)
}

func Mod(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorMod, right, LeftAssociative)
}

// foldRights turns And(a, b, c) into And(And(a, b), c).
func foldRights(
	aCallable func(Visitable, ...Visitable) InfixNode,
	aLeft Visitable,
	aRights ...Visitable,
) (left, right Visitable) {
	for len(aRights) > 1 {
		aLeft = aCallable(aLeft, aRights[0])
		aRights = aRights[1:]
	}
	return aLeft, aRights[0]
}

func NewInfixNode(left Visitable, operator operators.Operator, right Visitable, associativity Associativity) InfixNode {
	return InfixNode{
		left:          left,
		operator:      operator,
		right:         right,
		associativity: associativity,
	}
}

type InfixNode struct {
	left          Visitable
	operator      operators.Operator
	right         Visitable
	associativity Associativity
}

func (n InfixNode) Left() Visitable {
	return n.left
}

func (n InfixNode) Operator() operators.Operator {
	return n.operator
}

func (n InfixNode) Right() Visitable {
	return n.right
}

func (n InfixNode) Associativity() Associativity {
	return n.associativity
}

func (n InfixNode) Accept(v Visitor) error {
	return v.VisitInfix(n)
}

func IsNull(operand Visitable) PostfixNode {
	return NewPostfixNode(operand, operators.OperatorIsNull, NonAssociative)
}

func IsNotNull(operand Visitable) PostfixNode {
	return NewPostfixNode(operand, operators.OperatorIsNotNull, NonAssociative)
}

func NewPostfixNode(operand Visitable, operator operators.Operator, associativity Associativity) PostfixNode {
	return PostfixNode{
		operand:       operand,
		operator:      operator,
		associativity: associativity,
	}
}

type PostfixNode struct {
	operand       Visitable
	operator      operators.Operator
	associativity Associativity
}

func (n PostfixNode) Operand() Visitable {
	return n.operand
}

func (n PostfixNode) Operator() operators.Operator {
	return n.operator
}

func (n PostfixNode) Associativity() Associativity {
	return n.associativity
}

func (n PostfixNode) Accept(v Visitor) error {
	return v.VisitPostfix(n)
}

type EmptiableObject interface {
	Visitable
	Parent() EmptiableObject
	Name() string
	IsRoot() bool
}

func GlobalScope() GlobalScopeNode {
	return GlobalScopeNode{}
}

type GlobalScopeNode struct{}

func (n GlobalScopeNode) Parent() EmptiableObject {
	return n
}

func (n GlobalScopeNode) Name() string {
	return "Empty"
}

func (n GlobalScopeNode) IsRoot() bool {
	return true
}
func (n GlobalScopeNode) Accept(v Visitor) error {
	return v.VisitGlobalScope(n)
}

// Object names a table alias or a nested path segment.
func Object(parent EmptiableObject, name string) ObjectNode {
	return ObjectNode{
		parent: parent,
		name:   name,
	}
}

type ObjectNode struct {
	parent EmptiableObject
	name   string
}

func (n ObjectNode) Parent() EmptiableObject {
	return n.parent
}

func (n ObjectNode) Name() string {
	return n.name
}

func (n ObjectNode) IsRoot() bool {
	return false
}

func (n ObjectNode) Accept(v Visitor) error {
	return v.VisitObject(n)
}

// Wildcard holds when any item of the collection satisfies predicate.
// Inside predicate, Item() refers to the current item.
func Wildcard(parent EmptiableObject, predicate Visitable) CollectionNode {
	return CollectionNode{
		parent:    parent,
		name:      "*",
		predicate: predicate,
	}
}

type CollectionNode struct {
	parent    EmptiableObject
	name      string
	predicate Visitable
}

func (n CollectionNode) Parent() EmptiableObject {
	return n.parent
}

func (n CollectionNode) Name() string {
	return n.name
}

func (n CollectionNode) IsRoot() bool {
	return false
}

func (n CollectionNode) Predicate() Visitable {
	return n.predicate
}

func (n CollectionNode) Accept(v Visitor) error {
	return v.VisitCollection(n)
}

func Item() ItemNode {
	return ItemNode{}
}

type ItemNode struct{}

func (n ItemNode) Parent() EmptiableObject {
	return GlobalScope()
}

func (n ItemNode) Name() string {
	return "@"
}

func (n ItemNode) IsRoot() bool {
	return true
}

func (n ItemNode) Accept(v Visitor) error {
	return v.VisitItem(n)
}

func Field(object EmptiableObject, name string) FieldNode {
	return FieldNode{
		object: object,
		name:   name,
	}
}

type FieldNode struct {
	object EmptiableObject
	name   string
}

func (n FieldNode) Name() string {
	return n.name
}

func (n FieldNode) Object() EmptiableObject {
	return n.object
}

func (n FieldNode) Accept(v Visitor) error {
	return v.VisitField(n)
}

// ExtractFieldPath returns the object chain of a field from the outermost
// object down to the field name.
func ExtractFieldPath(n FieldNode) []string {
	path := []string{n.Name()}
	obj := n.Object()
	for !obj.IsRoot() {
		path = append([]string{obj.Name()}, path...)
		obj = obj.Parent()
	}
	return path
}
