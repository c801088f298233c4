package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s "github.com/krew-solutions/ascetic-querydsl-go/querydsl/specification/domain"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/utils/testutils"
)

var (
	member   = s.Object(s.GlobalScope(), "m")
	username = s.Field(member, "username")
	age      = s.Field(member, "age")
	fieldA   = s.Field(member, "a")
	fieldB   = s.Field(member, "b")
	fieldC   = s.Field(member, "c")
)

func TestCompileToSQL(t *testing.T) {
	cases := []struct {
		name     string
		exp      s.Visitable
		expected string
		params   []any
	}{
		{
			name:     "field",
			exp:      username,
			expected: "m.username",
		},
		{
			name:     "equal",
			exp:      s.Equal(username, s.Value("member1")),
			expected: "m.username = $1",
			params:   []any{"member1"},
		},
		{
			name:     "conjunction",
			exp:      s.And(s.Equal(username, s.Value("member2")), s.Equal(age, s.Value(20))),
			expected: "m.username = $1 AND m.age = $2",
			params:   []any{"member2", 20},
		},
		{
			name: "disjunction inside conjunction",
			exp: s.And(
				s.Or(s.Equal(age, s.Value(10)), s.Equal(age, s.Value(20))),
				s.IsNotNull(username),
			),
			expected: "(m.age = $1 OR m.age = $2) AND m.username IS NOT NULL",
			params:   []any{10, 20},
		},
		{
			name:     "arithmetic precedence",
			exp:      s.Mul(s.Add(age, s.Value(1)), s.Value(2)),
			expected: "(m.age + $1) * $2",
			params:   []any{1, 2},
		},
		{
			name:     "negation",
			exp:      s.Not(s.IsNull(username)),
			expected: "NOT m.username IS NULL",
		},
		{
			name:     "unary minus",
			exp:      s.Neg(age),
			expected: "-m.age",
		},
		{
			name:     "double unary minus",
			exp:      s.Neg(s.Neg(age)),
			expected: "- -m.age",
		},
		{
			name:     "unary minus of difference",
			exp:      s.Neg(s.Sub(age, s.Value(1))),
			expected: "-(m.age - $1)",
			params:   []any{1},
		},
		{
			name:     "left nested difference",
			exp:      s.Sub(s.Sub(fieldA, fieldB), fieldC),
			expected: "m.a - m.b - m.c",
		},
		{
			name:     "right nested difference",
			exp:      s.Sub(fieldA, s.Sub(fieldB, fieldC)),
			expected: "m.a - (m.b - m.c)",
		},
		{
			name:     "right nested sum under difference",
			exp:      s.Sub(fieldA, s.Add(fieldB, fieldC)),
			expected: "m.a - (m.b + m.c)",
		},
		{
			name:     "right nested product under division",
			exp:      s.Div(fieldA, s.Mul(fieldB, fieldC)),
			expected: "m.a / (m.b * m.c)",
		},
		{
			name:     "nested comparison",
			exp:      s.Equal(s.Equal(fieldA, fieldB), fieldC),
			expected: "(m.a = m.b) = m.c",
		},
		{
			name:     "right nested conjunction stays flat",
			exp:      s.And(s.IsNull(fieldA), s.And(s.IsNull(fieldB), s.IsNull(fieldC))),
			expected: "m.a IS NULL AND m.b IS NULL AND m.c IS NULL",
		},
		{
			name:     "like",
			exp:      s.Like(username, s.Value("member%")),
			expected: "m.username LIKE $1",
			params:   []any{"member%"},
		},
		{
			name:     "in list",
			exp:      s.In(age, s.Values(10, 20)),
			expected: "m.age IN ($1, $2)",
			params:   []any{10, 20},
		},
		{
			name:     "not in list",
			exp:      s.NotIn(age, s.Values(50)),
			expected: "m.age NOT IN ($1)",
			params:   []any{50},
		},
		{
			name:     "between",
			exp:      s.Between(age, s.Value(0), s.Value(10)),
			expected: "m.age BETWEEN $1 AND $2",
			params:   []any{0, 10},
		},
		{
			name:     "aggregate comparison",
			exp:      s.GreaterThan(s.Avg(age), s.Value(30)),
			expected: "avg(m.age) > $1",
			params:   []any{30},
		},
		{
			name: "functions",
			exp: s.List(
				s.Count(s.Field(member, "id")),
				s.CountDistinct(s.Field(member, "team_id")),
				s.CountAll(),
				s.Function("coalesce", age, s.Value(0)),
			),
			expected: "(count(m.id), count(DISTINCT m.team_id), count(*), coalesce(m.age, $1))",
			params:   []any{0},
		},
		{
			name: "simple case",
			exp: s.SimpleCase(age, s.Value("40대"),
				s.When(s.Value(10), s.Value("열살")),
				s.When(s.Value(20), s.Value("20대")),
			),
			expected: "CASE m.age WHEN $1 THEN $2 WHEN $3 THEN $4 ELSE $5 END",
			params:   []any{10, "열살", 20, "20대", "40대"},
		},
		{
			name: "searched case",
			exp: s.SearchedCase(s.Value("40대"),
				s.When(s.Between(age, s.Value(0), s.Value(10)), s.Value("0~10")),
			),
			expected: "CASE WHEN m.age BETWEEN $1 AND $2 THEN $3 ELSE $4 END",
			params:   []any{0, 10, "0~10", "40대"},
		},
		{
			name:     "searched case without else",
			exp:      s.SearchedCase(nil, s.When(s.IsNull(username), s.Value("anonymous"))),
			expected: "CASE WHEN m.username IS NULL THEN $1 END",
			params:   []any{"anonymous"},
		},
		{
			name:     "alias",
			exp:      s.As(s.CountAll(), "total"),
			expected: "count(*) AS total",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sql, params, err := CompileToSQL(c.exp)
			require.NoError(t, err)
			testutils.AssertSQL(t, c.expected, sql)
			assert.Equal(t, c.params, params)
		})
	}
}

func TestCompileToSQLErrors(t *testing.T) {
	cases := []struct {
		name string
		exp  s.Visitable
		err  error
	}{
		{"empty list", s.In(age, s.List()), ErrEmptyList},
		{"in without list", s.In(age, s.Value(10)), ErrUnsupportedOperator},
		{"case without branches", s.SearchedCase(s.Value(1)), ErrEmptyCase},
		{"subquery without renderer", s.Equal(age, s.Subquery(maxAgeQuery{})), ErrNoSubqueryRenderer},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := CompileToSQL(c.exp)
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestPlaceholderIndex(t *testing.T) {
	sql, params, err := CompileToSQL(s.Equal(age, s.Value(20)), PlaceholderIndex(2))
	require.NoError(t, err)
	assert.Equal(t, "m.age = $3", sql)
	assert.Equal(t, []any{20}, params)
}

type maxAgeQuery struct {
	above int
}

func (maxAgeQuery) IsSelectable() {}

func renderMaxAge(v *PostgresqlVisitor, q s.Selectable) error {
	v.Write("SELECT max(ms.age) FROM members AS ms WHERE ms.age > ")
	v.Write(v.Bind(q.(maxAgeQuery).above))
	return nil
}

func TestSubquerySharesPlaceholders(t *testing.T) {
	exp := s.And(
		s.Equal(username, s.Value("member4")),
		s.Equal(age, s.Subquery(maxAgeQuery{above: 10})),
	)

	sql, params, err := CompileToSQL(exp, WithSubqueryRenderer(renderMaxAge))

	require.NoError(t, err)
	testutils.AssertSQL(t,
		"m.username = $1 AND m.age = (SELECT max(ms.age) FROM members AS ms WHERE ms.age > $2)", sql)
	assert.Equal(t, []any{"member4", 10}, params)
}

func TestSubqueryInList(t *testing.T) {
	sql, _, err := CompileToSQL(s.In(age, s.Subquery(maxAgeQuery{})), WithSubqueryRenderer(renderMaxAge))
	require.NoError(t, err)
	testutils.AssertSQL(t, "m.age IN (SELECT max(ms.age) FROM members AS ms WHERE ms.age > $1)", sql)
}

func TestWildcardEmbedded(t *testing.T) {
	exp := s.Wildcard(
		s.Object(s.GlobalScope(), "Items"),
		s.GreaterThan(s.Field(s.Item(), "Price"), s.Value(1000)),
	)

	sql, params, err := CompileToSQL(exp)

	require.NoError(t, err)
	testutils.AssertSQL(t, "EXISTS (SELECT 1 FROM unnest(Items) AS item_1 WHERE item_1.Price > $1)", sql)
	assert.Equal(t, []any{1000}, params)
}

func teamSchema() *SchemaRegistry {
	return NewSchemaRegistry("teams").
		WithParentAlias("t").
		RegisterRelational("members", "members", "team_id", "id")
}

func TestWildcardRelational(t *testing.T) {
	exp := s.Wildcard(
		s.Object(s.GlobalScope(), "members"),
		s.GreaterThan(s.Field(s.Item(), "age"), s.Value(30)),
	)

	sql, params, err := CompileToSQL(exp, WithSchema(teamSchema()))

	require.NoError(t, err)
	testutils.AssertSQL(t,
		"EXISTS (SELECT 1 FROM members AS member_1 WHERE member_1.team_id = t.id AND member_1.age > $1)", sql)
	assert.Equal(t, []any{30}, params)
}

func TestWildcardRelationalTwice(t *testing.T) {
	members := s.Object(s.GlobalScope(), "members")
	exp := s.Or(
		s.Wildcard(members, s.Equal(s.Field(s.Item(), "age"), s.Value(10))),
		s.Wildcard(members, s.IsNull(s.Field(s.Item(), "username"))),
	)

	sql, params, err := CompileToSQL(exp, WithSchema(teamSchema()))

	require.NoError(t, err)
	testutils.AssertSQL(t,
		"EXISTS (SELECT 1 FROM members AS member_1 WHERE member_1.team_id = t.id AND member_1.age = $1)"+
			" OR EXISTS (SELECT 1 FROM members AS member_2 WHERE member_2.team_id = t.id AND member_2.username IS NULL)",
		sql)
	assert.Equal(t, []any{10}, params)
}

func TestWildcardRelationalCustomAliasAndTableRef(t *testing.T) {
	schema := NewSchemaRegistry("teams").Register("members", CollectionMapping{
		Storage: StorageRelational,
		Table:   "members",
		Alias:   "mm",
		ForeignKeys: []ForeignKeyPair{
			{ChildColumn: "team_id", ParentColumn: "id"},
		},
	})
	exp := s.Wildcard(s.Object(s.GlobalScope(), "members"), s.Field(s.Item(), "active"))

	sql, _, err := CompileToSQL(exp, WithSchema(schema))

	require.NoError(t, err)
	testutils.AssertSQL(t, "EXISTS (SELECT 1 FROM members AS mm_1 WHERE mm_1.team_id = teams.id AND mm_1.active)", sql)
}

func TestWildcardUnregisteredCollectionFails(t *testing.T) {
	exp := s.Wildcard(
		s.Object(s.GlobalScope(), "tags"),
		s.Equal(s.Field(s.Item(), "name"), s.Value("go")),
	)

	_, _, err := CompileToSQL(exp, WithSchema(teamSchema()))
	assert.ErrorIs(t, err, ErrUnknownCollection)

	sql, _, err := CompileToSQL(exp, WithSchema(teamSchema().RegisterEmbedded("tags")))
	require.NoError(t, err)
	testutils.AssertSQL(t, "EXISTS (SELECT 1 FROM unnest(tags) AS tag_1 WHERE tag_1.name = $1)", sql)
}

func TestSchemaRegistryLookup(t *testing.T) {
	schema := teamSchema()
	assert.True(t, schema.IsRelational("members"))
	assert.False(t, schema.IsRelational("tags"))

	mapping, ok := schema.Get("members")
	require.True(t, ok)
	assert.Equal(t, "members", mapping.Table)
}
