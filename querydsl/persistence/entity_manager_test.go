package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	q "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/domain"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/utils/testutils"
)

type team struct {
	id   int64
	name string
}

type player struct {
	id   int64
	name string
	team *team
}

type teamKey struct {
	identitymap.IdentityKeyBase[*team]
	id int64
}

type playerKey struct {
	identitymap.IdentityKeyBase[*player]
	id int64
}

type teamMapper struct{}

func (teamMapper) Table() string     { return "teams" }
func (teamMapper) Columns() []string { return []string{"id", "name"} }
func (teamMapper) Key(id int64) identitymap.IdentityKey[*team] {
	return teamKey{id: id}
}
func (teamMapper) Hydrate(values []any) (*team, error) {
	id, err := q.Convert[int64](values[0])
	if err != nil {
		return nil, err
	}
	name, err := q.Convert[string](values[1])
	if err != nil {
		return nil, err
	}
	return &team{id: id, name: name}, nil
}
func (teamMapper) Link(*identitymap.IdentityMap, *team) {}
func (teamMapper) ID(t *team) int64                     { return t.id }
func (teamMapper) SetID(t *team, id int64)              { t.id = id }
func (teamMapper) InsertValues(t *team) ([]any, error) {
	return []any{t.name}, nil
}

type playerMapper struct{}

func (playerMapper) Table() string     { return "players" }
func (playerMapper) Columns() []string { return []string{"id", "name", "team_id"} }
func (playerMapper) Key(id int64) identitymap.IdentityKey[*player] {
	return playerKey{id: id}
}
func (playerMapper) Hydrate(values []any) (*player, error) {
	return nil, nil
}
func (playerMapper) Link(*identitymap.IdentityMap, *player) {}
func (playerMapper) ID(p *player) int64                     { return p.id }
func (playerMapper) SetID(p *player, id int64)              { p.id = id }
func (playerMapper) InsertValues(p *player) ([]any, error) {
	if p.team.id == 0 {
		return nil, ErrTransientReference
	}
	return []any{p.name, p.team.id}, nil
}

func TestFlushInsertsInPersistOrder(t *testing.T) {
	stub := testutils.NewDbSessionStub()
	em := NewEntityManager(stub)
	teamA := &team{name: "teamA"}
	member1 := &player{name: "member1", team: teamA}

	Persist[*team](em, teamMapper{}, teamA)
	Persist[*player](em, playerMapper{}, member1)
	assert.Equal(t, 2, em.Pending())
	assert.Empty(t, stub.Queries)

	require.NoError(t, em.Flush())
	assert.Equal(t, 0, em.Pending())
	assert.Equal(t, int64(1), teamA.id)
	assert.Equal(t, int64(2), member1.id)

	require.Len(t, stub.Queries, 2)
	assert.Equal(t, "INSERT INTO teams (name) VALUES ($1) RETURNING id", stub.Queries[0].Query)
	assert.Equal(t, []any{"teamA"}, stub.Queries[0].Params)
	assert.Equal(t, "INSERT INTO players (name, team_id) VALUES ($1, $2) RETURNING id", stub.Queries[1].Query)
	assert.Equal(t, []any{"member1", int64(1)}, stub.Queries[1].Params)

	tracked, err := identitymap.Get[*team](stub.IdentityMap(), teamKey{id: 1})
	require.NoError(t, err)
	assert.Same(t, teamA, tracked)
}

func TestFlushTransientReferenceKeepsQueue(t *testing.T) {
	stub := testutils.NewDbSessionStub()
	em := NewEntityManager(stub)
	teamA := &team{name: "teamA"}

	Persist[*player](em, playerMapper{}, &player{name: "member1", team: teamA})
	Persist[*team](em, teamMapper{}, teamA)

	err := em.Flush()
	assert.ErrorIs(t, err, ErrTransientReference)
	assert.Equal(t, 2, em.Pending())
	assert.Empty(t, stub.Queries)
}

func TestFlushSkipsPersistentEntities(t *testing.T) {
	stub := testutils.NewDbSessionStub()
	em := NewEntityManager(stub)

	Persist[*team](em, teamMapper{}, &team{id: 5, name: "teamA"})
	require.NoError(t, em.Flush())
	assert.Empty(t, stub.Queries)
}

func TestFindUsesIdentityMap(t *testing.T) {
	stub := testutils.NewDbSessionStub()
	em := NewEntityManager(stub)
	teamA := &team{name: "teamA"}
	Persist[*team](em, teamMapper{}, teamA)
	require.NoError(t, em.Flush())

	found, err := Find[*team](em, teamMapper{}, teamA.id)
	require.NoError(t, err)
	assert.Same(t, teamA, found)
	assert.Len(t, stub.Queries, 1)
}

func TestFindLoadsFromDatabase(t *testing.T) {
	stub := testutils.NewDbSessionStub(testutils.NewRowsStub([]any{int64(3), "teamB"}))
	em := NewEntityManager(stub)

	found, err := Find[*team](em, teamMapper{}, 3)
	require.NoError(t, err)
	assert.Equal(t, &team{id: 3, name: "teamB"}, found)
	testutils.AssertSQL(t, "SELECT t.id, t.name FROM teams AS t WHERE t.id = $1 LIMIT $2", stub.ActualQuery)
	assert.Equal(t, []any{int64(3), int64(2)}, stub.ActualParams)

	again, err := Find[*team](em, teamMapper{}, 3)
	require.NoError(t, err)
	assert.Same(t, found, again)
	assert.Len(t, stub.Queries, 1)
}

func TestFindMissing(t *testing.T) {
	stub := testutils.NewDbSessionStub()
	em := NewEntityManager(stub)

	_, err := Find[*team](em, teamMapper{}, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Find[*team](em, teamMapper{}, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, stub.Queries, 1)
}

func TestClear(t *testing.T) {
	stub := testutils.NewDbSessionStub()
	em := NewEntityManager(stub)
	teamA := &team{name: "teamA"}
	Persist[*team](em, teamMapper{}, teamA)
	require.NoError(t, em.Flush())
	Persist[*team](em, teamMapper{}, &team{name: "teamB"})

	em.Clear()
	assert.Equal(t, 0, em.Pending())
	assert.Equal(t, 0, stub.IdentityMap().Len())
}
