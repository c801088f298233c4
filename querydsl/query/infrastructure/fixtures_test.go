package query

import (
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/option"
	q "github.com/krew-solutions/ascetic-querydsl-go/querydsl/query/domain"
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/session/identitymap"
)

type team struct {
	id   int64
	name string
}

type member struct {
	id       int64
	username option.Option[string]
	age      int32
	teamID   option.Option[int64]
	team     *team
}

type teamKey struct {
	identitymap.IdentityKeyBase[*team]
	id int64
}

type memberKey struct {
	identitymap.IdentityKeyBase[*member]
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

type memberMapper struct{}

func (memberMapper) Table() string     { return "members" }
func (memberMapper) Columns() []string { return []string{"id", "username", "age", "team_id"} }
func (memberMapper) Key(id int64) identitymap.IdentityKey[*member] {
	return memberKey{id: id}
}
func (memberMapper) Hydrate(values []any) (*member, error) {
	m := &member{}
	var err error
	if m.id, err = q.Convert[int64](values[0]); err != nil {
		return nil, err
	}
	if m.username, err = q.Convert[option.Option[string]](values[1]); err != nil {
		return nil, err
	}
	if m.age, err = q.Convert[int32](values[2]); err != nil {
		return nil, err
	}
	if m.teamID, err = q.Convert[option.Option[int64]](values[3]); err != nil {
		return nil, err
	}
	return m, nil
}
func (memberMapper) Link(im *identitymap.IdentityMap, m *member) {
	if m.team != nil || m.teamID.IsNothing() {
		return
	}
	if t, err := identitymap.Get[*team](im, teamKey{id: m.teamID.Unwrap()}); err == nil {
		m.team = t
	}
}

var (
	qMember    = q.NewEntityPath[*member]("m", memberMapper{})
	qMemberSub = q.NewEntityPath[*member]("ms", memberMapper{})
	qTeam      = q.NewEntityPath[*team]("t", teamMapper{})
	memberTeam = q.NewAssociation(qMember, "team_id", qTeam, "id")
)
