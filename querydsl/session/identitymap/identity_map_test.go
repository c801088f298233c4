package identitymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type team struct {
	Id int
}

type teamKey struct {
	IdentityKeyBase[*team]
	Id int
}

type member struct {
	Id int
}

type memberKey struct {
	IdentityKeyBase[*member]
	Id int
}

// --- Serializable (default) ---

func TestGet(t *testing.T) {
	im := New(100, Serializable)
	pk := 3
	obj := &team{Id: pk}
	key := teamKey{Id: pk}
	Add(im, key, obj)
	result, err := Get(im, key)
	assert.NoError(t, err)
	assert.Same(t, obj, result)

	_, err = Get(im, teamKey{Id: 10})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSerializableKeepsEntriesBeyondSize(t *testing.T) {
	im := New(2, Serializable)
	first := &team{Id: 1}
	Add(im, teamKey{Id: 1}, first)
	for i := 2; i <= 5; i++ {
		Add(im, teamKey{Id: i}, &team{Id: i})
	}
	AddAbsent(im, teamKey{Id: 6})

	assert.Equal(t, 6, im.Len())
	result, err := Get(im, teamKey{Id: 1})
	assert.NoError(t, err)
	assert.Same(t, first, result)
	_, err = Get(im, teamKey{Id: 6})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestHas(t *testing.T) {
	im := New(100, Serializable)
	pk := 3
	obj := &team{Id: pk}
	key := teamKey{Id: pk}
	Add(im, key, obj)
	assert.True(t, Has(im, key))
	assert.False(t, Has(im, teamKey{Id: 10}))
}

func TestRemove(t *testing.T) {
	im := New(100, Serializable)
	pk := 3
	obj := &team{Id: pk}
	key := teamKey{Id: pk}
	Add(im, key, obj)
	Remove(im, key)

	_, err := Get(im, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestClear(t *testing.T) {
	im := New(100, Serializable)
	pk := 3
	obj := &team{Id: pk}
	key := teamKey{Id: pk}
	Add(im, key, obj)
	im.Clear()

	_, err := Get(im, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDifferentEntityTypesSameId(t *testing.T) {
	im := New(100, Serializable)
	pk := 1
	m := &team{Id: pk}
	a := &member{Id: pk}
	tKey := teamKey{Id: pk}
	mKey := memberKey{Id: pk}
	Add(im, tKey, m)
	Add(im, mKey, a)

	tResult, err := Get(im, tKey)
	assert.NoError(t, err)
	assert.Same(t, m, tResult)

	mResult, err := Get(im, mKey)
	assert.NoError(t, err)
	assert.Same(t, a, mResult)
}

// --- Serializable isolation ---

func TestSerializableGetNonexistentObject(t *testing.T) {
	im := New(100, Serializable)
	key := teamKey{Id: 1}
	AddAbsent(im, key)

	_, err := Get(im, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestSerializableHasNonexistentObject(t *testing.T) {
	im := New(100, Serializable)
	key := teamKey{Id: 1}
	AddAbsent(im, key)
	assert.True(t, Has(im, key))
}

func TestSerializableHasUnloaded(t *testing.T) {
	im := New(100, Serializable)
	assert.False(t, Has(im, teamKey{Id: 1}))
}

// --- RepeatableReads isolation ---

func TestRepeatableReadsGet(t *testing.T) {
	im := New(100, RepeatableReads)
	obj := &team{Id: 1}
	key := teamKey{Id: 1}
	Add(im, key, obj)

	result, err := Get(im, key)
	assert.NoError(t, err)
	assert.Same(t, obj, result)
}

func TestRepeatableReadsLruEviction(t *testing.T) {
	im := New(1, RepeatableReads)
	key := teamKey{Id: 3}
	Add(im, key, &team{Id: 3})
	Add(im, teamKey{Id: 10}, &team{Id: 10})

	_, err := Get(im, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.True(t, Has(im, teamKey{Id: 10}))
}

func TestRepeatableReadsAddAbsentIsNoop(t *testing.T) {
	im := New(100, RepeatableReads)
	key := teamKey{Id: 1}
	AddAbsent(im, key)

	_, err := Get(im, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRepeatableReadsHas(t *testing.T) {
	im := New(100, RepeatableReads)
	key := teamKey{Id: 1}
	assert.False(t, Has(im, key))

	Add(im, key, &team{Id: 1})
	assert.True(t, Has(im, key))
}

// --- ReadUncommitted isolation ---

func TestReadUncommittedMapDisabled(t *testing.T) {
	im := New(100, ReadUncommitted)
	obj := &team{Id: 1}
	key := teamKey{Id: 1}
	Add(im, key, obj)

	_, err := Get(im, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.False(t, Has(im, key))
}

func TestGetOrAddLoadsOnce(t *testing.T) {
	im := New(100, Serializable)
	key := teamKey{Id: 1}
	loads := 0
	load := func() (*team, error) {
		loads++
		return &team{Id: 1}, nil
	}

	first, loaded, err := GetOrAdd(im, key, load)
	assert.NoError(t, err)
	assert.True(t, loaded)

	second, loaded, err := GetOrAdd(im, key, load)
	assert.NoError(t, err)
	assert.False(t, loaded)
	assert.Same(t, first, second)
	assert.Equal(t, 1, loads)
}

func TestGetOrAddDisabledMapAlwaysLoads(t *testing.T) {
	im := New(100, ReadCommitted)
	key := teamKey{Id: 1}
	first, _, _ := GetOrAdd(im, key, func() (*team, error) { return &team{Id: 1}, nil })
	second, _, _ := GetOrAdd(im, key, func() (*team, error) { return &team{Id: 1}, nil })
	assert.NotSame(t, first, second)
}

func TestSetSizeEvictsOldest(t *testing.T) {
	im := New(3, Serializable)
	for i := 1; i <= 3; i++ {
		Add(im, teamKey{Id: i}, &team{Id: i})
	}
	im.SetSize(1)

	assert.Equal(t, 1, im.Len())
	assert.True(t, Has(im, teamKey{Id: 3}))
	assert.False(t, Has(im, teamKey{Id: 1}))
}

func TestIsolationLevelSwitch(t *testing.T) {
	im := New(100, Serializable)
	key := teamKey{Id: 1}
	Add(im, key, &team{Id: 1})

	im.SetIsolationLevel(ReadUncommitted)
	assert.Equal(t, ReadUncommitted, im.IsolationLevel())
	assert.False(t, Has(im, key))

	im.SetIsolationLevel(Serializable)
	assert.True(t, Has(im, key))
}
