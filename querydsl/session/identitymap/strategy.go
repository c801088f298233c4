package identitymap

type absentMarker struct{}

var absent = &absentMarker{}

type isolationStrategy interface {
	add(key any, value any)
	addAbsent(key any)
	get(key any) (any, error)
	has(key any) bool
}

// disabledStrategy serves ReadUncommitted and ReadCommitted: every lookup
// goes to the database.
type disabledStrategy struct{}

func (disabledStrategy) add(any, any)  {}
func (disabledStrategy) addAbsent(any) {}
func (disabledStrategy) has(any) bool  { return false }
func (disabledStrategy) get(any) (any, error) {
	return nil, ErrKeyNotFound
}

// repeatableReadsStrategy caches loaded rows only.
type repeatableReadsStrategy struct {
	cache *lruCache
}

func (s repeatableReadsStrategy) add(key any, value any) {
	s.cache.add(key, value)
}

func (s repeatableReadsStrategy) addAbsent(any) {}

func (s repeatableReadsStrategy) get(key any) (any, error) {
	value, ok := s.cache.get(key)
	if !ok || value == absent {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (s repeatableReadsStrategy) has(key any) bool {
	value, ok := s.cache.get(key)
	return ok && value != absent
}

// serializableStrategy also remembers keys known to be missing. It never
// evicts: one transaction keeps one instance per row however many it loads.
type serializableStrategy struct {
	cache *lruCache
}

func (s serializableStrategy) add(key any, value any) {
	s.cache.put(key, value)
}

func (s serializableStrategy) addAbsent(key any) {
	s.cache.put(key, absent)
}

func (s serializableStrategy) get(key any) (any, error) {
	value, ok := s.cache.get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if value == absent {
		return nil, ErrObjectNotFound
	}
	return value, nil
}

func (s serializableStrategy) has(key any) bool {
	_, ok := s.cache.get(key)
	return ok
}
