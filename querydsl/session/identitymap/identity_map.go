package identitymap

import "sync"

// IsolationLevel controls how the identity map caches objects.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota // Identity map is disabled
	ReadCommitted                         // Identity map is disabled
	RepeatableReads                       // Prevents repeated queries for existent objects only
	Serializable                          // Prevents repeated queries for both existent and nonexistent objects
)

// IdentityMap keeps one in-memory instance per row identity inside a
// persistence context.
type IdentityMap struct {
	mu       sync.Mutex
	cache    *lruCache
	level    IsolationLevel
	strategy isolationStrategy
}

func New(cacheSize int, level IsolationLevel) *IdentityMap {
	m := &IdentityMap{cache: newLruCache(cacheSize)}
	m.SetIsolationLevel(level)
	return m
}

func (m *IdentityMap) SetIsolationLevel(level IsolationLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
	switch level {
	case ReadUncommitted, ReadCommitted:
		m.strategy = disabledStrategy{}
	case RepeatableReads:
		m.strategy = repeatableReadsStrategy{cache: m.cache}
	default:
		m.strategy = serializableStrategy{cache: m.cache}
	}
}

func (m *IdentityMap) IsolationLevel() IsolationLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// SetSize bounds the RepeatableReads cache. A Serializable map grows past
// the size until it is cleared; shrinking it trims the oldest entries.
func (m *IdentityMap) SetSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.setSize(size)
}

func (m *IdentityMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.len()
}

func (m *IdentityMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.clear()
}

// Add stores a loaded object.
func Add[V any](m *IdentityMap, key IdentityKey[V], value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategy.add(key, value)
}

// AddAbsent records that the key was queried but does not exist.
// Only effective with Serializable isolation level.
func AddAbsent[V any](m *IdentityMap, key IdentityKey[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategy.addAbsent(key)
}

func Get[V any](m *IdentityMap, key IdentityKey[V]) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, err := m.strategy.get(key)
	if err != nil {
		var zero V
		return zero, err
	}
	return value.(V), nil
}

// GetOrAdd returns the instance already tracked for key, or tracks and
// returns the one built by load. The bool reports whether load was called.
func GetOrAdd[V any](m *IdentityMap, key IdentityKey[V], load func() (V, error)) (V, bool, error) {
	if existing, err := Get(m, key); err == nil {
		return existing, false, nil
	}
	value, err := load()
	if err != nil {
		var zero V
		return zero, true, err
	}
	Add(m, key, value)
	return value, true, nil
}

func Has[V any](m *IdentityMap, key IdentityKey[V]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategy.has(key)
}

func Remove[V any](m *IdentityMap, key IdentityKey[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.remove(key)
}
