package generic

import "sync"

// SyncMap is a typed wrapper around sync.Map.
type SyncMap[K comparable, V any] struct {
	sync.Map
}

func (m *SyncMap[K, V]) Get(key K) (V, bool) {
	value, ok := m.Load(key)
	if !ok {
		var empty V
		return empty, false
	}
	return value.(V), true
}

func (m *SyncMap[K, V]) Put(key K, value V) {
	m.Store(key, value)
}

func (m *SyncMap[K, V]) Keys() []K {
	var keys []K
	m.Range(func(k, _ any) bool {
		keys = append(keys, k.(K))
		return true
	})
	return keys
}
