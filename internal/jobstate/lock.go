package jobstate

import "sync"

// mutexMap hands out one mutex per key so concurrent events for the same RO
// serialize while different ROs proceed independently. Entries are never
// evicted; the key space is bounded by active repair orders.
type mutexMap struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

func newMutexMap() *mutexMap {
	return &mutexMap{mutexes: make(map[string]*sync.Mutex)}
}

func (m *mutexMap) Lock(key string) {
	m.get(key).Lock()
}

func (m *mutexMap) Unlock(key string) {
	m.get(key).Unlock()
}

func (m *mutexMap) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mu, ok := m.mutexes[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	m.mutexes[key] = mu
	return mu
}
