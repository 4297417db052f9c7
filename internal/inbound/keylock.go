package inbound

import "sync"

// keyedMutex serializes work per conversation identity so two messages from
// the same sender can never interleave a stale context into a transition.
// Entries are kept for the life of the process; the set is bounded by the
// number of distinct active conversations on this instance.
type keyedMutex struct {
	locks sync.Map
}

func (m *keyedMutex) lock(key string) func() {
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
