// Task registry: maps task ID to *Task. Grounded on eventloop/registry.go,
// adapted from that registry's weak-pointer/scavenged design to strong
// ownership: unlike promises, tasks are never garbage-collection-optional
// (a live task must always be reachable by find-by-id until it is
// recycled), so there is no scavenge pass, only explicit remove on death.
package sched

import "sync"

type registry struct {
	mu     sync.RWMutex
	data   map[uint64]*Task
	nextID uint64
}

func newRegistry() *registry {
	return &registry{
		data:   make(map[uint64]*Task),
		nextID: 1, // start at 1 so 0 can mean "no task"
	}
}

// add assigns the next ID to t and registers it.
func (r *registry) add(t *Task) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	t.id = id
	r.data[id] = t
	return id
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
}

func (r *registry) find(id uint64) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.data[id]
	return t, ok
}
