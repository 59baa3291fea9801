// Task state machine, grounded on eventloop/state.go's FastState: a
// lock-free atomic state value rather than a mutex-guarded field, since a
// task's own state is read far more often than it is written.
package sched

import "sync/atomic"

// State is one task's position in the scheduler's lifecycle.
type State uint32

const (
	// StateReady means the task is on the ready queue, waiting for the
	// loop to resume it.
	StateReady State = iota
	// StateRunning means the task currently holds control.
	StateRunning
	// StateSuspended means the task yielded, slept, or is waiting on a
	// join/condition, and is off the ready queue.
	StateSuspended
	// StateDead means the task's entry function has returned.
	StateDead
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateSuspended:
		return "Suspended"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// fastState is a small atomic wrapper, mirroring FastState's Load/Store/
// TryTransition shape without the cache-line padding (tasks are
// heap-allocated individually, not packed in a hot array the way the
// teacher's event loop's single state machine is).
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) Load() State                { return State(s.v.Load()) }
func (s *fastState) Store(v State)               { s.v.Store(uint32(v)) }
func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
