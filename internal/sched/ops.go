// Package-level scheduling primitives operating on a *Task (base spec
// §4.1): these are free functions, not methods, to keep "self" ambiguity
// explicit the way the base spec's C-shaped contract does (a task always
// names which task it is acting on, even when it is acting on itself).
package sched

import (
	"time"

	"github.com/fiberdb/core/internal/errs"
)

// Yield suspends the calling task, returning control to its cord's loop,
// until something later calls Wakeup on it (base spec §4.1 "yield").
// Must be called from within the task's own entry function.
func Yield(t *Task) {
	t.onYield.fire(t)
	// A task already re-queued while running (Reschedule) stays READY, so
	// a further Wakeup before it is resumed remains a no-op.
	t.state.TryTransition(StateRunning, StateSuspended)
	t.slot.fromTask <- controlMsg{}
	<-t.slot.toTask
}

// Sleep suspends the calling task until d elapses, then it is woken onto
// the ready queue (base spec §4.1 "sleep"). A non-positive duration forces
// exactly one scheduler pass via Reschedule, matching "duration 0 forces
// one event-loop poll with zero timeout".
func Sleep(t *Task, d time.Duration) {
	if d <= 0 {
		Reschedule(t)
		return
	}
	e := t.cord.scheduleTimer(t, d)
	t.state.Store(StateSuspended)
	t.slot.fromTask <- controlMsg{}
	<-t.slot.toTask
	t.cord.cancelTimer(e)
}

// Wakeup moves t to the tail of its cord's ready queue; a no-op if t is
// already READY or DEAD (base spec §4.1 "wakeup").
func Wakeup(t *Task) {
	switch t.state.Load() {
	case StateReady, StateDead:
		return
	}
	t.cord.enqueueReady(t)
}

// Cancel sets t's CANCELLED flag and, if t is not the calling task itself
// and is CANCELLABLE, wakes it (base spec §4.1 "cancel").
func Cancel(t *Task) {
	t.cancelled = true
	if t.cord.running != t && t.cancellable {
		Wakeup(t)
	}
}

// TestCancel is the "voluntary test-cancel call" base spec §4.1
// describes: it returns a FiberIsCancelled error if t has been cancelled,
// so entry functions can convert observation into their own failure
// return without waiting for a suspension point.
func TestCancel(t *Task) error {
	if t.cancelled {
		return errs.New(errs.FiberIsCancelled, "sched: task cancelled")
	}
	return nil
}

// Join blocks caller until target is DEAD, then returns target's result
// and diagnostic error (base spec §4.1 "join"). Joining self or a
// non-joinable task fails immediately.
//
// caller is registered on target.waiters exactly once, before the wait
// loop, not on every retry: a spurious wake (e.g. Cancel, since a
// joinable caller may also be cancellable) must resuspend caller without
// re-appending it, since finalize later enqueues every entry in
// target.waiters and a duplicate entry would resume caller's goroutine
// twice for one park, the second send finding nobody left to receive it.
func Join(caller, target *Task) (any, error) {
	if caller == target {
		return nil, errs.New(errs.IllegalParams, "sched: a task cannot join itself")
	}
	if !target.joinable {
		return nil, errs.New(errs.IllegalParams, "sched: target task is not joinable")
	}

	target.waiters = append(target.waiters, caller)
	for target.state.Load() != StateDead {
		caller.state.Store(StateSuspended)
		caller.slot.fromTask <- controlMsg{}
		<-caller.slot.toTask
	}

	return target.result, target.err
}

// Reschedule wakes the calling task and immediately yields, implementing
// cooperative round-robin: the task goes to the tail of the ready queue
// and every other currently-ready task runs first (base spec §4.1
// "reschedule").
func Reschedule(t *Task) {
	Wakeup(t)
	Yield(t)
}
