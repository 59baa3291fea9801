// Cord-level OS thread lifecycle (base spec §4.1 "Cord (OS thread)"):
// StartCord launches a new OS thread with its own scheduler, runs an
// entry function on it, and publishes termination to at most one waiter
// through a one-shot atomic slot, exactly as specified.
package sched

import (
	"runtime"
	"sync/atomic"

	"github.com/fiberdb/core/internal/errs"
)

// CordHandle is the caller-visible handle to a cord running on its own OS
// thread, returned by StartCord. exitWaiters is the one-shot atomic slot
// base spec describes: nil means "pending", a non-nil *exitWaiter means
// "handler installed", and publishExit's close+load resolves the race
// against a handler that installs after the cord has already exited.
type CordHandle struct {
	cord *Cord

	done   chan struct{}
	result any
	err    error

	exitWaiters atomic.Pointer[exitWaiter]
}

type exitWaiter struct {
	notify func()
}

// StartCord creates a new OS thread, pins it with runtime.LockOSThread
// for the duration (grounded on eventloop.run()'s deliberate lock/unlock
// discipline), and runs entry(arg) on a fresh Cord hosted there.
func StartCord(name string, entry func(arg any) (any, error), arg any) (*CordHandle, error) {
	cord, err := NewCord(name)
	if err != nil {
		return nil, err
	}

	h := &CordHandle{cord: cord, done: make(chan struct{})}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		root, err := cord.NewTask("root", func(t *Task) (any, error) {
			return entry(arg)
		})
		if err != nil {
			h.result, h.err = nil, err
			h.publishExit()
			return
		}
		// Once the root task dies, the cord should drain whatever else it
		// started and then exit on its own: nothing outside this package
		// would otherwise ever call Stop on a cord only reachable through
		// a CordHandle.
		root.onStop.add(func(*Task) { cord.Stop() })
		if err := root.Start(); err != nil {
			h.result, h.err = nil, err
			h.publishExit()
			return
		}

		cord.Run()

		h.result, h.err = root.Result(), root.Err()
		h.publishExit()
	}()

	return h, nil
}

func (h *CordHandle) publishExit() {
	close(h.done)
	if w := h.exitWaiters.Load(); w != nil {
		w.notify()
	}
}

// Join blocks the calling OS thread (no cooperative wait) until the cord
// terminates, returning its entry function's result (base spec "cord-join").
func (h *CordHandle) Join() (any, error) {
	<-h.done
	return h.result, h.err
}

// Cojoin registers an on-exit handler that posts an async event to
// caller's own cord when h's cord terminates, then cooperatively yields
// caller (non-cancellably) until that event arrives, finally returning h's
// result without a blocking OS-level join (base spec "cord-cojoin").
func (h *CordHandle) Cojoin(caller *Task) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	default:
	}

	prevCancellable := caller.SetCancellable(false)
	defer caller.SetCancellable(prevCancellable)

	waiterTask := caller
	w := &exitWaiter{notify: func() {
		Wakeup(waiterTask)
	}}
	if !h.exitWaiters.CompareAndSwap(nil, w) {
		return nil, errs.New(errs.IllegalParams, "sched: cord already has a cojoin waiter")
	}

	select {
	case <-h.done:
		return h.result, h.err
	default:
	}

	Yield(caller)

	<-h.done
	return h.result, h.err
}
