// Task is one cooperatively-scheduled unit of work (base spec §4.1,
// Design Notes §9's goroutine-per-fiber substitution): a goroutine parked
// on a single-slot channel standing in for "resume control", exactly as
// the substitution note anticipates.
package sched

import (
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/obslog"
)

// controlMsg is what a task's goroutine sends back to the cord loop when
// it gives up control, either by suspending or by dying.
type controlMsg struct {
	dead bool
}

// Task is a single schedulable unit, created by (*Cord).NewTask.
type Task struct {
	id   uint64
	name string
	cord *Cord

	entry func(*Task) (any, error)
	args  []any

	state fastState

	cancellable bool
	joinable    bool
	cancelled   bool

	result any
	err    error // diagnostic slot

	waiters []*Task // tasks blocked in Join(_, this)

	onYield triggerList
	onStop  triggerList

	arena *Arena
	slot  *taskSlot

	stackSize    int
	defaultStack bool

	// watermark is Watermark's answer captured when the entry function
	// returned, since the slot is released back to the pool on death.
	watermark bool

	started bool
	next    *Task // caller-pointer slot; not read or written: drainReady pops the ready queue one task at a time
}

// ID returns the task's registry ID, stable for its lifetime.
func (t *Task) ID() uint64 { return t.id }

// Name returns the task's creation-time name.
func (t *Task) Name() string { return t.name }

// State reports the task's current scheduler state.
func (t *Task) State() State { return t.state.Load() }

// Arena returns the task's per-task bump allocator.
func (t *Task) Arena() *Arena { return t.arena }

// Args returns the arguments passed to Start, readable by the entry
// function via its *Task parameter.
func (t *Task) Args() []any { return t.args }

// Cord returns the cord hosting this task.
func (t *Task) Cord() *Cord { return t.cord }

// Result returns the value the entry function returned, valid once DEAD.
func (t *Task) Result() any { return t.result }

// Err returns the task's diagnostic slot.
func (t *Task) Err() error { return t.err }

// Watermark reports whether the task's scratch buffers never grew past
// their initial capacity (base spec §4.1 "stack watermark"). For a dead
// task it reports the value captured when its entry function returned.
func (t *Task) Watermark() bool {
	if t.slot == nil {
		return t.watermark
	}
	return !t.slot.grown
}

// StackInfo reports the per-task stack diagnostics the base spec's
// "Stacks" section asks for, reported here rather than exploited: Go
// already grows/shrinks and guards goroutine stacks itself.
type StackInfo struct {
	// Requested is the stack size given to WithStackSize, or the package
	// default (512 KiB) if the task used none.
	Requested int
	// Custom reports whether the task requested a non-default stack size
	// (custom-stack tasks are never pool-recycled).
	Custom bool
	// PageSize is the host OS memory page size, for callers that want to
	// round a requested stack size to a page boundary themselves.
	PageSize int
}

// StackInfo returns the task's stack diagnostics.
func (t *Task) StackInfo() StackInfo {
	return StackInfo{
		Requested: t.stackSize,
		Custom:    !t.defaultStack,
		PageSize:  hostPageSize(),
	}
}

// SetCancellable sets the CANCELLABLE flag and returns its prior value, so
// callers can restore it on all exit paths (base spec §5 "Cancellation").
func (t *Task) SetCancellable(v bool) bool {
	prev := t.cancellable
	t.cancellable = v
	return prev
}

// SetJoinable sets the JOINABLE flag.
func (t *Task) SetJoinable(v bool) {
	t.joinable = v
}

// IsCancelled reports the CANCELLED flag without clearing it.
func (t *Task) IsCancelled() bool {
	return t.cancelled
}

// Start records args for the entry function and appends the task to its
// cord's ready queue; the entry function first runs when the cord's loop
// resumes the task (base spec §4.1 "start-task").
func (t *Task) Start(args ...any) error {
	if t.started {
		return errs.New(errs.IllegalParams, "sched: task already started")
	}
	t.started = true
	t.args = args

	go func() {
		<-t.slot.toTask
		result, err := t.entry(t)
		t.result, t.err = result, err
		t.watermark = !t.slot.grown && cap(t.slot.scratch) <= 256
		t.state.Store(StateDead)
		t.onStop.fire(t)
		t.slot.fromTask <- controlMsg{dead: true}
	}()

	t.cord.enqueueReady(t)
	return nil
}

func (t *Task) log(level obslog.Level, msg string, err error) {
	t.cord.logger.Log(obslog.Entry{
		Level:    level,
		Category: "sched",
		CordName: t.cord.name,
		TaskID:   t.id,
		Message:  msg,
		Err:      err,
	})
}
