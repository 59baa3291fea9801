// Cord is an OS thread hosting one scheduler, its ready queue, timer
// heap, registry, and arenas (base spec §4.1 "Cord (OS thread)"). The run
// loop itself is grounded on eventloop.Loop's iterate-then-poll shape
// (loop.go), adapted from "fds + promises" to "ready tasks + timers".
package sched

import (
	"sync"
	"time"

	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/obslog"
)

// Cord hosts one cooperative scheduler running on a single OS thread.
type Cord struct {
	name   string
	logger obslog.Logger

	opts cordOptions

	registry *registry

	// readyMu guards ready and timers: both are touched by the loop
	// goroutine itself (the common, lock-free-by-handoff case) and,
	// cross-cord, by Cojoin's on-exit handler running on another cord's
	// loop goroutine (base spec §5 "the only genuinely shared state
	// across cords is... any cross-cord async event-source").
	readyMu sync.Mutex
	ready   []*Task
	timers  timerHeap

	wakeupSignal chan struct{}
	stopCh       chan struct{}
	stopped      bool

	running *Task // the task currently holding control, if any
}

// NewCord creates a cord's scheduler state without starting its OS
// thread; use StartCord to launch one on a dedicated thread, or drive a
// Cord's loop manually via (*Cord).Run for tests.
func NewCord(name string, opts ...Option) (*Cord, error) {
	o, err := resolveCordOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Cord{
		name:         name,
		logger:       obslog.NoOp(),
		opts:         o,
		registry:     newRegistry(),
		wakeupSignal: make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}, nil
}

// SetLogger installs a structured logger for this cord's lifecycle events.
func (c *Cord) SetLogger(l obslog.Logger) { c.logger = l }

// Name returns the cord's name.
func (c *Cord) Name() string { return c.name }

// FindByID looks up a live task by registry ID (base spec §4.1 "find-by-id").
func (c *Cord) FindByID(id uint64) (*Task, bool) {
	return c.registry.find(id)
}

// NewTask creates a task without starting it (base spec §4.1 "create-task").
func (c *Cord) NewTask(name string, entry func(*Task) (any, error), opts ...TaskOption) (*Task, error) {
	o, err := resolveTaskOptions(opts, defaultStackSize)
	if err != nil {
		return nil, err
	}
	if o.stackSize < c.opts.minStackSize {
		return nil, errs.New(errs.OutOfMemory, "sched: requested stack size below configured floor")
	}

	t := &Task{
		name:         name,
		cord:         c,
		entry:        entry,
		cancellable:  o.cancellable,
		joinable:     o.joinable,
		arena:        NewArena(c.opts.arenaHint),
		stackSize:    o.stackSize,
		defaultStack: o.defaultStack,
		slot:         acquireSlot(o.defaultStack),
	}
	t.state.Store(StateSuspended)
	c.registry.add(t)
	return t, nil
}

// Go creates and starts a task in one call (idiomatic-Go convenience over
// the two-step create/start split NewTask+Start preserves for parity with
// base spec §4.1).
func (c *Cord) Go(name string, entry func(*Task) (any, error), opts ...TaskOption) (*Task, error) {
	t, err := c.NewTask(name, entry, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

// enqueueReady appends t to the tail of the ready queue, posting the
// cross-task wakeup event if the queue was empty (base spec §4.1
// "Wakeup semantics").
func (c *Cord) enqueueReady(t *Task) {
	c.readyMu.Lock()
	wasEmpty := len(c.ready) == 0
	t.state.Store(StateReady)
	c.ready = append(c.ready, t)
	c.readyMu.Unlock()

	if wasEmpty {
		select {
		case c.wakeupSignal <- struct{}{}:
		default:
		}
	}
}

func (c *Cord) popReady() (*Task, bool) {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	if len(c.ready) == 0 {
		return nil, false
	}
	t := c.ready[0]
	c.ready = c.ready[1:]
	if len(c.ready) == 0 {
		c.ready = nil
	}
	return t, true
}

func (c *Cord) scheduleTimer(t *Task, d time.Duration) *timerEntry {
	e := &timerEntry{deadline: time.Now().Add(d).UnixNano(), task: t}
	c.readyMu.Lock()
	c.timers.push(e)
	c.readyMu.Unlock()
	return e
}

func (c *Cord) cancelTimer(e *timerEntry) {
	c.readyMu.Lock()
	c.timers.remove(e)
	c.readyMu.Unlock()
}

// Run drives the cord's scheduling loop until Stop has been called, the
// ready queue is empty and no Sleep timer is pending (base spec §4.1
// scheduling algorithm). Tasks suspended without a timer do not keep it
// running.
func (c *Cord) Run() {
	for {
		c.drainReady()

		c.readyMu.Lock()
		empty := len(c.ready) == 0
		next := c.timers.peek()
		c.readyMu.Unlock()

		if c.stopped && empty && next == nil {
			return
		}
		if !empty {
			continue
		}

		c.waitForWork(next)
	}
}

// drainReady resumes ready tasks one at a time until the ready queue is
// empty, including tasks that became ready during the drain: each resumed
// task runs until it suspends or dies before the next one starts, so no
// locking is needed for the duration of a single task's run.
func (c *Cord) drainReady() {
	for {
		t, ok := c.popReady()
		if !ok {
			return
		}
		c.resume(t)
	}
}

func (c *Cord) resume(t *Task) {
	t.state.Store(StateRunning)
	c.running = t
	t.slot.toTask <- struct{}{}
	msg := <-t.slot.fromTask
	c.running = nil

	if msg.dead {
		c.finalize(t)
	}
}

func (c *Cord) finalize(t *Task) {
	c.registry.remove(t.id)
	for _, w := range t.waiters {
		// Wakeup, not a raw enqueue: it is a no-op against a waiter that
		// is already READY/DEAD, so even a waiters list with a duplicate
		// or stale entry in it can never resume the same task's goroutine
		// twice for a single park (base spec §4.1 "wakeup").
		Wakeup(w)
	}
	t.waiters = nil
	releaseSlot(t.slot, t.defaultStack)
	t.slot = nil
}

func (c *Cord) waitForWork(next *timerEntry) {
	if next == nil {
		select {
		case <-c.wakeupSignal:
		case <-c.stopCh:
			c.stopped = true
		}
		return
	}

	until := time.Until(time.Unix(0, next.deadline))
	if until < 0 {
		until = 0
	}
	timer := time.NewTimer(until)
	defer timer.Stop()

	select {
	case <-timer.C:
		c.fireDueTimers()
	case <-c.wakeupSignal:
	case <-c.stopCh:
		c.stopped = true
	}
}

func (c *Cord) fireDueTimers() {
	now := time.Now().UnixNano()
	for {
		c.readyMu.Lock()
		e := c.timers.peek()
		if e == nil || e.deadline > now {
			c.readyMu.Unlock()
			return
		}
		c.timers.pop()
		c.readyMu.Unlock()
		c.enqueueReady(e.task)
	}
}

// Stop requests the cord's loop to exit once no task remains ready or
// running and no Sleep timer is pending; it does not forcibly cancel live
// tasks.
func (c *Cord) Stop() {
	close(c.stopCh)
}
