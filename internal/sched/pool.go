// Dead-pool recycling for default-stack-sized tasks (base spec §4.1
// "Stacks"). Go goroutines already grow/shrink their own stacks; what this
// module recycles is the taskSlot — the struct holding a task's resume
// channels and scratch buffers — since allocating those fresh for every
// task is the part actually under this module's control.
package sched

import "sync"

// taskSlot holds the per-task resources recycling targets: the channels
// used to hand control back and forth, and a scratch buffer (no code path
// in this package appends to it). grown reports whether the scratch buffer
// was reallocated past its initial capacity, standing in for the stack
// watermark sentinel (base spec: "if the sentinel is intact... skips
// returning pages").
type taskSlot struct {
	toTask   chan struct{}
	fromTask chan controlMsg
	scratch  []byte
	grown    bool
}

func newTaskSlot() *taskSlot {
	return &taskSlot{
		toTask:   make(chan struct{}),
		fromTask: make(chan controlMsg),
		scratch:  make([]byte, 0, 256),
	}
}

func (s *taskSlot) reset() {
	if cap(s.scratch) > 256 {
		s.grown = true
	}
	s.scratch = s.scratch[:0]
}

var deadPool = sync.Pool{
	New: func() any { return newTaskSlot() },
}

func acquireSlot(defaultStack bool) *taskSlot {
	if !defaultStack {
		return newTaskSlot()
	}
	return deadPool.Get().(*taskSlot)
}

func releaseSlot(s *taskSlot, defaultStack bool) {
	if !defaultStack {
		return
	}
	s.reset()
	deadPool.Put(s)
}
