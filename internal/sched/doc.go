// Package sched implements the cooperative task scheduler (base spec
// §4.1): cords (one scheduler per OS thread), tasks (cooperatively
// scheduled goroutines standing in for fibers), suspension primitives
// (Yield/Sleep/Wakeup/Cancel/Join/Reschedule), and per-task arenas.
//
// Every task's goroutine is parked on a single-slot channel pair for the
// whole of its life except while actually running; control transfers by
// a synchronous send/receive handoff, so at most one of {a cord's loop
// goroutine, that cord's currently running task} is ever doing work at a
// time. This is the substitution Design Notes §9 anticipates for hosts
// without manual stack switching.
package sched
