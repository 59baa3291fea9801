//go:build unix

package sched

import "golang.org/x/sys/unix"

// hostPageSize reports the OS memory page size, used only to populate
// Task.StackInfo's diagnostic field (base spec §4.1 "Stacks": the
// page-size/stack-growth probe is reported, never exploited, since Go
// manages its own goroutine stacks).
func hostPageSize() int { return unix.Getpagesize() }
