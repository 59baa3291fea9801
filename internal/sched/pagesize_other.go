//go:build !unix

package sched

import "os"

// hostPageSize is the non-unix fallback; os.Getpagesize is portable but
// the unix-specific probe in pagesize_unix.go mirrors what the teacher's wakeup/poller
// files reach for unix.* to get.
func hostPageSize() int { return os.Getpagesize() }
