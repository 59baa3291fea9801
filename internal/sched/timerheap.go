// Timer heap backing Sleep: a min-heap ordered by deadline, drained by the
// cord's loop each time it has no ready task to run (base spec §4.1
// "sleep (duration)", §5 "Timeouts").
package sched

import "container/heap"

type timerEntry struct {
	deadline int64 // UnixNano
	task     *Task
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// wrap the package-level heap functions so callers don't need the
// container/heap import at every call site.
func (h *timerHeap) push(e *timerEntry) { heap.Push(h, e) }
func (h *timerHeap) pop() *timerEntry   { return heap.Pop(h).(*timerEntry) }
func (h *timerHeap) peek() *timerEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}
func (h *timerHeap) remove(e *timerEntry) {
	if e.index < 0 || e.index >= len(*h) || (*h)[e.index] != e {
		return
	}
	heap.Remove(h, e.index)
}
