package sched

import "github.com/fiberdb/core/internal/obslog"

// trigger is one callback registered on a task's on_yield or on_stop list
// (base spec §4.1 "Triggers"). Removing a trigger mid-run (from within its
// own callback) is supported by snapshotting the list before invocation.
type trigger struct {
	fn func(t *Task)
}

type triggerList struct {
	items []*trigger
}

// add appends fn and returns a handle usable with remove.
func (l *triggerList) add(fn func(t *Task)) *trigger {
	tr := &trigger{fn: fn}
	l.items = append(l.items, tr)
	return tr
}

// remove drops tr from the list; safe to call from within a firing
// callback since fire operates on a snapshot.
func (l *triggerList) remove(tr *trigger) {
	for i, it := range l.items {
		if it == tr {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

// fire invokes every registered trigger, in registration order, against a
// snapshot taken before the first call (so self-removal mid-run is safe).
//
// A trigger must not leave a new diagnostic on t's error slot behind it
// (base spec §7 "on_yield and on_stop must not leave new diagnostics
// behind"): fire snapshots t.err before running the list and logs, rather
// than panics, if a trigger changed it, since a misbehaving trigger must
// not crash the whole cord.
func (l *triggerList) fire(t *Task) {
	snapshot := make([]*trigger, len(l.items))
	copy(snapshot, l.items)
	before := t.err
	for _, tr := range snapshot {
		tr.fn(t)
	}
	if t.err != before {
		t.log(obslog.LevelWarn, "trigger left a new diagnostic on the task's error slot", t.err)
	}
}
