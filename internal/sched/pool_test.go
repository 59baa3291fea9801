package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseSlotReusesDefaultStackSlots(t *testing.T) {
	s1 := acquireSlot(true)
	releaseSlot(s1, true)
	s2 := acquireSlot(true)
	require.Same(t, s1, s2)
}

func TestAcquireSlotCustomStackNeverPooled(t *testing.T) {
	s1 := acquireSlot(false)
	releaseSlot(s1, false)
	s2 := acquireSlot(false)
	require.NotSame(t, s1, s2)
}

func TestTaskSlotResetMarksGrownPastInitialCapacity(t *testing.T) {
	s := newTaskSlot()
	require.False(t, s.grown)
	s.scratch = append(s.scratch, make([]byte, 512)...)
	s.reset()
	require.True(t, s.grown)
	require.Len(t, s.scratch, 0)
}

func TestTaskSlotResetWithinInitialCapacityStaysFalse(t *testing.T) {
	s := newTaskSlot()
	s.scratch = append(s.scratch, make([]byte, 16)...)
	s.reset()
	require.False(t, s.grown)
}
