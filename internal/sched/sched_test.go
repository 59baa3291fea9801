package sched_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/sched"
)

// runCordAsync runs c's loop on a background goroutine and returns a
// function that stops it and waits for the loop to actually exit.
func runCordAsync(c *sched.Cord) (stop func()) {
	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()
	return func() {
		c.Stop()
		<-done
	}
}

func waitForState(t *testing.T, task *sched.Task, want sched.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if task.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %q did not reach state %s within %s (current: %s)", task.Name(), want, timeout, task.State())
}

func kindOf(t *testing.T, err error) errs.Kind {
	t.Helper()
	kind, ok := errs.KindOf(err)
	require.True(t, ok, "expected a *errs.Error, got %T: %v", err, err)
	return kind
}

// A task that runs to completion without suspending finalizes synchronously
// within Run, once the task itself stops the cord.
func TestTaskRunsToCompletion(t *testing.T) {
	c, err := sched.NewCord("cord")
	require.NoError(t, err)

	task, err := c.Go("worker", func(tk *sched.Task) (any, error) {
		tk.Cord().Stop()
		return 42, nil
	})
	require.NoError(t, err)

	c.Run()

	require.Equal(t, sched.StateDead, task.State())
	require.Equal(t, 42, task.Result())
	require.True(t, task.Watermark())
}

// Yield suspends a task until an external Wakeup call puts it back on the
// ready queue.
func TestYieldSuspendsUntilWakeup(t *testing.T) {
	c, err := sched.NewCord("yield")
	require.NoError(t, err)
	stop := runCordAsync(c)
	defer stop()

	resumed := make(chan struct{})
	task, err := c.Go("yielder", func(tk *sched.Task) (any, error) {
		sched.Yield(tk)
		close(resumed)
		return "done", nil
	})
	require.NoError(t, err)

	waitForState(t, task, sched.StateSuspended, time.Second)

	select {
	case <-resumed:
		t.Fatal("task resumed before Wakeup was called")
	default:
	}

	sched.Wakeup(task)

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("task did not resume after Wakeup")
	}
	waitForState(t, task, sched.StateDead, time.Second)
	require.Equal(t, "done", task.Result())
}

// Wakeup is a no-op against an already-ready or dead task (base spec §4.1
// "wakeup"): calling it twice on a yielded task must not queue it twice.
func TestWakeupIsNoOpWhenAlreadyReady(t *testing.T) {
	c, err := sched.NewCord("wakeup")
	require.NoError(t, err)
	stop := runCordAsync(c)
	defer stop()

	var runs int
	task, err := c.Go("once", func(tk *sched.Task) (any, error) {
		runs++
		sched.Yield(tk)
		runs++
		return nil, nil
	})
	require.NoError(t, err)

	waitForState(t, task, sched.StateSuspended, time.Second)
	sched.Wakeup(task)
	sched.Wakeup(task) // second call, while already queued/resumed, must not re-run the body
	waitForState(t, task, sched.StateDead, time.Second)

	require.Equal(t, 2, runs)
}

// Sleep suspends a task until its deadline elapses.
func TestSleepResumesAfterDuration(t *testing.T) {
	c, err := sched.NewCord("sleep")
	require.NoError(t, err)
	stop := runCordAsync(c)
	defer stop()

	start := time.Now()
	task, err := c.Go("sleeper", func(tk *sched.Task) (any, error) {
		sched.Sleep(tk, 20*time.Millisecond)
		return time.Since(start), nil
	})
	require.NoError(t, err)

	waitForState(t, task, sched.StateDead, time.Second)
	elapsed, ok := task.Result().(time.Duration)
	require.True(t, ok)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

// A non-positive Sleep duration forces exactly one scheduler pass rather
// than suspending indefinitely.
func TestSleepNonPositiveDurationReschedulesOnce(t *testing.T) {
	c, err := sched.NewCord("sleep0")
	require.NoError(t, err)

	task, err := c.Go("immediate", func(tk *sched.Task) (any, error) {
		sched.Sleep(tk, 0)
		tk.Cord().Stop()
		return "ok", nil
	})
	require.NoError(t, err)

	c.Run()
	require.Equal(t, "ok", task.Result())
}

// Cancel wakes a cancellable, suspended task, which observes the flag via
// TestCancel and returns FiberIsCancelled.
func TestCancelObservedByTestCancel(t *testing.T) {
	c, err := sched.NewCord("cancel")
	require.NoError(t, err)
	stop := runCordAsync(c)
	defer stop()

	task, err := c.NewTask("cancellable", func(tk *sched.Task) (any, error) {
		sched.Yield(tk)
		if err := sched.TestCancel(tk); err != nil {
			return nil, err
		}
		return "not cancelled", nil
	})
	require.NoError(t, err)
	require.NoError(t, task.Start())

	waitForState(t, task, sched.StateSuspended, time.Second)
	sched.Cancel(task)

	waitForState(t, task, sched.StateDead, time.Second)
	require.Equal(t, errs.FiberIsCancelled, kindOf(t, task.Err()))
}

// A non-cancellable task is not woken by Cancel; it only observes the flag
// the next time it voluntarily yields and checks.
func TestCancelDoesNotWakeNonCancellableTask(t *testing.T) {
	c, err := sched.NewCord("noncancel")
	require.NoError(t, err)
	stop := runCordAsync(c)
	defer stop()

	task, err := c.NewTask("stubborn", func(tk *sched.Task) (any, error) {
		sched.Yield(tk)
		return sched.TestCancel(tk), nil
	})
	require.NoError(t, err)
	prevCancellable := task.SetCancellable(false)
	require.True(t, prevCancellable) // default CANCELLABLE is true
	require.NoError(t, task.Start())

	waitForState(t, task, sched.StateSuspended, time.Second)
	sched.Cancel(task)

	// give the scheduler a moment; task must still be suspended, since a
	// non-cancellable task is never forcibly woken.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, sched.StateSuspended, task.State())

	sched.Wakeup(task)
	waitForState(t, task, sched.StateDead, time.Second)
	require.Error(t, task.Result().(error))
}

// FindByID looks up a live task by its registry ID and reports false once
// the task has died and been recycled out of the registry.
func TestFindByID(t *testing.T) {
	c, err := sched.NewCord("registry")
	require.NoError(t, err)

	task, err := c.Go("findme", func(tk *sched.Task) (any, error) {
		found, ok := tk.Cord().FindByID(tk.ID())
		require.True(t, ok)
		require.Same(t, tk, found)
		tk.Cord().Stop()
		return nil, nil
	})
	require.NoError(t, err)

	c.Run()

	_, ok := c.FindByID(task.ID())
	require.False(t, ok)
}

// Join blocks the caller until the target dies, then returns its result.
func TestJoinWaitsForTargetCompletion(t *testing.T) {
	c, err := sched.NewCord("join")
	require.NoError(t, err)

	child, err := c.NewTask("child", func(tk *sched.Task) (any, error) {
		sched.Sleep(tk, 5*time.Millisecond)
		return "child-result", nil
	})
	require.NoError(t, err)

	var joinResult any
	var joinErr error
	_, err = c.Go("driver", func(tk *sched.Task) (any, error) {
		require.NoError(t, child.Start())
		joinResult, joinErr = sched.Join(tk, child)
		tk.Cord().Stop()
		return nil, nil
	})
	require.NoError(t, err)

	c.Run()

	require.NoError(t, joinErr)
	require.Equal(t, "child-result", joinResult)
}

// A spurious Wakeup of a task blocked in Join (the same cross-thread-safe
// primitive Cancel itself uses to rouse a cancellable waiter) must not
// deadlock the cord: the waiter is registered on target.waiters exactly
// once regardless of how many times it resuspends, so finalize never
// resumes its goroutine more than once for that single park.
func TestJoinSurvivesSpuriousWakeWhileWaiting(t *testing.T) {
	c, err := sched.NewCord("join-spurious")
	require.NoError(t, err)
	stop := runCordAsync(c)
	defer stop()

	child, err := c.NewTask("child", func(tk *sched.Task) (any, error) {
		sched.Sleep(tk, 30*time.Millisecond)
		return "child-result", nil
	})
	require.NoError(t, err)

	var joinResult any
	var joinErr error
	driver, err := c.Go("driver", func(tk *sched.Task) (any, error) {
		require.NoError(t, child.Start())
		joinResult, joinErr = sched.Join(tk, child)
		return nil, nil
	})
	require.NoError(t, err)

	waitForState(t, driver, sched.StateSuspended, time.Second)
	sched.Wakeup(driver) // spurious: child is not yet dead

	waitForState(t, driver, sched.StateDead, time.Second)
	require.NoError(t, joinErr)
	require.Equal(t, "child-result", joinResult)
}

// Joining self or a non-joinable task fails immediately without suspending.
func TestJoinSelfAndNonJoinableFail(t *testing.T) {
	c, err := sched.NewCord("joinfail")
	require.NoError(t, err)

	nonJoinable, err := c.NewTask("nonjoinable", func(tk *sched.Task) (any, error) {
		return nil, nil
	}, sched.WithJoinable(false))
	require.NoError(t, err)

	_, err = c.Go("driver", func(tk *sched.Task) (any, error) {
		_, selfErr := sched.Join(tk, tk)
		require.Equal(t, errs.IllegalParams, kindOf(t, selfErr))

		require.NoError(t, nonJoinable.Start())
		for nonJoinable.State() != sched.StateDead {
			sched.Reschedule(tk)
		}
		_, joinErr := sched.Join(tk, nonJoinable)
		require.Equal(t, errs.IllegalParams, kindOf(t, joinErr))

		tk.Cord().Stop()
		return nil, nil
	})
	require.NoError(t, err)

	c.Run()
}

// StartCord hosts the entry function on its own OS thread; Join blocks
// until it exits.
func TestStartCordJoin(t *testing.T) {
	h, err := sched.StartCord("standalone", func(arg any) (any, error) {
		return arg.(int) * 2, nil
	}, 21)
	require.NoError(t, err)

	result, err := h.Join()
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

// Cojoin lets a task on a different cord wait for a CordHandle to exit
// without blocking its own cord's OS thread, and observes the same result
// Join would.
func TestStartCordCojoinMatchesJoin(t *testing.T) {
	h, err := sched.StartCord("worker", func(arg any) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "worker-done", nil
	}, nil)
	require.NoError(t, err)

	waiterCord, err := sched.NewCord("waiter")
	require.NoError(t, err)

	var cojoinResult any
	var cojoinErr error
	_, err = waiterCord.Go("waits-on-worker", func(tk *sched.Task) (any, error) {
		cojoinResult, cojoinErr = h.Cojoin(tk)
		tk.Cord().Stop()
		return nil, nil
	})
	require.NoError(t, err)

	waiterCord.Run()

	require.NoError(t, cojoinErr)
	require.Equal(t, "worker-done", cojoinResult)

	joinResult, joinErr := h.Join()
	require.NoError(t, joinErr)
	require.Equal(t, cojoinResult, joinResult)
}

// Scenario 6: while a task cooperatively waits on a CordHandle via Cojoin,
// other tasks on the waiter's own cord keep making progress — the wait
// never blocks that cord's loop.
func TestCojoinDoesNotBlockSiblingTasksOnWaiterCord(t *testing.T) {
	h, err := sched.StartCord("slow-worker", func(arg any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	}, nil)
	require.NoError(t, err)

	waiterCord, err := sched.NewCord("waiter")
	require.NoError(t, err)

	var siblingRuns int
	sibling, err := waiterCord.Go("sibling", func(tk *sched.Task) (any, error) {
		for i := 0; i < 5; i++ {
			siblingRuns++
			sched.Reschedule(tk)
		}
		return nil, nil
	})
	require.NoError(t, err)

	var cojoinResult any
	var cojoinErr error
	waiter, err := waiterCord.Go("waits-on-worker", func(tk *sched.Task) (any, error) {
		cojoinResult, cojoinErr = h.Cojoin(tk)
		tk.Cord().Stop()
		return nil, nil
	})
	require.NoError(t, err)

	waiterCord.Run()

	require.Equal(t, sched.StateDead, sibling.State())
	require.Equal(t, 5, siblingRuns)
	require.Equal(t, sched.StateDead, waiter.State())
	require.NoError(t, cojoinErr)
	require.Equal(t, 42, cojoinResult)
}
