// Functional-options configuration for cords and tasks, grounded on
// eventloop/options.go's applyLoopOption/LoopOption/resolveLoopOptions
// pattern.
package sched

import "github.com/fiberdb/core/internal/errs"

const (
	defaultStackSize = 512 * 1024 // base spec §4.1 "default ~512 KiB"
	minStackFloor    = 64 * 1024
)

type cordOptions struct {
	minStackSize int
	arenaHint    int
}

// Option configures a Cord created by NewCord.
type Option interface {
	applyCordOption(*cordOptions) error
}

type cordOptionFunc func(*cordOptions) error

func (f cordOptionFunc) applyCordOption(o *cordOptions) error { return f(o) }

// WithMinStackSize sets the floor below which a task's requested stack
// size is rejected with errs.OutOfMemory at creation time.
func WithMinStackSize(n int) Option {
	return cordOptionFunc(func(o *cordOptions) error {
		if n <= 0 {
			return errs.New(errs.IllegalParams, "sched: min stack size must be positive")
		}
		o.minStackSize = n
		return nil
	})
}

// WithArenaHint sets the initial capacity hint for each task's Arena.
func WithArenaHint(n int) Option {
	return cordOptionFunc(func(o *cordOptions) error {
		if n < 0 {
			return errs.New(errs.IllegalParams, "sched: arena hint must not be negative")
		}
		o.arenaHint = n
		return nil
	})
}

func resolveCordOptions(opts []Option) (cordOptions, error) {
	o := cordOptions{minStackSize: minStackFloor, arenaHint: 4096}
	for _, opt := range opts {
		if err := opt.applyCordOption(&o); err != nil {
			return cordOptions{}, err
		}
	}
	return o, nil
}

type taskOptions struct {
	stackSize    int
	defaultStack bool
	cancellable  bool
	joinable     bool
}

// TaskOption configures a Task created by NewTask/Go.
type TaskOption interface {
	applyTaskOption(*taskOptions) error
}

type taskOptionFunc func(*taskOptions) error

func (f taskOptionFunc) applyTaskOption(o *taskOptions) error { return f(o) }

// WithStackSize requests a custom stack size; custom-sized tasks are never
// returned to the dead pool on death (base spec §4.1 "Stacks").
func WithStackSize(n int) TaskOption {
	return taskOptionFunc(func(o *taskOptions) error {
		if n <= 0 {
			return errs.New(errs.IllegalParams, "sched: stack size must be positive")
		}
		o.stackSize = n
		o.defaultStack = false
		return nil
	})
}

// WithCancellable sets the task's initial CANCELLABLE flag (default true).
func WithCancellable(v bool) TaskOption {
	return taskOptionFunc(func(o *taskOptions) error {
		o.cancellable = v
		return nil
	})
}

// WithJoinable sets the task's initial JOINABLE flag (default true).
func WithJoinable(v bool) TaskOption {
	return taskOptionFunc(func(o *taskOptions) error {
		o.joinable = v
		return nil
	})
}

func resolveTaskOptions(opts []TaskOption, defaultStackSize int) (taskOptions, error) {
	o := taskOptions{stackSize: defaultStackSize, defaultStack: true, cancellable: true, joinable: true}
	for _, opt := range opts {
		if err := opt.applyTaskOption(&o); err != nil {
			return taskOptions{}, err
		}
	}
	return o, nil
}
