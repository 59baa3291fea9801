// Functional-options configuration, grounded on
// eventloop/options.go's applyLoopOption/LoopOption/resolveLoopOptions
// shape: each option is a small struct implementing applyOption, composed
// by resolveOptions into a single options value.
package update

import (
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

type options struct {
	dict        record.Dictionary
	indexBase   IndexBase
	maxOps      int
	dryRun      bool
}

// Option configures Apply/Check/UpsertApply/UpsertSquash.
type Option interface {
	applyOption(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) applyOption(o *options) error { return f(o) }

// WithDictionary supplies the field-name dictionary used to resolve
// dotted path selectors to column indices.
func WithDictionary(dict record.Dictionary) Option {
	return optionFunc(func(o *options) error {
		o.dict = dict
		return nil
	})
}

// WithIndexBase sets the caller's selector index-base convention
// (default ZeroBased).
func WithIndexBase(base IndexBase) Option {
	return optionFunc(func(o *options) error {
		if base != ZeroBased && base != OneBased {
			return errs.New(errs.IllegalParams, "update: index base must be 0 or 1")
		}
		o.indexBase = base
		return nil
	})
}

// WithMaxOpsPerBatch caps the number of operations accepted in a single
// batch; 0 (the default) means unlimited.
func WithMaxOpsPerBatch(max int) Option {
	return optionFunc(func(o *options) error {
		if max < 0 {
			return errs.New(errs.IllegalParams, "update: max ops per batch must not be negative")
		}
		o.maxOps = max
		return nil
	})
}

// WithDryRun, when set, makes Check build and materialize the full field
// tree (surfacing every apply-time error Apply would) without encoding a
// result or returning one to the caller.
func WithDryRun() Option {
	return optionFunc(func(o *options) error {
		o.dryRun = true
		return nil
	})
}

func resolveOptions(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		if err := opt.applyOption(&o); err != nil {
			return options{}, err
		}
	}
	return o, nil
}
