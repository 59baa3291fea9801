// Public update-engine entry points (base spec §4.2): Apply, Check,
// UpsertApply, UpsertSquash, ApplyWithStats.
package update

import (
	"strconv"

	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/obslog"
	"github.com/fiberdb/core/internal/record"
)

// Stats reports metrics about one Apply/ApplyWithStats call, used by
// callers that want visibility into batch shape without re-parsing it
// themselves.
type Stats struct {
	OpCount    int
	ColumnMask ColumnMask
	ResultSize int
}

// Apply decodes and applies an operations batch to base, returning the
// re-encoded record.
func Apply(base []byte, batch []byte, opts ...Option) ([]byte, error) {
	out, _, err := applyInternal(base, batch, opts)
	return out, err
}

// ApplyWithStats behaves like Apply but also reports batch metrics.
func ApplyWithStats(base []byte, batch []byte, opts ...Option) ([]byte, Stats, error) {
	return applyInternal(base, batch, opts)
}

// Check validates an operations batch against base without applying it:
// every decode-time and (when WithDryRun is set) apply-time failure mode
// is surfaced, but no output is produced.
func Check(base []byte, batch []byte, opts ...Option) error {
	o, err := resolveOptions(opts)
	if err != nil {
		return err
	}
	ops, err := decodeAndLimit(batch, o)
	if err != nil {
		return err
	}
	if !o.dryRun {
		return nil
	}

	baseVal, _, err := record.Decode(base)
	if err != nil {
		return errs.Wrap(errs.IllegalParams, "update: decode base record", err)
	}
	root, _, err := buildTree(baseVal, ops, o.dict, o.indexBase)
	if err != nil {
		return err
	}
	// Type/existence errors (arithmetic on a missing field, bitwise on a
	// non-integer, splice on a non-string) surface only during
	// materialization, not tree construction, so a dry run must also walk
	// the would-be result to actually behave like Apply short of encoding.
	_, err = materialize(root)
	return err
}

// UpsertApply applies batch to base if base is non-nil, or applies it to
// an empty array (base spec §4.2 "Upsert") if base is nil, i.e. absent.
//
// Unlike Apply, a failing operation does not abort the whole batch: upsert
// mode downgrades each operation's apply-time failure to a log entry on
// logger and skips just that operation, applying the rest against the base
// that survived (base spec §4.2/§7 "Upsert mode downgrades apply-time
// failures to log entries and skips the offending operation"). A nil logger
// behaves like obslog.NoOp().
func UpsertApply(base []byte, batch []byte, logger obslog.Logger, opts ...Option) ([]byte, error) {
	if logger == nil {
		logger = obslog.NoOp()
	}
	if base == nil {
		empty, err := emptyRecord()
		if err != nil {
			return nil, err
		}
		base = empty
	}

	o, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	ops, err := decodeAndLimit(batch, o)
	if err != nil {
		return nil, err
	}

	cur := base
	for i := range ops {
		next, _, err := applyOps(cur, ops[i:i+1], o)
		if err != nil {
			logger.Log(obslog.Entry{
				Level:    obslog.LevelWarn,
				Category: "update",
				Message:  "upsert-apply: skipping operation that failed to apply",
				Fields:   map[string]any{"opIndex": i, "opCode": string(ops[i].Code)},
				Err:      err,
			})
			continue
		}
		cur = next
	}
	return cur, nil
}

// UpsertSquash folds a new batch onto a prior pending batch for the same
// upsert, collapsing redundant trailing operations on the same field
// (base spec §4.2 "Upsert", supplemented per SPEC_FULL.md: a trailing '='
// also squashes over a prior '=', '+' or '-' on the same field, not only
// over a prior '='; it is the opcode that matters, not the old value).
func UpsertSquash(prior []byte, next []byte, opts ...Option) ([]byte, error) {
	o, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	priorOps, err := decodeAndLimit(prior, o)
	if err != nil {
		return nil, err
	}
	nextOps, err := decodeAndLimit(next, o)
	if err != nil {
		return nil, err
	}

	squashed := squashOps(priorOps, nextOps)
	return encodeOps(squashed)
}

func applyInternal(base []byte, batch []byte, rawOpts []Option) ([]byte, Stats, error) {
	o, err := resolveOptions(rawOpts)
	if err != nil {
		return nil, Stats{}, err
	}

	ops, err := decodeAndLimit(batch, o)
	if err != nil {
		return nil, Stats{}, err
	}

	return applyOps(base, ops, o)
}

// applyOps builds and materializes the field tree for an already-decoded
// operations slice, re-encoding the result. Factored out of applyInternal so
// UpsertApply can apply one operation at a time against a running base,
// isolating each operation's apply-time failure from the rest of the batch.
func applyOps(base []byte, ops []Op, o options) ([]byte, Stats, error) {
	baseVal, _, err := record.Decode(base)
	if err != nil {
		return nil, Stats{}, errs.Wrap(errs.IllegalParams, "update: decode base record", err)
	}

	root, mask, err := buildTree(baseVal, ops, o.dict, o.indexBase)
	if err != nil {
		return nil, Stats{}, err
	}

	result, err := materialize(root)
	if err != nil {
		return nil, Stats{}, err
	}

	size := record.Sizeof(result)
	out := record.Encode(make([]byte, 0, size), result)

	return out, Stats{OpCount: len(ops), ColumnMask: mask, ResultSize: len(out)}, nil
}

func decodeAndLimit(batch []byte, o options) ([]Op, error) {
	ops, err := decodeBatch(batch)
	if err != nil {
		return nil, err
	}
	if o.maxOps > 0 && len(ops) > o.maxOps {
		return nil, errs.New(errs.IllegalParams, "update: operations batch exceeds the configured maximum")
	}
	return ops, nil
}

func emptyRecord() ([]byte, error) {
	v := record.Array(nil)
	return record.Encode(make([]byte, 0, record.Sizeof(v)), v), nil
}

// squashOps drops any operation in prior whose selector a '=' in next
// also addresses, then appends next's operations, preserving prior's
// relative order for the remainder (base spec §4.2 "Upsert").
func squashOps(prior, next []Op) []Op {
	superseded := make(map[string]bool, len(next))
	for _, op := range next {
		if op.Code == OpSet {
			superseded[selectorKey(op.Selector)] = true
		}
	}

	out := make([]Op, 0, len(prior)+len(next))
	for _, op := range prior {
		if superseded[selectorKey(op.Selector)] {
			continue
		}
		out = append(out, op)
	}
	out = append(out, next...)
	return out
}

func selectorKey(sel selector) string {
	if !sel.isPath {
		return "#" + strconv.Itoa(sel.index)
	}
	return "@" + sel.raw
}

// encodeOps re-encodes a squashed []Op back into batch wire format, for
// UpsertSquash's result.
func encodeOps(ops []Op) ([]byte, error) {
	elems := make([]record.Value, 0, len(ops))
	for _, op := range ops {
		elem, err := encodeOp(op)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	v := record.Array(elems)
	return record.Encode(make([]byte, 0, record.Sizeof(v)), v), nil
}

func encodeOp(op Op) (record.Value, error) {
	fields := []record.Value{record.String(string(op.Code)), encodeSelector(op.Selector)}

	switch op.Code {
	case OpSet, OpInsert:
		fields = append(fields, op.SetValue)
	case OpDelete:
		fields = append(fields, record.Int(op.DeleteCount))
	case OpAdd, OpSub:
		fields = append(fields, op.ArithValue)
	case OpAnd, OpOr, OpXor:
		fields = append(fields, record.Uint(op.BitValue))
	case OpSplice:
		fields = append(fields,
			record.Int(op.SpliceOffset),
			record.Int(op.SpliceCut),
			record.Binary(op.SplicePaste))
	default:
		return record.Value{}, errs.New(errs.UnsupportedUpdate, "update: cannot re-encode unknown opcode")
	}

	return record.Array(fields), nil
}

func encodeSelector(sel selector) record.Value {
	if !sel.isPath {
		return record.Int(int64(sel.index))
	}
	return record.String(sel.raw)
}
