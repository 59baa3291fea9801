package update_test

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/obslog"
	"github.com/fiberdb/core/internal/record"
	"github.com/fiberdb/core/internal/update"
)

// recordingLogger captures every entry logged through it, for assertions
// that upsert-apply downgraded a specific failure rather than swallowing or
// propagating it.
type recordingLogger struct {
	entries []obslog.Entry
}

func (l *recordingLogger) Log(e obslog.Entry)         { l.entries = append(l.entries, e) }
func (l *recordingLogger) IsEnabled(obslog.Level) bool { return true }

func errKind(t *testing.T, err error) errs.Kind {
	t.Helper()
	kind, ok := errs.KindOf(err)
	require.True(t, ok, "expected a *errs.Error, got %T: %v", err, err)
	return kind
}

func encode(t *testing.T, v record.Value) []byte {
	t.Helper()
	return record.Encode(make([]byte, 0, record.Sizeof(v)), v)
}

func decode(t *testing.T, b []byte) record.Value {
	t.Helper()
	v, n, err := record.Decode(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	return v
}

func arr(vs ...record.Value) record.Value { return record.Array(vs) }

func op(code string, selector record.Value, args ...record.Value) record.Value {
	fields := append([]record.Value{record.String(code), selector}, args...)
	return record.Array(fields)
}

func batch(t *testing.T, ops ...record.Value) []byte {
	t.Helper()
	return encode(t, record.Array(ops))
}

// Scenario 1: a negative '!' selector inserts after the targeted position.
func TestApplyInsertAfterNegativeIndex(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.Int(2), record.Int(3)))
	ops := batch(t, op("!", record.Int(-1), record.String("push1")))

	out, err := update.Apply(base, ops)
	require.NoError(t, err)

	got := decode(t, out)
	require.Len(t, got.Arr(), 4)
	require.Equal(t, int64(1), got.Arr()[0].Int())
	require.Equal(t, int64(2), got.Arr()[1].Int())
	require.Equal(t, int64(3), got.Arr()[2].Int())
	require.Equal(t, "push1", got.Arr()[3].Str())
}

// Scenario 2: a nested path '=' replaces exactly one element, leaving
// sibling bytes untouched.
func TestApplyNestedPathReplacesOneElement(t *testing.T) {
	inner := arr(record.Int(10), record.Int(20), record.Int(30))
	base := encode(t, arr(record.String("hello"), inner))

	dict := record.NewDictionary([]string{"name", "values"})
	ops := batch(t, op("=", record.String("values[1]"), record.Int(99)))

	out, err := update.Apply(base, ops, update.WithDictionary(dict))
	require.NoError(t, err)

	got := decode(t, out)
	require.Equal(t, "hello", got.Arr()[0].Str())
	require.Equal(t, int64(10), got.Arr()[1].Arr()[0].Int())
	require.Equal(t, int64(99), got.Arr()[1].Arr()[1].Int())
	require.Equal(t, int64(30), got.Arr()[1].Arr()[2].Int())
}

// Scenario 3: two operations addressing the same top-level field fail
// with Duplicate, and the base record is unaffected (Apply never mutates
// its input, only its output).
func TestApplyDuplicateTopLevelFieldFails(t *testing.T) {
	base := encode(t, arr(record.Int(0), record.Int(0)))
	ops := batch(t,
		op("+", record.Int(0), record.Int(10)),
		op("+", record.Int(0), record.Int(5)),
	)

	_, err := update.Apply(base, ops)
	require.Error(t, err)
	require.Equal(t, errs.Duplicate, errKind(t, err))

	// base bytes are untouched
	got := decode(t, base)
	require.Equal(t, int64(0), got.Arr()[0].Int())
}

// Scenario 4: integer arithmetic that would wrap fails with
// UpdateIntegerOverflow rather than silently promoting to decimal.
func TestApplyIntegerOverflowFails(t *testing.T) {
	base := encode(t, arr(record.Int(0), record.Uint(0xFFFFFFFFFFFFFFFF)))
	ops := batch(t, op("+", record.Int(1), record.Int(1)))

	_, err := update.Apply(base, ops)
	require.Error(t, err)
	require.Equal(t, errs.UpdateIntegerOverflow, errKind(t, err))
}

// Decimal-typed operands promote straight to decimal arithmetic and never
// report UpdateIntegerOverflow, matching the "promotion follows operand
// type, not overflow rescue" rule.
func TestApplyDecimalArithmetic(t *testing.T) {
	d, _, err := new(apd.Decimal).SetString("10.5")
	require.NoError(t, err)
	base := encode(t, arr(record.Decimal(d)))

	rhs, _, err := new(apd.Decimal).SetString("2.25")
	require.NoError(t, err)
	ops := batch(t, op("+", record.Int(0), record.Decimal(rhs)))

	out, err := update.Apply(base, ops)
	require.NoError(t, err)
	got := decode(t, out)
	want, _, err := new(apd.Decimal).SetString("12.75")
	require.NoError(t, err)
	require.Equal(t, 0, want.Cmp(got.Arr()[0].Dec()))
}

// Scenario 5 (simplified): two operations under a shared ancestor path
// diverge into distinct subtrees, and both mutations land correctly.
func TestApplySharedAncestorDivergingPaths(t *testing.T) {
	level3 := arr(record.Int(100), record.Int(200), record.Int(300))
	level2 := arr(record.Nil(), record.Nil(), record.Nil(), record.Nil(), level3)
	level1 := arr(record.Nil(), record.Nil(), record.Nil(), record.Nil(), level2)
	base := encode(t, arr(record.Nil(), record.Nil(), record.Nil(), record.Nil(), level1))

	ops := batch(t,
		op("=", record.String("[4][4][4][0]"), record.String("first")),
		op("!", record.String("[4][4][4][3]"), record.String("second")),
	)

	out, err := update.Apply(base, ops)
	require.NoError(t, err)
	got := decode(t, out)

	target := got.Arr()[4].Arr()[4].Arr()[4]
	require.Equal(t, "first", target.Arr()[0].Str())
	require.Equal(t, int64(200), target.Arr()[1].Int())
	require.Equal(t, int64(300), target.Arr()[2].Int())
	require.Equal(t, "second", target.Arr()[3].Str())
}

// Two operations reaching the same BAR node but diverging at the very
// first remaining path token transform that node in place into a MAP,
// rather than wrapping it in a degenerate single-hop ROUTE.
func TestApplyNestedPathsDivergeAtFirstToken(t *testing.T) {
	inner := record.Map(&record.MapValue{
		Keys:   []string{"x", "y"},
		Values: []record.Value{record.Int(1), record.Int(2)},
	})
	base := encode(t, arr(inner))

	ops := batch(t,
		op("=", record.String("[0].x"), record.Int(10)),
		op("=", record.String("[0].y"), record.Int(20)),
	)

	out, err := update.Apply(base, ops)
	require.NoError(t, err)

	got := decode(t, out)
	m := got.Arr()[0].MapVal()
	xv, ok := m.Get("x")
	require.True(t, ok)
	require.Equal(t, int64(10), xv.Int())
	yv, ok := m.Get("y")
	require.True(t, ok)
	require.Equal(t, int64(20), yv.Int())
}

// A second operation whose path is a strict prefix of an already-BAR'd
// scalar operation's path is an intersection, not a duplicate, and is
// reported as UnsupportedUpdate.
func TestApplyNestedPathPrefixConflictIsUnsupportedUpdate(t *testing.T) {
	inner := record.Map(&record.MapValue{
		Keys:   []string{"b"},
		Values: []record.Value{record.Int(1)},
	})
	base := encode(t, arr(inner))

	ops := batch(t,
		op("=", record.String("[0].b"), record.Int(10)),
		op("=", record.String("[0]"), record.Int(99)),
	)

	_, err := update.Apply(base, ops)
	require.Error(t, err)
	require.Equal(t, errs.UnsupportedUpdate, errKind(t, err))
}

// Index-base-1 callers addressing selector 0 must fail, since there is no
// field at ordinal -1 once adjusted.
func TestApplyOneBasedSelectorZeroFails(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.Int(2)))
	ops := batch(t, op("=", record.Int(0), record.Int(99)))

	_, err := update.Apply(base, ops, update.WithIndexBase(update.OneBased))
	require.Error(t, err)
}

// Splicing at the end of a string (offset == length, cut 0) inserts
// without removing anything.
func TestApplySpliceAtEndInserts(t *testing.T) {
	base := encode(t, arr(record.String("hello")))
	ops := batch(t, op(":", record.Int(0), record.Int(5), record.Int(0), record.String(" world")))

	out, err := update.Apply(base, ops)
	require.NoError(t, err)
	got := decode(t, out)
	require.Equal(t, "hello world", got.Arr()[0].Str())
}

// Disjoint-field batches commute: applying them in either order produces
// byte-identical results.
func TestApplyDisjointFieldsCommute(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.Int(2), record.Int(3)))

	forward := batch(t,
		op("=", record.Int(0), record.Int(10)),
		op("=", record.Int(2), record.Int(30)),
	)
	backward := batch(t,
		op("=", record.Int(2), record.Int(30)),
		op("=", record.Int(0), record.Int(10)),
	)

	out1, err := update.Apply(base, forward)
	require.NoError(t, err)
	out2, err := update.Apply(base, backward)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

// ApplyWithStats reports a column mask that is the union of every
// individual operation's affected column, for a batch with no structural
// operations.
func TestApplyWithStatsColumnMaskIsUnionForDisjointBatch(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.Int(2), record.Int(3)))
	ops := batch(t,
		op("=", record.Int(0), record.Int(10)),
		op("=", record.Int(2), record.Int(30)),
	)

	_, stats, err := update.ApplyWithStats(base, ops)
	require.NoError(t, err)
	require.True(t, stats.ColumnMask.Has(0))
	require.True(t, stats.ColumnMask.Has(2))
	require.False(t, stats.ColumnMask.Has(1))
	require.Equal(t, 2, stats.OpCount)
}

// UpsertApply against an absent base record starts from an empty array.
func TestUpsertApplyAgainstAbsentBase(t *testing.T) {
	ops := batch(t, op("!", record.Int(-1), record.String("only")))

	out, err := update.UpsertApply(nil, ops, nil)
	require.NoError(t, err)
	got := decode(t, out)
	require.Len(t, got.Arr(), 1)
	require.Equal(t, "only", got.Arr()[0].Str())
}

// A failing operation in the middle of an upsert batch is downgraded to a
// log entry and skipped, rather than aborting the operations around it the
// way a non-upsert Apply would.
func TestUpsertApplyDowngradesFailingOperationToLogEntry(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.String("not-numeric"), record.Int(3)))
	ops := batch(t,
		op("+", record.Int(0), record.Int(10)),
		op("+", record.Int(1), record.Int(10)), // arithmetic on a string: fails
		op("+", record.Int(2), record.Int(10)),
	)

	logger := &recordingLogger{}
	out, err := update.UpsertApply(base, ops, logger)
	require.NoError(t, err)

	got := decode(t, out)
	require.Equal(t, int64(11), got.Arr()[0].Int())
	require.Equal(t, "not-numeric", got.Arr()[1].Str())
	require.Equal(t, int64(13), got.Arr()[2].Int())

	require.Len(t, logger.entries, 1)
	require.Equal(t, obslog.LevelWarn, logger.entries[0].Level)
	require.Error(t, logger.entries[0].Err)
}

// UpsertSquash against an empty next batch returns the prior batch
// unchanged.
func TestUpsertSquashWithEmptyNextReturnsPrior(t *testing.T) {
	prior := batch(t, op("=", record.Int(0), record.Int(1)))
	next := batch(t)

	out, err := update.UpsertSquash(prior, next)
	require.NoError(t, err)
	require.Equal(t, prior, out)
}

// A trailing operation on the same field supersedes the prior one,
// regardless of which opcode the prior operation used.
func TestUpsertSquashSupersedesSameField(t *testing.T) {
	prior := batch(t,
		op("+", record.Int(0), record.Int(5)),
		op("=", record.Int(1), record.Int(2)),
	)
	next := batch(t, op("=", record.Int(0), record.Int(99)))

	out, err := update.UpsertSquash(prior, next)
	require.NoError(t, err)

	squashed, _, err := record.Decode(out)
	require.NoError(t, err)
	require.Len(t, squashed.Arr(), 2)
}

// Check with WithDryRun surfaces apply-time failures (here: arithmetic on
// a non-existent field) without producing output.
func TestCheckDryRunSurfacesApplyTimeErrors(t *testing.T) {
	base := encode(t, arr(record.Int(1)))
	ops := batch(t, op("+", record.Int(5), record.Int(1)))

	err := update.Check(base, ops, update.WithDryRun())
	require.Error(t, err)
}

// Check without WithDryRun only validates decode-time shape, so an
// apply-time-only failure (selector out of range) is not reported.
func TestCheckWithoutDryRunSkipsApplyTimeValidation(t *testing.T) {
	base := encode(t, arr(record.Int(1)))
	ops := batch(t, op("+", record.Int(5), record.Int(1)))

	err := update.Check(base, ops)
	require.NoError(t, err)
}

// WithMaxOpsPerBatch rejects batches exceeding the configured limit.
func TestApplyMaxOpsPerBatch(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.Int(2)))
	ops := batch(t,
		op("=", record.Int(0), record.Int(1)),
		op("=", record.Int(1), record.Int(2)),
	)

	_, err := update.Apply(base, ops, update.WithMaxOpsPerBatch(1))
	require.Error(t, err)
}

// Deleting one element and inserting at the freed position preserves the
// array's overall length.
func TestApplyDeleteThenInsertPreservesLength(t *testing.T) {
	base := encode(t, arr(record.Int(1), record.Int(2), record.Int(3)))
	ops := batch(t,
		op("#", record.Int(1)),
	)

	out, err := update.Apply(base, ops)
	require.NoError(t, err)
	got := decode(t, out)
	require.Len(t, got.Arr(), 2)
	require.Equal(t, int64(1), got.Arr()[0].Int())
	require.Equal(t, int64(3), got.Arr()[1].Int())

	reinsert := batch(t, op("!", record.Int(1), record.Int(2)))
	out, err = update.Apply(out, reinsert)
	require.NoError(t, err)
	got = decode(t, out)
	require.Len(t, got.Arr(), 3)
	require.Equal(t, int64(2), got.Arr()[1].Int())
	require.Equal(t, int64(3), got.Arr()[2].Int())
}
