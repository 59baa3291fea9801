// Operation batch decode: an array of per-operation arrays, each shaped
// `[opcode, selector, args...]`, itself encoded in the same self-describing
// binary record format the engine updates (base spec §6: "Byte-level
// compatibility with the input format must be preserved so that operations
// produced by one process can be applied by another").
package update

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

// decodeBatch parses the wire-encoded operations batch into a slice of Op.
// It performs every decode-time validation base spec §4.2/§7 requires
// (unknown opcode, wrong argument arity/type, malformed path); it does not
// resolve selectors against a concrete record, since that requires the
// root array's length (apply-time, not decode-time, per §4.2 "Failure
// semantics").
func decodeBatch(batch []byte) ([]Op, error) {
	top, _, err := record.Decode(batch)
	if err != nil {
		return nil, errs.Wrap(errs.IllegalParams, "update: decode batch", err)
	}
	if top.Kind() != record.KindArray {
		return nil, errs.New(errs.IllegalParams, "update: operations batch must be an array")
	}

	ops := make([]Op, 0, len(top.Arr()))
	for i, elem := range top.Arr() {
		op, err := decodeOp(elem)
		if err != nil {
			return nil, errs.Wrap(errs.IllegalParams, fmt.Sprintf("update: operation %d", i), err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeOp(elem record.Value) (Op, error) {
	if elem.Kind() != record.KindArray || len(elem.Arr()) < 2 {
		return Op{}, errs.New(errs.IllegalParams, "operation must be an array of at least [opcode, selector]")
	}
	fields := elem.Arr()

	if fields[0].Kind() != record.KindString || len(fields[0].Str()) != 1 {
		return Op{}, errs.New(errs.IllegalParams, "opcode must be a single-character string")
	}
	code := Opcode(fields[0].Str()[0])
	if !code.valid() {
		return Op{}, errs.New(errs.IllegalParams, fmt.Sprintf("unknown opcode %q", fields[0].Str()))
	}

	sel, err := decodeSelector(fields[1])
	if err != nil {
		return Op{}, err
	}

	op := Op{Code: code, Selector: sel}
	args := fields[2:]

	switch code {
	case OpSet, OpInsert:
		if len(args) != 1 {
			return Op{}, errs.New(errs.IllegalParams, "'='/'!' require exactly one value argument")
		}
		op.SetValue = args[0]

	case OpDelete:
		if len(args) > 1 {
			return Op{}, errs.New(errs.IllegalParams, "'#' takes at most one count argument")
		}
		count := int64(1)
		if len(args) == 1 {
			if !args[0].IsNumeric() {
				return Op{}, errs.New(errs.IllegalParams, "'#' count must be numeric")
			}
			count = args[0].Int()
		}
		if count == 0 {
			return Op{}, errs.New(errs.IllegalParams, "'#' count of 0 is invalid")
		}
		op.DeleteCount = count

	case OpAdd, OpSub:
		if len(args) != 1 {
			return Op{}, errs.New(errs.IllegalParams, "'+'/'-' require exactly one numeric argument")
		}
		if !args[0].IsNumeric() {
			return Op{}, errs.New(errs.UpdateFieldType, "'+'/'-' argument must be numeric")
		}
		op.ArithValue = args[0]

	case OpAnd, OpOr, OpXor:
		if len(args) != 1 || !args[0].IsNumeric() {
			return Op{}, errs.New(errs.IllegalParams, "'&'/'|'/'^' require one unsigned integer argument")
		}
		if args[0].Kind() == record.KindInt && args[0].Int() < 0 {
			return Op{}, errs.New(errs.UpdateFieldType, "'&'/'|'/'^' argument must not be negative")
		}
		op.BitValue = args[0].Uint()

	case OpSplice:
		if len(args) != 3 {
			return Op{}, errs.New(errs.IllegalParams, "':' requires (offset, cut-length, paste) arguments")
		}
		if !args[0].IsNumeric() || !args[1].IsNumeric() {
			return Op{}, errs.New(errs.IllegalParams, "':' offset/cut-length must be numeric")
		}
		if args[2].Kind() != record.KindString && args[2].Kind() != record.KindBinary {
			return Op{}, errs.New(errs.IllegalParams, "':' paste must be a string or binary value")
		}
		op.SpliceOffset = args[0].Int()
		op.SpliceCut = args[1].Int()
		if args[2].Kind() == record.KindString {
			op.SplicePaste = []byte(args[2].Str())
		} else {
			op.SplicePaste = args[2].Bin()
		}
	}

	return op, nil
}

func decodeSelector(v record.Value) (selector, error) {
	switch v.Kind() {
	case record.KindInt, record.KindUint:
		return selector{isPath: false, index: int(v.Int())}, nil
	case record.KindString:
		toks, err := tokenizePath(v.Str())
		if err != nil {
			return selector{}, err
		}
		if len(toks) == 0 {
			return selector{}, errs.New(errs.IllegalParams, "path selector must not be empty")
		}
		return selector{isPath: true, path: toks, raw: v.Str()}, nil
	default:
		return selector{}, errs.New(errs.IllegalParams, "selector must be an integer or a path string")
	}
}

// adjustIndex converts a caller-supplied index (in the caller's index-base
// convention) to the engine's internal 0-based convention, and reports
// whether the caller's original index was negative (meaning "count from
// the tail", regardless of index base). Only a caller-negative index is
// ever tail-relative: a non-negative index that happens to go negative
// after base adjustment (selector 0 under OneBased) is simply out of
// range (base spec §8 "Operation on field index 0 with index-base 1 fails
// with NoSuchField"), not a tail reference.
func adjustIndex(idx int, base IndexBase) (adjusted int, fromTail bool) {
	if idx < 0 {
		return idx, true
	}
	return idx - int(base), false
}

// decimalFromValue promotes any numeric record.Value to *apd.Decimal, used
// once an arithmetic operation's promotion chain (int -> float -> double ->
// decimal) reaches decimal (base spec §4.2).
func decimalFromValue(v record.Value) (*apd.Decimal, error) {
	if v.Kind() == record.KindDecimal {
		return v.Dec(), nil
	}
	d := new(apd.Decimal)
	switch v.Kind() {
	case record.KindInt:
		d.SetInt64(v.Int())
	case record.KindUint:
		if _, _, err := d.SetString(fmt.Sprintf("%d", v.Uint())); err != nil {
			return nil, errs.Wrap(errs.UpdateFieldType, "decimal: parse unsigned", err)
		}
	case record.KindFloat32, record.KindFloat64:
		s := fmt.Sprintf("%g", v.Float64())
		if _, _, err := d.SetString(s); err != nil {
			return nil, errs.Wrap(errs.UpdateFieldType, "decimal: parse float", err)
		}
	default:
		return nil, errs.New(errs.UpdateFieldType, "decimal: value is not numeric")
	}
	return d, nil
}
