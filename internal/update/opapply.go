// Scalar operator dispatch: applies a single non-structural operation
// ('=', '+', '-', '&', '|', '^', ':') to a base value. '!' and '#' are
// structural (they shift siblings) and are handled by the array/map
// materializer in serialize.go instead.
package update

import (
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

func applyScalar(op *Op, base record.Value, hasBase bool) (record.Value, error) {
	switch op.Code {
	case OpSet:
		return op.SetValue, nil

	case OpAdd, OpSub:
		if !hasBase {
			return record.Value{}, errs.New(errs.NoSuchField, "update: arithmetic on a non-existent field")
		}
		if !base.IsNumeric() {
			return record.Value{}, errs.New(errs.UpdateFieldType, "update: arithmetic operand must be numeric")
		}
		return arith(op.Code == OpAdd, base, op.ArithValue)

	case OpAnd, OpOr, OpXor:
		if !hasBase {
			return record.Value{}, errs.New(errs.NoSuchField, "update: bitwise op on a non-existent field")
		}
		return bitwise(op.Code, base, op.BitValue)

	case OpSplice:
		if !hasBase {
			return record.Value{}, errs.New(errs.NoSuchField, "update: splice on a non-existent field")
		}
		return splice(base, op.SpliceOffset, op.SpliceCut, op.SplicePaste)

	default:
		return record.Value{}, errs.New(errs.UnsupportedUpdate, "update: operator not valid in a scalar position")
	}
}
