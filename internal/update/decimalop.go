// Arithmetic operator semantics ('+' and '-'): base spec §4.2's promotion
// chain "int -> float -> double -> decimal", using
// github.com/cockroachdb/apd/v3 for the decimal tier so that overflow is
// detected rather than silently wrapped. Decimal results are rounded to 38
// significant digits; an inexact (rounded) result is not reported.
package update

import (
	"math"

	"github.com/cockroachdb/apd/v3"
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

var decimalCtx = apd.BaseContext.WithPrecision(38)

// arith applies '+'/'-' to base using rhs, promoting to the narrowest
// shared representation capable of holding both operands exactly.
func arith(add bool, base, rhs record.Value) (record.Value, error) {
	if base.Kind() == record.KindDecimal || rhs.Kind() == record.KindDecimal {
		return arithDecimal(add, base, rhs)
	}
	if base.Kind() == record.KindFloat64 || rhs.Kind() == record.KindFloat64 ||
		base.Kind() == record.KindFloat32 || rhs.Kind() == record.KindFloat32 {
		return arithFloat(add, base, rhs)
	}
	return arithInt(add, base, rhs)
}

// arithInt performs '+'/'-' on integer operands, failing hard with
// UpdateIntegerOverflow rather than silently promoting to decimal: base
// spec §4.2 lists overflow as one of arithmetic's defined failure modes,
// not a promotion trigger (promotion is driven by the *declared* kind of
// the operands, per the "int -> float -> double -> decimal" chain).
func arithInt(add bool, base, rhs record.Value) (record.Value, error) {
	if base.Kind() == record.KindUint {
		a, b := base.Uint(), rhs.Uint()
		var r uint64
		var overflow bool
		if add {
			r = a + b
			overflow = r < a
		} else {
			overflow = b > a
			r = a - b
		}
		if overflow {
			return record.Value{}, errs.New(errs.UpdateIntegerOverflow, "update: unsigned integer arithmetic overflowed")
		}
		return record.Uint(r), nil
	}

	a, b := base.Int(), rhs.Int()
	var r int64
	var overflow bool
	if add {
		r = a + b
		overflow = (b > 0 && r < a) || (b < 0 && r > a)
	} else {
		r = a - b
		overflow = (b < 0 && r < a) || (b > 0 && r > a)
	}
	if overflow {
		return record.Value{}, errs.New(errs.UpdateIntegerOverflow, "update: integer arithmetic overflowed")
	}
	return record.Int(r), nil
}

func arithFloat(add bool, base, rhs record.Value) (record.Value, error) {
	a, b := base.Float64(), rhs.Float64()
	var r float64
	if add {
		r = a + b
	} else {
		r = a - b
	}
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return record.Value{}, errs.New(errs.UpdateIntegerOverflow, "update: floating-point arithmetic produced a non-finite result")
	}
	if base.Kind() == record.KindFloat32 && rhs.Kind() == record.KindFloat32 {
		return record.Float32(float32(r)), nil
	}
	return record.Float64(r), nil
}

func arithDecimal(add bool, base, rhs record.Value) (record.Value, error) {
	a, err := decimalFromValue(base)
	if err != nil {
		return record.Value{}, err
	}
	b, err := decimalFromValue(rhs)
	if err != nil {
		return record.Value{}, err
	}
	r := new(apd.Decimal)
	var cond apd.Condition
	if add {
		cond, err = decimalCtx.Add(r, a, b)
	} else {
		cond, err = decimalCtx.Sub(r, a, b)
	}
	if err != nil {
		return record.Value{}, errs.Wrap(errs.UpdateDecimalOverflow, "update: decimal arithmetic", err)
	}
	if cond.Overflow() || cond.Underflow() {
		return record.Value{}, errs.New(errs.UpdateDecimalOverflow, "update: decimal result overflowed")
	}
	return record.Decimal(r), nil
}

// bitwise applies '&'/'|'/'^' to an unsigned integer base. A negative
// KindInt source is rejected rather than silently two's-complement-cast to
// a huge unsigned value by Value.Uint(), mirroring the same check decode.go
// already applies to the operator's argument.
func bitwise(op Opcode, base record.Value, rhs uint64) (record.Value, error) {
	if base.Kind() != record.KindUint && base.Kind() != record.KindInt {
		return record.Value{}, errs.New(errs.UpdateFieldType, "update: bitwise operand must be an integer")
	}
	if base.Kind() == record.KindInt && base.Int() < 0 {
		return record.Value{}, errs.New(errs.UpdateFieldType, "update: bitwise operand must not be negative")
	}
	a := base.Uint()
	var r uint64
	switch op {
	case OpAnd:
		r = a & rhs
	case OpOr:
		r = a | rhs
	case OpXor:
		r = a ^ rhs
	}
	return record.Uint(r), nil
}
