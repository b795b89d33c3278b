package types

import (
	"fmt"

	"github.com/queryscript/qs"
)

// Op is a binary operator subject to arithmetic/comparison coercion
// (spec §4.B, §4.F "Binary ops").
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"

	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="

	OpAnd Op = "AND"
	OpOr  Op = "OR"
)

func (o Op) isArithmetic() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	default:
		return false
	}
}

func (o Op) isComparison() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

func (o Op) isLogical() bool {
	return o == OpAnd || o == OpOr
}

// numericRank orders atomic numeric types from narrowest to widest, so
// the coercion table can pick the common supertype as max(rank(l),
// rank(r)). Decimal is the widest: it never loses precision when an
// integer or float is cast into it.
var numericRank = map[AtomicType]int{
	AtomInt8:    0,
	AtomInt16:   1,
	AtomInt32:   2,
	AtomInt64:   3,
	AtomFloat32: 4,
	AtomFloat64: 5,
	AtomDecimal: 6,
}

// Cast is an optional cast to insert around one side of a binary
// expression during SQL lowering (spec §4.B: "[optional cast for left,
// optional cast for right]"). A nil *Cast means no cast is needed.
type Cast struct {
	To AtomicType
}

// CoerceResult is the outcome of consulting the coercion table: the
// result type of the operator, plus the cast (if any) each operand
// needs.
type CoerceResult struct {
	ResultType AtomicType
	LeftCast   *Cast
	RightCast  *Cast
}

// Coerce implements spec §4.B's numeric coercion table. It fails with
// ErrWrongType if the operator/operand combination has no entry.
func Coerce(op Op, left, right AtomicType) (CoerceResult, error) {
	switch {
	case op.isArithmetic():
		return coerceArithmetic(op, left, right)
	case op.isComparison():
		return coerceComparison(left, right)
	case op.isLogical():
		return coerceLogical(left, right)
	default:
		return CoerceResult{}, fmt.Errorf("%w: unsupported operator %q", qs.ErrUnimplemented, op)
	}
}

func coerceArithmetic(op Op, left, right AtomicType) (CoerceResult, error) {
	if !left.isNumeric() || !right.isNumeric() {
		return CoerceResult{}, fmt.Errorf("%w: %q requires numeric operands, got %s and %s", qs.ErrWrongType, op, left, right)
	}

	common := widerNumeric(left, right)

	return CoerceResult{
		ResultType: common,
		LeftCast:   castIfDifferent(left, common),
		RightCast:  castIfDifferent(right, common),
	}, nil
}

func coerceComparison(left, right AtomicType) (CoerceResult, error) {
	if left.isNumeric() && right.isNumeric() {
		common := widerNumeric(left, right)

		return CoerceResult{
			ResultType: AtomBool,
			LeftCast:   castIfDifferent(left, common),
			RightCast:  castIfDifferent(right, common),
		}, nil
	}

	if left != right && left != AtomNull && right != AtomNull {
		return CoerceResult{}, fmt.Errorf("%w: cannot compare %s with %s", qs.ErrWrongType, left, right)
	}

	return CoerceResult{ResultType: AtomBool}, nil
}

func coerceLogical(left, right AtomicType) (CoerceResult, error) {
	for _, t := range []AtomicType{left, right} {
		if t != AtomBool && t != AtomNull {
			return CoerceResult{}, fmt.Errorf("%w: logical operator requires bool operands, got %s", qs.ErrWrongType, t)
		}
	}

	return CoerceResult{ResultType: AtomBool}, nil
}

func widerNumeric(a, b AtomicType) AtomicType {
	if numericRank[a] >= numericRank[b] {
		return a
	}

	return b
}

func castIfDifferent(from, to AtomicType) *Cast {
	if from == to {
		return nil
	}

	return &Cast{To: to}
}

// CoerceEquality finds the common type among a slice of branch types
// (CASE's THEN/ELSE arms, spec §4.F "CASE"), using pairwise Coerce with
// OpEq and keeping the result type, not bool — equality-coercion here
// means "the widest type all branches agree can represent the value",
// not "compare for equality".
func CoerceEquality(branches []AtomicType) (AtomicType, error) {
	if len(branches) == 0 {
		return AtomNull, nil
	}

	common := branches[0]

	for _, b := range branches[1:] {
		if common == AtomNull {
			common = b
			continue
		}

		if b == AtomNull {
			continue
		}

		if common.isNumeric() && b.isNumeric() {
			common = widerNumeric(common, b)
			continue
		}

		if common != b {
			return AtomNull, fmt.Errorf("%w: CASE branches disagree: %s vs %s", qs.ErrWrongType, common, b)
		}
	}

	return common, nil
}
