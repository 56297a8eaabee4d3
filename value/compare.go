package value

import (
	"math"
	"strings"
)

// Compare orders values the way index keys sort: concrete values first, then
// EMPTY < JSON_NULL < NULL. Numbers of different kinds compare numerically.
// Values of unrelated kinds are ordered number < string < boolean < enum <
// timestamp < complex.
func Compare(a, b Value) int {
	ak, bk := a.Kind(), b.Kind()
	if ak.IsSentinel() || bk.IsSentinel() {
		switch {
		case ak.IsSentinel() && bk.IsSentinel():
			return cmpInt(int(ak), int(bk))
		case ak.IsSentinel():
			return 1
		default:
			return -1
		}
	}
	if ra, rb := rank(ak), rank(bk); ra != rb {
		return cmpInt(ra, rb)
	}
	switch av := a.(type) {
	case Int, Long, Float, Double, Number:
		return compareNumeric(a, b)
	case String:
		return strings.Compare(string(av), string(b.(String)))
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Enum:
		return cmpInt(av.Ordinal, b.(Enum).Ordinal)
	case Timestamp:
		return av.Time.Compare(b.(Timestamp).Time)
	default:
		if ak != bk {
			return cmpInt(int(ak), int(bk))
		}
		return strings.Compare(a.String(), b.String())
	}
}

func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

func rank(k Kind) int {
	switch {
	case k.IsNumeric():
		return 0
	case k == KindString:
		return 1
	case k == KindBool:
		return 2
	case k == KindEnum:
		return 3
	case k == KindTimestamp:
		return 4
	default:
		return 5
	}
}

func compareNumeric(a, b Value) int {
	ai, aInt := integral(a)
	bi, bInt := integral(b)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	if af, ok := floating(a); ok {
		if bf, ok := floating(b); ok {
			return compareFloats(af, bf)
		}
	}
	an, aerr := ToNumber(a)
	bn, berr := ToNumber(b)
	if aerr != nil || berr != nil {
		af, _ := ToFloat64(a)
		bf, _ := ToFloat64(b)
		return compareFloats(af, bf)
	}
	return CompareNumbers(an, bn)
}

func integral(v Value) (int64, bool) {
	switch v := v.(type) {
	case Int:
		return int64(v), true
	case Long:
		return int64(v), true
	default:
		return 0, false
	}
}

func floating(v Value) (float64, bool) {
	switch v := v.(type) {
	case Float:
		return float64(v), true
	case Double:
		return float64(v), true
	default:
		return 0, false
	}
}

// compareFloats sorts NaN above every other float.
func compareFloats(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ToNumber converts any numeric value to a decimal.
func ToNumber(v Value) (Number, error) {
	switch v := v.(type) {
	case Int:
		return NumberFromInt64(int64(v)), nil
	case Long:
		return NumberFromInt64(int64(v)), nil
	case Float:
		return NumberFromFloat(float64(v), 32)
	case Double:
		return NumberFromFloat(float64(v), 64)
	case Number:
		return v, nil
	default:
		return Number{}, &KindError{Expected: KindNumber, Actual: v.Kind()}
	}
}

func ToFloat64(v Value) (float64, bool) {
	switch v := v.(type) {
	case Int:
		return float64(v), true
	case Long:
		return float64(v), true
	case Float:
		return float64(v), true
	case Double:
		return float64(v), true
	case Number:
		return v.Float64(), true
	default:
		return 0, false
	}
}

type KindError struct {
	Expected Kind
	Actual   Kind
}

func (e *KindError) Error() string {
	return "expected " + e.Expected.String() + ", got " + e.Actual.String()
}
