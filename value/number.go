package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNotFinite = errors.New("NaN and infinities have no decimal representation")

// Number is an arbitrary-precision decimal, kept normalized as
// 0.<digits> × 10^exp with no leading or trailing zero digits. The zero value
// is the number zero.
type Number struct {
	neg    bool
	digits string
	exp    int32
}

func (Number) Kind() Kind { return KindNumber }
func (Number) isValue()   {}

func ParseNumber(s string) (Number, error) {
	orig := s
	var n Number
	if s == "" {
		return n, fmt.Errorf("invalid number %q", orig)
	}
	switch s[0] {
	case '-':
		n.neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	var e int64
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		var err error
		e, err = strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil {
			return Number{}, fmt.Errorf("invalid number %q: bad exponent", orig)
		}
		s = s[:i]
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return Number{}, fmt.Errorf("invalid number %q", orig)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Number{}, fmt.Errorf("invalid number %q", orig)
	}

	digits := intPart + fracPart
	exp := int64(len(intPart)) + e
	for len(digits) > 0 && digits[0] == '0' {
		digits = digits[1:]
		exp--
	}
	digits = strings.TrimRight(digits, "0")
	if digits == "" {
		return Number{}, nil
	}
	if exp > math.MaxInt32 || exp < math.MinInt32 {
		return Number{}, fmt.Errorf("invalid number %q: exponent out of range", orig)
	}
	n.digits = digits
	n.exp = int32(exp)
	return n, nil
}

func MustParseNumber(s string) Number {
	n, err := ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func NumberFromInt64(v int64) Number {
	return MustParseNumber(strconv.FormatInt(v, 10))
}

// NumberFromFloat uses the shortest decimal that round-trips at the given
// bit size (32 or 64).
func NumberFromFloat(v float64, bitSize int) (Number, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}, ErrNotFinite
	}
	return ParseNumber(strconv.FormatFloat(v, 'e', -1, bitSize))
}

// NewNumber builds a number from its normalized parts; used by decoders.
func NewNumber(neg bool, digits string, exp int32) (Number, error) {
	if digits == "" {
		return Number{}, nil
	}
	if digits[0] == '0' || digits[len(digits)-1] == '0' || !allDigits(digits) {
		return Number{}, fmt.Errorf("non-normalized decimal digits %q", digits)
	}
	return Number{neg: neg, digits: digits, exp: exp}, nil
}

func (n Number) IsZero() bool     { return n.digits == "" }
func (n Number) IsNegative() bool { return n.neg && n.digits != "" }

// Digits returns the significant digits; empty for zero.
func (n Number) Digits() string { return n.digits }

// Exponent is e in 0.<digits> × 10^e.
func (n Number) Exponent() int32 { return n.exp }

func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(n.String(), 64)
	return f
}

// Int64 returns the value if it is integral and fits.
func (n Number) Int64() (int64, bool) {
	if n.digits == "" {
		return 0, true
	}
	if n.exp < int32(len(n.digits)) || n.exp > 19 {
		return 0, false
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	return v, err == nil
}

func (n Number) String() string {
	if n.digits == "" {
		return "0"
	}
	var buf strings.Builder
	if n.neg {
		buf.WriteByte('-')
	}
	d, e := n.digits, int(n.exp)
	switch {
	case e <= 0 && e > -6:
		buf.WriteString("0.")
		buf.WriteString(strings.Repeat("0", -e))
		buf.WriteString(d)
	case e > 0 && e <= 21:
		if len(d) <= e {
			buf.WriteString(d)
			buf.WriteString(strings.Repeat("0", e-len(d)))
		} else {
			buf.WriteString(d[:e])
			buf.WriteByte('.')
			buf.WriteString(d[e:])
		}
	default:
		buf.WriteByte(d[0])
		if len(d) > 1 {
			buf.WriteByte('.')
			buf.WriteString(d[1:])
		}
		buf.WriteByte('e')
		buf.WriteString(strconv.Itoa(e - 1))
	}
	return buf.String()
}

func CompareNumbers(a, b Number) int {
	as, bs := a.sign(), b.sign()
	if as != bs {
		return cmpInt(as, bs)
	}
	if as == 0 {
		return 0
	}
	c := compareMagnitude(a, b)
	if as < 0 {
		return -c
	}
	return c
}

func (n Number) sign() int {
	switch {
	case n.digits == "":
		return 0
	case n.neg:
		return -1
	default:
		return 1
	}
}

func compareMagnitude(a, b Number) int {
	if a.exp != b.exp {
		return cmpInt(int(a.exp), int(b.exp))
	}
	return strings.Compare(a.digits, b.digits)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
