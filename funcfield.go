package docindex

import (
	"strings"
	"unicode/utf8"

	"github.com/andreyvit/docindex/schema"
	"github.com/andreyvit/docindex/value"
)

// FuncKind is a function applied to a field value before it becomes a key
// component, as in `lower(name)` or `year(created)`.
type FuncKind uint8

const (
	FuncNone FuncKind = iota
	FuncUnknown
	FuncLower
	FuncUpper
	FuncTrim
	FuncLength
	FuncYear
	FuncMonth
	FuncDay
	FuncHour
)

var funcsByName = map[string]FuncKind{
	"lower":  FuncLower,
	"upper":  FuncUpper,
	"trim":   FuncTrim,
	"length": FuncLength,
	"year":   FuncYear,
	"month":  FuncMonth,
	"day":    FuncDay,
	"hour":   FuncHour,
}

func lookupFunc(name string) FuncKind {
	if k, ok := funcsByName[strings.ToLower(name)]; ok {
		return k
	}
	return FuncUnknown
}

func (k FuncKind) String() string {
	for name, fk := range funcsByName {
		if fk == k {
			return name
		}
	}
	if k == FuncNone {
		return ""
	}
	return "unknown"
}

func (k FuncKind) inputKind() schema.Kind {
	switch k {
	case FuncLower, FuncUpper, FuncTrim, FuncLength:
		return schema.KindString
	case FuncYear, FuncMonth, FuncDay, FuncHour:
		return schema.KindTimestamp
	default:
		return schema.KindInvalid
	}
}

func (k FuncKind) resultType() schema.AnyType {
	switch k {
	case FuncLower, FuncUpper, FuncTrim:
		return schema.TString
	default:
		return schema.TInt
	}
}

// applyFunc passes sentinels through. A value of the wrong kind is returned
// unchanged so that serialization reports the mismatch.
func applyFunc(k FuncKind, v value.Value) value.Value {
	switch v := v.(type) {
	case value.String:
		s := string(v)
		switch k {
		case FuncLower:
			return value.String(strings.ToLower(s))
		case FuncUpper:
			return value.String(strings.ToUpper(s))
		case FuncTrim:
			return value.String(strings.TrimSpace(s))
		case FuncLength:
			return value.Int(utf8.RuneCountInString(s))
		}
	case value.Timestamp:
		t := v.Time.UTC()
		switch k {
		case FuncYear:
			return value.Int(t.Year())
		case FuncMonth:
			return value.Int(t.Month())
		case FuncDay:
			return value.Int(t.Day())
		case FuncHour:
			return value.Int(t.Hour())
		}
	}
	return v
}
