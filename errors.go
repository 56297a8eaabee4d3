package docindex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andreyvit/docindex/schema"
)

var (
	// ErrInvalidIndex is matched by every *ValidationError.
	ErrInvalidIndex = errors.New("invalid index definition")

	// ErrSentinelNotSupported is returned when serializing EMPTY or a null
	// into an index that was created without special-value support.
	ErrSentinelNotSupported = errors.New("index does not support EMPTY or NULL values")

	ErrUniqueViolation = errors.New("unique index violation")
	ErrIndexNotFound   = errors.New("index not found")
	ErrNotFound        = errors.New("row not found")
)

// ValidationError rejects an index definition at compile time.
type ValidationError struct {
	Index string
	Path  string
	Rule  string
	Msg   string
}

func validationErrf(def *Definition, path, rule string, format string, args ...any) error {
	return &ValidationError{def.Name, path, rule, fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidIndex
}

func (e *ValidationError) Error() string {
	var buf strings.Builder
	buf.WriteString("index ")
	buf.WriteString(e.Index)
	if e.Path != "" {
		buf.WriteString(", field ")
		buf.WriteString(e.Path)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	return buf.String()
}

type ExtractReason string

const (
	ReasonTooManyKeys  ExtractReason = "too_many_keys"
	ReasonTypeMismatch ExtractReason = "type_mismatch"
	ReasonGeometry     ExtractReason = "geometry"
	ReasonSentinel     ExtractReason = "sentinel"
)

// ExtractError is a runtime failure to produce keys for a row.
type ExtractError struct {
	Index    string
	Path     string
	Reason   ExtractReason
	Expected string
	Actual   string
	Limit    int
	Err      error
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

func (e *ExtractError) Error() string {
	switch e.Reason {
	case ReasonTooManyKeys:
		return fmt.Sprintf("index %s: row produces more than %d keys", e.Index, e.Limit)
	case ReasonTypeMismatch:
		return fmt.Sprintf("index %s, field %s: expected %s, got %s", e.Index, e.Path, e.Expected, e.Actual)
	default:
		if e.Err != nil {
			return fmt.Sprintf("index %s, field %s: %v", e.Index, e.Path, e.Err)
		}
		return fmt.Sprintf("index %s, field %s: %s", e.Index, e.Path, e.Reason)
	}
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// StoreError adds table, index and primary key context to store failures.
type StoreError struct {
	Table string
	Index string
	Key   []byte
	Msg   string
	Err   error
}

func storeErrf(table *schema.Table, idx *Index, key []byte, err error, format string, args ...any) error {
	e := &StoreError{Table: table.Name, Key: key, Msg: fmt.Sprintf(format, args...), Err: err}
	if idx != nil {
		e.Index = idx.Name()
	}
	return e
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Index != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Index)
	}
	if e.Key != nil {
		buf.WriteByte('/')
		buf.WriteString(hexstr(e.Key))
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
