package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// FromGo converts decoded Go data (as produced by encoding/json, msgpack or
// hand-written literals) into a Value. Objects become Maps and nil becomes
// JSONNull; schema.Table.Conform turns them into typed records later.
func FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return JSONNull, nil
	case *nullExt:
		return Null, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return intValue(int64(v)), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return intValue(v), nil
	case uint:
		return uintValue(uint64(v)), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return intValue(int64(v)), nil
	case uint64:
		return uintValue(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Double(v), nil
	case json.Number:
		return jsonNumber(v)
	case string:
		return String(v), nil
	case []byte:
		return String(v), nil
	case time.Time:
		return TimestampOf(v), nil
	case []any:
		arr := make(Array, len(v))
		for i, item := range v {
			iv, err := FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = iv
		}
		return arr, nil
	case map[string]any:
		entries := make(map[string]Value, len(v))
		for k, item := range v {
			iv, err := FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			entries[k] = iv
		}
		return NewMap(entries), nil
	case map[any]any:
		entries := make(map[string]Value, len(v))
		for k, item := range v {
			ks := fmt.Sprint(k)
			iv, err := FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ks, err)
			}
			entries[ks] = iv
		}
		return NewMap(entries), nil
	default:
		return nil, fmt.Errorf("unsupported Go type %T", v)
	}
}

func MustFromGo(v any) Value {
	r, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return r
}

func intValue(v int64) Value {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return Int(v)
	}
	return Long(v)
}

func uintValue(v uint64) Value {
	if v <= math.MaxInt64 {
		return intValue(int64(v))
	}
	return NumberFromInt64Unsigned(v)
}

func NumberFromInt64Unsigned(v uint64) Number {
	return MustParseNumber(strconv.FormatUint(v, 10))
}

func jsonNumber(s json.Number) (Value, error) {
	str := string(s)
	if !strings.ContainsAny(str, ".eE") {
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return intValue(i), nil
		}
		n, err := ParseNumber(str)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		n, nerr := ParseNumber(str)
		if nerr != nil {
			return nil, nerr
		}
		return n, nil
	}
	return Double(f), nil
}

// ToGo is the inverse of FromGo, up to the kind information plain Go data
// cannot carry: records become maps, decimals become strings and all three
// sentinels become nil.
func ToGo(v Value) any {
	return toGo(v, false)
}

func toGo(v Value, keepNull bool) any {
	switch v := v.(type) {
	case sentinel:
		if keepNull && Kind(v) == KindNull {
			return &nullExt{}
		}
		return nil
	case *Record:
		m := make(map[string]any, v.Len())
		for _, f := range v.Fields() {
			m[f.Name] = toGo(f.Value, keepNull)
		}
		return m
	case *Map:
		m := make(map[string]any, v.Len())
		for _, k := range v.Keys() {
			item, _ := v.Get(k)
			m[k] = toGo(item, keepNull)
		}
		return m
	case Array:
		a := make([]any, len(v))
		for i, item := range v {
			a[i] = toGo(item, keepNull)
		}
		return a
	case Int:
		return int32(v)
	case Long:
		return int64(v)
	case Float:
		return float32(v)
	case Double:
		return float64(v)
	case Number:
		return v.String()
	case String:
		return string(v)
	case Bool:
		return bool(v)
	case Enum:
		if v.Symbol != "" {
			return v.Symbol
		}
		return v.Ordinal
	case Timestamp:
		return v.Time
	default:
		panic(fmt.Errorf("unhandled value %T", v))
	}
}

// ParseJSON decodes exactly one JSON document, keeping integers exact.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	return FromGo(raw)
}

func DecodeMsgpack(data []byte) (Value, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// EncodeMsgpack encodes v for DecodeMsgpack. Unlike JSON, the encoding keeps
// NULL apart from JSON null.
func EncodeMsgpack(v Value) ([]byte, error) {
	return msgpack.Marshal(toGo(v, true))
}

const nullExtID = 1

// nullExt is the msgpack extension that carries NULL.
type nullExt struct{}

func init() {
	msgpack.RegisterExt(nullExtID, (*nullExt)(nil))
}

func (*nullExt) MarshalMsgpack() ([]byte, error) {
	return []byte{0}, nil
}

func (*nullExt) UnmarshalMsgpack(b []byte) error {
	if len(b) != 1 || b[0] != 0 {
		return fmt.Errorf("invalid NULL extension payload %x", b)
	}
	return nil
}
