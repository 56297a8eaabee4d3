package docindex

import (
	"strconv"
	"strings"

	"github.com/andreyvit/docindex/value"
)

// FormatTuple renders t as pipe-separated components, with sentinels in
// upper case and nil slots of a partial tuple omitted.
func FormatTuple(t Tuple) string {
	var buf strings.Builder
	for i, v := range t {
		if v == nil {
			break
		}
		if i > 0 {
			buf.WriteByte('|')
		}
		buf.WriteString(formatComponent(v))
	}
	return buf.String()
}

func formatComponent(v value.Value) string {
	switch v := v.(type) {
	case value.String:
		s := string(v)
		if s == "" || isSentinelName(s) || strings.ContainsAny(s, "|\"\\") || strings.IndexFunc(s, func(r rune) bool { return r < ' ' }) >= 0 {
			return strconv.Quote(s)
		}
		return s
	default:
		return v.String()
	}
}

func isSentinelName(s string) bool {
	return s == value.Empty.String() || s == value.Null.String() || s == value.JSONNull.String()
}

// FormatKey decodes a full or partial key of idx and renders it with
// FormatTuple.
func (idx *Index) FormatKey(b []byte) (string, error) {
	t, err := idx.Deserialize(b, true)
	if err != nil {
		return "", err
	}
	return FormatTuple(t), nil
}
