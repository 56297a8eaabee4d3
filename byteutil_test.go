package docindex

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestGrow(t *testing.T) {
	off, buf := grow([]byte{1}, 3)
	if off != 1 || len(buf) != 4 {
		t.Fatalf("** grow = (off=%d, len=%d), wanted (1, 4)", off, len(buf))
	}
	if actual := hexstr(appendRaw([]byte{0xAA}, []byte{0xBB, 0xCC})); actual != "aabbcc" {
		t.Fatalf("** appendRaw = %s, wanted aabbcc", actual)
	}
	if actual := hexstr(appendVarBytes(nil, []byte("hi"))); actual != "026869" {
		t.Fatalf("** appendVarBytes = %s, wanted 026869", actual)
	}
}

func TestByteDecoder(t *testing.T) {
	buf := []byte{1, 2}
	buf = binary.AppendUvarint(buf, 300)
	buf = appendVarBytes(buf, []byte("hi"))

	d := makeByteDecoder(buf)
	b, _ := d.Byte()
	raw, _ := d.Raw(1)
	n, _ := d.Uvarinti()
	s, err := d.VarBytes()
	if err != nil || b != 1 || hexstr(raw) != "02" || n != 300 || string(s) != "hi" || !d.Empty() {
		t.Fatalf("** decoded (%d, %x, %d, %q, %v), empty=%v, wanted (1, 02, 300, \"hi\", nil), empty=true", b, raw, n, s, err, d.Empty())
	}
	if d.Off() != len(buf) {
		t.Fatalf("** Off = %d, wanted %d", d.Off(), len(buf))
	}
}

func TestByteDecoder_Errors(t *testing.T) {
	t.Run("invalid uvarint", func(t *testing.T) {
		d := makeByteDecoder([]byte{0x80})
		_, err := d.Uvarint()
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("** Uvarint err = %T %v, wanted *DataError", err, err)
		}
		if de.Off != 0 {
			t.Fatalf("** DataError.Off = %d, wanted 0", de.Off)
		}
	})

	t.Run("length too large", func(t *testing.T) {
		d := makeByteDecoder(binary.AppendUvarint(nil, math.MaxInt32+1))
		if _, err := d.Uvarinti(); err == nil {
			t.Fatalf("** Uvarinti err = nil, wanted error")
		}
	})

	t.Run("short var bytes", func(t *testing.T) {
		d := makeByteDecoder([]byte{5, 'h', 'i'})
		_, err := d.VarBytes()
		if err == nil || !strings.Contains(err.Error(), "not enough data: 2 bytes remaining, 5 wanted") {
			t.Fatalf("** VarBytes err = %v", err)
		}
	})

	t.Run("Byte at end", func(t *testing.T) {
		d := makeByteDecoder([]byte{7})
		if v, err := d.Byte(); v != 7 || err != nil {
			t.Fatalf("** Byte = (%d, %v), wanted (7, nil)", v, err)
		}
		_, err := d.Byte()
		if err == nil || !strings.Contains(err.Error(), "0 bytes remaining, 1 wanted") {
			t.Fatalf("** Byte err = %v", err)
		}
	})
}
