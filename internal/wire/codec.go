package wire

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// encoder appends proto3 fields. Zero values are omitted, matching what a
// generated proto3 marshaller emits.
type encoder struct {
	buf []byte
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if !v {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeBool(v))
}

func (e *encoder) uint32(num protowire.Number, v uint32) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(v))
}

func (e *encoder) int64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(v)) //nolint:gosec // proto int64 is two's complement on the wire
}

func (e *encoder) double(num protowire.Number, v float64) {
	if v == 0 && !math.Signbit(v) {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

// message writes an embedded message. Repeated elements are always written,
// even when empty, so list length is preserved.
func (e *encoder) message(num protowire.Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// stringMap writes a map<string,string> as repeated entry messages with
// key=1 and value=2. Keys are sorted so output is deterministic.
func (e *encoder) stringMap(num protowire.Number, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var entry encoder
		entry.string(1, k)
		entry.string(2, m[k])
		e.message(num, entry.buf)
	}
}

// field is a single decoded tag plus its raw value bytes.
type field struct {
	num protowire.Number
	typ protowire.Type
	raw []byte
}

// forEachField walks every field in b. Unknown field numbers are the
// caller's to ignore; a structurally invalid buffer is ErrMalformed.
func forEachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		if err := fn(field{num: num, typ: typ, raw: b[:m]}); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, f.num, f.typ, typ)
	}
	return nil
}

func (f field) bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	v, n := protowire.ConsumeBytes(f.raw)
	if n < 0 {
		return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, protowire.ParseError(n))
	}
	return v, nil
}

func (f field) string() (string, error) {
	v, err := f.bytes()
	return string(v), err
}

func (f field) varint() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(f.raw)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, protowire.ParseError(n))
	}
	return v, nil
}

func (f field) bool() (bool, error) {
	v, err := f.varint()
	return protowire.DecodeBool(v), err
}

func (f field) uint32() (uint32, error) {
	v, err := f.varint()
	return uint32(v), err //nolint:gosec // proto uint32 truncates by definition
}

func (f field) int64() (int64, error) {
	v, err := f.varint()
	return int64(v), err //nolint:gosec // proto int64 is two's complement on the wire
}

func (f field) double() (float64, error) {
	if err := f.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeFixed64(f.raw)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, protowire.ParseError(n))
	}
	return math.Float64frombits(v), nil
}

// mapEntry decodes one map<string,string> entry into m.
func (f field) mapEntry(m map[string]string) error {
	b, err := f.bytes()
	if err != nil {
		return err
	}
	var key, value string
	err = forEachField(b, func(ef field) error {
		var err error
		switch ef.num {
		case 1:
			key, err = ef.string()
		case 2:
			value, err = ef.string()
		}
		return err
	})
	if err != nil {
		return err
	}
	m[key] = value
	return nil
}
