package repositories

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format, field by field, so stored
// values stay readable by any protobuf decoder and tolerate added fields.

type recordWriter struct {
	b []byte
}

func (w *recordWriter) string(num protowire.Number, v string) *recordWriter {
	if v == "" {
		return w
	}
	w.b = protowire.AppendTag(w.b, num, protowire.BytesType)
	w.b = protowire.AppendString(w.b, v)
	return w
}

func (w *recordWriter) int64(num protowire.Number, v int64) *recordWriter {
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, uint64(v))
	return w
}

func (w *recordWriter) bool(num protowire.Number, v bool) *recordWriter {
	if !v {
		return w
	}
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, protowire.EncodeBool(v))
	return w
}

func (w *recordWriter) bytes() []byte {
	return w.b
}

// field is one decoded value; Str is set for length-delimited fields, Int for varints.
type field struct {
	Str string
	Int uint64
}

// readRecord decodes every known field of b. Unknown fields are skipped.
func readRecord(b []byte) (map[protowire.Number]field, error) {
	fields := make(map[protowire.Number]field)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("corrupted record field %d: %w", num, protowire.ParseError(n))
			}
			fields[num] = field{Str: v}
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("corrupted record field %d: %w", num, protowire.ParseError(n))
			}
			fields[num] = field{Int: v}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("corrupted record field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return fields, nil
}
