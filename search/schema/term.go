package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Term is the key used to match documents for deletion:
// field (4 bytes big endian) + kind tag + value bytes.
//
// Numeric values are encoded big endian so that terms of the same field and
// kind sort like their values (i64 and f64 are mapped to order preserving
// u64 first).
type Term []byte

const termHeaderSize = 5

func newTerm(field Field, kind ValueKind, value []byte) Term {
	term := make([]byte, 0, termHeaderSize+len(value))
	term = binary.BigEndian.AppendUint32(term, uint32(field))
	term = append(term, byte(kind))
	return append(term, value...)
}

func TermFromText(field Field, text string) Term {
	return newTerm(field, KindStr, []byte(text))
}

func TermFromU64(field Field, value uint64) Term {
	return newTerm(field, KindU64, binary.BigEndian.AppendUint64(nil, value))
}

func TermFromI64(field Field, value int64) Term {
	return newTerm(field, KindI64, binary.BigEndian.AppendUint64(nil, i64ToU64(value)))
}

func TermFromF64(field Field, value float64) Term {
	return newTerm(field, KindF64, binary.BigEndian.AppendUint64(nil, f64ToU64(value)))
}

func TermFromDate(field Field, value DateTime) Term {
	return newTerm(field, KindDate, binary.BigEndian.AppendUint64(nil, i64ToU64(value.unixMicro)))
}

func TermFromFacet(field Field, facet Facet) Term {
	return newTerm(field, KindFacet, []byte(facet.encoded))
}

func TermFromBytes(field Field, value []byte) Term {
	return newTerm(field, KindBytes, value)
}

// TermFromFieldValue returns the term a FieldValue answers to. A
// pre-tokenized value answers to the text term of its raw text, the same
// term it has once the document went through PrepareForStore.
func TermFromFieldValue(fv FieldValue) (Term, error) {
	switch v := fv.value.(type) {
	case Str:
		return TermFromText(fv.field, string(v)), nil
	case PreTokenizedString:
		return TermFromText(fv.field, v.Text), nil
	case U64:
		return TermFromU64(fv.field, uint64(v)), nil
	case I64:
		return TermFromI64(fv.field, int64(v)), nil
	case F64:
		return TermFromF64(fv.field, float64(v)), nil
	case DateTime:
		return TermFromDate(fv.field, v), nil
	case Facet:
		return TermFromFacet(fv.field, v), nil
	case Bytes:
		return TermFromBytes(fv.field, v), nil
	case nil:
		return nil, fmt.Errorf("%s: %w", fv.field, ErrNilValue)
	default:
		return nil, fmt.Errorf("%s: unsupported value type %T", fv.field, fv.value)
	}
}

// Matches reports whether fv carries exactly the value of t.
func (t Term) Matches(fv FieldValue) bool {
	if !t.valid() || t.Field() != fv.field {
		return false
	}
	other, err := TermFromFieldValue(fv)
	if err != nil {
		return false
	}
	return bytes.Equal(t, other)
}

// MatchesDocument reports whether any pair of doc matches t.
func (t Term) MatchesDocument(doc *Document) bool {
	for _, fv := range doc.fieldValues {
		if t.Matches(fv) {
			return true
		}
	}
	return false
}

func (t Term) valid() bool {
	return len(t) >= termHeaderSize
}

func (t Term) Field() Field {
	if !t.valid() {
		return 0
	}
	return Field(binary.BigEndian.Uint32(t))
}

func (t Term) Kind() ValueKind {
	if !t.valid() {
		return 0
	}
	return ValueKind(t[4])
}

func (t Term) ValueBytes() []byte {
	if !t.valid() {
		return nil
	}
	return t[termHeaderSize:]
}

func (t Term) String() string {
	if !t.valid() {
		return fmt.Sprintf("Term(invalid %x)", []byte(t))
	}

	value := t.ValueBytes()
	switch t.Kind() {
	case KindStr:
		return fmt.Sprintf("Term(%s, str=%q)", t.Field(), value)
	case KindFacet:
		return fmt.Sprintf("Term(%s, facet=%s)", t.Field(), facetFromEncoded(string(value)))
	case KindU64:
		if len(value) == 8 {
			return fmt.Sprintf("Term(%s, u64=%d)", t.Field(), binary.BigEndian.Uint64(value))
		}
	case KindI64:
		if len(value) == 8 {
			return fmt.Sprintf("Term(%s, i64=%d)", t.Field(), u64ToI64(binary.BigEndian.Uint64(value)))
		}
	}
	return fmt.Sprintf("Term(%s, %s=%x)", t.Field(), t.Kind(), value)
}

func i64ToU64(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

func u64ToI64(v uint64) int64 {
	return int64(v ^ (1 << 63))
}

func f64ToU64(v float64) uint64 {
	bits := math.Float64bits(v)
	if !math.Signbit(v) {
		return bits ^ (1 << 63)
	}
	return ^bits
}
