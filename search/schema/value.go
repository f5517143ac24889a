package schema

import (
	"fmt"
	"time"
)

type Field uint32

func (f Field) String() string {
	return fmt.Sprintf("field(%d)", uint32(f))
}

type ValueKind byte

// Kinds double as the tag byte of the binary encoding. Never renumber them.
const (
	KindStr ValueKind = iota
	KindU64
	KindI64
	KindFacet
	KindBytes
	KindDate
	KindF64
	KindPreTokStr
)

func (k ValueKind) String() string {
	switch k {
	case KindStr:
		return "str"
	case KindU64:
		return "u64"
	case KindI64:
		return "i64"
	case KindFacet:
		return "facet"
	case KindBytes:
		return "bytes"
	case KindDate:
		return "date"
	case KindF64:
		return "f64"
	case KindPreTokStr:
		return "pre_tokenized"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Value is the closed set of things a field can hold. The only
// implementations are the types in this file; the unexported method keeps
// it that way.
type Value interface {
	Kind() ValueKind
	isValue()
}

type Str string

type U64 uint64

type I64 int64

type F64 float64

type Bytes []byte

func (Str) Kind() ValueKind                { return KindStr }
func (U64) Kind() ValueKind                { return KindU64 }
func (I64) Kind() ValueKind                { return KindI64 }
func (F64) Kind() ValueKind                { return KindF64 }
func (Bytes) Kind() ValueKind              { return KindBytes }
func (DateTime) Kind() ValueKind           { return KindDate }
func (Facet) Kind() ValueKind              { return KindFacet }
func (PreTokenizedString) Kind() ValueKind { return KindPreTokStr }

func (Str) isValue()                {}
func (U64) isValue()                {}
func (I64) isValue()                {}
func (F64) isValue()                {}
func (Bytes) isValue()              {}
func (DateTime) isValue()           {}
func (Facet) isValue()              {}
func (PreTokenizedString) isValue() {}

// DateTime is an instant with microsecond precision, always in UTC.
type DateTime struct {
	unixMicro int64
}

func DateFromTime(t time.Time) DateTime {
	return DateTime{unixMicro: t.UnixMicro()}
}

func DateFromUnixMicro(micros int64) DateTime {
	return DateTime{unixMicro: micros}
}

func (d DateTime) UnixMicro() int64 {
	return d.unixMicro
}

func (d DateTime) Time() time.Time {
	return time.UnixMicro(d.unixMicro).UTC()
}

func (d DateTime) String() string {
	return d.Time().Format(time.RFC3339Nano)
}

type Token struct {
	OffsetFrom     int
	OffsetTo       int
	Position       int
	Text           string
	PositionLength int
}

// PreTokenizedString is the output of a tokenizer that ran outside of this
// module. Tokens are taken as they are.
type PreTokenizedString struct {
	Text   string
	Tokens []Token
}

type FieldValue struct {
	field Field
	value Value
}

func NewFieldValue(field Field, value Value) FieldValue {
	return FieldValue{field: field, value: value}
}

func (fv FieldValue) Field() Field {
	return fv.field
}

func (fv FieldValue) Value() Value {
	return fv.value
}

func (fv FieldValue) String() string {
	if fv.value == nil {
		return fmt.Sprintf("%s=nil", fv.field)
	}
	return fmt.Sprintf("%s=%s(%v)", fv.field, fv.value.Kind(), fv.value)
}
