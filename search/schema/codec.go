package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

/*
Document:
  - count (uvarint)
  - field value * count

Field value:
  - field id (uvarint)
  - kind tag (byte)
  - payload:
	- str, bytes, facet: length (uvarint) + raw bytes
	- u64, i64, f64, date: 8 bytes little endian
	- pre-tokenized: length (uvarint) + msgpack array [text, [[from, to, position, text, position length], ...]]
*/

// The _msgpack fields only carry the as_array tag.

type preTokenizedWire struct {
	_msgpack struct{} `msgpack:",as_array"` //nolint:unused

	Text   string
	Tokens []tokenWire
}

type tokenWire struct {
	_msgpack struct{} `msgpack:",as_array"` //nolint:unused

	OffsetFrom     int
	OffsetTo       int
	Position       int
	Text           string
	PositionLength int
}

func (d *Document) MarshalBinary() ([]byte, error) {
	return d.AppendBinary(make([]byte, 0, 16*len(d.fieldValues)+1))
}

func (d *Document) AppendBinary(buf []byte) ([]byte, error) {
	buf = binary.AppendUvarint(buf, uint64(len(d.fieldValues)))

	var err error
	for _, fv := range d.fieldValues {
		buf, err = appendFieldValue(buf, fv)
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func (d *Document) WriteTo(w io.Writer) (int64, error) {
	buf, err := d.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// UnmarshalBinary replaces the content of d. The whole input must be one
// document.
func (d *Document) UnmarshalBinary(data []byte) error {
	decoded, n, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return decodingErrf(n, nil, "end of document", "%d trailing bytes", len(data)-n)
	}
	d.fieldValues = decoded.fieldValues
	return nil
}

// DecodeDocument decodes the document at the start of data and returns it
// with the number of bytes it used.
func DecodeDocument(data []byte) (*Document, int, error) {
	dec := &decoder{data: data}

	count, err := dec.uvarint("field value count")
	if err != nil {
		return nil, dec.off, err
	}

	// Every pair takes at least two bytes.
	if count > uint64(dec.remaining()/2) {
		return nil, dec.off, decodingErrf(dec.off, io.ErrUnexpectedEOF, fmt.Sprintf("at most %d field values", dec.remaining()/2), "count %d", count)
	}

	fieldValues := make([]FieldValue, 0, count)
	for i := uint64(0); i < count; i++ {
		fv, err := dec.fieldValue()
		if err != nil {
			return nil, dec.off, err
		}
		fieldValues = append(fieldValues, fv)
	}

	return &Document{fieldValues: fieldValues}, dec.off, nil
}

func appendFieldValue(buf []byte, fv FieldValue) ([]byte, error) {
	if fv.value == nil {
		return nil, fmt.Errorf("%s: %w", fv.field, ErrNilValue)
	}

	buf = binary.AppendUvarint(buf, uint64(fv.field))
	buf = append(buf, byte(fv.value.Kind()))

	switch v := fv.value.(type) {
	case Str:
		buf = appendLengthPrefixed(buf, []byte(v))
	case Bytes:
		buf = appendLengthPrefixed(buf, v)
	case Facet:
		buf = appendLengthPrefixed(buf, []byte(v.encoded))
	case U64:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	case I64:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	case F64:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(v)))
	case DateTime:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.unixMicro))
	case PreTokenizedString:
		payload, err := encodePreTokenized(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fv.field, err)
		}
		buf = appendLengthPrefixed(buf, payload)
	default:
		return nil, fmt.Errorf("%s: unsupported value type %T", fv.field, fv.value)
	}

	return buf, nil
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func encodePreTokenized(text PreTokenizedString) ([]byte, error) {
	wire := preTokenizedWire{Text: text.Text}
	if text.Tokens != nil {
		wire.Tokens = make([]tokenWire, len(text.Tokens))
		for i, token := range text.Tokens {
			wire.Tokens[i] = tokenWire{
				OffsetFrom:     token.OffsetFrom,
				OffsetTo:       token.OffsetTo,
				Position:       token.Position,
				Text:           token.Text,
				PositionLength: token.PositionLength,
			}
		}
	}
	return msgpack.Marshal(&wire)
}

func decodePreTokenized(payload []byte) (PreTokenizedString, int, error) {
	reader := bytes.NewReader(payload)
	dec := msgpack.NewDecoder(reader)

	var wire preTokenizedWire
	if err := dec.Decode(&wire); err != nil {
		return PreTokenizedString{}, len(payload) - reader.Len(), err
	}
	if reader.Len() != 0 {
		return PreTokenizedString{}, len(payload) - reader.Len(), fmt.Errorf("%d trailing bytes", reader.Len())
	}

	text := PreTokenizedString{Text: wire.Text}
	if wire.Tokens != nil {
		text.Tokens = make([]Token, len(wire.Tokens))
		for i, token := range wire.Tokens {
			text.Tokens[i] = Token{
				OffsetFrom:     token.OffsetFrom,
				OffsetTo:       token.OffsetTo,
				Position:       token.Position,
				Text:           token.Text,
				PositionLength: token.PositionLength,
			}
		}
	}
	return text, len(payload), nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) uvarint(what string) (uint64, error) {
	v, n := binary.Uvarint(d.data[d.off:])
	if n == 0 {
		return 0, decodingErrf(d.off, io.ErrUnexpectedEOF, what, "end of input")
	}
	if n < 0 {
		return 0, decodingErrf(d.off, nil, what, "varint overflowing 64 bits")
	}
	d.off += n
	return v, nil
}

func (d *decoder) byte(what string) (byte, error) {
	if d.remaining() < 1 {
		return 0, decodingErrf(d.off, io.ErrUnexpectedEOF, what, "end of input")
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *decoder) fixed64(what string) (uint64, error) {
	if d.remaining() < 8 {
		return 0, decodingErrf(d.off, io.ErrUnexpectedEOF, "8 bytes of "+what, "%d bytes", d.remaining())
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) lengthPrefixed(what string) ([]byte, error) {
	start := d.off
	length, err := d.uvarint(what + " length")
	if err != nil {
		return nil, err
	}
	if length > uint64(d.remaining()) {
		d.off = start
		return nil, decodingErrf(start, io.ErrUnexpectedEOF, fmt.Sprintf("%d bytes of %s", length, what), "%d bytes", d.remaining())
	}
	data := d.data[d.off : d.off+int(length)]
	d.off += int(length)
	return data, nil
}

func (d *decoder) fieldValue() (FieldValue, error) {
	start := d.off
	rawField, err := d.uvarint("field id")
	if err != nil {
		return FieldValue{}, err
	}
	if rawField > math.MaxUint32 {
		return FieldValue{}, decodingErrf(start, nil, "32-bit field id", "%d", rawField)
	}
	field := Field(rawField)

	tagOffset := d.off
	tag, err := d.byte("value tag")
	if err != nil {
		return FieldValue{}, err
	}

	var value Value

	switch ValueKind(tag) {
	case KindStr:
		data, err := d.lengthPrefixed("string")
		if err != nil {
			return FieldValue{}, err
		}
		value = Str(data)
	case KindBytes:
		data, err := d.lengthPrefixed("bytes")
		if err != nil {
			return FieldValue{}, err
		}
		value = Bytes(bytes.Clone(data))
	case KindFacet:
		data, err := d.lengthPrefixed("facet")
		if err != nil {
			return FieldValue{}, err
		}
		value = facetFromEncoded(string(data))
	case KindU64:
		v, err := d.fixed64("u64")
		if err != nil {
			return FieldValue{}, err
		}
		value = U64(v)
	case KindI64:
		v, err := d.fixed64("i64")
		if err != nil {
			return FieldValue{}, err
		}
		value = I64(int64(v))
	case KindF64:
		v, err := d.fixed64("f64")
		if err != nil {
			return FieldValue{}, err
		}
		value = F64(math.Float64frombits(v))
	case KindDate:
		v, err := d.fixed64("date")
		if err != nil {
			return FieldValue{}, err
		}
		value = DateFromUnixMicro(int64(v))
	case KindPreTokStr:
		data, err := d.lengthPrefixed("pre-tokenized text")
		if err != nil {
			return FieldValue{}, err
		}
		text, n, err := decodePreTokenized(data)
		if err != nil {
			return FieldValue{}, decodingErrf(d.off-len(data)+n, err, "pre-tokenized text", "malformed payload")
		}
		value = text
	default:
		return FieldValue{}, decodingErrf(tagOffset, nil, "value tag 0-7", "%d", tag)
	}

	return NewFieldValue(field, value), nil
}
