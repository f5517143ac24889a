package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
)

// Document is a bag of (field, value) pairs. A field may appear more than
// once; the pairs keep the order in which they were added.
//
// A Document handed to an index writer belongs to the writer and must not be
// modified afterwards.
type Document struct {
	fieldValues []FieldValue
}

type FieldGroup struct {
	Field  Field
	Values []*FieldValue
}

func NewDocument() *Document {
	return &Document{}
}

func DocumentFromFieldValues(fieldValues []FieldValue) *Document {
	return &Document{fieldValues: fieldValues}
}

func (d *Document) Len() int {
	return len(d.fieldValues)
}

func (d *Document) IsEmpty() bool {
	return len(d.fieldValues) == 0
}

// Validate reports the first pair the codec cannot serialize.
func (d *Document) Validate() error {
	for i, fv := range d.fieldValues {
		if fv.value == nil {
			return fmt.Errorf("pair %d, %s: %w", i, fv.field, ErrNilValue)
		}
	}
	return nil
}

func (d *Document) Add(fieldValue FieldValue) {
	d.fieldValues = append(d.fieldValues, fieldValue)
}

func (d *Document) AddText(field Field, text string) {
	d.Add(NewFieldValue(field, Str(text)))
}

func (d *Document) AddU64(field Field, value uint64) {
	d.Add(NewFieldValue(field, U64(value)))
}

func (d *Document) AddI64(field Field, value int64) {
	d.Add(NewFieldValue(field, I64(value)))
}

func (d *Document) AddF64(field Field, value float64) {
	d.Add(NewFieldValue(field, F64(value)))
}

func (d *Document) AddDate(field Field, value DateTime) {
	d.Add(NewFieldValue(field, value))
}

func (d *Document) AddBytes(field Field, value []byte) {
	d.Add(NewFieldValue(field, Bytes(value)))
}

// AddFacet parses path with NewFacet and adds the result.
func (d *Document) AddFacet(field Field, path string) error {
	facet, err := NewFacet(path)
	if err != nil {
		return err
	}
	d.AddFacetValue(field, facet)
	return nil
}

func (d *Document) AddFacetValue(field Field, facet Facet) {
	d.Add(NewFieldValue(field, facet))
}

func (d *Document) AddPreTokenizedText(field Field, text PreTokenizedString) {
	d.Add(NewFieldValue(field, text))
}

// FilterFields keeps the pairs whose field satisfies predicate, in their
// original order.
func (d *Document) FilterFields(predicate func(Field) bool) {
	d.fieldValues = slices.DeleteFunc(d.fieldValues, func(fv FieldValue) bool {
		return !predicate(fv.field)
	})
}

func (d *Document) FieldValues() []FieldValue {
	return d.fieldValues
}

func (d *Document) GetAll(field Field) []Value {
	values := make([]Value, 0, 1)
	for _, fv := range d.fieldValues {
		if fv.field == field {
			values = append(values, fv.value)
		}
	}
	return values
}

func (d *Document) GetFirst(field Field) (Value, bool) {
	for _, fv := range d.fieldValues {
		if fv.field == field {
			return fv.value, true
		}
	}
	return nil, false
}

// GetSortedFieldValues groups the pairs by field, fields in ascending order.
// Inside a group the pairs keep their original relative order. The result
// is not cached.
func (d *Document) GetSortedFieldValues() []FieldGroup {
	if len(d.fieldValues) == 0 {
		return nil
	}

	sorted := make([]*FieldValue, len(d.fieldValues))
	for i := range d.fieldValues {
		sorted[i] = &d.fieldValues[i]
	}

	slices.SortStableFunc(sorted, func(a, b *FieldValue) int {
		switch {
		case a.field < b.field:
			return -1
		case a.field > b.field:
			return 1
		default:
			return 0
		}
	})

	groups := make([]FieldGroup, 0, 4)
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].field != sorted[start].field {
			groups = append(groups, FieldGroup{
				Field:  sorted[start].field,
				Values: sorted[start:i:i],
			})
			start = i
		}
	}

	return groups
}

// PrepareForStore replaces every pre-tokenized value with a plain string
// holding its text. Call it right before the document goes to the store,
// never before indexing: the tokens are dropped.
func (d *Document) PrepareForStore() {
	for i, fv := range d.fieldValues {
		if text, ok := fv.value.(PreTokenizedString); ok {
			d.fieldValues[i] = NewFieldValue(fv.field, Str(text.Text))
		}
	}
}

func (d *Document) Clone() *Document {
	return &Document{fieldValues: slices.Clone(d.fieldValues)}
}

// Equal compares the two documents as multisets of pairs; order does not
// matter. It encodes every pair, so keep it out of hot paths.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}

	a, err := sortedPairEncodings(d)
	if err != nil {
		return false
	}
	b, err := sortedPairEncodings(other)
	if err != nil {
		return false
	}

	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Pairs without a value encode as their field followed by nilValueTag, a
// tag the codec never writes, so they still compare equal to each other.
const nilValueTag = 0xff

func sortedPairEncodings(d *Document) ([][]byte, error) {
	encodings := make([][]byte, len(d.fieldValues))
	for i, fv := range d.fieldValues {
		if fv.value == nil {
			encodings[i] = append(binary.AppendUvarint(nil, uint64(fv.field)), nilValueTag)
			continue
		}

		encoded, err := appendFieldValue(nil, fv)
		if err != nil {
			return nil, err
		}
		encodings[i] = encoded
	}
	slices.SortFunc(encodings, bytes.Compare)
	return encodings, nil
}
