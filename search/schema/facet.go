package schema

import (
	"errors"
	"fmt"
	"strings"
)

const facetSeparator = '\x00'

var ErrInvalidFacet = errors.New("invalid facet")

// Facet is a hierarchical path such as /category/electronics/phones.
// Segments are stored joined by a NUL byte; the root facet has no segment.
type Facet struct {
	encoded string
}

func RootFacet() Facet {
	return Facet{}
}

// NewFacet parses a slash separated path. The path must start with '/',
// segments must not be empty, and '\/' and '\\' escape a slash and a
// backslash inside a segment.
func NewFacet(path string) (Facet, error) {
	if !strings.HasPrefix(path, "/") {
		return Facet{}, fmt.Errorf("%w: %q must start with '/'", ErrInvalidFacet, path)
	}

	if path == "/" {
		return RootFacet(), nil
	}

	segments := make([]string, 0, strings.Count(path, "/"))
	var segment strings.Builder

	escaped := false
	for _, r := range path[1:] {
		switch {
		case escaped:
			segment.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '/':
			if segment.Len() == 0 {
				return Facet{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidFacet, path)
			}
			segments = append(segments, segment.String())
			segment.Reset()
		default:
			segment.WriteRune(r)
		}
	}

	if escaped {
		return Facet{}, fmt.Errorf("%w: %q ends with a dangling escape", ErrInvalidFacet, path)
	}

	if segment.Len() == 0 {
		return Facet{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidFacet, path)
	}
	segments = append(segments, segment.String())

	return FacetFromSegments(segments)
}

func FacetFromSegments(segments []string) (Facet, error) {
	for _, segment := range segments {
		if segment == "" {
			return Facet{}, fmt.Errorf("%w: empty segment", ErrInvalidFacet)
		}
		if strings.IndexByte(segment, facetSeparator) >= 0 {
			return Facet{}, fmt.Errorf("%w: segment %q contains a NUL byte", ErrInvalidFacet, segment)
		}
	}

	return Facet{encoded: strings.Join(segments, string(facetSeparator))}, nil
}

func facetFromEncoded(encoded string) Facet {
	return Facet{encoded: encoded}
}

func (f Facet) Encoded() string {
	return f.encoded
}

func (f Facet) IsRoot() bool {
	return f.encoded == ""
}

func (f Facet) Segments() []string {
	if f.IsRoot() {
		return nil
	}
	return strings.Split(f.encoded, string(facetSeparator))
}

// IsPrefixOf reports whether other is f itself or one of its descendants.
func (f Facet) IsPrefixOf(other Facet) bool {
	if f.IsRoot() {
		return true
	}
	if !strings.HasPrefix(other.encoded, f.encoded) {
		return false
	}
	rest := other.encoded[len(f.encoded):]
	return rest == "" || rest[0] == facetSeparator
}

func (f Facet) String() string {
	if f.IsRoot() {
		return "/"
	}

	var b strings.Builder
	for _, segment := range f.Segments() {
		b.WriteByte('/')
		for _, r := range segment {
			if r == '/' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
