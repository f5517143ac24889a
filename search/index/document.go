package index

import "fmt"

type DocumentId uint32

// DocAddress locates a stored document: the segment it was written to and
// its position inside that segment.
type DocAddress struct {
	SegmentId uint32
	DocId     DocumentId
}

func (address DocAddress) String() string {
	return fmt.Sprintf("%d/%d", address.SegmentId, address.DocId)
}
