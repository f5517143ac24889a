package index

import (
	"path/filepath"

	"github.com/larose/ingest/search/schema"
)

// Caller calls in order:
// - Doc()
// - Doc()
// - ...
// - Write()
//
// Doc ids are assigned densely from 0 in the order documents are added.
type SegmentComponentWriter interface {
	Doc(docId DocumentId, opstamp Opstamp, doc *schema.Document) error
	Write(directory, segmentId string) error
}

func segmentFilename(directory, segmentId, component string) string {
	return filepath.Join(directory, "segment."+segmentId+"."+component)
}
