package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/larose/ingest/search/schema"
)

func readCommit(directory string) (*Commit, error) {
	commitFile, err := os.Open(filepath.Join(directory, commitFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return &Commit{Segments: make([]SegmentMeta, 0)}, nil
	}
	if err != nil {
		return nil, err
	}

	defer commitFile.Close()

	decoder := json.NewDecoder(commitFile)

	var commit Commit
	if err := decoder.Decode(&commit); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, commitFilename, err)
	}

	if commit.Segments == nil {
		commit.Segments = make([]SegmentMeta, 0)
	}

	return &commit, nil
}

// IndexReader is a view of the index as of one commit. Later commits are not
// visible to it; open a new reader to see them.
type IndexReader struct {
	SegmentReaders []*SegmentReader
	commit         *Commit
	closed         bool
}

func NewIndexReader(directory string) (*IndexReader, error) {
	commit, err := readCommit(directory)
	if err != nil {
		return nil, err
	}

	deletedReader, err := openDeletedReader(directory, commit.DeletedId)
	if err != nil {
		return nil, err
	}
	defer deletedReader.Close()

	segmentReaders := make([]*SegmentReader, 0, len(commit.Segments))

	closeAll := func() {
		for _, segmentReader := range segmentReaders {
			_ = segmentReader.Close()
		}
	}

	for _, segment := range commit.Segments {
		deletedDocIdsForSegment, err := deletedReader.GetDeletedDocIdsForSegment(segment.Id)
		if err != nil {
			closeAll()
			return nil, err
		}

		segmentReader, err := newSegmentReader(directory, segment, deletedDocIdsForSegment)
		if err != nil {
			closeAll()
			return nil, err
		}

		segmentReaders = append(segmentReaders, segmentReader)
	}

	return &IndexReader{
		SegmentReaders: segmentReaders,
		commit:         commit,
	}, nil
}

// Opstamp is the opstamp of the commit the reader sees. Every operation
// with a lower or equal opstamp that was committed is visible.
func (reader *IndexReader) Opstamp() Opstamp {
	return reader.commit.Opstamp
}

func (reader *IndexReader) Payload() (string, bool) {
	if reader.commit.Payload == nil {
		return "", false
	}
	return *reader.commit.Payload, true
}

func (reader *IndexReader) Segments() []SegmentMeta {
	return slices.Clone(reader.commit.Segments)
}

// NumDocs returns the number of live documents.
func (reader *IndexReader) NumDocs() uint64 {
	var numDocs uint64
	for _, segmentReader := range reader.SegmentReaders {
		numDocs += uint64(segmentReader.NumLiveDocs())
	}
	return numDocs
}

func (reader *IndexReader) segmentReader(segmentId uint32) (*SegmentReader, error) {
	if reader.closed {
		return nil, ErrClosed
	}

	for _, segmentReader := range reader.SegmentReaders {
		if segmentReader.Id == segmentId {
			return segmentReader, nil
		}
	}

	return nil, fmt.Errorf("segment %d: %w", segmentId, ErrDocNotFound)
}

func (reader *IndexReader) Doc(address DocAddress) (*schema.Document, error) {
	segmentReader, err := reader.segmentReader(address.SegmentId)
	if err != nil {
		return nil, err
	}
	return segmentReader.Doc(address.DocId)
}

func (reader *IndexReader) DocOpstamp(address DocAddress) (Opstamp, error) {
	segmentReader, err := reader.segmentReader(address.SegmentId)
	if err != nil {
		return 0, err
	}
	return segmentReader.DocOpstamp(address.DocId)
}

func (reader *IndexReader) IsDeleted(address DocAddress) (bool, error) {
	segmentReader, err := reader.segmentReader(address.SegmentId)
	if err != nil {
		return false, err
	}
	if err := segmentReader.checkDocId(address.DocId); err != nil {
		return false, err
	}
	return segmentReader.IsDeleted(address.DocId), nil
}

// FieldStats sums the stats of field over all segments. Deleted documents
// are counted.
func (reader *IndexReader) FieldStats(field schema.Field) (FieldStats, error) {
	if reader.closed {
		return FieldStats{}, ErrClosed
	}

	var total FieldStats
	for _, segmentReader := range reader.SegmentReaders {
		stats, err := segmentReader.FieldStats(field)
		if err != nil {
			return FieldStats{}, err
		}
		total.DocCount += stats.DocCount
		total.ValueCount += stats.ValueCount
	}

	return total, nil
}

// Documents calls fn for every live document, segment by segment in commit
// order. An error returned by fn stops the iteration and is returned.
func (reader *IndexReader) Documents(fn func(address DocAddress, doc *schema.Document) error) error {
	if reader.closed {
		return ErrClosed
	}

	for _, segmentReader := range reader.SegmentReaders {
		err := segmentReader.Documents(func(docId DocumentId, doc *schema.Document) error {
			return fn(DocAddress{SegmentId: segmentReader.Id, DocId: docId}, doc)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SearchByTerm returns the address of every live document holding a value
// equal to term. It scans the document store.
func (reader *IndexReader) SearchByTerm(term schema.Term) ([]DocAddress, error) {
	results := make([]DocAddress, 0, 16)

	err := reader.Documents(func(address DocAddress, doc *schema.Document) error {
		if term.MatchesDocument(doc) {
			results = append(results, address)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

func (reader *IndexReader) Close() error {
	if reader.closed {
		return nil
	}
	reader.closed = true

	var errs []error
	for _, segmentReader := range reader.SegmentReaders {
		errs = append(errs, segmentReader.Close())
	}
	return errors.Join(errs...)
}
