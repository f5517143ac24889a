package index

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/larose/ingest/search/schema"
)

type SegmentReader struct {
	DeletedDocIds    *roaring.Bitmap
	Id               uint32
	IdString         string
	NumDocs          uint32
	storeReader      *StoreReader
	opstampsReader   *OpstampsReader
	fieldStatsReader *FieldStatsReader
}

func newSegmentReader(directory string, meta SegmentMeta, deletedDocIds *roaring.Bitmap) (*SegmentReader, error) {
	segment := strconv.FormatUint(uint64(meta.Id), 10)

	if deletedDocIds == nil {
		deletedDocIds = roaring.NewBitmap()
	}

	opstampsReader, err := newOpstampsReader(directory, segment)
	if err != nil {
		return nil, err
	}

	if opstampsReader.Len() != meta.NumDocs {
		_ = opstampsReader.Close()
		return nil, fmt.Errorf("%w: segment %s has %d opstamps for %d docs", ErrCorrupt, segment, opstampsReader.Len(), meta.NumDocs)
	}

	storeReader, err := newStoreReader(directory, segment)
	if err != nil {
		_ = opstampsReader.Close()
		return nil, err
	}

	fieldStatsReader, err := newFieldStatsReader(directory, segment)
	if err != nil {
		_ = opstampsReader.Close()
		_ = storeReader.Close()
		return nil, err
	}

	return &SegmentReader{
		DeletedDocIds:    deletedDocIds,
		Id:               meta.Id,
		IdString:         segment,
		NumDocs:          meta.NumDocs,
		storeReader:      storeReader,
		opstampsReader:   opstampsReader,
		fieldStatsReader: fieldStatsReader,
	}, nil
}

func (reader *SegmentReader) IsDeleted(docId DocumentId) bool {
	return reader.DeletedDocIds.Contains(uint32(docId))
}

func (reader *SegmentReader) NumLiveDocs() uint32 {
	return reader.NumDocs - uint32(reader.DeletedDocIds.GetCardinality())
}

func (reader *SegmentReader) checkDocId(docId DocumentId) error {
	if uint32(docId) >= reader.NumDocs {
		return fmt.Errorf("doc %d of segment %s with %d docs: %w", docId, reader.IdString, reader.NumDocs, ErrDocNotFound)
	}
	return nil
}

// Doc returns the stored document, deleted or not.
func (reader *SegmentReader) Doc(docId DocumentId) (*schema.Document, error) {
	if err := reader.checkDocId(docId); err != nil {
		return nil, err
	}
	return reader.storeReader.Doc(docId)
}

func (reader *SegmentReader) DocOpstamp(docId DocumentId) (Opstamp, error) {
	if err := reader.checkDocId(docId); err != nil {
		return 0, err
	}
	return reader.opstampsReader.Get(docId)
}

func (reader *SegmentReader) FieldStats(field schema.Field) (FieldStats, error) {
	return reader.fieldStatsReader.Read(field)
}

// Documents calls fn for every live document of the segment, in doc id
// order.
func (reader *SegmentReader) Documents(fn func(docId DocumentId, doc *schema.Document) error) error {
	return reader.storeReader.Iterate(func(docId DocumentId, doc *schema.Document) error {
		if reader.IsDeleted(docId) {
			return nil
		}
		return fn(docId, doc)
	})
}

func (reader *SegmentReader) Close() error {
	return errors.Join(
		reader.storeReader.Close(),
		reader.opstampsReader.Close(),
		reader.fieldStatsReader.Close(),
	)
}
