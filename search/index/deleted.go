package index

import (
	"maps"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/larose/ingest/search/utils"
)

func deletedBasename(directory string, deletedId uint32) string {
	return filepath.Join(directory, "deleted."+strconv.FormatUint(uint64(deletedId), 10))
}

// DeletedWriter writes the deleted doc ids of every segment of a commit.
// Segments without deletions are left out.
type DeletedWriter struct {
	deletedDocIdsBySegment map[uint32]*roaring.Bitmap
}

func newDeletedWriter(deletedDocIdsBySegment map[uint32]*roaring.Bitmap) *DeletedWriter {
	return &DeletedWriter{deletedDocIdsBySegment: deletedDocIdsBySegment}
}

func (writer *DeletedWriter) Write(directory string, deletedId uint32) error {
	kvStoreWriter, err := newKVStoreWriter(deletedBasename(directory, deletedId))
	if err != nil {
		return err
	}

	for _, segmentId := range slices.Sorted(maps.Keys(writer.deletedDocIdsBySegment)) {
		deletedDocsForSegment := writer.deletedDocIdsBySegment[segmentId]
		if deletedDocsForSegment.IsEmpty() {
			continue
		}

		deletedDocsForSegment.RunOptimize()

		buffer, err := deletedDocsForSegment.ToBytes()
		if err != nil {
			_ = kvStoreWriter.Close()
			return err
		}

		if err := kvStoreWriter.Append(utils.Uint32ToBytes(segmentId), buffer); err != nil {
			_ = kvStoreWriter.Close()
			return err
		}
	}

	return kvStoreWriter.Close()
}

type DeletedReader interface {
	// GetDeletedDocIdsForSegment returns nil when the segment has no
	// deleted doc.
	GetDeletedDocIdsForSegment(segmentId uint32) (*roaring.Bitmap, error)
	Close() error
}

func openDeletedReader(directory string, deletedId *uint32) (DeletedReader, error) {
	if deletedId == nil {
		return newNullDeletedReader(), nil
	}
	return newFileDeletedReader(directory, *deletedId)
}

type NullDeletedReader struct {
}

func newNullDeletedReader() *NullDeletedReader {
	return &NullDeletedReader{}
}

func (reader *NullDeletedReader) GetDeletedDocIdsForSegment(segmentId uint32) (*roaring.Bitmap, error) {
	return nil, nil
}

func (reader *NullDeletedReader) Close() error {
	return nil
}

type FileDeletedReader struct {
	kvStoreReader *KVStoreReader
}

func newFileDeletedReader(directory string, deletedId uint32) (*FileDeletedReader, error) {
	kvStoreReader, err := newKVStoreReader(deletedBasename(directory, deletedId))
	if err != nil {
		return nil, err
	}

	return &FileDeletedReader{kvStoreReader: kvStoreReader}, nil
}

func (reader *FileDeletedReader) GetDeletedDocIdsForSegment(segmentId uint32) (*roaring.Bitmap, error) {
	value, err := reader.kvStoreReader.Get(utils.Uint32ToBytes(segmentId))
	if err != nil || value == nil {
		return nil, err
	}

	// UnmarshalBinary copies value, which points into the mapped file.
	deletedDocs := roaring.NewBitmap()
	if err := deletedDocs.UnmarshalBinary(value); err != nil {
		return nil, err
	}

	return deletedDocs, nil
}

func (reader *FileDeletedReader) Close() error {
	return reader.kvStoreReader.Close()
}
