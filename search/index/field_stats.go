package index

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/larose/ingest/search/schema"
	"github.com/larose/ingest/search/utils"
)

/*
Field stats of a segment, a KV store keyed by field id:
  - number of documents with at least one value for the field (4 bytes)
  - number of values of the field (8 bytes)

Deleted documents are counted.
*/

const (
	fieldStatsComponent = "fieldstats"
	fieldStatsValueSize = 12
)

type FieldStats struct {
	DocCount   uint32
	ValueCount uint64
}

type FieldStatsWriter struct {
	stats map[schema.Field]*FieldStats
}

func newFieldStatsWriter() *FieldStatsWriter {
	return &FieldStatsWriter{stats: make(map[schema.Field]*FieldStats)}
}

func (writer *FieldStatsWriter) Doc(docId DocumentId, opstamp Opstamp, doc *schema.Document) error {
	for _, group := range doc.GetSortedFieldValues() {
		stats, exists := writer.stats[group.Field]
		if !exists {
			stats = &FieldStats{}
			writer.stats[group.Field] = stats
		}

		stats.DocCount++
		stats.ValueCount += uint64(len(group.Values))
	}

	return nil
}

func (writer *FieldStatsWriter) Write(directory, segmentId string) error {
	kvStoreWriter, err := newKVStoreWriter(segmentFilename(directory, segmentId, fieldStatsComponent))
	if err != nil {
		return err
	}

	for _, field := range slices.Sorted(maps.Keys(writer.stats)) {
		stats := writer.stats[field]

		buffer := make([]byte, fieldStatsValueSize)
		binary.BigEndian.PutUint32(buffer, stats.DocCount)
		binary.BigEndian.PutUint64(buffer[4:], stats.ValueCount)

		if err := kvStoreWriter.Append(utils.Uint32ToBytes(uint32(field)), buffer); err != nil {
			_ = kvStoreWriter.Close()
			return err
		}
	}

	return kvStoreWriter.Close()
}

type FieldStatsReader struct {
	kvStoreReader *KVStoreReader
}

func newFieldStatsReader(directory, segmentId string) (*FieldStatsReader, error) {
	kvStoreReader, err := newKVStoreReader(segmentFilename(directory, segmentId, fieldStatsComponent))
	if err != nil {
		return nil, err
	}

	return &FieldStatsReader{kvStoreReader: kvStoreReader}, nil
}

// Read returns zero stats for a field no document of the segment has.
func (reader *FieldStatsReader) Read(field schema.Field) (FieldStats, error) {
	value, err := reader.kvStoreReader.Get(utils.Uint32ToBytes(uint32(field)))
	if err != nil || value == nil {
		return FieldStats{}, err
	}

	if len(value) != fieldStatsValueSize {
		return FieldStats{}, fmt.Errorf("%w: field stats of %s have %d bytes", ErrCorrupt, field, len(value))
	}

	return FieldStats{
		DocCount:   binary.BigEndian.Uint32(value),
		ValueCount: binary.BigEndian.Uint64(value[4:]),
	}, nil
}

func (reader *FieldStatsReader) Close() error {
	return reader.kvStoreReader.Close()
}
