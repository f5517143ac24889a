package index

import (
	"fmt"

	"github.com/larose/ingest/search/schema"
	"github.com/larose/ingest/search/utils"
)

// Every segment records the opstamp of the add operation behind each of its
// documents. Deletes compare against it: a delete only removes documents
// added before it.

const (
	opstampsComponent = "opstamps"
	opstampSize       = 8
)

type OpstampsWriter struct {
	opstamps []Opstamp
}

func newOpstampsWriter() *OpstampsWriter {
	return &OpstampsWriter{}
}

func (writer *OpstampsWriter) Doc(docId DocumentId, opstamp Opstamp, doc *schema.Document) error {
	if int(docId) != len(writer.opstamps) {
		return fmt.Errorf("opstamps: doc %d added at position %d", docId, len(writer.opstamps))
	}
	writer.opstamps = append(writer.opstamps, opstamp)
	return nil
}

func (writer *OpstampsWriter) Write(directory, segmentId string) error {
	arrayStoreWriter, err := newArrayStoreWriter(segmentFilename(directory, segmentId, opstampsComponent), opstampSize)
	if err != nil {
		return err
	}

	for _, opstamp := range writer.opstamps {
		if err := arrayStoreWriter.Append(utils.Uint64ToBytes(opstamp)); err != nil {
			_ = arrayStoreWriter.Close()
			return err
		}
	}

	return arrayStoreWriter.Close()
}

type OpstampsReader struct {
	arrayStoreReader *ArrayStoreReader
}

func newOpstampsReader(directory, segmentId string) (*OpstampsReader, error) {
	arrayStoreReader, err := newArrayStoreReader(segmentFilename(directory, segmentId, opstampsComponent), opstampSize)
	if err != nil {
		return nil, err
	}

	return &OpstampsReader{arrayStoreReader: arrayStoreReader}, nil
}

func (reader *OpstampsReader) Len() uint32 {
	return reader.arrayStoreReader.Len()
}

func (reader *OpstampsReader) Get(docId DocumentId) (Opstamp, error) {
	value, ok := reader.arrayStoreReader.Get(uint32(docId))
	if !ok {
		return 0, fmt.Errorf("opstamp of doc %d: %w", docId, ErrDocNotFound)
	}

	opstamp, _ := utils.BytesToUint64(value)
	return opstamp, nil
}

func (reader *OpstampsReader) Close() error {
	return reader.arrayStoreReader.Close()
}
