package index

import (
	"fmt"
	"sync"

	"github.com/larose/ingest/search/schema"
	"github.com/larose/ingest/search/utils"
)

// The document store of a segment is a KV store keyed by the id of the first
// document of each block. A block is a run of serialized documents,
// compressed as a whole (see compression.go).

const storeComponent = "store"

type storeBlock struct {
	firstDocId DocumentId
	data       []byte
}

type StoreWriter struct {
	compression Compression
	blockSize   int

	firstDocId DocumentId
	numDocs    int
	buffer     []byte
	blocks     []storeBlock
}

func newStoreWriter(compression Compression, blockSize int) *StoreWriter {
	return &StoreWriter{
		compression: compression,
		blockSize:   blockSize,
		buffer:      make([]byte, 0, blockSize),
	}
}

// Doc stores the stored form of doc. doc itself is left untouched.
func (writer *StoreWriter) Doc(docId DocumentId, opstamp Opstamp, doc *schema.Document) error {
	if writer.numDocs == 0 {
		writer.firstDocId = docId
	}

	stored := doc.Clone()
	stored.PrepareForStore()

	var err error
	writer.buffer, err = stored.AppendBinary(writer.buffer)
	if err != nil {
		return fmt.Errorf("doc %d (opstamp %d): %w", docId, opstamp, err)
	}
	writer.numDocs++

	if len(writer.buffer) >= writer.blockSize {
		return writer.flushBlock()
	}

	return nil
}

func (writer *StoreWriter) flushBlock() error {
	if writer.numDocs == 0 {
		return nil
	}

	block, err := compressBlock(writer.buffer, writer.compression)
	if err != nil {
		return err
	}

	writer.blocks = append(writer.blocks, storeBlock{firstDocId: writer.firstDocId, data: block})
	writer.buffer = writer.buffer[:0]
	writer.numDocs = 0

	return nil
}

func (writer *StoreWriter) Write(directory, segmentId string) error {
	if err := writer.flushBlock(); err != nil {
		return err
	}

	kvStoreWriter, err := newKVStoreWriter(segmentFilename(directory, segmentId, storeComponent))
	if err != nil {
		return err
	}

	for _, block := range writer.blocks {
		if err := kvStoreWriter.Append(utils.Uint32ToBytes(uint32(block.firstDocId)), block.data); err != nil {
			_ = kvStoreWriter.Close()
			return err
		}
	}

	return kvStoreWriter.Close()
}

type StoreReader struct {
	kvStoreReader *KVStoreReader

	mutex           sync.Mutex
	cachedFirstDoc  DocumentId
	cachedBlockData []byte
}

func newStoreReader(directory, segmentId string) (*StoreReader, error) {
	kvStoreReader, err := newKVStoreReader(segmentFilename(directory, segmentId, storeComponent))
	if err != nil {
		return nil, err
	}

	return &StoreReader{kvStoreReader: kvStoreReader}, nil
}

func (reader *StoreReader) block(firstDocId DocumentId, raw []byte) ([]byte, error) {
	reader.mutex.Lock()
	defer reader.mutex.Unlock()

	if reader.cachedBlockData != nil && reader.cachedFirstDoc == firstDocId {
		return reader.cachedBlockData, nil
	}

	data, err := decompressBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("store block at doc %d: %w", firstDocId, err)
	}

	reader.cachedFirstDoc = firstDocId
	reader.cachedBlockData = data

	return data, nil
}

func (reader *StoreReader) Doc(docId DocumentId) (*schema.Document, error) {
	rawKey, raw, ok, err := reader.kvStoreReader.Floor(utils.Uint32ToBytes(uint32(docId)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("doc %d: %w", docId, ErrDocNotFound)
	}

	firstDocId, ok := utils.BytesToUint32(rawKey)
	if !ok {
		return nil, fmt.Errorf("%w: store key of %d bytes", ErrCorrupt, len(rawKey))
	}

	data, err := reader.block(DocumentId(firstDocId), raw)
	if err != nil {
		return nil, err
	}

	for current := DocumentId(firstDocId); len(data) > 0; current++ {
		doc, n, err := schema.DecodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("%w: doc %d: %w", ErrCorrupt, current, err)
		}
		if current == docId {
			return doc, nil
		}
		data = data[n:]
	}

	return nil, fmt.Errorf("doc %d: %w", docId, ErrDocNotFound)
}

// Iterate calls fn for every stored document in doc id order.
func (reader *StoreReader) Iterate(fn func(docId DocumentId, doc *schema.Document) error) error {
	for i := 0; i < reader.kvStoreReader.Len(); i++ {
		rawKey, raw, err := reader.kvStoreReader.At(i)
		if err != nil {
			return err
		}

		firstDocId, ok := utils.BytesToUint32(rawKey)
		if !ok {
			return fmt.Errorf("%w: store key of %d bytes", ErrCorrupt, len(rawKey))
		}

		data, err := decompressBlock(raw)
		if err != nil {
			return fmt.Errorf("store block at doc %d: %w", firstDocId, err)
		}

		for docId := DocumentId(firstDocId); len(data) > 0; docId++ {
			doc, n, err := schema.DecodeDocument(data)
			if err != nil {
				return fmt.Errorf("%w: doc %d: %w", ErrCorrupt, docId, err)
			}

			if err := fn(docId, doc); err != nil {
				return err
			}

			data = data[n:]
		}
	}

	return nil
}

func (reader *StoreReader) Close() error {
	return reader.kvStoreReader.Close()
}
