package index

import (
	"bufio"
	"fmt"
	"os"
)

// ArrayStoreWriter writes fixed-width elements back to back; element i
// lives at offset i*elementValueSize.
type ArrayStoreWriter struct {
	file             *os.File
	writer           *bufio.Writer
	elementValueSize int
}

func newArrayStoreWriter(filename string, elementValueSize int) (*ArrayStoreWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}

	return &ArrayStoreWriter{
		file:             file,
		writer:           bufio.NewWriter(file),
		elementValueSize: elementValueSize,
	}, nil
}

func (writer *ArrayStoreWriter) Append(value []byte) error {
	if len(value) != writer.elementValueSize {
		return fmt.Errorf("array store: element of %d bytes, expected %d", len(value), writer.elementValueSize)
	}
	_, err := writer.writer.Write(value)
	return err
}

func (writer *ArrayStoreWriter) Close() error {
	return closeBufferedFile(writer.file, writer.writer)
}

type ArrayStoreReader struct {
	file             *FileReader
	elementValueSize uint64
}

func newArrayStoreReader(filename string, elementValueSize uint64) (*ArrayStoreReader, error) {
	file, err := newFileReader(filename)
	if err != nil {
		return nil, err
	}

	if file.Len()%elementValueSize != 0 {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s has %d bytes, not a multiple of %d", ErrCorrupt, filename, file.Len(), elementValueSize)
	}

	return &ArrayStoreReader{
		file:             file,
		elementValueSize: elementValueSize,
	}, nil
}

func (reader *ArrayStoreReader) Len() uint32 {
	return uint32(reader.file.Len() / reader.elementValueSize)
}

func (reader *ArrayStoreReader) Get(position uint32) ([]byte, bool) {
	start := uint64(position) * reader.elementValueSize
	return reader.file.Slice(start, start+reader.elementValueSize)
}

func (reader *ArrayStoreReader) Close() error {
	return reader.file.Close()
}
