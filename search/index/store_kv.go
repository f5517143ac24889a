package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

/*
KV store, made of two files:

basename.data:
  - entry * n
    - key length (4 bytes)
    - value length (4 bytes)
    - key
    - value

basename.index:
  - offset of entry in data file (8 bytes) * n

Entries are sorted by key. All integers are big endian.
*/

const (
	kvEntryHeaderSize = 8
	kvIndexEntrySize  = 8
)

type KVStoreWriter struct {
	dataFile    *os.File
	dataWriter  *bufio.Writer
	indexFile   *os.File
	indexWriter *bufio.Writer
	offset      uint64
	lastKey     []byte
	count       int
	closed      bool
}

func newKVStoreWriter(basename string) (*KVStoreWriter, error) {
	dataFile, err := createFile(basename + ".data")
	if err != nil {
		return nil, err
	}
	indexFile, err := createFile(basename + ".index")
	if err != nil {
		_ = dataFile.Close()
		return nil, err
	}

	return &KVStoreWriter{
		dataFile:    dataFile,
		dataWriter:  bufio.NewWriter(dataFile),
		indexFile:   indexFile,
		indexWriter: bufio.NewWriter(indexFile),
		offset:      0,
	}, nil
}

// Append adds an entry whose value is the concatenation of values. Keys must
// be appended in strictly increasing order.
func (w *KVStoreWriter) Append(key []byte, values ...[]byte) error {
	if w.count > 0 && bytes.Compare(key, w.lastKey) <= 0 {
		return fmt.Errorf("kv store: key %x appended after %x", key, w.lastKey)
	}

	valueLength := 0
	for _, value := range values {
		valueLength += len(value)
	}

	if uint64(len(key)) > math.MaxUint32 || uint64(valueLength) > math.MaxUint32 {
		return fmt.Errorf("kv store: entry too large (key %d bytes, value %d bytes)", len(key), valueLength)
	}

	buffer := make([]byte, 0, kvEntryHeaderSize+len(key)+valueLength)
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(key)))
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(valueLength))

	buffer = append(buffer, key...)
	for _, value := range values {
		buffer = append(buffer, value...)
	}

	if _, err := w.dataWriter.Write(buffer); err != nil {
		return err
	}

	if _, err := w.indexWriter.Write(binary.BigEndian.AppendUint64(nil, w.offset)); err != nil {
		return err
	}

	w.offset += uint64(len(buffer))
	w.lastKey = append(w.lastKey[:0], key...)
	w.count++

	return nil
}

// Close flushes and syncs both files. Closing twice is a no-op.
func (w *KVStoreWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	dataErr := closeBufferedFile(w.dataFile, w.dataWriter)
	indexErr := closeBufferedFile(w.indexFile, w.indexWriter)

	if dataErr != nil {
		return dataErr
	}
	return indexErr
}

func closeBufferedFile(file *os.File, writer *bufio.Writer) error {
	if err := writer.Flush(); err != nil {
		_ = file.Close()
		return err
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

type KVStoreReader struct {
	data  *FileReader
	index *FileReader
}

func newKVStoreReader(basename string) (*KVStoreReader, error) {
	data, err := newFileReader(basename + ".data")
	if err != nil {
		return nil, err
	}

	index, err := newFileReader(basename + ".index")
	if err != nil {
		_ = data.Close()
		return nil, err
	}

	if index.Len()%kvIndexEntrySize != 0 {
		_ = data.Close()
		_ = index.Close()
		return nil, fmt.Errorf("%w: %s.index has %d bytes", ErrCorrupt, basename, index.Len())
	}

	return &KVStoreReader{
		data:  data,
		index: index,
	}, nil
}

func (kv *KVStoreReader) Len() int {
	return int(kv.index.Len() / kvIndexEntrySize)
}

// At returns the i-th entry in key order.
func (kv *KVStoreReader) At(i int) ([]byte, []byte, error) {
	if i < 0 || i >= kv.Len() {
		return nil, nil, fmt.Errorf("kv store: entry %d out of range [0, %d)", i, kv.Len())
	}

	rawOffset, _ := kv.index.Slice(uint64(i)*kvIndexEntrySize, uint64(i+1)*kvIndexEntrySize)
	offset := binary.BigEndian.Uint64(rawOffset)

	header, ok := kv.data.Slice(offset, offset+kvEntryHeaderSize)
	if !ok {
		return nil, nil, fmt.Errorf("%w: kv entry %d at offset %d is outside the data file", ErrCorrupt, i, offset)
	}

	keyLength := uint64(binary.BigEndian.Uint32(header[0:4]))
	valueLength := uint64(binary.BigEndian.Uint32(header[4:8]))

	keyStart := offset + kvEntryHeaderSize
	key, ok := kv.data.Slice(keyStart, keyStart+keyLength)
	if !ok {
		return nil, nil, fmt.Errorf("%w: kv entry %d key is outside the data file", ErrCorrupt, i)
	}

	value, ok := kv.data.Slice(keyStart+keyLength, keyStart+keyLength+valueLength)
	if !ok {
		return nil, nil, fmt.Errorf("%w: kv entry %d value is outside the data file", ErrCorrupt, i)
	}

	return key, value, nil
}

// search returns the position of the first entry whose key is >= key.
func (kv *KVStoreReader) search(key []byte) (int, bool, error) {
	leftIndex := 0
	rightIndex := kv.Len()

	for leftIndex < rightIndex {
		index := leftIndex + (rightIndex-leftIndex)/2

		currentKey, _, err := kv.At(index)
		if err != nil {
			return 0, false, err
		}

		switch bytes.Compare(currentKey, key) {
		case -1:
			// currentKey < key, go right
			leftIndex = index + 1
		case 0:
			return index, true, nil
		default:
			// currentKey > key, go left
			rightIndex = index
		}
	}

	return leftIndex, false, nil
}

// Get returns the value of key, or nil if the key is absent.
func (kv *KVStoreReader) Get(key []byte) ([]byte, error) {
	index, found, err := kv.search(key)
	if err != nil || !found {
		return nil, err
	}

	_, value, err := kv.At(index)
	return value, err
}

// Floor returns the entry with the greatest key <= key. ok is false when
// every key is greater.
func (kv *KVStoreReader) Floor(key []byte) (floorKey []byte, value []byte, ok bool, err error) {
	index, found, err := kv.search(key)
	if err != nil {
		return nil, nil, false, err
	}

	if !found {
		if index == 0 {
			return nil, nil, false, nil
		}
		index--
	}

	floorKey, value, err = kv.At(index)
	if err != nil {
		return nil, nil, false, err
	}
	return floorKey, value, true, nil
}

func (kv *KVStoreReader) Close() error {
	dataErr := kv.data.Close()
	indexErr := kv.index.Close()

	if dataErr != nil {
		return dataErr
	}
	return indexErr
}
