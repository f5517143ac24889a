package index

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

func createFile(filename string) (*os.File, error) {
	return os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
}

// FileReader maps a whole segment file read-only.
type FileReader struct {
	data mmap.MMap
	file *os.File
}

func newFileReader(filename string) (*FileReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	// Zero length mappings are rejected by the OS.
	if info.Size() == 0 {
		return &FileReader{file: file}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &FileReader{
		data: data,
		file: file,
	}, nil
}

func (reader *FileReader) Len() uint64 {
	return uint64(len(reader.data))
}

// Slice returns data[start:end], or false if the range is outside the file.
func (reader *FileReader) Slice(start, end uint64) ([]byte, bool) {
	if start > end || end > uint64(len(reader.data)) {
		return nil, false
	}
	return reader.data[start:end], true
}

func (reader *FileReader) Close() error {
	if reader.data != nil {
		if err := reader.data.Unmap(); err != nil {
			_ = reader.file.Close()
			return err
		}
		reader.data = nil
	}

	return reader.file.Close()
}
