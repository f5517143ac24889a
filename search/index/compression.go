package index

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

/*
Block:
  - format version (1 byte)
  - compression (1 byte)
  - uncompressed length (4 bytes)
  - xxhash64 of the uncompressed bytes (8 bytes)
  - payload
*/

const (
	blockFormatVersion = 1
	blockHeaderSize    = 14

	// lz4 cannot expand a block by more than this factor.
	maxLZ4Ratio = 255
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

func compressBlock(data []byte, compression Compression) ([]byte, error) {
	var payload []byte

	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		compressed := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, compressed, nil)
		if err != nil {
			return nil, err
		}
		payload = compressed[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown compression %s", compression)
	}

	// Incompressible data is kept as is.
	if len(payload) == 0 || len(payload) >= len(data) {
		compression = CompressionNone
		payload = data
	}

	block := make([]byte, 0, blockHeaderSize+len(payload))
	block = append(block, blockFormatVersion, byte(compression))
	block = binary.BigEndian.AppendUint32(block, uint32(len(data)))
	block = binary.BigEndian.AppendUint64(block, xxhash.Sum64(data))
	return append(block, payload...), nil
}

func decompressBlock(block []byte) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block of %d bytes is shorter than its header", ErrCorrupt, len(block))
	}

	if block[0] != blockFormatVersion {
		return nil, fmt.Errorf("%w: unknown block format version %d", ErrCorrupt, block[0])
	}

	compression := Compression(block[1])
	uncompressedLength := binary.BigEndian.Uint32(block[2:6])
	checksum := binary.BigEndian.Uint64(block[6:14])
	payload := block[blockHeaderSize:]

	var data []byte

	switch compression {
	case CompressionNone:
		if uint64(len(payload)) != uint64(uncompressedLength) {
			return nil, fmt.Errorf("%w: block length %d, header says %d", ErrCorrupt, len(payload), uncompressedLength)
		}
		data = payload
	case CompressionLZ4:
		if uint64(uncompressedLength) > uint64(len(payload))*maxLZ4Ratio {
			return nil, fmt.Errorf("%w: lz4 block of %d bytes cannot hold %d bytes", ErrCorrupt, len(payload), uncompressedLength)
		}
		data = make([]byte, uncompressedLength)
		n, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		data = data[:n]
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		data, err = dec.DecodeAll(payload, nil)
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression %s", ErrCorrupt, compression)
	}

	if uint64(len(data)) != uint64(uncompressedLength) {
		return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrCorrupt, len(data), uncompressedLength)
	}

	if xxhash.Sum64(data) != checksum {
		return nil, fmt.Errorf("%w: block checksum mismatch", ErrCorrupt)
	}

	return data, nil
}
