package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressBlockRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 100)

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			block, err := compressBlock(data, compression)
			require.NoError(t, err)

			assert.Equal(t, byte(blockFormatVersion), block[0])
			assert.Equal(t, byte(compression), block[1])
			if compression != CompressionNone {
				assert.Less(t, len(block), len(data))
			}

			decompressed, err := decompressBlock(block)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestCompressBlockKeepsIncompressibleData(t *testing.T) {
	data := []byte{0x01, 0x02}

	block, err := compressBlock(data, CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, byte(CompressionNone), block[1])

	decompressed, err := decompressBlock(block)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)

	block, err = compressBlock(nil, CompressionZstd)
	require.NoError(t, err)

	decompressed, err = decompressBlock(block)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

func TestDecompressBlockDetectsCorruption(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 64)

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			block, err := compressBlock(data, compression)
			require.NoError(t, err)

			flipped := bytes.Clone(block)
			flipped[len(flipped)-1] ^= 0xff
			_, err = decompressBlock(flipped)
			assert.ErrorIs(t, err, ErrCorrupt)

			badChecksum := bytes.Clone(block)
			badChecksum[6] ^= 0xff
			_, err = decompressBlock(badChecksum)
			assert.ErrorIs(t, err, ErrCorrupt)

			_, err = decompressBlock(block[:blockHeaderSize-1])
			assert.ErrorIs(t, err, ErrCorrupt)

			badVersion := bytes.Clone(block)
			badVersion[0] = 9
			_, err = decompressBlock(badVersion)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestCompressBlockUnknownCompression(t *testing.T) {
	_, err := compressBlock([]byte("data"), Compression(7))
	assert.Error(t, err)

	block, err := compressBlock([]byte("data"), CompressionNone)
	require.NoError(t, err)
	block[1] = 7
	_, err = decompressBlock(block)
	assert.ErrorIs(t, err, ErrCorrupt)
}
