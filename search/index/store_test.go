package index

import (
	"fmt"
	"testing"

	"github.com/larose/ingest/search/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idField    schema.Field = 0
	titleField schema.Field = 1
	bodyField  schema.Field = 2
)

func newTestDoc(id uint64, title string) *schema.Document {
	doc := schema.NewDocument()
	doc.AddU64(idField, id)
	doc.AddText(titleField, title)
	return doc
}

func writeTestSegment(t *testing.T, directory string, compression Compression, blockSize int, docs []*schema.Document) {
	writers := []SegmentComponentWriter{newStoreWriter(compression, blockSize), newOpstampsWriter()}

	for i, doc := range docs {
		for _, writer := range writers {
			require.NoError(t, writer.Doc(DocumentId(i), Opstamp(100+i), doc))
		}
	}

	for _, writer := range writers {
		require.NoError(t, writer.Write(directory, "7"))
	}
}

func TestStoreReadsDocumentsAcrossBlocks(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			directory := t.TempDir()

			docs := make([]*schema.Document, 0, 50)
			for i := range 50 {
				docs = append(docs, newTestDoc(uint64(i), fmt.Sprintf("title number %d", i)))
			}

			// A block holds a few documents only.
			writeTestSegment(t, directory, compression, 64, docs)

			storeReader, err := newStoreReader(directory, "7")
			require.NoError(t, err)
			defer storeReader.Close()

			assert.Greater(t, storeReader.kvStoreReader.Len(), 5)

			for _, i := range []int{0, 49, 17, 18, 3, 3} {
				doc, err := storeReader.Doc(DocumentId(i))
				require.NoError(t, err)
				assert.True(t, docs[i].Equal(doc), "doc %d", i)
			}

			_, err = storeReader.Doc(50)
			assert.ErrorIs(t, err, ErrDocNotFound)

			var seen []DocumentId
			err = storeReader.Iterate(func(docId DocumentId, doc *schema.Document) error {
				assert.True(t, docs[docId].Equal(doc), "doc %d", docId)
				seen = append(seen, docId)
				return nil
			})
			require.NoError(t, err)
			require.Len(t, seen, 50)
			assert.Equal(t, DocumentId(49), seen[49])
		})
	}
}

func TestStoreKeepsStoredForm(t *testing.T) {
	directory := t.TempDir()

	doc := schema.NewDocument()
	doc.AddPreTokenizedText(bodyField, schema.PreTokenizedString{
		Text:   "Hello",
		Tokens: []schema.Token{{OffsetFrom: 0, OffsetTo: 5, Position: 0, Text: "hello", PositionLength: 1}},
	})

	writeTestSegment(t, directory, CompressionLZ4, 1024, []*schema.Document{doc})

	// The submitted document is not modified.
	value, ok := doc.GetFirst(bodyField)
	require.True(t, ok)
	assert.Equal(t, schema.KindPreTokStr, value.Kind())

	storeReader, err := newStoreReader(directory, "7")
	require.NoError(t, err)
	defer storeReader.Close()

	stored, err := storeReader.Doc(0)
	require.NoError(t, err)

	value, ok = stored.GetFirst(bodyField)
	require.True(t, ok)
	assert.Equal(t, schema.Str("Hello"), value)
}

func TestOpstampsStore(t *testing.T) {
	directory := t.TempDir()
	writeTestSegment(t, directory, CompressionNone, 1024, []*schema.Document{newTestDoc(1, "a"), newTestDoc(2, "b")})

	opstampsReader, err := newOpstampsReader(directory, "7")
	require.NoError(t, err)
	defer opstampsReader.Close()

	assert.Equal(t, uint32(2), opstampsReader.Len())

	opstamp, err := opstampsReader.Get(1)
	require.NoError(t, err)
	assert.Equal(t, Opstamp(101), opstamp)

	_, err = opstampsReader.Get(2)
	assert.ErrorIs(t, err, ErrDocNotFound)
}

func TestOpstampsWriterRequiresDenseDocIds(t *testing.T) {
	writer := newOpstampsWriter()
	require.NoError(t, writer.Doc(0, 1, newTestDoc(1, "a")))
	assert.Error(t, writer.Doc(2, 2, newTestDoc(2, "b")))
}
