package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/larose/ingest/search/schema"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

const commitFilename = "commit"

type SegmentMeta struct {
	Id      uint32 `json:"id"`
	NumDocs uint32 `json:"numDocs"`
}

// Commit is the content of the commit file: the state of the index as of
// the commit opstamp.
type Commit struct {
	Opstamp   Opstamp       `json:"opstamp"`
	Payload   *string       `json:"payload,omitempty"`
	Segments  []SegmentMeta `json:"segments"`
	DeletedId *uint32       `json:"deletedId,omitempty"`
}

func writeCommit(directory string, commit *Commit) error {
	tempFilePath := filepath.Join(directory, "."+commitFilename)
	tempFile, err := os.Create(tempFilePath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(tempFile)

	if err := encoder.Encode(commit); err != nil {
		_ = tempFile.Close()
		return err
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return err
	}

	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempFilePath, filepath.Join(directory, commitFilename))
}

// segmentStore applies commit requests to the files of an index directory.
// It is only used by the segment updater goroutine.
type segmentStore struct {
	directory   string
	compression Compression
	blockSize   int
	logger      *slog.Logger
	commit      *Commit
}

func newSegmentStore(directory string, commit *Commit, options Options) *segmentStore {
	return &segmentStore{
		directory:   directory,
		compression: options.Compression,
		blockSize:   options.BlockSize,
		logger:      options.Logger,
		commit:      commit,
	}
}

// persist makes the operations of req durable and visible: adds become a
// new segment, deletes are resolved against the documents they follow, and
// the commit file is replaced last.
func (store *segmentStore) persist(req commitRequest) (*Commit, error) {
	adds := make([]AddOperation, 0, len(req.ops))
	deletes := make([]DeleteOperation, 0)

	for _, op := range req.ops {
		switch op := op.(type) {
		case AddOperation:
			adds = append(adds, op)
		case DeleteOperation:
			deletes = append(deletes, op)
		default:
			return nil, fmt.Errorf("unknown operation %T", op)
		}
	}

	newCommit := &Commit{
		Opstamp:   req.opstamp,
		Payload:   req.payload,
		Segments:  slices.Clone(store.commit.Segments),
		DeletedId: store.commit.DeletedId,
	}

	deletedDocIdsBySegment, changed, err := store.resolveDeletes(deletes)
	if err != nil {
		return nil, err
	}

	if len(adds) > 0 {
		segmentId, err := store.newSegmentId()
		if err != nil {
			return nil, err
		}

		deletedInBatch, err := store.writeSegment(segmentId, adds, deletes)
		if err != nil {
			return nil, err
		}

		newCommit.Segments = append(newCommit.Segments, SegmentMeta{Id: segmentId, NumDocs: uint32(len(adds))})

		if !deletedInBatch.IsEmpty() {
			deletedDocIdsBySegment[segmentId] = deletedInBatch
			changed = true
		}
	}

	if changed {
		var nextDeletedId uint32
		if store.commit.DeletedId != nil {
			nextDeletedId = *store.commit.DeletedId + 1
		}

		// Left over by a persist that failed before its commit file was
		// written.
		if err := removeKVStore(deletedBasename(store.directory, nextDeletedId)); err != nil {
			return nil, err
		}

		if err := newDeletedWriter(deletedDocIdsBySegment).Write(store.directory, nextDeletedId); err != nil {
			return nil, err
		}

		newCommit.DeletedId = &nextDeletedId
	}

	// TODO: remove deleted.<n> files once no open IndexReader can still
	// reference them.
	if err := writeCommit(store.directory, newCommit); err != nil {
		return nil, err
	}

	store.commit = newCommit

	return newCommit, nil
}

func removeKVStore(basename string) error {
	for _, filename := range []string{basename + ".data", basename + ".index"} {
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (store *segmentStore) newSegmentId() (uint32, error) {
	for {
		segmentId := rand.Uint32()

		if slices.ContainsFunc(store.commit.Segments, func(segment SegmentMeta) bool { return segment.Id == segmentId }) {
			continue
		}

		segment := strconv.FormatUint(uint64(segmentId), 10)
		_, err := os.Stat(segmentFilename(store.directory, segment, opstampsComponent))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}

		return segmentId, nil
	}
}

// writeSegment writes adds as a new segment and returns the ids of its
// documents removed by deletes of the same batch.
func (store *segmentStore) writeSegment(segmentId uint32, adds []AddOperation, deletes []DeleteOperation) (*roaring.Bitmap, error) {
	segmentComponentWriters := []SegmentComponentWriter{
		newStoreWriter(store.compression, store.blockSize),
		newOpstampsWriter(),
		newFieldStatsWriter(),
	}

	deleted := roaring.NewBitmap()

	for i, add := range adds {
		docId := DocumentId(i)

		for _, segmentComponentWriter := range segmentComponentWriters {
			if err := segmentComponentWriter.Doc(docId, add.Opstamp, add.Document); err != nil {
				return nil, err
			}
		}

		if deletedBy(add.Opstamp, add.Document, deletes) {
			deleted.Add(uint32(docId))
		}
	}

	segment := strconv.FormatUint(uint64(segmentId), 10)

	for _, segmentComponentWriter := range segmentComponentWriters {
		if err := segmentComponentWriter.Write(store.directory, segment); err != nil {
			return nil, err
		}
	}

	store.logger.Debug("segment written", "segment", segment, "docs", len(adds), "deleted", deleted.GetCardinality())

	return deleted, nil
}

// deletedBy reports whether one of deletes, submitted after the add with
// the given opstamp, matches doc.
func deletedBy(opstamp Opstamp, doc *schema.Document, deletes []DeleteOperation) bool {
	for _, del := range deletes {
		if opstamp < del.Opstamp && del.Term.MatchesDocument(doc) {
			return true
		}
	}
	return false
}

// resolveDeletes returns the deleted doc ids of every committed segment once
// deletes are applied, and whether any segment changed. Segments are
// scanned in parallel.
func (store *segmentStore) resolveDeletes(deletes []DeleteOperation) (map[uint32]*roaring.Bitmap, bool, error) {
	segments := store.commit.Segments

	deletedReader, err := openDeletedReader(store.directory, store.commit.DeletedId)
	if err != nil {
		return nil, false, err
	}
	defer deletedReader.Close()

	bitmaps := make([]*roaring.Bitmap, len(segments))
	newlyDeleted := make([]uint64, len(segments))

	var group errgroup.Group
	group.SetLimit(runtime.GOMAXPROCS(0))

	for i, segment := range segments {
		group.Go(func() error {
			deletedDocIds, err := deletedReader.GetDeletedDocIdsForSegment(segment.Id)
			if err != nil {
				return err
			}
			if deletedDocIds == nil {
				deletedDocIds = roaring.NewBitmap()
			}

			before := deletedDocIds.GetCardinality()

			if len(deletes) > 0 {
				if err := store.applyDeletes(segment, deletedDocIds, deletes); err != nil {
					return fmt.Errorf("segment %d: %w", segment.Id, err)
				}
			}

			bitmaps[i] = deletedDocIds
			newlyDeleted[i] = deletedDocIds.GetCardinality() - before

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, false, err
	}

	deletedDocIdsBySegment := make(map[uint32]*roaring.Bitmap, len(segments))
	changed := false

	for i, segment := range segments {
		deletedDocIdsBySegment[segment.Id] = bitmaps[i]
		if newlyDeleted[i] > 0 {
			changed = true
			store.logger.Debug("deletes applied", "segment", segment.Id, "deleted", newlyDeleted[i])
		}
	}

	return deletedDocIdsBySegment, changed, nil
}

func (store *segmentStore) applyDeletes(segment SegmentMeta, deletedDocIds *roaring.Bitmap, deletes []DeleteOperation) error {
	segmentReader, err := newSegmentReader(store.directory, segment, deletedDocIds)
	if err != nil {
		return err
	}
	defer segmentReader.Close()

	var matched []uint32

	err = segmentReader.Documents(func(docId DocumentId, doc *schema.Document) error {
		opstamp, err := segmentReader.DocOpstamp(docId)
		if err != nil {
			return err
		}

		if deletedBy(opstamp, doc, deletes) {
			matched = append(matched, uint32(docId))
		}

		return nil
	})
	if err != nil {
		return err
	}

	deletedDocIds.AddMany(matched)

	return nil
}
