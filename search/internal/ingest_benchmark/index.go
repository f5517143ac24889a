package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/larose/ingest/search/index"
	"github.com/larose/ingest/search/schema"
)

const (
	urlField   schema.Field = 0
	titleField schema.Field = 1
	bodyField  schema.Field = 2
)

type Article struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ArticleIterator struct {
	file   *os.File
	reader *bufio.Reader
	logger *slog.Logger
	line   int
}

func newArticleIterator(filePath string, logger *slog.Logger) (*ArticleIterator, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	return &ArticleIterator{
		file:   file,
		reader: bufio.NewReader(file),
		logger: logger,
	}, nil
}

func (it *ArticleIterator) NextBatch(maxItems int) ([]Article, error) {
	var batch []Article

	eof := false
	for {
		lineBytes, err := it.reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				eof = true
			} else {
				return nil, err
			}
		}

		if len(lineBytes) > 0 {
			it.line++

			var article Article
			if err := json.Unmarshal(lineBytes, &article); err != nil {
				it.logger.Warn("skipping malformed article", "line", it.line, "error", err)
				continue
			}

			batch = append(batch, article)
		}

		if eof || len(batch) == maxItems {
			break
		}
	}

	return batch, nil
}

func (it *ArticleIterator) Close() error {
	return it.file.Close()
}

func convertArticleToDocument(article Article) *schema.Document {
	doc := schema.NewDocument()
	doc.AddText(urlField, article.URL)
	doc.AddText(titleField, article.Title)
	doc.AddText(bodyField, article.Body)
	return doc
}

// upsert replaces any committed or pending article with the same url.
func upsert(article Article) []index.UserOperation {
	return []index.UserOperation{
		index.UserDelete(schema.TermFromText(urlField, article.URL)),
		index.UserAdd(convertArticleToDocument(article)),
	}
}

func commit(writer *index.IndexWriter, processed int) (index.Opstamp, error) {
	preparedCommit, err := writer.PrepareCommit()
	if err != nil {
		return 0, err
	}
	defer preparedCommit.Close()

	if err := preparedCommit.SetPayload(strconv.Itoa(processed)); err != nil {
		return 0, err
	}

	return preparedCommit.Commit()
}

func _index(cfg config) error {
	writer, err := index.NewIndexWriter(cfg.directory, func(o *index.Options) {
		o.Logger = cfg.logger
		o.Compression = cfg.compression
	})
	if err != nil {
		return err
	}
	defer writer.Close()

	iterator, err := newArticleIterator(cfg.input, cfg.logger)
	if err != nil {
		return err
	}
	defer iterator.Close()

	start := time.Now()
	totalProcessed := 0
	sinceCommit := 0

	var lastCommit index.Opstamp

	ops := make([]index.UserOperation, 0, 2*cfg.batchSize)

	for {
		articles, err := iterator.NextBatch(cfg.batchSize)
		if err != nil {
			return err
		}

		if len(articles) == 0 {
			break
		}

		for _, article := range articles {
			ops = append(ops, upsert(article)...)
		}

		if _, err := writer.Run(ops); err != nil {
			return err
		}
		ops = ops[:0]

		totalProcessed += len(articles)
		sinceCommit += len(articles)

		cfg.logger.Debug("batch submitted", "articles", len(articles), "total", totalProcessed)

		if sinceCommit >= cfg.commitEvery {
			if lastCommit, err = commit(writer, totalProcessed); err != nil {
				return err
			}
			sinceCommit = 0
		}
	}

	if sinceCommit > 0 {
		if lastCommit, err = commit(writer, totalProcessed); err != nil {
			return err
		}
	}

	if err := writer.WaitCommitted(context.Background(), lastCommit); err != nil {
		return err
	}

	elapsed := time.Since(start)
	cfg.logger.Info("indexed", "articles", totalProcessed, "opstamp", lastCommit, "elapsed", elapsed,
		"articles_per_second", float64(totalProcessed)/elapsed.Seconds())

	return nil
}
