package main

import (
	"fmt"
	"time"

	"github.com/larose/ingest/search/index"
	"github.com/larose/ingest/search/schema"
)

func _inspect(cfg config) error {
	reader, err := index.NewIndexReader(cfg.directory)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("opstamp: %d\n", reader.Opstamp())
	if payload, ok := reader.Payload(); ok {
		fmt.Printf("payload: %s\n", payload)
	}
	fmt.Printf("live docs: %d\n", reader.NumDocs())

	for _, segment := range reader.Segments() {
		fmt.Printf("segment %d: %d docs\n", segment.Id, segment.NumDocs)
	}

	if cfg.url == "" {
		return nil
	}

	start := time.Now()

	addresses, err := reader.SearchByTerm(schema.TermFromText(urlField, cfg.url))
	if err != nil {
		return err
	}

	for _, address := range addresses {
		if err := printDocument(reader, address); err != nil {
			return err
		}
	}

	fmt.Printf("%d documents for %s in %d us\n", len(addresses), cfg.url, time.Since(start).Microseconds())

	return nil
}

func printDocument(reader *index.IndexReader, address index.DocAddress) error {
	doc, err := reader.Doc(address)
	if err != nil {
		return err
	}

	opstamp, err := reader.DocOpstamp(address)
	if err != nil {
		return err
	}

	title, _ := doc.GetFirst(titleField)
	fmt.Printf("%s opstamp=%d title=%v\n", address, opstamp, title)

	return nil
}
