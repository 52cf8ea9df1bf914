package index

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/tokenizer"
)

// Build indexes docs in order. Zero documents yield an empty index.
func Build(docs []Document) *InvertedIndex {
	idx := Empty()
	for _, doc := range docs {
		idx.add(doc.ID, tokenizer.Distinct(doc.Content))
	}
	return idx
}

// BuildParallel extracts each document's distinct terms on up to workers
// goroutines and then merges them serially. The result equals Build(docs).
func BuildParallel(ctx context.Context, docs []Document, workers int) (*InvertedIndex, error) {
	if workers <= 1 || len(docs) < 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Build(docs), nil
	}

	terms := make([][]string, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range docs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			terms[i] = tokenizer.Distinct(docs[i].Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := Empty()
	for i, doc := range docs {
		idx.add(doc.ID, terms[i])
	}
	return idx, nil
}

func (idx *InvertedIndex) add(docID string, terms []string) {
	for _, term := range terms {
		set, ok := idx.postings[term]
		if !ok {
			set = make(PostingSet)
			idx.postings[term] = set
		}
		set[docID] = struct{}{}
	}
}
