package storage

import (
	"io"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
)

// StructCodec stores the index as packed parallel arrays. Document ids are
// interned once in a sorted table and postings refer to them by ordinal:
//
//	header
//	u32 doc count,  str id...
//	u32 term count, str term...
//	u32 offsets[term count + 1]   (postings[offsets[i]:offsets[i+1]] belong to term i)
//	u32 postings[offsets[term count]]
//	checksum
type StructCodec struct{}

func (StructCodec) Name() string { return NameStruct }

func (StructCodec) Encode(w io.Writer, entries []index.TermEntry) error {
	ordinals := make(map[string]int)
	for _, entry := range entries {
		for _, id := range entry.DocIDs {
			ordinals[id] = 0
		}
	}
	docs := make([]string, 0, len(ordinals))
	for id := range ordinals {
		docs = append(docs, id)
	}
	sort.Strings(docs)
	for i, id := range docs {
		ordinals[id] = i
	}

	ww := newWireWriter(w)
	ww.header(tagStruct)
	ww.count("document count", len(docs))
	for _, id := range docs {
		ww.str(id)
	}
	ww.count("term count", len(entries))
	for _, entry := range entries {
		ww.str(entry.Term)
	}
	offset := 0
	ww.u32(offset)
	for _, entry := range entries {
		offset += len(entry.DocIDs)
		ww.u32(offset)
	}
	for _, entry := range entries {
		for _, id := range entry.DocIDs {
			ww.u32(ordinals[id])
		}
	}
	return ww.finish()
}

func (StructCodec) Decode(r io.Reader) ([]index.TermEntry, error) {
	wr := newWireReader(r)
	if err := wr.header(tagStruct, NameStruct); err != nil {
		return nil, err
	}

	docCount, err := wr.count("document count")
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, prealloc(docCount))
	for i := 0; i < docCount; i++ {
		id, err := wr.str()
		if err != nil {
			return nil, err
		}
		if i > 0 && id <= docs[i-1] {
			return nil, corruptf("document table is not strictly ascending at %d", i)
		}
		docs = append(docs, id)
	}

	termCount, err := wr.count("term count")
	if err != nil {
		return nil, err
	}
	terms := make([]string, 0, prealloc(termCount))
	for i := 0; i < termCount; i++ {
		term, err := wr.str()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	offsets := make([]int, 0, prealloc(termCount+1))
	for i := 0; i <= termCount; i++ {
		off, err := wr.u32()
		if err != nil {
			return nil, err
		}
		if i == 0 && off != 0 {
			return nil, corruptf("first posting offset is %d, want 0", off)
		}
		if i > 0 && off < offsets[i-1] {
			return nil, corruptf("posting offsets decrease at term %d", i)
		}
		offsets = append(offsets, off)
	}

	entries := make([]index.TermEntry, 0, len(terms))
	for i, term := range terms {
		n := offsets[i+1] - offsets[i]
		if n > docCount {
			return nil, corruptf("term %q lists %d postings but only %d documents exist", term, n, docCount)
		}
		ids := make([]string, 0, prealloc(n))
		for j := 0; j < n; j++ {
			ord, err := wr.u32()
			if err != nil {
				return nil, err
			}
			if ord >= docCount {
				return nil, corruptf("posting ordinal %d out of range (%d documents)", ord, docCount)
			}
			ids = append(ids, docs[ord])
		}
		entries = append(entries, index.TermEntry{Term: term, DocIDs: ids})
	}
	if err := wr.trailer(); err != nil {
		return nil, err
	}
	return entries, nil
}
