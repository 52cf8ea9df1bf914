package storage

import (
	"io"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
)

// BinaryCodec stores the index as a flat, length-prefixed record stream:
//
//	header | u32 term count | per term: str term, u32 cardinality, str id... | checksum
//
// where str is a u32 byte length followed by the UTF-8 bytes.
type BinaryCodec struct{}

func (BinaryCodec) Name() string { return NameBinary }

func (BinaryCodec) Encode(w io.Writer, entries []index.TermEntry) error {
	ww := newWireWriter(w)
	ww.header(tagBinary)
	ww.count("term count", len(entries))
	for _, entry := range entries {
		ww.str(entry.Term)
		ww.count("posting set size", len(entry.DocIDs))
		for _, id := range entry.DocIDs {
			ww.str(id)
		}
	}
	return ww.finish()
}

func (BinaryCodec) Decode(r io.Reader) ([]index.TermEntry, error) {
	wr := newWireReader(r)
	if err := wr.header(tagBinary, NameBinary); err != nil {
		return nil, err
	}
	termCount, err := wr.count("term count")
	if err != nil {
		return nil, err
	}
	entries := make([]index.TermEntry, 0, prealloc(termCount))
	for i := 0; i < termCount; i++ {
		term, err := wr.str()
		if err != nil {
			return nil, err
		}
		card, err := wr.count("posting set size")
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, prealloc(card))
		for j := 0; j < card; j++ {
			id, err := wr.str()
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		entries = append(entries, index.TermEntry{Term: term, DocIDs: ids})
	}
	if err := wr.trailer(); err != nil {
		return nil, err
	}
	return entries, nil
}
