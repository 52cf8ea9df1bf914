package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

const jsonFormat = "invindex"

// JSONCodec stores the index as a human-readable JSON document mapping each
// term to an array of document ids.
type JSONCodec struct{}

type jsonDocument struct {
	Format  string              `json:"format"`
	Codec   string              `json:"codec"`
	Version int                 `json:"version"`
	Terms   map[string][]string `json:"terms"`
}

func (JSONCodec) Name() string { return NameJSON }

func (JSONCodec) Encode(w io.Writer, entries []index.TermEntry) error {
	doc := jsonDocument{
		Format:  jsonFormat,
		Codec:   NameJSON,
		Version: int(formatVersion),
		Terms:   make(map[string][]string, len(entries)),
	}
	for _, entry := range entries {
		if !utf8.ValidString(entry.Term) {
			return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitFailure, "json codec cannot store term %q: invalid UTF-8", entry.Term)
		}
		for _, id := range entry.DocIDs {
			if !utf8.ValidString(id) {
				return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitFailure, "json codec cannot store document id %q: invalid UTF-8", id)
			}
		}
		doc.Terms[entry.Term] = entry.DocIDs
	}
	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(doc); err != nil {
		return fmt.Errorf("marshaling json index: %w", err)
	}
	return bw.Flush()
}

func (JSONCodec) Decode(r io.Reader) ([]index.TermEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStorageRead, err)
	}
	if got := sniff(data); got != NameJSON {
		if got != "" {
			return nil, mismatchf("file was written by the %s codec, not %s", got, NameJSON)
		}
		return nil, corruptf("not a %s index file", NameJSON)
	}

	var doc jsonDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, corruptf("parsing json index: %v", err)
	}
	if rest := bytes.TrimSpace(data[dec.InputOffset():]); len(rest) > 0 {
		return nil, corruptf("unexpected data after json document")
	}
	if doc.Format != jsonFormat {
		return nil, corruptf("not a %s index file", NameJSON)
	}
	if doc.Codec != NameJSON {
		return nil, mismatchf("document declares codec %q, not %s", doc.Codec, NameJSON)
	}
	if doc.Version != int(formatVersion) {
		return nil, corruptf("unsupported format version %d", doc.Version)
	}
	if doc.Terms == nil {
		return nil, corruptf("json index has no terms object")
	}

	terms := make([]string, 0, len(doc.Terms))
	for term := range doc.Terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	entries := make([]index.TermEntry, 0, len(terms))
	for _, term := range terms {
		entries = append(entries, index.TermEntry{Term: term, DocIDs: doc.Terms[term]})
	}
	return entries, nil
}
