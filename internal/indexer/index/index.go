// Package index holds the inverted index: a mapping from each term to the set
// of documents containing it, answering AND-queries by set intersection.
package index

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

// InvertedIndex maps terms to posting sets. It is immutable once built, so
// concurrent queries need no locking.
type InvertedIndex struct {
	postings map[string]PostingSet
}

// Empty returns an index with no terms.
func Empty() *InvertedIndex {
	return &InvertedIndex{postings: make(map[string]PostingSet)}
}

// FromEntries builds an index from decoded term entries. Repeated ids within
// an entry are collapsed. An entry without ids or a term seen twice is
// reported as ErrCorruptIndex.
func FromEntries(entries []TermEntry) (*InvertedIndex, error) {
	postings := make(map[string]PostingSet, len(entries))
	for _, entry := range entries {
		if len(entry.DocIDs) == 0 {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, apperrors.ExitFailure, "term %q has an empty posting set", entry.Term)
		}
		if _, dup := postings[entry.Term]; dup {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, apperrors.ExitFailure, "term %q appears twice", entry.Term)
		}
		set := make(PostingSet, len(entry.DocIDs))
		for _, id := range entry.DocIDs {
			set[id] = struct{}{}
		}
		postings[entry.Term] = set
	}
	return &InvertedIndex{postings: postings}, nil
}

// Query returns the ids of the documents that contain every term. An empty
// term list matches nothing. The result is sorted but callers should treat
// it as a set.
func (idx *InvertedIndex) Query(terms []string) []string {
	if len(terms) == 0 {
		return []string{}
	}
	first, ok := idx.postings[terms[0]]
	if !ok {
		return []string{}
	}
	if len(terms) == 1 {
		return first.Sorted()
	}

	var result PostingSet
	for _, term := range terms[1:] {
		set, ok := idx.postings[term]
		if !ok {
			return []string{}
		}
		if result == nil {
			result = intersect(first, set)
		} else {
			result = intersect(result, set)
		}
		if len(result) == 0 {
			return []string{}
		}
	}
	return result.Sorted()
}

// intersect returns a new set holding the ids present in both a and b. It
// walks the smaller set.
func intersect(a, b PostingSet) PostingSet {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(PostingSet, len(a))
	for id := range a {
		if b.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Postings returns a copy of the posting set of term, or nil when absent.
func (idx *InvertedIndex) Postings(term string) PostingSet {
	set, ok := idx.postings[term]
	if !ok {
		return nil
	}
	return set.clone()
}

// Len returns the number of distinct terms.
func (idx *InvertedIndex) Len() int {
	return len(idx.postings)
}

// Terms returns every term in ascending order.
func (idx *InvertedIndex) Terms() []string {
	terms := make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// DocCount returns the number of distinct document ids across all postings.
func (idx *InvertedIndex) DocCount() int {
	docs := make(map[string]struct{})
	for _, set := range idx.postings {
		for id := range set {
			docs[id] = struct{}{}
		}
	}
	return len(docs)
}

// Snapshot returns the index as term entries sorted by term, each with
// sorted ids. Codecs serialise this form so that output is deterministic.
func (idx *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.postings))
	for _, term := range idx.Terms() {
		entries = append(entries, TermEntry{
			Term:   term,
			DocIDs: idx.postings[term].Sorted(),
		})
	}
	return entries
}

// Equal reports whether both indexes hold the same term to id-set mapping.
func (idx *InvertedIndex) Equal(other *InvertedIndex) bool {
	if len(idx.postings) != len(other.postings) {
		return false
	}
	for term, set := range idx.postings {
		otherSet, ok := other.postings[term]
		if !ok || len(set) != len(otherSet) {
			return false
		}
		for id := range set {
			if _, ok := otherSet[id]; !ok {
				return false
			}
		}
	}
	return true
}

// Fingerprint hashes the index content. Equal indexes have equal
// fingerprints regardless of how they were built or loaded.
func (idx *InvertedIndex) Fingerprint() uint64 {
	d := xxhash.New()
	var lenBuf [4]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		d.Write(lenBuf[:])
		d.WriteString(s)
	}
	for _, entry := range idx.Snapshot() {
		writeString(entry.Term)
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(entry.DocIDs)))
		d.Write(lenBuf[:])
		for _, id := range entry.DocIDs {
			writeString(id)
		}
	}
	return d.Sum64()
}
