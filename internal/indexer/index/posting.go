package index

import "sort"

// Document is one corpus record handed to the builder.
type Document struct {
	ID      string
	Content string
}

// PostingSet holds the ids of the documents a term occurs in.
type PostingSet map[string]struct{}

// Contains reports whether docID is in the set.
func (s PostingSet) Contains(docID string) bool {
	_, ok := s[docID]
	return ok
}

// Sorted returns the ids in ascending order.
func (s PostingSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s PostingSet) clone() PostingSet {
	out := make(PostingSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// TermEntry is the serialisable form of one term and its postings. DocIDs are
// ascending and unique when produced by Snapshot.
type TermEntry struct {
	Term   string
	DocIDs []string
}
