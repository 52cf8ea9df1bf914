package index

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/Adithya-Monish-Kumar-K/invindex/pkg/errors"
)

func animalDocs() []Document {
	return []Document{
		{ID: "1", Content: "cat dog"},
		{ID: "2", Content: "dog bird"},
		{ID: "3", Content: "cat bird"},
	}
}

func TestQueryAnimals(t *testing.T) {
	idx := Build(animalDocs())
	tests := []struct {
		terms []string
		want  []string
	}{
		{[]string{"cat"}, []string{"1", "3"}},
		{[]string{"cat", "dog"}, []string{"1"}},
		{[]string{"dog", "bird"}, []string{"2"}},
		{[]string{"fish"}, []string{}},
		{[]string{}, []string{}},
		{nil, []string{}},
		{[]string{"cat", "dog", "bird"}, []string{}},
		{[]string{"cat", "fish"}, []string{}},
		{[]string{"fish", "cat"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.terms), func(t *testing.T) {
			got := idx.Query(tt.terms)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Query(%q) mismatch (-want +got):\n%s", tt.terms, diff)
			}
		})
	}
}

func TestEmptyCorpus(t *testing.T) {
	for _, docs := range [][]Document{nil, {}} {
		idx := Build(docs)
		if idx.Len() != 0 {
			t.Fatalf("empty corpus produced %d terms", idx.Len())
		}
		if got := idx.Query([]string{"anything"}); len(got) != 0 {
			t.Errorf("Query on empty index = %v, want empty", got)
		}
		if got := idx.Query(nil); len(got) != 0 {
			t.Errorf("empty Query on empty index = %v, want empty", got)
		}
	}
}

func TestRepeatedTermInDocumentIsOnePosting(t *testing.T) {
	idx := Build([]Document{{ID: "7", Content: "spam spam spam eggs"}})
	if got := idx.Postings("spam"); len(got) != 1 || !got.Contains("7") {
		t.Errorf("Postings(spam) = %v, want {7}", got)
	}
}

func TestDuplicateDocumentIDsUnion(t *testing.T) {
	idx := Build([]Document{
		{ID: "1", Content: "alpha"},
		{ID: "1", Content: "beta"},
	})
	if diff := cmp.Diff([]string{"1"}, idx.Query([]string{"alpha"})); diff != "" {
		t.Errorf("alpha (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1"}, idx.Query([]string{"beta"})); diff != "" {
		t.Errorf("beta (-want +got):\n%s", diff)
	}
	if idx.DocCount() != 1 {
		t.Errorf("DocCount = %d, want 1", idx.DocCount())
	}
}

func TestCaseAndPunctuationSensitive(t *testing.T) {
	idx := Build([]Document{
		{ID: "a", Content: "Cat"},
		{ID: "b", Content: "cat,"},
	})
	if got := idx.Query([]string{"cat"}); len(got) != 0 {
		t.Errorf("Query(cat) = %v, want empty", got)
	}
	if diff := cmp.Diff([]string{"a"}, idx.Query([]string{"Cat"})); diff != "" {
		t.Errorf("Query(Cat) (-want +got):\n%s", diff)
	}
}

func TestPostingsReturnsCopy(t *testing.T) {
	idx := Build(animalDocs())
	set := idx.Postings("cat")
	delete(set, "1")
	if diff := cmp.Diff([]string{"1", "3"}, idx.Query([]string{"cat"})); diff != "" {
		t.Errorf("mutating Postings leaked into index (-want +got):\n%s", diff)
	}
	if idx.Postings("fish") != nil {
		t.Errorf("Postings of absent term should be nil")
	}
}

func randomCorpus(r *rand.Rand, docs, vocab, words int) []Document {
	out := make([]Document, docs)
	for i := range out {
		n := r.Intn(words) + 1
		parts := make([]string, n)
		for w := range parts {
			parts[w] = fmt.Sprintf("t%d", r.Intn(vocab))
		}
		out[i] = Document{ID: fmt.Sprintf("doc-%d", r.Intn(docs*2)), Content: strings.Join(parts, " ")}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func TestAndSemanticsProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		idx := Build(randomCorpus(r, 60, 25, 8))
		a := fmt.Sprintf("t%d", r.Intn(30))
		b := fmt.Sprintf("t%d", r.Intn(30))

		qa, qb := toSet(idx.Query([]string{a})), toSet(idx.Query([]string{b}))
		want := map[string]bool{}
		for id := range qa {
			if qb[id] {
				want[id] = true
			}
		}
		if diff := cmp.Diff(want, toSet(idx.Query([]string{a, b}))); diff != "" {
			t.Errorf("Query([%s %s]) is not the intersection (-want +got):\n%s", a, b, diff)
		}
		if diff := cmp.Diff(toSet(idx.Query([]string{a, b})), toSet(idx.Query([]string{b, a}))); diff != "" {
			t.Errorf("term order changed result (-ab +ba):\n%s", diff)
		}
		if diff := cmp.Diff(qa, toSet(idx.Query([]string{a, a}))); diff != "" {
			t.Errorf("duplicate term changed result (-single +double):\n%s", diff)
		}
		if got := idx.Query([]string{a, "absent-term", b}); len(got) != 0 {
			t.Errorf("absent term should empty the result, got %v", got)
		}
	}
}

func TestBuildParallelMatchesBuild(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	docs := randomCorpus(r, 500, 100, 20)
	serial := Build(docs)
	for _, workers := range []int{0, 1, 2, 8} {
		parallel, err := BuildParallel(context.Background(), docs, workers)
		if err != nil {
			t.Fatalf("BuildParallel(%d): %v", workers, err)
		}
		if !serial.Equal(parallel) {
			t.Errorf("BuildParallel(%d) differs from Build", workers)
		}
		if serial.Fingerprint() != parallel.Fingerprint() {
			t.Errorf("BuildParallel(%d) fingerprint differs", workers)
		}
	}
}

func TestBuildParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildParallel(ctx, animalDocs(), 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("BuildParallel on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := Build(animalDocs())
	snap := idx.Snapshot()
	want := []TermEntry{
		{Term: "bird", DocIDs: []string{"2", "3"}},
		{Term: "cat", DocIDs: []string{"1", "3"}},
		{Term: "dog", DocIDs: []string{"1", "2"}},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	back, err := FromEntries(snap)
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	if !idx.Equal(back) {
		t.Errorf("FromEntries(Snapshot()) differs from original")
	}
}

func TestFromEntries(t *testing.T) {
	idx, err := FromEntries([]TermEntry{{Term: "x", DocIDs: []string{"1", "1", "2"}}})
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "2"}, idx.Query([]string{"x"})); diff != "" {
		t.Errorf("duplicates not collapsed (-want +got):\n%s", diff)
	}

	if _, err := FromEntries([]TermEntry{{Term: "x"}}); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("empty posting set: err = %v, want ErrCorruptIndex", err)
	}
	dup := []TermEntry{{Term: "x", DocIDs: []string{"1"}}, {Term: "x", DocIDs: []string{"2"}}}
	if _, err := FromEntries(dup); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("duplicate term: err = %v, want ErrCorruptIndex", err)
	}
}

func TestEqualAndFingerprint(t *testing.T) {
	a := Build(animalDocs())
	b := Build([]Document{
		{ID: "3", Content: "bird cat"},
		{ID: "2", Content: "bird dog dog"},
		{ID: "1", Content: "dog cat"},
	})
	if !a.Equal(b) || a.Fingerprint() != b.Fingerprint() {
		t.Errorf("same mapping built in a different order should be equal")
	}
	c := Build([]Document{{ID: "1", Content: "cat dog"}})
	if a.Equal(c) || a.Fingerprint() == c.Fingerprint() {
		t.Errorf("different mappings compared equal")
	}
	if Empty().Fingerprint() != Build(nil).Fingerprint() {
		t.Errorf("empty fingerprints differ")
	}
}

func BenchmarkBuild(b *testing.B) {
	docs := make([]Document, 10000)
	for i := range docs {
		docs[i] = Document{
			ID:      fmt.Sprintf("doc-%d", i),
			Content: "search engine with distributed indexing and query processing",
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Build(docs)
	}
}

func BenchmarkQuery(b *testing.B) {
	docs := make([]Document, 10000)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprintf("doc-%d", i), Content: fmt.Sprintf("common term%d", i%100)}
	}
	idx := Build(docs)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Query([]string{"common", "term7"})
	}
}

func BenchmarkQueryParallel(b *testing.B) {
	docs := make([]Document, 10000)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprintf("doc-%d", i), Content: fmt.Sprintf("common term%d", i%100)}
	}
	idx := Build(docs)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = idx.Query([]string{"common", "term7"})
		}
	})
}
