package tokenizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"only whitespace", " \t \n ", []string{}},
		{"single", "cat", []string{"cat"}},
		{"runs of whitespace", "  cat \t\tdog\n bird  ", []string{"cat", "dog", "bird"}},
		{"case preserved", "Cat cat CAT", []string{"Cat", "cat", "CAT"}},
		{"punctuation preserved", "dog, dog. (dog)", []string{"dog,", "dog.", "(dog)"}},
		{"unicode", "Анархизм — это философия", []string{"Анархизм", "—", "это", "философия"}},
		{"non-breaking space splits", "a b", []string{"a", "b"}},
		{"repeats kept", "a a b", []string{"a", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" && !(len(tt.want) == 0 && len(got) == 0) {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestDistinct(t *testing.T) {
	got := Distinct("dog cat dog bird cat")
	want := []string{"dog", "cat", "bird"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Distinct mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryAndDocumentSplitAlike(t *testing.T) {
	doc := "the  quick\tbrown fox"
	query := "quick brown"
	docTerms := map[string]bool{}
	for _, term := range Tokenize(doc) {
		docTerms[term] = true
	}
	for _, term := range Tokenize(query) {
		if !docTerms[term] {
			t.Errorf("query term %q not produced from document text", term)
		}
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := "distributed search engine with inverted index and query processing over a large corpus of documents"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
