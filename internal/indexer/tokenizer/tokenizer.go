// Package tokenizer splits document content and query lines into terms. The
// same function serves both paths so that query terms match index terms
// literally.
package tokenizer

import "strings"

// Tokenize breaks text into terms on runs of Unicode whitespace. Terms are
// kept verbatim: no case folding, stemming or punctuation stripping.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Distinct returns the terms of text with repeats removed, in order of first
// appearance.
func Distinct(text string) []string {
	terms := Tokenize(text)
	if len(terms) < 2 {
		return terms
	}
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
