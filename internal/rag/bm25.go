package rag

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Okapi BM25 free parameters. Standard defaults; the candidate pool is small
// (bounded by the retrieval pool size) so tuning pressure is low.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// lexicalIndex holds BM25 corpus statistics for one candidate batch. It is
// rebuilt on every retrieval call and must not be shared across concurrent
// queries — the statistics are query-local by design, which keeps the index
// build cost bounded by the candidate pool rather than the corpus.
type lexicalIndex struct {
	// docs holds the tokenised candidate texts in input order.
	docs [][]string

	// docFreq maps each term to the number of candidate documents containing it.
	docFreq map[string]int

	// avgLen is the mean token count across candidate documents.
	avgLen float64
}

// newLexicalIndex tokenises the candidate texts and computes the corpus
// statistics BM25 needs. An empty corpus yields a usable index that scores
// everything 0.
func newLexicalIndex(texts []string) *lexicalIndex {
	idx := &lexicalIndex{
		docs:    make([][]string, len(texts)),
		docFreq: make(map[string]int),
	}

	total := 0
	for i, text := range texts {
		tokens := tokenize(text)
		idx.docs[i] = tokens
		total += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.docFreq[tok]++
		}
	}

	if len(texts) > 0 {
		idx.avgLen = float64(total) / float64(len(texts))
	}

	return idx
}

// scoreAll computes the BM25 score of every candidate document against the
// query terms, in input order. Documents sharing no terms with the query
// score 0. The loop checks ctx between documents so an oversized batch can
// still be abandoned when the caller goes away.
func (idx *lexicalIndex) scoreAll(ctx context.Context, queryTerms []string) ([]float64, error) {
	scores := make([]float64, len(idx.docs))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	n := float64(len(idx.docs))
	for i, doc := range idx.docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(doc) == 0 {
			continue
		}

		freq := make(map[string]int, len(doc))
		for _, tok := range doc {
			freq[tok]++
		}

		docLen := float64(len(doc))
		var score float64
		for _, term := range queryTerms {
			tf := float64(freq[term])
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[term])
			// Okapi IDF with the +1 inside the log to keep it non-negative
			// even when a term appears in over half the candidates.
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/idx.avgLen))
		}
		scores[i] = score
	}

	return scores, nil
}

// tokenize lowercases text and splits on non-alphanumeric rune boundaries,
// dropping empty tokens. No stemming and no stopword list — the behaviour is
// language-agnostic and deterministic.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Fields(b.String())
}
