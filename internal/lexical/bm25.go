// Package lexical implements the BM25 inverted index: term posting lists,
// per-document lengths, and corpus statistics, scored with the standard BM25
// formula against the running mean document length.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/nibzard/agrama/internal/graph"
)

// Tokenizer produces the finite token sequence for a piece of content. The
// index makes no assumption beyond "a finite sequence of byte strings";
// callers plug in whatever tokenization fits their corpus.
type Tokenizer interface {
	Tokenize(text []byte) []string
}

// Config holds the two BM25 free parameters.
type Config struct {
	K1 float64
	B  float64
}

func (c Config) withDefaults() Config {
	if c.K1 <= 0 {
		c.K1 = 1.2
	}
	if c.B <= 0 {
		c.B = 0.75
	}
	return c
}

type posting struct {
	doc graph.NodeID
	tf  int
}

// Index is the BM25 lexical index. All methods are safe for
// concurrent use; Search takes a read lock only.
type Index struct {
	cfg Config

	mu         sync.RWMutex
	postings   map[string][]posting
	docLengths map[graph.NodeID]int
	totalLen   int
}

// New creates an empty index with the given parameters.
func New(cfg Config) *Index {
	return &Index{
		cfg:        cfg.withDefaults(),
		postings:   make(map[string][]posting),
		docLengths: make(map[graph.NodeID]int),
	}
}

// IndexDoc adds or replaces doc's tokens. Re-indexing an existing document
// first removes its old postings so term frequencies never double-count.
func (idx *Index) IndexDoc(doc graph.NodeID, tokens []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.docLengths[doc]; ok {
		idx.removeLocked(doc)
	}

	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	for term, tf := range freq {
		list := idx.postings[term]
		i := sort.Search(len(list), func(i int) bool { return list[i].doc >= doc })
		list = append(list, posting{})
		copy(list[i+1:], list[i:])
		list[i] = posting{doc: doc, tf: tf}
		idx.postings[term] = list
	}
	idx.docLengths[doc] = len(tokens)
	idx.totalLen += len(tokens)
}

// Remove deletes doc from the index. Removing an unknown doc is a no-op.
func (idx *Index) Remove(doc graph.NodeID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(doc)
}

func (idx *Index) removeLocked(doc graph.NodeID) {
	length, ok := idx.docLengths[doc]
	if !ok {
		return
	}
	for term, list := range idx.postings {
		i := sort.Search(len(list), func(i int) bool { return list[i].doc >= doc })
		if i < len(list) && list[i].doc == doc {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(idx.postings, term)
			} else {
				idx.postings[term] = list
			}
		}
	}
	delete(idx.docLengths, doc)
	idx.totalLen -= length
}

// Result is one scored hit.
type Result struct {
	Doc   graph.NodeID
	Score float64
}

// Search scores every document containing at least one query token and
// returns the top k by BM25 score, ties broken by ascending doc id so output
// is stable across runs.
func (idx *Index) Search(queryTokens []string, k int) []Result {
	if k <= 0 {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docLengths)
	if n == 0 {
		return nil
	}
	avgLen := float64(idx.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[graph.NodeID]float64)
	for _, term := range queryTokens {
		for _, matched := range idx.matchTermsLocked(term) {
			list := idx.postings[matched]
			idf := idfFor(n, len(list))
			for _, p := range list {
				tf := float64(p.tf)
				docLen := float64(idx.docLengths[p.doc])
				denom := tf + idx.cfg.K1*(1-idx.cfg.B+idx.cfg.B*docLen/avgLen)
				scores[p.doc] += idf * tf * (idx.cfg.K1 + 1) / denom
			}
		}
	}

	results := make([]Result, 0, len(scores))
	for doc, score := range scores {
		results = append(results, Result{Doc: doc, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Doc < results[j].Doc
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// prefixMinLen is the shortest query token eligible for prefix expansion
// when it matches no indexed term exactly.
const prefixMinLen = 3

// matchTermsLocked resolves one query token to indexed terms. An exact match
// wins outright; otherwise tokens of at least prefixMinLen bytes fall back
// to matching every indexed term they prefix, so truncated queries like
// "auth" still reach "authentication" without a stemmer.
func (idx *Index) matchTermsLocked(term string) []string {
	if _, ok := idx.postings[term]; ok {
		return []string{term}
	}
	if len(term) < prefixMinLen {
		return nil
	}
	var matched []string
	for t := range idx.postings {
		if strings.HasPrefix(t, term) {
			matched = append(matched, t)
		}
	}
	sort.Strings(matched)
	return matched
}

// DocCount returns the number of documents currently indexed.
func (idx *Index) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLengths)
}

// idfFor is the BM25+ style idf: ln(1 + (N - df + 0.5)/(df + 0.5)), always
// nonnegative even for terms present in most documents.
func idfFor(n, df int) float64 {
	return math.Log1p((float64(n) - float64(df) + 0.5) / (float64(df) + 0.5))
}
