// Package keyword labels clusters with their most characteristic terms
// using TF-IDF over the run's documents.
package keyword

import (
	"fmt"
	"sort"
	"strings"

	"github.com/james-bowman/nlp"
	"gonum.org/v1/gonum/mat"
)

// NoKeyword is stored for clusters whose documents yield no usable terms,
// so every cluster carries at least one label row.
const NoKeyword = "no_keyword"

// Modes for IDF computation.
const (
	// ModeGlobal computes document frequencies over the whole run corpus,
	// so a term common across all clusters is discounted everywhere.
	ModeGlobal = "global"
	// ModeLocal computes document frequencies within each cluster alone.
	ModeLocal = "local"
)

var stopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "were", "will", "with", "this", "but", "they", "have",
	"had", "what", "when", "where", "who", "which", "why", "how",
}

// Params configures extraction.
type Params struct {
	TopN        int
	Mode        string // global or local
	MaxFeatures int    // cap on terms considered per cluster, 0 = unlimited
}

// Extractor scores cluster documents against a run-level corpus.
type Extractor struct {
	params Params

	// global-mode state, built once per run by Fit
	vectoriser  *nlp.CountVectoriser
	transformer *nlp.TfidfTransformer
	fitted      bool
}

// NewExtractor validates params and returns an extractor. Global mode
// requires a Fit call with the run corpus before ClusterKeywords.
func NewExtractor(p Params) (*Extractor, error) {
	switch p.Mode {
	case ModeGlobal, ModeLocal:
	default:
		return nil, fmt.Errorf("unknown keyword mode %q", p.Mode)
	}
	if p.TopN < 1 {
		p.TopN = 3
	}
	return &Extractor{params: p}, nil
}

// Fit learns the run-level vocabulary and document frequencies. Local mode
// ignores the corpus and Fit is a no-op there.
func (e *Extractor) Fit(corpus []string) error {
	if e.params.Mode != ModeGlobal {
		return nil
	}
	if len(corpus) == 0 {
		return fmt.Errorf("fitting keyword extractor on empty corpus")
	}
	vectoriser := nlp.NewCountVectoriser(stopWords...)
	counts, err := vectoriser.FitTransform(corpus...)
	if err != nil {
		return fmt.Errorf("fitting vectoriser: %w", err)
	}
	transformer := nlp.NewTfidfTransformer()
	if _, err := transformer.FitTransform(counts); err != nil {
		return fmt.Errorf("fitting tfidf: %w", err)
	}
	e.vectoriser = vectoriser
	e.transformer = transformer
	e.fitted = true
	return nil
}

// ClusterKeywords returns the top-N terms for one cluster's documents,
// highest mean TF-IDF first with alphabetical tie-break. An empty or
// all-stopword cluster yields the NoKeyword sentinel.
func (e *Extractor) ClusterKeywords(docs []string) ([]string, error) {
	if allBlank(docs) {
		return []string{NoKeyword}, nil
	}

	var weights mat.Matrix
	var vocab map[string]int
	var err error
	switch e.params.Mode {
	case ModeGlobal:
		if !e.fitted {
			return nil, fmt.Errorf("extractor not fitted")
		}
		counts, terr := e.vectoriser.Transform(docs...)
		if terr != nil {
			return nil, fmt.Errorf("vectorising cluster: %w", terr)
		}
		weights, err = e.transformer.Transform(counts)
		vocab = e.vectoriser.Vocabulary
	case ModeLocal:
		vectoriser := nlp.NewCountVectoriser(stopWords...)
		counts, terr := vectoriser.FitTransform(docs...)
		if terr != nil {
			return nil, fmt.Errorf("vectorising cluster: %w", terr)
		}
		weights, err = nlp.NewTfidfTransformer().FitTransform(counts)
		vocab = vectoriser.Vocabulary
	}
	if err != nil {
		return nil, fmt.Errorf("weighting cluster terms: %w", err)
	}
	if len(vocab) == 0 {
		return []string{NoKeyword}, nil
	}

	terms := rankTerms(weights, vocab, e.params.MaxFeatures)
	if len(terms) == 0 {
		return []string{NoKeyword}, nil
	}
	if len(terms) > e.params.TopN {
		terms = terms[:e.params.TopN]
	}
	return terms, nil
}

// allBlank reports whether no document carries any content. Preprocessing
// can reduce a document to "", so emptiness is checked per text, not by
// slice length.
func allBlank(docs []string) bool {
	for _, d := range docs {
		if strings.TrimSpace(d) != "" {
			return false
		}
	}
	return true
}

type scoredTerm struct {
	term  string
	score float64
}

// rankTerms averages each term's weight over the cluster's documents.
// Weight matrices are term-major: one row per vocabulary term, one column
// per document.
func rankTerms(weights mat.Matrix, vocab map[string]int, maxFeatures int) []string {
	rows, cols := weights.Dims()
	if rows == 0 || cols == 0 {
		return nil
	}

	scored := make([]scoredTerm, 0, len(vocab))
	for term, row := range vocab {
		if row >= rows {
			continue
		}
		var sum float64
		for c := 0; c < cols; c++ {
			sum += weights.At(row, c)
		}
		if sum <= 0 {
			continue
		}
		scored = append(scored, scoredTerm{term: term, score: sum / float64(cols)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].term < scored[j].term
	})

	if maxFeatures > 0 && len(scored) > maxFeatures {
		scored = scored[:maxFeatures]
	}
	terms := make([]string, len(scored))
	for i, s := range scored {
		terms[i] = s.term
	}
	return terms
}
