package keyword

import (
	"reflect"
	"testing"
)

var corpus = []string{
	"rocket launch from coastal pad",
	"rocket engine test fires again",
	"stock rally continues third day",
	"stock slump deepens before earnings",
	"cold weather expected over weekend",
}

func newGlobalExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(Params{TopN: 3, Mode: ModeGlobal})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if err := e.Fit(corpus); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return e
}

func TestNewExtractorRejectsUnknownMode(t *testing.T) {
	if _, err := NewExtractor(Params{Mode: "bm25"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestGlobalModeRequiresFit(t *testing.T) {
	e, err := NewExtractor(Params{TopN: 3, Mode: ModeGlobal})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if _, err := e.ClusterKeywords([]string{"rocket launch"}); err == nil {
		t.Fatal("expected error before Fit")
	}
	if err := e.Fit(nil); err == nil {
		t.Fatal("expected error fitting empty corpus")
	}
}

func TestGlobalModeSurfacesClusterTerm(t *testing.T) {
	e := newGlobalExtractor(t)

	terms, err := e.ClusterKeywords(corpus[:2])
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	if len(terms) == 0 || len(terms) > 3 {
		t.Fatalf("expected 1-3 terms, got %v", terms)
	}
	found := false
	for _, term := range terms {
		if term == "rocket" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among top terms, got %v", "rocket", terms)
	}
}

func TestClusterKeywordsIsDeterministic(t *testing.T) {
	e := newGlobalExtractor(t)

	first, err := e.ClusterKeywords(corpus[2:4])
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	second, err := e.ClusterKeywords(corpus[2:4])
	if err != nil {
		t.Fatalf("ClusterKeywords rerun: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same input produced different terms: %v vs %v", first, second)
	}
}

func TestLocalModeNeedsNoFit(t *testing.T) {
	e, err := NewExtractor(Params{TopN: 3, Mode: ModeLocal})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	terms, err := e.ClusterKeywords([]string{
		"kimchi festival opens in seoul",
		"kimchi recipe contest draws crowds",
	})
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	if len(terms) == 0 {
		t.Fatal("expected at least one term")
	}
}

func TestEmptyClusterYieldsSentinel(t *testing.T) {
	e := newGlobalExtractor(t)

	terms, err := e.ClusterKeywords(nil)
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{NoKeyword}) {
		t.Fatalf("expected sentinel, got %v", terms)
	}
}

func TestBlankDocumentsYieldSentinel(t *testing.T) {
	// A document can preprocess down to the empty string; a cluster of such
	// documents must still produce the sentinel, not an error.
	global := newGlobalExtractor(t)
	terms, err := global.ClusterKeywords([]string{""})
	if err != nil {
		t.Fatalf("global ClusterKeywords: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{NoKeyword}) {
		t.Fatalf("global mode: expected sentinel, got %v", terms)
	}

	local, err := NewExtractor(Params{TopN: 3, Mode: ModeLocal})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	terms, err = local.ClusterKeywords([]string{"", "   "})
	if err != nil {
		t.Fatalf("local ClusterKeywords: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{NoKeyword}) {
		t.Fatalf("local mode: expected sentinel, got %v", terms)
	}
}

func TestTopNLimitsTerms(t *testing.T) {
	e, err := NewExtractor(Params{TopN: 1, Mode: ModeLocal})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	terms, err := e.ClusterKeywords(corpus)
	if err != nil {
		t.Fatalf("ClusterKeywords: %v", err)
	}
	if len(terms) != 1 {
		t.Fatalf("expected exactly 1 term, got %v", terms)
	}
}
