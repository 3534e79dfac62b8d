package embed

import (
	"reflect"
	"testing"

	"github.com/newslens/newslens/internal/config"
)

func TestPreprocess(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Check <b>THIS</b> Out! Visit https://example.com/page now", "check this out visit now"},
		{"속보: 대통령, 새 정책 발표!", "속보 대통령 새 정책 발표"},
		{"  Multiple   spaces\tand\nnewlines  ", "multiple spaces and newlines"},
		{"Fed raises rates 0.25%", "fed raises rates 0 25"},
		{"!!! ??? ***", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Preprocess(c.in); got != c.want {
			t.Errorf("Preprocess(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPreprocessAllPreservesOrder(t *testing.T) {
	got := PreprocessAll([]string{"First STORY", "", "Second <i>story</i>"})
	want := []string{"first story", "", "second story"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNewRejectsUnknownEmbedderType(t *testing.T) {
	if _, err := New(config.EmbedderConfig{Type: "word2vec"}); err == nil {
		t.Fatal("expected error for unknown embedder type")
	}
	if _, err := New(config.EmbedderConfig{Type: "onnx"}); err == nil {
		t.Fatal("expected error when onnx block is missing")
	}
}

func TestCheckModelWidth(t *testing.T) {
	if err := checkModelWidth(384, 384); err != nil {
		t.Fatalf("matching widths: %v", err)
	}
	if err := checkModelWidth(768, 0); err != nil {
		t.Fatalf("unconfigured width should pass: %v", err)
	}
	if err := checkModelWidth(768, 384); err == nil {
		t.Fatal("expected error for mismatched model width")
	}
}

func TestNewHTTPEmbedderValidates(t *testing.T) {
	if _, err := NewHTTPEmbedder(HTTPConfig{Model: "text-embedding-3-small"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewHTTPEmbedder(HTTPConfig{BaseURL: "https://api.example.com/v1"}); err == nil {
		t.Fatal("expected error for missing model")
	}
	e, err := NewHTTPEmbedder(HTTPConfig{
		BaseURL:    "https://api.example.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
	})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder: %v", err)
	}
	if e.Dimensions() != 384 {
		t.Fatalf("expected 384 dimensions, got %d", e.Dimensions())
	}
}
