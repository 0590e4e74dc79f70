package domain

import (
	"testing"
	"time"
)

func TestChunkID(t *testing.T) {
	if got := ChunkID("solid-state-review", 3); got != "solid-state-review:3" {
		t.Errorf("ChunkID() = %q, want %q", got, "solid-state-review:3")
	}
}

func TestDocumentIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/papers/goodenough_2018.txt", "goodenough_2018"},
		{"cathode-degradation.md", "cathode-degradation"},
		{"/a/b/noext", "noext"},
	}
	for _, tt := range tests {
		if got := DocumentIDFromPath(tt.path); got != tt.want {
			t.Errorf("DocumentIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDocumentIDFromContent_Deterministic(t *testing.T) {
	a := DocumentIDFromContent("lithium plating at high C-rates")
	b := DocumentIDFromContent("lithium plating at high C-rates")
	if a != b {
		t.Errorf("same content produced different IDs: %q vs %q", a, b)
	}
	if len(a) != 24 {
		t.Errorf("ID length = %d, want 24", len(a))
	}
	if c := DocumentIDFromContent("different text"); c == a {
		t.Error("different content produced identical IDs")
	}
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{
		Title: "Original title",
		Year:  "2019",
		Tags:  []string{"nmc"},
		Extra: map[string]any{"source": "filesystem"},
	}
	overlay := Metadata{
		Title: "Enriched title",
		Venue: "Journal of Power Sources",
		Extra: map[string]any{"crossref_score": 0.92},
	}

	got := base.Merge(overlay)

	if got.Title != "Enriched title" {
		t.Errorf("Title = %q, want overlay to win", got.Title)
	}
	if got.Year != "2019" {
		t.Errorf("Year = %q, want base kept when overlay empty", got.Year)
	}
	if got.Venue != "Journal of Power Sources" {
		t.Errorf("Venue = %q", got.Venue)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "nmc" {
		t.Errorf("Tags = %v, want base kept", got.Tags)
	}
	if got.Extra["source"] != "filesystem" || got.Extra["crossref_score"] != 0.92 {
		t.Errorf("Extra = %v, want union", got.Extra)
	}
	// Merge must not mutate the receiver's Extra map.
	if _, ok := base.Extra["crossref_score"]; ok {
		t.Error("Merge mutated receiver Extra map")
	}
}

func TestMetadataHasTag(t *testing.T) {
	m := Metadata{Tags: []string{"LFP", "degradation"}}
	if !m.HasTag("lfp") {
		t.Error("HasTag should match case-insensitively")
	}
	if m.HasTag("nmc") {
		t.Error("HasTag matched absent tag")
	}
}

func TestPipelineStateOrdering(t *testing.T) {
	var s PipelineState

	if !s.Eligible(StageParse) {
		t.Error("fresh state: parse should be eligible")
	}
	if s.Eligible(StageChunk) {
		t.Error("fresh state: chunk must wait for parse")
	}

	now := time.Now()
	s.MarkCompleted(StageParse, now)
	if s.Eligible(StageParse) {
		t.Error("completed stage must not be eligible again")
	}
	if !s.Eligible(StageChunk) {
		t.Error("chunk should be eligible after parse")
	}
	if s.Eligible(StageEmbed) {
		t.Error("embed must wait for metadata")
	}

	s.MarkCompleted(StageChunk, now)
	s.MarkCompleted(StageMetadata, now)
	if !s.Eligible(StageEmbed) {
		t.Error("embed should be eligible after metadata")
	}
	s.MarkCompleted(StageEmbed, now)
	for _, st := range Stages() {
		if !s.Completed(st) {
			t.Errorf("stage %s not completed after full run", st)
		}
	}
}

func TestPipelineStateReset(t *testing.T) {
	var s PipelineState
	now := time.Now()
	for _, st := range Stages() {
		s.MarkCompleted(st, now)
	}

	s.Reset(StageChunk, now)

	if !s.Parsed {
		t.Error("Reset(chunk) must keep earlier stages complete")
	}
	if s.Chunked || s.MetadataDone || s.Embedded {
		t.Errorf("Reset(chunk) must clear the stage and successors, got %+v", s)
	}
	if !s.Eligible(StageChunk) {
		t.Error("chunk should be eligible after reset")
	}
}

func TestValidStage(t *testing.T) {
	for _, st := range Stages() {
		if !ValidStage(st) {
			t.Errorf("ValidStage(%q) = false", st)
		}
	}
	if ValidStage("rerank") {
		t.Error(`ValidStage("rerank") = true`)
	}
}

func TestRetrievalOptionsDefaults(t *testing.T) {
	var o RetrievalOptions
	if o.EffectiveTopK() != DefaultTopK {
		t.Errorf("EffectiveTopK = %d, want %d", o.EffectiveTopK(), DefaultTopK)
	}
	if o.EffectiveNCandidates() != DefaultNCandidates {
		t.Errorf("EffectiveNCandidates = %d, want %d", o.EffectiveNCandidates(), DefaultNCandidates)
	}
	if o.EffectiveAlpha() != DefaultAlpha {
		t.Errorf("EffectiveAlpha = %v, want %v", o.EffectiveAlpha(), DefaultAlpha)
	}

	o = RetrievalOptions{TopK: 20, NCandidates: 10}
	if o.EffectiveNCandidates() != 20 {
		t.Errorf("candidate pool must never be smaller than top-k, got %d", o.EffectiveNCandidates())
	}

	o = RetrievalOptions{Alpha: 0, AlphaSet: true}
	if o.EffectiveAlpha() != 0 {
		t.Error("explicit alpha 0 must mean pure sparse, not default")
	}
}

func TestFilterMatches(t *testing.T) {
	m := Metadata{
		Venue:     "Nature Energy",
		Year:      "2021",
		PaperType: "experimental",
		Tags:      []string{"silicon-anode"},
	}

	var nilFilter *Filter
	if !nilFilter.Matches(m) {
		t.Error("nil filter must match everything")
	}
	if !(&Filter{}).Matches(m) {
		t.Error("empty filter must match everything")
	}
	if !(&Filter{Tag: "Silicon-Anode", Year: "2021"}).Matches(m) {
		t.Error("conjunctive filter should match")
	}
	if (&Filter{Venue: "Joule"}).Matches(m) {
		t.Error("venue mismatch should not match")
	}
	if (&Filter{Tag: "silicon-anode", PaperType: "review"}).Matches(m) {
		t.Error("filters are conjunctive: one mismatch fails the whole filter")
	}
}
