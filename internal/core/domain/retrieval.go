package domain

// Default retrieval tuning parameters.
const (
	// DefaultTopK is the number of passages returned after reranking.
	DefaultTopK = 5

	// DefaultNCandidates is the candidate pool size before reranking.
	DefaultNCandidates = 15

	// DefaultAlpha balances dense (alpha) against sparse (1-alpha) scores.
	DefaultAlpha = 0.5
)

// RetrievalOptions tunes a single query. Zero values fall back to the
// documented defaults.
type RetrievalOptions struct {
	// TopK is the number of passages to return (default 5).
	TopK int

	// NCandidates is the pool size retrieved before reranking (default 15).
	NCandidates int

	// Alpha weights dense similarity against sparse keyword relevance
	// in score fusion (default 0.5). Valid range [0,1].
	Alpha float64

	// AlphaSet marks Alpha as explicitly chosen, so that 0 means
	// pure sparse rather than "use the default".
	AlphaSet bool

	// ExpandQuery enables LLM query expansion.
	ExpandQuery bool

	// Rerank enables LLM reranking of the candidate pool.
	Rerank bool

	// Filter restricts candidates by chunk metadata. Nil matches all.
	Filter *Filter
}

// EffectiveTopK returns TopK or its default.
func (o RetrievalOptions) EffectiveTopK() int {
	if o.TopK > 0 {
		return o.TopK
	}
	return DefaultTopK
}

// EffectiveNCandidates returns NCandidates or its default, never smaller
// than the effective top-k.
func (o RetrievalOptions) EffectiveNCandidates() int {
	n := o.NCandidates
	if n <= 0 {
		n = DefaultNCandidates
	}
	if k := o.EffectiveTopK(); n < k {
		n = k
	}
	return n
}

// EffectiveAlpha returns Alpha or its default.
func (o RetrievalOptions) EffectiveAlpha() float64 {
	if o.AlphaSet {
		return o.Alpha
	}
	return DefaultAlpha
}

// Filter is a metadata predicate applied at the chunk level.
// Empty fields match everything.
type Filter struct {
	// Tag must appear in the chunk's metadata tags (case-insensitive).
	Tag string

	// Venue must equal the chunk's venue.
	Venue string

	// Year must equal the chunk's publication year.
	Year string

	// PaperType must equal the chunk's paper type.
	PaperType string
}

// Matches reports whether the metadata satisfies the filter.
func (f *Filter) Matches(m Metadata) bool {
	if f == nil {
		return true
	}
	if f.Tag != "" && !m.HasTag(f.Tag) {
		return false
	}
	if f.Venue != "" && f.Venue != m.Venue {
		return false
	}
	if f.Year != "" && f.Year != m.Year {
		return false
	}
	if f.PaperType != "" && f.PaperType != m.PaperType {
		return false
	}
	return true
}

// Candidate is a query-scoped retrieval candidate. Candidates exist only
// for the duration of one query and are discarded afterwards.
type Candidate struct {
	// Chunk is the candidate passage.
	Chunk Chunk

	// Dense is the embedding similarity score from the vector store.
	Dense float64

	// Sparse is the keyword relevance score from the sparse index.
	Sparse float64

	// Fused is the combined score after normalisation and weighting.
	Fused float64

	// Rank is the final 1-based position after reranking.
	Rank int
}

// Passage is a citation-ready retrieval result handed to the answer
// synthesiser.
type Passage struct {
	// DocumentID identifies the source document.
	DocumentID string

	// ChunkID locates the exact span within the document.
	ChunkID string

	// Ordinal is the chunk position within the document.
	Ordinal int

	// Title is the source document title, when known.
	Title string

	// Text is the passage content.
	Text string

	// Score is the relevance score that ranked this passage.
	Score float64
}

// ExpandedQuery is the result of query expansion. Expansion is a quality
// enhancement, never a hard dependency: on failure the original question
// is carried unchanged and Expanded is false.
type ExpandedQuery struct {
	// Query is the text to retrieve with.
	Query string

	// Expanded is true when the LLM produced the query.
	Expanded bool
}

// Answer is the synthesised response to a question, with the passages
// it cites.
type Answer struct {
	// Text is the synthesised answer.
	Text string

	// Passages are the sources, in the order they were presented.
	Passages []Passage
}
