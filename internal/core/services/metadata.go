package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// metadataPrompt extracts structured bibliographic and battery-specific
// fields from the opening pages of a paper. The response must be a bare
// JSON object.
const metadataPrompt = `Analyze this battery research paper excerpt and extract structured metadata.

Paper excerpt:
%s

Extract the following information and respond ONLY with a valid JSON object:

{
  "title": "Exact paper title from the document",
  "authors": ["Last, First", "Last, First"],
  "year": "2023",
  "venue": "Journal of Power Sources",
  "tags": ["battery chemistries and technical topics, e.g., NMC, LFP, degradation, SOH, capacity fade, lithium plating"],
  "paper_type": "one of: experimental, simulation, review, dataset, modeling, or method"
}

STRICT FORMATTING RULES:
- Title: Title case, no period at the end, main title only (not subtitle)
- Authors: ALWAYS "Last, First" format, limit to the first 10 authors
- Year: 4-digit year ONLY
- Venue: FULL NAME, never abbreviated ("Nature Energy" not "Nat. Energy")
- Use standard battery chemistry abbreviations (NMC, LFP, NCA, etc.)
- Include only chemistries and topics explicitly discussed
- Return ONLY the JSON object, no other text

JSON:`

const (
	metadataMaxTokens = 600

	// metadataHeadBytes bounds the excerpt sent for analysis; titles,
	// authors, and DOIs live in the opening pages.
	metadataHeadBytes = 3500
)

// DOI patterns, tried in order: URL forms first, then labelled, then bare.
var doiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://doi\.org/(10\.\d{4,}/[\w\-.()/]+)`),
	regexp.MustCompile(`(?i)https?://dx\.doi\.org/(10\.\d{4,}/[\w\-.()/]+)`),
	regexp.MustCompile(`(?i)doi:\s*(10\.\d{4,}/[\w\-.()/]+)`),
	regexp.MustCompile(`\b(10\.\d{4,}/[\w\-.()/]+)\b`),
}

var doiTrailingPunct = regexp.MustCompile(`[.,;:\s)]+$`)

// ExtractDOI pulls the first DOI-looking identifier from text.
// Returns the empty string when none is found.
func ExtractDOI(text string) string {
	for _, pat := range doiPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return doiTrailingPunct.ReplaceAllString(m[1], "")
		}
	}
	return ""
}

// llmMetadata is the JSON shape the extraction prompt asks for.
type llmMetadata struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Year      string   `json:"year"`
	Venue     string   `json:"venue"`
	Tags      []string `json:"tags"`
	PaperType string   `json:"paper_type"`
}

// jsonObject finds the outermost {...} in model output, tolerating
// prose around it.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// metadataStage enriches the document's metadata and re-propagates it to
// every chunk. Strategy is DOI-first: a DOI found in the text is looked
// up in the bibliographic registry for canonical title/authors/venue;
// the LLM then supplies the battery-specific tags and paper type (or all
// fields when no registry record exists). Enrichment sources failing is
// not a stage failure; whatever was gathered still commits.
func (s *IngestService) metadataStage(ctx context.Context, id string) error {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	head := doc.Text
	if len(head) > metadataHeadBytes {
		head = head[:metadataHeadBytes]
	}

	meta := doc.Metadata
	registryHit := false

	if doi := ExtractDOI(head); doi != "" {
		logger.Debug("Document %s: found DOI %s", id, doi)
		meta.DOI = doi
		if s.metadata != nil {
			canonical, err := retry.DoValue(ctx, s.retryPolicy, "crossref lookup", func() (domain.Metadata, error) {
				return s.metadata.LookupDOI(ctx, doi)
			})
			if err != nil {
				logger.Warn("Document %s: registry lookup failed: %v", id, err)
			} else {
				meta = meta.Merge(canonical)
				meta.DOI = doi
				registryHit = true
			}
		}
	}

	if s.llm != nil {
		extracted, err := s.llmExtract(ctx, head)
		if err != nil {
			logger.Warn("Document %s: LLM metadata extraction failed: %v", id, err)
		} else if registryHit {
			// Registry fields are canonical; take only what it cannot know.
			meta = meta.Merge(domain.Metadata{
				Tags:      extracted.Tags,
				PaperType: extracted.PaperType,
			})
		} else {
			meta = meta.Merge(extracted)
		}
	}

	meta = normaliseMetadata(meta)
	if err := s.docStore.UpdateMetadata(ctx, id, meta); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// llmExtract runs the metadata prompt and parses its JSON response.
func (s *IngestService) llmExtract(ctx context.Context, head string) (domain.Metadata, error) {
	raw, err := retry.DoValue(ctx, s.retryPolicy, "extract metadata", func() (string, error) {
		return s.llm.Complete(ctx, fmt.Sprintf(metadataPrompt, head), completeOpts(metadataMaxTokens))
	})
	if err != nil {
		return domain.Metadata{}, err
	}

	obj := jsonObject.FindString(raw)
	if obj == "" {
		return domain.Metadata{}, fmt.Errorf("no JSON object in response")
	}

	var parsed llmMetadata
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return domain.Metadata{}, fmt.Errorf("parse metadata JSON: %w", err)
	}

	return domain.Metadata{
		Title:     parsed.Title,
		Authors:   parsed.Authors,
		Year:      parsed.Year,
		Venue:     parsed.Venue,
		Tags:      parsed.Tags,
		PaperType: parsed.PaperType,
	}, nil
}

// normaliseMetadata applies the storage conventions: chemistry
// abbreviations upper-cased, other tags lower-cased, paper type
// lower-cased, whitespace trimmed.
func normaliseMetadata(m domain.Metadata) domain.Metadata {
	tags := make([]string, 0, len(m.Tags))
	seen := make(map[string]bool, len(m.Tags))
	for _, t := range m.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if isChemistryTag(t) {
			t = strings.ToUpper(t)
		} else {
			t = strings.ToLower(t)
		}
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	m.Tags = tags
	m.PaperType = strings.ToLower(strings.TrimSpace(m.PaperType))
	m.Year = strings.TrimSpace(m.Year)
	return m
}

// Standard chemistry abbreviations stored upper-case.
var chemistryTags = map[string]bool{
	"nmc": true, "lfp": true, "nca": true, "lco": true, "lmo": true,
	"lto": true, "nmca": true, "llzo": true, "sei": true,
}

func isChemistryTag(t string) bool {
	return chemistryTags[strings.ToLower(t)]
}
