// Package crossref provides a bibliographic metadata adapter using the
// CrossRef REST API.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.MetadataProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.crossref.org"
	DefaultTimeout = 10 * time.Second

	// CrossRef's polite pool asks clients to identify themselves and
	// stay under a handful of requests per second.
	DefaultRequestsPerSecond = 2
	defaultUserAgent         = "quaero/1.0 (https://github.com/custodia-labs/quaero-cli)"
)

// Config holds configuration for the CrossRef provider.
type Config struct {
	// BaseURL is the API base URL (default: https://api.crossref.org).
	BaseURL string

	// Timeout is the request timeout (default: 10s).
	Timeout time.Duration

	// MailTo is appended to the User-Agent for CrossRef's polite pool.
	MailTo string

	// RequestsPerSecond caps the outbound request rate (default: 2).
	RequestsPerSecond float64
}

// Provider looks up bibliographic metadata on CrossRef.
type Provider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

// work is the subset of a CrossRef work record the provider reads.
type work struct {
	Title  []string `json:"title"`
	Author []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	ContainerTitle []string `json:"container-title"`
	Issued         struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	DOI string `json:"DOI"`
}

type worksResponse struct {
	Message work `json:"message"`
}

type queryResponse struct {
	Message struct {
		Items []work `json:"items"`
	} `json:"message"`
}

// NewProvider creates a new CrossRef metadata provider.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	ua := defaultUserAgent
	if cfg.MailTo != "" {
		ua = fmt.Sprintf("%s (mailto:%s)", defaultUserAgent, cfg.MailTo)
	}

	return &Provider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		userAgent: ua,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// LookupDOI retrieves metadata for a known DOI.
func (p *Provider) LookupDOI(ctx context.Context, doi string) (domain.Metadata, error) {
	if doi == "" {
		return domain.Metadata{}, fmt.Errorf("crossref: %w: empty DOI", domain.ErrInvalidInput)
	}

	var resp worksResponse
	endpoint := p.baseURL + "/works/" + url.PathEscape(doi)
	if err := p.get(ctx, endpoint, &resp); err != nil {
		return domain.Metadata{}, err
	}
	return toMetadata(resp.Message), nil
}

// SearchTitle retrieves metadata for the best title match.
func (p *Provider) SearchTitle(ctx context.Context, title string) (domain.Metadata, error) {
	if title == "" {
		return domain.Metadata{}, fmt.Errorf("crossref: %w: empty title", domain.ErrInvalidInput)
	}

	var resp queryResponse
	endpoint := fmt.Sprintf("%s/works?rows=1&query.title=%s", p.baseURL, url.QueryEscape(title))
	if err := p.get(ctx, endpoint, &resp); err != nil {
		return domain.Metadata{}, err
	}
	if len(resp.Message.Items) == 0 {
		return domain.Metadata{}, fmt.Errorf("crossref: %w", domain.ErrNotFound)
	}
	return toMetadata(resp.Message.Items[0]), nil
}

// get performs a rate-limited JSON GET against the CrossRef API.
func (p *Provider) get(ctx context.Context, endpoint string, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("crossref: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("crossref: create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("crossref: send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("crossref: %w", domain.ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("crossref: %w", domain.ErrRateLimited)
	default:
		return fmt.Errorf("crossref: API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crossref: decode response: %w", err)
	}
	return nil
}

// toMetadata maps a CrossRef work record onto domain metadata.
// Authors follow the "Last, First" storage convention.
func toMetadata(w work) domain.Metadata {
	meta := domain.Metadata{DOI: w.DOI}

	if len(w.Title) > 0 {
		meta.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		meta.Venue = w.ContainerTitle[0]
	}
	for _, a := range w.Author {
		switch {
		case a.Family != "" && a.Given != "":
			meta.Authors = append(meta.Authors, a.Family+", "+a.Given)
		case a.Family != "":
			meta.Authors = append(meta.Authors, a.Family)
		}
	}
	if parts := w.Issued.DateParts; len(parts) > 0 && len(parts[0]) > 0 {
		meta.Year = fmt.Sprintf("%d", parts[0][0])
	}
	return meta
}
