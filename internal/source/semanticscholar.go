// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/paperfetch/internal/httputil"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API paper endpoint,
// overridable by tests.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper"

// semanticFields is the field list requested on every paper call.
const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,openAccessPdf"

// SemanticScholar resolves DOIs, arXiv IDs, PubMed IDs, and free-text
// titles against the Semantic Scholar Graph API. It is the only source
// that can start from a bare title, so it doubles as the last-resort
// lookup for identifiers nothing else accepts.
type SemanticScholar struct {
	deps   Deps
	apiKey string
}

// NewSemanticScholar returns a Semantic Scholar client. apiKey may be
// empty; unauthenticated calls share a heavily throttled pool, so the
// per-source rate limiter matters most here.
func NewSemanticScholar(deps Deps, apiKey string) *SemanticScholar {
	return &SemanticScholar{deps: deps, apiKey: apiKey}
}

// Name returns the source identifier.
func (c *SemanticScholar) Name() string { return "semanticscholar" }

// Accepts reports whether the identifier can be expressed as a Graph
// API paper ID or title query.
func (c *SemanticScholar) Accepts(id types.Identifier) bool {
	switch id.Kind {
	case types.KindDOI, types.KindArxiv, types.KindPubMed, types.KindTitle:
		return true
	}
	return false
}

// Semantic Scholar Graph API JSON structures.
type semanticPaper struct {
	Title           string           `json:"title"`
	Abstract        string           `json:"abstract"`
	Year            int              `json:"year"`
	PublicationDate string           `json:"publicationDate"`
	ExternalIDs     map[string]any   `json:"externalIds"`
	Authors         []semanticAuthor `json:"authors"`
	OpenAccessPDF   *semanticOpenPDF `json:"openAccessPdf"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticOpenPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type semanticSearchResponse struct {
	Data []semanticPaper `json:"data"`
}

// Lookup queries the Graph API for the paper and returns its open
// access PDF when one is registered. Unknown papers and papers without
// an open-access PDF yield a nil candidate.
func (c *SemanticScholar) Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	if err := c.deps.Limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	var paper *semanticPaper
	var err error
	if id.Kind == types.KindTitle {
		paper, err = c.searchByTitle(ctx, id.Value)
	} else {
		paper, err = c.fetchByID(ctx, id)
	}
	if err != nil || paper == nil {
		return nil, err
	}

	if paper.OpenAccessPDF == nil || paper.OpenAccessPDF.URL == "" {
		return nil, nil
	}

	meta := &types.PaperMeta{
		Title:    paper.Title,
		Abstract: paper.Abstract,
		Year:     paper.Year,
	}
	for _, a := range paper.Authors {
		meta.Authors = append(meta.Authors, a.Name)
	}
	if doi, ok := paper.ExternalIDs["DOI"].(string); ok {
		meta.DOI = doi
	}
	if arxivID, ok := paper.ExternalIDs["ArXiv"].(string); ok {
		meta.ArxivID = arxivID
	}
	if t, parseErr := time.Parse("2006-01-02", paper.PublicationDate); parseErr == nil {
		meta.Date = t
	}

	return &types.SourceCandidate{
		SourceName: c.Name(),
		PDFURL:     paper.OpenAccessPDF.URL,
		Meta:       meta,
	}, nil
}

// fetchByID retrieves a single paper by its external identifier.
func (c *SemanticScholar) fetchByID(ctx context.Context, id types.Identifier) (*semanticPaper, error) {
	var paperID string
	switch id.Kind {
	case types.KindDOI:
		paperID = "DOI:" + id.Value
	case types.KindArxiv:
		paperID = "arXiv:" + stripArxivVersion(id.Value)
	case types.KindPubMed:
		paperID = "PMID:" + id.Value
	default:
		return nil, nil
	}

	apiURL := semanticAPIBase + "/" + paperID + "?fields=" + url.QueryEscape(semanticFields)
	resp, err := c.doRequest(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var paper semanticPaper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	return &paper, nil
}

// searchByTitle runs a relevance search and takes the top hit.
func (c *SemanticScholar) searchByTitle(ctx context.Context, title string) (*semanticPaper, error) {
	params := url.Values{}
	params.Set("query", title)
	params.Set("limit", "1")
	params.Set("fields", semanticFields)

	resp, err := c.doRequest(ctx, semanticAPIBase+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	if len(sr.Data) == 0 {
		return nil, nil
	}
	return &sr.Data[0], nil
}

// doRequest issues a Graph API GET with retry on 429, which the shared
// unauthenticated pool returns aggressively.
func (c *SemanticScholar) doRequest(ctx context.Context, apiURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Semantic Scholar request: %w", err)
	}
	req.Header.Set("User-Agent", c.deps.UserAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.deps.HTTP, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	return resp, nil
}

// Download fetches the candidate through the escalating downloader.
func (c *SemanticScholar) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}
