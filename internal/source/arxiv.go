// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// arXiv endpoints, overridable by tests.
var (
	arxivAPIBase = "http://export.arxiv.org/api/query"
	arxivPDFBase = "https://arxiv.org/pdf/"
)

// arxivDOIPrefix is the DataCite prefix arXiv uses when minting DOIs
// for its own preprints, e.g. 10.48550/arXiv.2301.00001.
const arxivDOIPrefix = "10.48550/arxiv."

// Arxiv resolves arXiv identifiers to PDFs hosted on arxiv.org. The PDF
// URL is deterministic from the identifier; the Atom API is consulted
// only to enrich metadata.
type Arxiv struct {
	deps Deps
}

// NewArxiv returns an arXiv client.
func NewArxiv(deps Deps) *Arxiv {
	return &Arxiv{deps: deps}
}

// Name returns the source identifier.
func (c *Arxiv) Name() string { return "arxiv" }

// Accepts reports whether the identifier is an arXiv ID, either native
// or expressed as an arXiv-minted DOI.
func (c *Arxiv) Accepts(id types.Identifier) bool {
	if id.Kind == types.KindArxiv {
		return true
	}
	return id.Kind == types.KindDOI && arxivIDFromDOI(id.Value) != ""
}

// arxivIDFromDOI extracts the native arXiv ID from a DataCite arXiv
// DOI, or returns "" when the DOI is not arXiv-minted.
func arxivIDFromDOI(doi string) string {
	lower := strings.ToLower(doi)
	if !strings.HasPrefix(lower, arxivDOIPrefix) {
		return ""
	}
	return doi[len(arxivDOIPrefix):]
}

// stripArxivVersion removes a trailing version suffix like v2 from an
// arXiv ID, leaving IDs without one untouched.
func stripArxivVersion(id string) string {
	i := strings.LastIndex(id, "v")
	if i <= 0 {
		return id
	}
	for _, r := range id[i+1:] {
		if r < '0' || r > '9' {
			return id
		}
	}
	if i+1 == len(id) {
		return id
	}
	return id[:i]
}

// arXiv Atom feed structures. Only the fields we read are declared.
type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// Lookup builds the deterministic PDF URL for the identifier and tries
// to enrich it with metadata from the arXiv Atom API. Metadata failures
// do not fail the lookup; the candidate is still usable without them.
func (c *Arxiv) Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	arxivID := id.Value
	if id.Kind == types.KindDOI {
		arxivID = arxivIDFromDOI(id.Value)
		if arxivID == "" {
			return nil, nil
		}
	}

	cand := &types.SourceCandidate{
		SourceName: c.Name(),
		PDFURL:     arxivPDFBase + arxivID,
	}

	meta, err := c.fetchMeta(ctx, arxivID)
	if err == nil && meta != nil {
		cand.Meta = meta
	}
	return cand, nil
}

// fetchMeta queries the arXiv Atom API for the paper's metadata.
func (c *Arxiv) fetchMeta(ctx context.Context, arxivID string) (*types.PaperMeta, error) {
	if err := c.deps.Limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	// Version suffixes (v1, v2) are valid in id_list but querying the
	// bare ID returns the latest version, which is what we want.
	query := stripArxivVersion(arxivID)

	apiURL := arxivAPIBase + "?id_list=" + url.QueryEscape(query) + "&max_results=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating arXiv request: %w", err)
	}
	req.Header.Set("User-Agent", c.deps.UserAgent)

	resp, err := c.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}

	entry := feed.Entries[0]
	meta := &types.PaperMeta{
		Title:    strings.Join(strings.Fields(entry.Title), " "),
		Abstract: strings.TrimSpace(entry.Summary),
		ArxivID:  arxivID,
	}
	for _, a := range entry.Authors {
		meta.Authors = append(meta.Authors, a.Name)
	}
	if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
		meta.Date = t
	}
	return meta, nil
}

// Download fetches the candidate through the escalating downloader.
func (c *Arxiv) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}
