// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// bioRxiv/medRxiv endpoints, overridable by tests. Both servers share
// the 10.1101 DOI prefix and the same details API shape; only the API
// host is shared, the content host differs per server.
var (
	preprintAPIBase    = "https://api.biorxiv.org"
	preprintContentURL = "https://www.%s.org/content/%s.full.pdf"
)

// preprintDOIPrefix is the Cold Spring Harbor prefix shared by bioRxiv
// and medRxiv.
const preprintDOIPrefix = "10.1101/"

// preprintServers is the order in which the details API is consulted.
// The API does not say which server a DOI belongs to, so we ask each.
var preprintServers = []string{"biorxiv", "medrxiv"}

// Preprint resolves bioRxiv and medRxiv DOIs. The PDF URL is
// deterministic once the hosting server is known; the details API
// establishes the server and supplies metadata in the same call.
type Preprint struct {
	deps Deps
}

// NewPreprint returns a bioRxiv/medRxiv client.
func NewPreprint(deps Deps) *Preprint {
	return &Preprint{deps: deps}
}

// Name returns the source identifier.
func (c *Preprint) Name() string { return "preprint" }

// Accepts reports whether the identifier is a Cold Spring Harbor DOI.
func (c *Preprint) Accepts(id types.Identifier) bool {
	return id.Kind == types.KindDOI && strings.HasPrefix(id.Value, preprintDOIPrefix)
}

// bioRxiv details API JSON structures.
type preprintResponse struct {
	Collection []preprintDetail `json:"collection"`
}

type preprintDetail struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Version  string `json:"version"`
	Abstract string `json:"abstract"`
	Server   string `json:"server"`
}

// Lookup asks each preprint server's details API for the DOI and
// builds the full-text PDF URL from whichever claims it. A DOI unknown
// to both servers yields a nil candidate.
func (c *Preprint) Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	if err := c.deps.Limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	for _, server := range preprintServers {
		detail, err := c.fetchDetail(ctx, server, id.Value)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			continue
		}

		meta := &types.PaperMeta{
			Title:    detail.Title,
			Abstract: detail.Abstract,
			DOI:      id.Value,
		}
		for _, name := range strings.Split(detail.Authors, "; ") {
			if name = strings.TrimSpace(name); name != "" {
				meta.Authors = append(meta.Authors, name)
			}
		}
		if t, parseErr := time.Parse("2006-01-02", detail.Date); parseErr == nil {
			meta.Date = t
		}

		return &types.SourceCandidate{
			SourceName: server,
			PDFURL:     fmt.Sprintf(preprintContentURL, server, id.Value),
			Meta:       meta,
		}, nil
	}
	return nil, nil
}

// fetchDetail queries one server's details endpoint. A DOI the server
// does not host comes back with an empty collection, not an error.
func (c *Preprint) fetchDetail(ctx context.Context, server, doi string) (*preprintDetail, error) {
	apiURL := fmt.Sprintf("%s/details/%s/%s/na/json", preprintAPIBase, server, doi)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", server, err)
	}
	req.Header.Set("User-Agent", c.deps.UserAgent)

	resp, err := c.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s API request: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API returned HTTP %d", server, resp.StatusCode)
	}

	var pr preprintResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", server, err)
	}
	if len(pr.Collection) == 0 {
		return nil, nil
	}
	// The API returns one entry per version; the last is the newest.
	return &pr.Collection[len(pr.Collection)-1], nil
}

// Download fetches the candidate through the escalating downloader.
func (c *Preprint) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}
