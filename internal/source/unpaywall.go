// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/paperfetch/internal/httputil"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// unpaywallAPIBase is the Unpaywall DOI endpoint. Declared as a var so
// tests can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

// Unpaywall resolves DOIs against the Unpaywall open-access registry.
// The API is free but requires a contact email on every call.
type Unpaywall struct {
	deps  Deps
	email string
}

// NewUnpaywall returns an Unpaywall client identifying itself as email.
func NewUnpaywall(deps Deps, email string) *Unpaywall {
	return &Unpaywall{deps: deps, email: email}
}

// Name returns the source identifier.
func (c *Unpaywall) Name() string { return "unpaywall" }

// Accepts reports whether the identifier is a DOI.
func (c *Unpaywall) Accepts(id types.Identifier) bool {
	return id.Kind == types.KindDOI
}

// Unpaywall API JSON structures.
type unpaywallResponse struct {
	DOI            string             `json:"doi"`
	Title          string             `json:"title"`
	IsOA           bool               `json:"is_oa"`
	PublishedDate  string             `json:"published_date"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
	ZAuthors       []unpaywallAuthor  `json:"z_authors"`
}

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
	URL       string `json:"url"`
	Version   string `json:"version"`
	HostType  string `json:"host_type"`
}

type unpaywallAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// Lookup queries Unpaywall for the DOI's best open-access location. A
// DOI unknown to the registry or one without an open-access PDF returns
// a nil candidate.
func (c *Unpaywall) Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	if err := c.deps.Limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	apiURL := unpaywallAPIBase + id.Value + "?email=" + url.QueryEscape(c.email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Unpaywall request: %w", err)
	}
	req.Header.Set("User-Agent", c.deps.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.deps.HTTP, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Unpaywall API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Unpaywall API returned HTTP %d", resp.StatusCode)
	}

	var ur unpaywallResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, fmt.Errorf("parsing Unpaywall response: %w", err)
	}

	if ur.BestOALocation == nil || ur.BestOALocation.URLForPDF == "" {
		return nil, nil
	}

	meta := &types.PaperMeta{
		Title: ur.Title,
		DOI:   id.Value,
	}
	for _, a := range ur.ZAuthors {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}
	if t, parseErr := time.Parse("2006-01-02", ur.PublishedDate); parseErr == nil {
		meta.Date = t
	}

	return &types.SourceCandidate{
		SourceName: c.Name(),
		PDFURL:     ur.BestOALocation.URLForPDF,
		Meta:       meta,
	}, nil
}

// Download fetches the candidate through the escalating downloader.
func (c *Unpaywall) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}
