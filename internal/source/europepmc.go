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

	"github.com/pdiddy/paperfetch/pkg/types"
)

// europePMCAPIBase is the Europe PMC search endpoint, overridable by
// tests.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMC resolves DOIs and PubMed IDs against the Europe PMC
// full-text corpus. It is the primary route for life-science papers
// whose publisher version is paywalled but whose accepted manuscript
// is deposited in PMC.
type EuropePMC struct {
	deps Deps
}

// NewEuropePMC returns a Europe PMC client.
func NewEuropePMC(deps Deps) *EuropePMC {
	return &EuropePMC{deps: deps}
}

// Name returns the source identifier.
func (c *EuropePMC) Name() string { return "europepmc" }

// Accepts reports whether the identifier is a DOI or a PubMed ID.
func (c *EuropePMC) Accepts(id types.Identifier) bool {
	return id.Kind == types.KindDOI || id.Kind == types.KindPubMed
}

// Europe PMC REST JSON structures.
type europePMCResponse struct {
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	Title                string `json:"title"`
	AuthorString         string `json:"authorString"`
	DOI                  string `json:"doi"`
	PMID                 string `json:"pmid"`
	AbstractText         string `json:"abstractText"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	FullTextURLList      struct {
		FullTextURL []europePMCFullText `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

type europePMCFullText struct {
	Availability  string `json:"availability"`
	DocumentStyle string `json:"documentStyle"`
	URL           string `json:"url"`
}

// Lookup searches Europe PMC for the identifier and returns the open
// access PDF link when the record carries one. Records without an open
// access PDF yield a nil candidate.
func (c *EuropePMC) Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	if err := c.deps.Limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	var query string
	switch id.Kind {
	case types.KindDOI:
		query = fmt.Sprintf("DOI:%q", id.Value)
	case types.KindPubMed:
		query = fmt.Sprintf("EXT_ID:%s AND SRC:MED", id.Value)
	default:
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("resultType", "core")
	params.Set("pageSize", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, europePMCAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating Europe PMC request: %w", err)
	}
	req.Header.Set("User-Agent", c.deps.UserAgent)

	resp, err := c.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Europe PMC API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Europe PMC API returned HTTP %d", resp.StatusCode)
	}

	var er europePMCResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing Europe PMC response: %w", err)
	}
	if len(er.ResultList.Result) == 0 {
		return nil, nil
	}

	result := er.ResultList.Result[0]
	pdfURL := ""
	for _, ft := range result.FullTextURLList.FullTextURL {
		if ft.DocumentStyle != "pdf" {
			continue
		}
		if !strings.Contains(strings.ToLower(ft.Availability), "open access") {
			continue
		}
		pdfURL = ft.URL
		break
	}
	if pdfURL == "" {
		return nil, nil
	}

	meta := &types.PaperMeta{
		Title:    result.Title,
		Abstract: result.AbstractText,
		DOI:      result.DOI,
		PubMedID: result.PMID,
	}
	if result.AuthorString != "" {
		for _, name := range strings.Split(strings.TrimSuffix(result.AuthorString, "."), ", ") {
			if name = strings.TrimSpace(name); name != "" {
				meta.Authors = append(meta.Authors, name)
			}
		}
	}
	if t, parseErr := time.Parse("2006-01-02", result.FirstPublicationDate); parseErr == nil {
		meta.Date = t
	}

	return &types.SourceCandidate{
		SourceName: c.Name(),
		PDFURL:     pdfURL,
		Meta:       meta,
	}, nil
}

// Download fetches the candidate through the escalating downloader.
func (c *EuropePMC) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}
