// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identify classifies raw paper identifiers into typed, canonical
// forms and derives filesystem names from them.
// Implements: prd001-resolve (R1-R2); docs/ARCHITECTURE § Identifier Resolution.
package identify

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// doiPattern matches a DOI anywhere in the input: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`\b(10\.\d{4,9}/\S+)`)

// arxivPattern matches bare arXiv IDs with an optional "arXiv:" prefix and
// optional version suffix: "2301.07041", "arXiv:2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// arxivURLPattern matches arxiv.org abstract and PDF URLs.
var arxivURLPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5}(?:v\d+)?)`)

// pubmedPattern matches "PMID:12345678" and "PMID: 12345678" forms.
var pubmedPattern = regexp.MustCompile(`^(?:PMID|pmid):?\s*(\d{1,8})$`)

// pubmedURLPattern matches pubmed.ncbi.nlm.nih.gov article URLs.
var pubmedURLPattern = regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/(\d{1,8})`)

// Resolve classifies a raw identifier string and returns its canonical form.
// It never fails: strings matching no known pattern degrade to KindTitle and
// are treated as free-text search queries downstream (R1.6). Detection order
// is DOI, arXiv, PubMed, PDF URL, title; DOI is checked before arXiv because
// some arXiv DOIs collide lexically with the generic DOI shape (R1.5).
func Resolve(raw string) types.Identifier {
	trimmed := strings.TrimSpace(raw)

	// URL inputs route on the host: doi.org and arxiv.org wrap identifiers
	// we can lift out, everything else is a direct download target. A
	// publisher file URL whose path merely embeds a DOI-shaped segment
	// (e.g. biorxiv.org/content/10.1101/...full.pdf) stays a URL (R1.4).
	if u := parseHTTPURL(trimmed); u != nil {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		switch {
		case host == "doi.org" || host == "dx.doi.org":
			if doi := extractDOI(u.Path); doi != "" {
				return types.Identifier{Original: raw, Kind: types.KindDOI, Value: doi}
			}
		case strings.HasSuffix(host, "arxiv.org"):
			if m := arxivURLPattern.FindStringSubmatch(trimmed); m != nil {
				return types.Identifier{Original: raw, Kind: types.KindArxiv, Value: m[1]}
			}
		case strings.HasSuffix(host, "pubmed.ncbi.nlm.nih.gov"):
			if m := pubmedURLPattern.FindStringSubmatch(trimmed); m != nil {
				return types.Identifier{Original: raw, Kind: types.KindPubMed, Value: m[1]}
			}
		}
		return types.Identifier{Original: raw, Kind: types.KindPDFURL, Value: trimmed}
	}

	if doi := extractDOI(trimmed); doi != "" {
		return types.Identifier{Original: raw, Kind: types.KindDOI, Value: doi}
	}

	if m := arxivPattern.FindStringSubmatch(trimmed); m != nil {
		return types.Identifier{Original: raw, Kind: types.KindArxiv, Value: m[1]}
	}

	if m := pubmedPattern.FindStringSubmatch(trimmed); m != nil {
		return types.Identifier{Original: raw, Kind: types.KindPubMed, Value: m[1]}
	}

	return types.Identifier{Original: raw, Kind: types.KindTitle, Value: trimmed}
}

// extractDOI finds a DOI anywhere in s and strips trailing punctuation
// picked up from surrounding prose or URL paths (R1.2).
func extractDOI(s string) string {
	m := doiPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	doi := m[1]

	// Trailing sentence punctuation is never part of a DOI. A closing
	// parenthesis is stripped only when unbalanced, since DOIs like
	// 10.1016/S0140-6736(20)31234-5 contain legitimate parentheses.
	doi = strings.TrimRight(doi, `.,;:"'`)
	for strings.HasSuffix(doi, ")") && strings.Count(doi, ")") > strings.Count(doi, "(") {
		doi = strings.TrimSuffix(doi, ")")
		doi = strings.TrimRight(doi, `.,;:"'`)
	}
	return doi
}

// parseHTTPURL returns the parsed URL when s is a single absolute http(s)
// URL, or nil otherwise. Free-text titles never qualify: they contain
// spaces or lack a scheme.
func parseHTTPURL(s string) *url.URL {
	if strings.ContainsAny(s, " \t") {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil
	}
	return u
}

// maxTitleSlug caps title-derived slugs so filenames stay manageable.
const maxTitleSlug = 60

// Slug returns a filesystem-safe filename stem for the identifier (R2.1).
func Slug(id types.Identifier) string {
	switch id.Kind {
	case types.KindDOI:
		return strings.NewReplacer("/", "-", ":", "-").Replace(id.Value)
	case types.KindArxiv:
		return id.Value
	case types.KindPubMed:
		return "pmid-" + id.Value
	case types.KindPDFURL:
		u, err := url.Parse(id.Value)
		if err != nil {
			return hashSlug(id.Value)
		}
		base := strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return hashSlug(id.Value)
		}
		return base
	case types.KindTitle:
		return titleSlug(id.Value)
	default:
		return "unknown"
	}
}

// PDFFilename returns the PDF filename for the identifier (R2.2).
func PDFFilename(id types.Identifier) string {
	return Slug(id) + ".pdf"
}

// SidecarFilename returns the metadata sidecar filename for the identifier.
func SidecarFilename(id types.Identifier) string {
	return Slug(id) + ".yaml"
}

// titleSlug lowercases the title, replaces runs of non-alphanumerics with
// hyphens, and caps the length with a short hash suffix so distinct long
// titles never collide (R2.3).
func titleSlug(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return hashSlug(title)
	}
	if len(slug) > maxTitleSlug {
		return slug[:maxTitleSlug] + "-" + shortHash(title)
	}
	return slug
}

func hashSlug(s string) string {
	return "paper-" + shortHash(s)
}

// shortHash returns the first 8 hex bytes of the SHA-256 of s.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
