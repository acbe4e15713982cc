// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source maps paper identifiers to download candidates across the
// registries and access routes that can serve a PDF. Each backend lives in
// its own file and implements Client; the resolver tries them in the order
// DefaultClients returns.
// Implements: prd002-sources (R1-R5); docs/ARCHITECTURE § Sources.
package source

import (
	"context"
	"io"
	"net/http"

	"github.com/pdiddy/paperfetch/internal/download"
	"github.com/pdiddy/paperfetch/internal/ratelimit"
	"github.com/pdiddy/paperfetch/internal/session"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// Client is one paper source. Lookup maps an identifier to a download
// candidate; Download fetches the candidate's bytes onto disk.
type Client interface {
	// Name identifies the source in progress output, outcomes, and
	// rate-limiter keys.
	Name() string

	// Accepts reports whether this client can serve the identifier at
	// all. The resolver never calls Lookup on a client that does not
	// accept the identifier's kind.
	Accepts(id types.Identifier) bool

	// Lookup resolves the identifier to a concrete candidate. A nil
	// candidate with a nil error means the source does not have the
	// paper; an error means the lookup itself failed (network, protocol)
	// and is worth logging before moving on.
	Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error)

	// Download fetches the candidate into destPath, writing progress
	// notes to w. The file appears atomically or not at all.
	Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error
}

// Deps bundles the shared machinery handed to every client: one HTTP
// client, one rate-limiter registry, and one downloader per process, so
// concurrent batch items cannot bypass per-source pacing.
type Deps struct {
	HTTP       *http.Client
	Limiter    *ratelimit.Registry
	Downloader *download.Downloader
	Session    *session.Store
	UserAgent  string
}

// DefaultClients builds the client list in resolution priority order:
// direct URLs cost nothing, open-access registries need no credentials,
// preprint servers are authoritative for their own DOI prefix, and
// institutional access runs last because it is the slowest and needs a
// prior login. Unpaywall is omitted without a contact email (the API
// rejects anonymous callers) and institutional is omitted unless a proxy
// URL or VPN is configured.
func DefaultClients(cfg types.Config, deps Deps) []Client {
	var clients []Client
	add := func(c Client) {
		for _, name := range cfg.Sources.Disabled {
			if name == c.Name() {
				return
			}
		}
		clients = append(clients, c)
	}

	add(NewDirect(deps))
	if cfg.Sources.ContactEmail != "" {
		add(NewUnpaywall(deps, cfg.Sources.ContactEmail))
	}
	add(NewArxiv(deps))
	add(NewEuropePMC(deps))
	add(NewSemanticScholar(deps, cfg.Sources.SemanticScholarAPIKey))
	add(NewPreprint(deps))
	if inst := NewInstitutional(deps, cfg.Institutional, cfg.Browser); inst.Available() {
		add(inst)
	}
	return clients
}
