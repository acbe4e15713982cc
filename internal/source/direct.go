// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"io"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Direct serves identifiers that already are download URLs. There is no
// registry to consult, so Lookup is a pure passthrough and all the work
// happens in the downloader.
type Direct struct {
	deps Deps
}

// NewDirect returns the direct-URL client.
func NewDirect(deps Deps) *Direct {
	return &Direct{deps: deps}
}

// Name returns the source identifier.
func (c *Direct) Name() string { return "direct" }

// Accepts reports whether the identifier is a direct download URL.
func (c *Direct) Accepts(id types.Identifier) bool {
	return id.Kind == types.KindPDFURL
}

// Lookup wraps the URL as its own candidate.
func (c *Direct) Lookup(_ context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	return &types.SourceCandidate{SourceName: c.Name(), PDFURL: id.Value}, nil
}

// Download fetches the candidate through the escalating downloader.
func (c *Direct) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}
