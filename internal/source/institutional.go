// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pdiddy/paperfetch/internal/browser"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// doiResolverBase is the public DOI resolver, overridable by tests. The
// institutional routes hand the resolver URL to the publisher side (VPN)
// or to the proxy (EZProxy), which follows the redirect chain with the
// subscription attached.
var doiResolverBase = "https://doi.org/"

// ErrNotAuthenticated marks a proxied download attempted without a
// recorded login session.
var ErrNotAuthenticated = errors.New("no institutional session recorded; run paperfetch login first")

// Institutional reaches subscription content through whichever access
// route the operator configured: an institutional VPN, where the
// publisher recognizes the client IP directly, or an EZProxy gateway,
// where every request is rewritten through the proxy host using cookies
// from a prior interactive login. It runs last in the client order
// because it is the slowest route and the only one with preconditions.
type Institutional struct {
	deps Deps
	icfg types.InstitutionalConfig
	bcfg types.BrowserConfig
}

// NewInstitutional returns an institutional-access client.
func NewInstitutional(deps Deps, icfg types.InstitutionalConfig, bcfg types.BrowserConfig) *Institutional {
	return &Institutional{deps: deps, icfg: icfg, bcfg: bcfg}
}

// Name returns the source identifier.
func (c *Institutional) Name() string { return "institutional" }

// Available reports whether any institutional route is configured at
// all: a proxy URL, a VPN-mode flag, or a saved VPN attestation.
func (c *Institutional) Available() bool {
	return c.icfg.ProxyURL != "" || c.vpnActive()
}

// vpnActive reports whether the operator declared an active VPN, either
// in configuration or as a saved attestation from a prior login --vpn.
func (c *Institutional) vpnActive() bool {
	if c.icfg.VPNMode {
		return true
	}
	return c.deps.Session != nil && c.deps.Session.VPNConnected()
}

// Accepts reports whether the identifier is a DOI. Subscription access
// always goes through the publisher's DOI landing page; there is no
// institutional route for bare titles or preprint IDs.
func (c *Institutional) Accepts(id types.Identifier) bool {
	return id.Kind == types.KindDOI && c.Available()
}

// Lookup builds the access-route URL for the DOI. On a VPN the resolver
// URL is used as-is; through EZProxy it is wrapped in the proxy's login
// redirector, which attaches the session and rewrites the publisher
// host. Without a recorded login the proxied route is skipped rather
// than burning a request that will bounce to the login form.
func (c *Institutional) Lookup(ctx context.Context, id types.Identifier) (*types.SourceCandidate, error) {
	target := doiResolverBase + id.Value

	if c.vpnActive() {
		return &types.SourceCandidate{
			SourceName: c.Name(),
			PDFURL:     target,
		}, nil
	}

	if c.deps.Session == nil || !c.deps.Session.Authenticated() {
		return nil, nil
	}
	proxied := strings.TrimRight(c.icfg.ProxyURL, "/") + "/login?url=" + url.QueryEscape(target)
	return &types.SourceCandidate{
		SourceName: c.Name(),
		PDFURL:     proxied,
		Proxied:    true,
	}, nil
}

// Download fetches the candidate through the escalating downloader. The
// proxy host rate-limits aggressively and a ban there locks out the
// whole institution, so downloads are paced like API lookups.
func (c *Institutional) Download(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	if cand.Proxied && (c.deps.Session == nil || !c.deps.Session.Authenticated()) {
		return ErrNotAuthenticated
	}
	if err := c.deps.Limiter.Wait(ctx, c.Name()); err != nil {
		return err
	}
	return c.deps.Downloader.Fetch(ctx, cand, destPath, w)
}

// AuthenticateInteractive runs the visible-browser proxy login and
// persists the harvested session. It reports success rather than
// returning an error: every failure mode here is operator-facing (wrong
// password, closed window, timeout) and belongs on w, not up the stack.
// Manual cookies and a VPN attestation saved earlier survive the
// refresh.
func (c *Institutional) AuthenticateInteractive(ctx context.Context, w io.Writer) bool {
	if c.deps.Session == nil {
		fmt.Fprintf(w, "no session store configured\n")
		return false
	}

	state, err := browser.Login(ctx, c.icfg, c.bcfg, w)
	if err != nil {
		fmt.Fprintf(w, "login failed: %v\n", err)
		return false
	}

	prev := c.deps.Session.State()
	state.SimpleCookies = prev.SimpleCookies
	state.VPNConnected = prev.VPNConnected

	if err := c.deps.Session.Save(state); err != nil {
		fmt.Fprintf(w, "saving session: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "session saved to %s\n", c.deps.Session.Path())
	return true
}
