// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// defaultPublishers are host fragments that mark a proxy login as landed.
// EZProxy rewrites hostnames (www-sciencedirect-com.proxy.example.edu),
// so matching is substring-based rather than suffix-based.
var defaultPublishers = []string{
	"sciencedirect", "springer", "wiley", "ieee", "acm.org",
	"nature.com", "tandfonline", "sagepub", "academic.oup", "jstor",
}

// defaultLoginTestURL is the publisher page requested through the proxy
// when the configuration names none.
const defaultLoginTestURL = "https://www.sciencedirect.com/"

const (
	defaultAuthTimeout  = 300 * time.Second
	defaultPollInterval = 2 * time.Second
)

// Login opens a visible browser on the institutional proxy login page and
// waits for the operator to finish credentials, MFA included. Success is
// the tab landing on a known publisher host through the proxy; cookies
// set anywhere along the way are harvested into the returned state.
//
// The returned state is not persisted here; the caller saves it so a
// failed save cannot leave the browser running (Per prd004-sessions R2.4).
func Login(ctx context.Context, icfg types.InstitutionalConfig, bcfg types.BrowserConfig, w io.Writer) (types.SessionState, error) {
	if icfg.ProxyURL == "" {
		return types.SessionState{}, fmt.Errorf("no proxy URL configured; set institutional.proxy_url")
	}

	target := icfg.LoginTestURL
	if target == "" {
		target = defaultLoginTestURL
	}
	loginURL := strings.TrimRight(icfg.ProxyURL, "/") + "/login?url=" + url.QueryEscape(target)

	// The operator types credentials, so the window must be visible.
	bcfg.Headless = false

	dlDir, err := os.MkdirTemp("", "paperfetch-login-")
	if err != nil {
		return types.SessionState{}, fmt.Errorf("creating scratch download dir: %w", err)
	}
	defer os.RemoveAll(dlDir)

	sess, err := StartAny(ctx, bcfg, dlDir, w)
	if err != nil {
		return types.SessionState{}, err
	}
	defer sess.Close()

	fmt.Fprintf(w, "opening %s in %s\n", loginURL, sess.Engine())
	fmt.Fprintf(w, "complete the login in the browser window...\n")
	if err := sess.Navigate(loginURL, 0); err != nil {
		return types.SessionState{}, err
	}

	interval := icfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := icfg.AuthTimeout
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	hosts := icfg.PublisherHosts
	if len(hosts) == 0 {
		hosts = defaultPublishers
	}

	ok, err := pollLogin(ctx, sess.CurrentURL, hosts, interval, timeout)
	if err != nil {
		return types.SessionState{}, err
	}
	if !ok {
		return types.SessionState{}, fmt.Errorf("login did not reach a publisher page within %v", timeout)
	}

	cookies, err := sess.Cookies()
	if err != nil {
		return types.SessionState{}, err
	}
	fmt.Fprintf(w, "login complete, harvested %d cookies\n", len(cookies))
	return types.SessionState{Cookies: cookies, Authenticated: true}, nil
}

// pollLogin checks the tab location every interval until it reaches a
// publisher host or timeout passes. A false return with nil error means
// the operator never completed the login.
func pollLogin(ctx context.Context, currentURL func() (string, error), hosts []string, interval, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		loc, err := currentURL()
		if err != nil {
			// Usually the operator closed the window.
			return false, fmt.Errorf("reading login progress: %w", err)
		}
		if hostMatches(loc, hosts) {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-tick.C:
		}
	}
}

// hostMatches reports whether the URL contains any known publisher
// fragment. Proxy-rewritten hosts keep the publisher name with dots
// turned into hyphens, so both spellings are tried.
func hostMatches(rawURL string, hosts []string) bool {
	u := strings.ToLower(rawURL)
	for _, h := range hosts {
		h = strings.ToLower(h)
		if strings.Contains(u, h) {
			return true
		}
		if hyphenated := strings.ReplaceAll(h, ".", "-"); hyphenated != h && strings.Contains(u, hyphenated) {
			return true
		}
	}
	return false
}
