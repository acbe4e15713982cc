// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// ErrUnsupportedEngine marks engines that exist on PATH but expose no
// DevTools endpoint.
var ErrUnsupportedEngine = errors.New("engine does not support DevTools automation")

// Session is one live browser process with downloads routed to a known
// directory. Close must be called to reap the process.
type Session struct {
	engine      Detected
	downloadDir string
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession launches eng and routes its downloads into downloadDir. The
// parent context bounds the browser's lifetime: cancelling it kills the
// process, which is what lets a batch-level timeout reap stray browsers.
func NewSession(parent context.Context, eng Detected, cfg types.BrowserConfig, downloadDir string) (*Session, error) {
	if eng.Engine.Name == engineFirefox {
		return nil, fmt.Errorf("%s: %w", eng.Engine.Name, ErrUnsupportedEngine)
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.ExecPath(eng.Path))
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		engine:      eng,
		downloadDir: downloadDir,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// The first Run starts the process, so routing downloads doubles as
	// the launch health check.
	err := chromedp.Run(tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("launching %s (%s): %w", eng.Engine.Name, eng.Path, err)
	}
	return s, nil
}

// StartAny launches the first engine that both exists and can be driven.
// Each launch attempt is wrapped on its own, so an engine with a broken
// install is reported to w and skipped rather than aborting the chain.
func StartAny(ctx context.Context, cfg types.BrowserConfig, downloadDir string, w io.Writer) (*Session, error) {
	detected := DetectAll()
	if len(detected) == 0 {
		return nil, fmt.Errorf(
			"no supported browser found: none of %s, %s, %s is installed",
			engineChrome, engineEdge, engineFirefox,
		)
	}
	for _, eng := range detected {
		sess, err := NewSession(ctx, eng, cfg, downloadDir)
		if err != nil {
			fmt.Fprintf(w, "  engine %s unavailable: %v\n", eng.Engine.Name, err)
			continue
		}
		return sess, nil
	}
	return nil, errors.New("no browser engine could be launched")
}

// Engine returns the name of the engine driving this session.
func (s *Session) Engine() string { return s.engine.Engine.Name }

// DownloadDir returns the directory browser downloads land in.
func (s *Session) DownloadDir() string { return s.downloadDir }

// Close terminates the browser process.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// Navigate loads url, then waits settle for challenge pages to clear.
// A navigation that turns into a file download aborts at the protocol
// level while the download itself proceeds; that abort is not an error.
func (s *Session) Navigate(url string, settle time.Duration) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil && !isDownloadAbort(err) {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if settle > 0 {
		if err := chromedp.Run(s.ctx, chromedp.Sleep(settle)); err != nil {
			return err
		}
	}
	return nil
}

// CurrentURL returns the tab's current location.
func (s *Session) CurrentURL() (string, error) {
	var loc string
	if err := chromedp.Run(s.ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Cookies harvests cookies across every domain the browser has visited,
// not just the current page; a proxy login sets session cookies on
// several hosts along the redirect chain.
func (s *Session) Cookies() ([]types.Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("harvesting cookies: %w", err)
	}
	return convertCookies(raw), nil
}

func convertCookies(raw []*network.Cookie) []types.Cookie {
	cookies := make([]types.Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := types.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		// CDP reports session cookies with a negative expiry.
		if c.Expires > 0 {
			cookie.Expires = int64(c.Expires)
		}
		cookies = append(cookies, cookie)
	}
	return cookies
}

// isDownloadAbort reports whether a navigation error is the protocol
// abort Chrome raises when the target becomes a file download.
func isDownloadAbort(err error) bool {
	return err != nil && strings.Contains(err.Error(), "net::ERR_ABORTED")
}
