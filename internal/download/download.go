// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches candidate PDF URLs with escalating effort: a
// plain HTTP GET first, then landing-page link sniffing, then a real
// browser. The browser tier costs 10-50x the direct path, so it only
// runs once the cheap path is exhausted.
// Implements: prd003-escalation (R1-R3); docs/ARCHITECTURE § Escalation.
package download

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pdiddy/paperfetch/internal/browser"
	"github.com/pdiddy/paperfetch/internal/httputil"
	"github.com/pdiddy/paperfetch/internal/session"
	"github.com/pdiddy/paperfetch/pkg/types"
)

const (
	// minPDFSize rejects HTML error pages that masquerade as 200 OK; no
	// real paper is under a kilobyte.
	minPDFSize = 1000

	// sniffBodyCap bounds how much of a non-PDF response is kept for
	// landing-page link extraction.
	sniffBodyCap = 1 << 20

	// desktopUserAgent is presented on PDF fetches. Publisher CDNs reject
	// obvious bot agents outright, so this must look like a real browser.
	desktopUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

	defaultChallengeDelay = 10 * time.Second
)

var pdfMagic = []byte("%PDF")

// notPDFError reports a 200 response whose body was not a PDF. The body
// prefix is retained so the caller can sniff the landing page for the
// real file link.
type notPDFError struct {
	url         string
	contentType string
	body        []byte
}

func (e *notPDFError) Error() string {
	return fmt.Sprintf("%s returned %s, not a PDF", e.url, e.contentType)
}

// Downloader drives the escalation ladder for one candidate URL.
type Downloader struct {
	client  *http.Client
	relaxed *http.Client
	store   *session.Store
	cfg     types.BrowserConfig
	deep    bool
}

// NewDownloader builds a Downloader. client handles direct and VPN
// traffic with full certificate checks; proxied candidates use a
// TLS-relaxed twin because EZProxy terminates TLS with per-institution
// certificates that rarely chain cleanly. store supplies session cookies
// for proxied hosts and may be nil when no institutional access is
// configured.
func NewDownloader(client *http.Client, store *session.Store, cfg types.BrowserConfig, deepValidate bool) *Downloader {
	relaxed := &http.Client{
		Timeout: client.Timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return &Downloader{
		client:  client,
		relaxed: relaxed,
		store:   store,
		cfg:     cfg,
		deep:    deepValidate,
	}
}

// Fetch downloads cand into destPath, escalating tier by tier. The
// destination directory must already exist; the file appears atomically
// or not at all. Progress notes go to w.
func (d *Downloader) Fetch(ctx context.Context, cand *types.SourceCandidate, destPath string, w io.Writer) error {
	var directErr error
	if d.isChallengeHost(cand.PDFURL) {
		directErr = fmt.Errorf("host %s is known to challenge plain clients", hostOf(cand.PDFURL))
		fmt.Fprintf(w, "  skipping direct fetch: %v\n", directErr)
	} else {
		directErr = d.fetchHTTP(ctx, cand.PDFURL, destPath, fetchOptions{proxied: cand.Proxied})
		if directErr == nil {
			return nil
		}

		// A landing page instead of the file: pull the real link out of
		// the HTML and retry once.
		var notPDF *notPDFError
		if errors.As(directErr, &notPDF) {
			if link := findPDFLink(cand.PDFURL, notPDF.body); link != "" && link != cand.PDFURL {
				fmt.Fprintf(w, "  landing page, following %s\n", link)
				if err := d.fetchHTTP(ctx, link, destPath, fetchOptions{proxied: cand.Proxied}); err == nil {
					return nil
				} else {
					directErr = err
				}
			}
		}
		fmt.Fprintf(w, "  direct fetch failed: %v\n", directErr)
	}

	if !d.cfg.Enabled {
		return fmt.Errorf("browser escalation disabled: %w", directErr)
	}
	if err := d.fetchViaBrowser(ctx, cand.PDFURL, destPath, w); err != nil {
		return fmt.Errorf("all tiers failed: direct: %v; browser: %w", directErr, err)
	}
	return nil
}

type fetchOptions struct {
	// proxied selects the TLS-relaxed client and attaches the stored
	// institutional session cookies.
	proxied bool

	// cookies are extra cookies for this fetch, e.g. harvested from a
	// live browser after a challenge cleared.
	cookies []types.Cookie
}

// fetchHTTP performs one plain GET of rawURL into destPath via a
// temporary file. The first bytes decide early whether the response is a
// PDF at all; non-PDF bodies come back as *notPDFError.
func (d *Downloader) fetchHTTP(ctx context.Context, rawURL, destPath string, opts fetchOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent())
	req.Header.Set("Accept", "application/pdf,*/*")

	state := types.SessionState{Cookies: opts.cookies}
	if opts.proxied && d.store != nil {
		state = d.store.State()
		state.Cookies = append(state.Cookies, opts.cookies...)
	}
	if header := session.CookieHeader(state, req.URL.Hostname()); header != "" {
		req.Header.Set("Cookie", header)
	}

	client := d.client
	if opts.proxied {
		client = d.relaxed
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	br := bufio.NewReader(resp.Body)
	magic, _ := br.Peek(len(pdfMagic))
	if !bytes.Equal(magic, pdfMagic) {
		body, _ := io.ReadAll(io.LimitReader(br, sniffBodyCap))
		return &notPDFError{
			url:         rawURL,
			contentType: resp.Header.Get("Content-Type"),
			body:        body,
		}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, br)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if n < minPDFSize {
		os.Remove(tmpPath)
		return fmt.Errorf("response from %s too small (%d bytes) to be a paper", rawURL, n)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	if d.deep {
		if err := api.ValidateFile(destPath, nil); err != nil {
			os.Remove(destPath)
			return fmt.Errorf("PDF failed structural validation: %w", err)
		}
	}
	return nil
}

// fetchViaBrowser navigates a real browser at the URL and adopts whatever
// PDF results, either by re-fetching a direct .pdf location with the
// browser's cookies or by picking up a file the browser downloaded.
func (d *Downloader) fetchViaBrowser(ctx context.Context, rawURL, destPath string, w io.Writer) error {
	dlDir := d.cfg.DownloadDir
	if dlDir == "" {
		tmp, err := os.MkdirTemp(filepath.Dir(destPath), ".browser-dl-")
		if err != nil {
			return fmt.Errorf("creating browser download dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dlDir = tmp
	}

	sess, err := browser.StartAny(ctx, d.cfg, dlDir, w)
	if err != nil {
		return err
	}
	defer sess.Close()
	fmt.Fprintf(w, "  escalating to %s\n", sess.Engine())

	start := time.Now()
	settle := d.cfg.ChallengeDelay
	if settle <= 0 {
		settle = defaultChallengeDelay
	}
	if err := sess.Navigate(rawURL, settle); err != nil {
		return err
	}

	// Path (a): the tab landed on the PDF itself. Re-fetch over HTTP with
	// the browser's cookies, which carry the challenge clearance.
	if loc, err := sess.CurrentURL(); err == nil && looksLikePDFURL(loc) {
		if cookies, err := sess.Cookies(); err == nil {
			if err := d.fetchHTTP(ctx, loc, destPath, fetchOptions{cookies: cookies}); err == nil {
				return nil
			}
		}
	}

	// Path (b): navigation triggered a download into dlDir.
	found, err := browser.WaitForDownload(ctx, dlDir, start, d.cfg.DownloadTimeout)
	if err != nil {
		return err
	}
	if err := adoptDownload(found, destPath); err != nil {
		return err
	}
	if err := VerifyPDF(destPath, d.deep); err != nil {
		os.Remove(destPath)
		return err
	}
	return nil
}

// adoptDownload moves a finished browser download into place. Rename
// fails across filesystems (a configured download dir may live on
// another mount), so it falls back to copying through a temp file.
func adoptDownload(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening downloaded file: %w", err)
	}
	defer in.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, in)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("copying download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	os.Remove(src)
	return nil
}

// VerifyPDF checks that the file at path starts with the PDF magic and
// exceeds the minimum plausible size. With deep set it additionally runs
// a full structural validation pass over the document.
func VerifyPDF(path string, deep bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() < minPDFSize {
		return fmt.Errorf("%s is %d bytes, too small to be a paper", path, info.Size())
	}

	magic := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if !bytes.Equal(magic, pdfMagic) {
		return fmt.Errorf("%s does not start with %%PDF", path)
	}

	if deep {
		if err := api.ValidateFile(path, nil); err != nil {
			return fmt.Errorf("PDF failed structural validation: %w", err)
		}
	}
	return nil
}

func (d *Downloader) userAgent() string {
	if d.cfg.UserAgent != "" {
		return d.cfg.UserAgent
	}
	return desktopUserAgent
}

// isChallengeHost reports whether the URL's host is configured as one
// that blocks plain HTTP clients.
func (d *Downloader) isChallengeHost(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, h := range d.cfg.ChallengeHosts {
		h = strings.ToLower(strings.TrimPrefix(h, "."))
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func looksLikePDFURL(rawURL string) bool {
	path := strings.SplitN(rawURL, "?", 2)[0]
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}
