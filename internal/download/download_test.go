// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/paperfetch/internal/session"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// pdfBody returns a byte stream that passes the magic and size checks.
func pdfBody() []byte {
	body := []byte("%PDF-1.4\n")
	return append(body, bytes.Repeat([]byte("x"), minPDFSize+200)...)
}

func newTestDownloader(ts *httptest.Server, store *session.Store, cfg types.BrowserConfig) *Downloader {
	client := ts.Client()
	client.Timeout = 5 * time.Second
	return NewDownloader(client, store, cfg, false)
}

func destFor(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "paper.pdf")
}

// --- Fetch ---

func TestFetchDirectPDF(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write(pdfBody())
	}))
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{})
	dest := destFor(t)
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	if err := d.Fetch(context.Background(), cand, dest, io.Discard); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if !bytes.Equal(data, pdfBody()) {
		t.Errorf("downloaded %d bytes, want %d", len(data), len(pdfBody()))
	}
	if gotUA != desktopUserAgent {
		t.Errorf("User-Agent = %q, want desktop agent", gotUA)
	}
	if !strings.Contains(gotAccept, "application/pdf") {
		t.Errorf("Accept = %q, want application/pdf", gotAccept)
	}
}

func TestFetchCustomUserAgent(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write(pdfBody())
	}))
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{UserAgent: "paperfetch-test/0.1"})
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	if err := d.Fetch(context.Background(), cand, destFor(t), io.Discard); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotUA != "paperfetch-test/0.1" {
		t.Errorf("User-Agent = %q, want configured agent", gotUA)
	}
}

func TestFetchFollowsLandingPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><head>
			<meta name="citation_pdf_url" content="/files/real.pdf">
			</head><body>Article landing page</body></html>`)
	})
	mux.HandleFunc("/files/real.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfBody())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{})
	dest := destFor(t)
	var out bytes.Buffer
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/landing"}
	if err := d.Fetch(context.Background(), cand, dest, &out); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(out.String(), "landing page, following") {
		t.Errorf("output = %q, want landing page note", out.String())
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination file missing: %v", err)
	}
}

func TestFetchHTMLWithoutLinkFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><body>Please enable JavaScript.</body></html>`)
	}))
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{Enabled: false})
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	err := d.Fetch(context.Background(), cand, destFor(t), io.Discard)
	if err == nil {
		t.Fatal("Fetch() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "browser escalation disabled") {
		t.Errorf("error = %v, want escalation-disabled wrap", err)
	}
	if !strings.Contains(err.Error(), "not a PDF") {
		t.Errorf("error = %v, want not-a-PDF cause", err)
	}
}

func TestFetchHTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{})
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	err := d.Fetch(context.Background(), cand, destFor(t), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "HTTP 403") {
		t.Errorf("Fetch() error = %v, want HTTP 403", err)
	}
}

func TestFetchRejectsTinyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "%PDF-1.4 stub")
	}))
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{})
	dest := destFor(t)
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	err := d.Fetch(context.Background(), cand, dest, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "too small") {
		t.Fatalf("Fetch() error = %v, want too-small rejection", err)
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination exists after failed fetch")
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(dest), ".fetch-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFetchSkipsChallengeHosts(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(pdfBody())
	}))
	defer ts.Close()

	d := newTestDownloader(ts, nil, types.BrowserConfig{
		Enabled:        false,
		ChallengeHosts: []string{"127.0.0.1"},
	})
	var out bytes.Buffer
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	err := d.Fetch(context.Background(), cand, destFor(t), &out)
	if err == nil || !strings.Contains(err.Error(), "challenge") {
		t.Fatalf("Fetch() error = %v, want challenge-host failure", err)
	}
	if hits.Load() != 0 {
		t.Errorf("challenge host was fetched directly %d times", hits.Load())
	}
	if !strings.Contains(out.String(), "skipping direct fetch") {
		t.Errorf("output = %q, want skip note", out.String())
	}
}

func TestFetchProxiedSendsSessionCookies(t *testing.T) {
	var gotCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Write(pdfBody())
	}))
	defer ts.Close()

	store, err := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	state := types.SessionState{
		Authenticated: true,
		Cookies: []types.Cookie{
			{Name: "ezproxy", Value: "abc123", Domain: "127.0.0.1"},
			{Name: "stale", Value: "old", Domain: "127.0.0.1", Expires: time.Now().Add(-time.Hour).Unix()},
			{Name: "other", Value: "nope", Domain: "elsewhere.example.com"},
		},
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	d := newTestDownloader(ts, store, types.BrowserConfig{})
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf", Proxied: true}
	if err := d.Fetch(context.Background(), cand, destFor(t), io.Discard); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !strings.Contains(gotCookie, "ezproxy=abc123") {
		t.Errorf("Cookie = %q, want session cookie attached", gotCookie)
	}
	if strings.Contains(gotCookie, "stale=") {
		t.Errorf("Cookie = %q, expired cookie sent", gotCookie)
	}
	if strings.Contains(gotCookie, "other=") {
		t.Errorf("Cookie = %q, cookie for another domain sent", gotCookie)
	}
}

func TestFetchDirectSendsNoSessionCookies(t *testing.T) {
	var gotCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Write(pdfBody())
	}))
	defer ts.Close()

	store, err := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save(types.SessionState{
		Cookies: []types.Cookie{{Name: "ezproxy", Value: "abc123", Domain: "127.0.0.1"}},
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	d := newTestDownloader(ts, store, types.BrowserConfig{})
	cand := &types.SourceCandidate{PDFURL: ts.URL + "/paper.pdf"}
	if err := d.Fetch(context.Background(), cand, destFor(t), io.Discard); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotCookie != "" {
		t.Errorf("Cookie = %q, want none on unproxied fetch", gotCookie)
	}
}

// --- VerifyPDF ---

func TestVerifyPDF(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"valid", write("good.pdf", pdfBody()), ""},
		{"too small", write("small.pdf", []byte("%PDF-1.4")), "too small"},
		{"wrong magic", write("fake.pdf", bytes.Repeat([]byte("<html>"), 400)), "does not start with %PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPDF(tt.path, false)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("VerifyPDF() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("VerifyPDF() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyPDFDeepRejectsPaddedFile(t *testing.T) {
	// The magic check passes but there is no xref table or trailer, so
	// structural validation must reject it.
	path := filepath.Join(t.TempDir(), "padded.pdf")
	if err := os.WriteFile(path, pdfBody(), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := VerifyPDF(path, true); err == nil {
		t.Error("VerifyPDF(deep) = nil, want structural validation failure")
	}
}

// --- adoptDownload ---

func TestAdoptDownload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "browser-download.pdf")
	if err := os.WriteFile(src, pdfBody(), 0o644); err != nil {
		t.Fatalf("writing source: %v", err)
	}
	dest := filepath.Join(dir, "paper.pdf")

	if err := adoptDownload(src, dest); err != nil {
		t.Fatalf("adoptDownload() error = %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still present after adoption")
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if !bytes.Equal(data, pdfBody()) {
		t.Errorf("destination holds %d bytes, want %d", len(data), len(pdfBody()))
	}
}

// --- host matching ---

func TestIsChallengeHost(t *testing.T) {
	d := &Downloader{cfg: types.BrowserConfig{
		ChallengeHosts: []string{"ieee.org", ".sciencedirect.com"},
	}}
	tests := []struct {
		url  string
		want bool
	}{
		{"https://ieee.org/doc.pdf", true},
		{"https://ieeexplore.ieee.org/doc.pdf", true},
		{"https://www.sciencedirect.com/science/article/pii/X/pdf", true},
		{"https://arxiv.org/pdf/2301.07041", false},
		{"https://notieee.org/doc.pdf", false},
		{"://bad url", false},
	}
	for _, tt := range tests {
		if got := d.isChallengeHost(tt.url); got != tt.want {
			t.Errorf("isChallengeHost(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
