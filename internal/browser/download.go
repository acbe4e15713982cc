// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// downloadPollInterval is how often the download directory is scanned.
	downloadPollInterval = 500 * time.Millisecond

	// downloadFreshWindow bounds how old a file's mtime may be and still
	// count as the download we triggered.
	downloadFreshWindow = 30 * time.Second
)

// WaitForDownload polls dir for a PDF written after since and returns its
// path. Files the browser is still writing (a .crdownload twin exists)
// are skipped until finished. Returns an error when timeout or ctx
// expires first.
func WaitForDownload(ctx context.Context, dir string, since time.Time, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = downloadFreshWindow
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(downloadPollInterval)
	defer tick.Stop()

	for {
		if path := scanForPDF(dir, since); path != "" {
			return path, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("no PDF arrived in %s within %v", dir, timeout)
		case <-tick.C:
		}
	}
}

// scanForPDF returns the newest finished PDF in dir written after since
// and inside the freshness window, or "" when there is none.
func scanForPDF(dir string, since time.Time) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name()+".crdownload")); err == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if !mod.After(since) || time.Since(mod) > downloadFreshWindow {
			continue
		}
		if mod.After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = mod
		}
	}
	return newest
}
