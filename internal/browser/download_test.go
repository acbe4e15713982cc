// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeDownload(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWaitForDownloadFindsFreshPDF(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Second)
	want := writeDownload(t, dir, "paper.pdf")

	got, err := WaitForDownload(context.Background(), dir, since, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWaitForDownloadPicksNewest(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Second)
	older := writeDownload(t, dir, "older.pdf")
	newer := writeDownload(t, dir, "newer.pdf")

	now := time.Now()
	if err := os.Chtimes(older, now.Add(-5*time.Second), now.Add(-5*time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(newer, now, now); err != nil {
		t.Fatal(err)
	}

	got, err := WaitForDownload(context.Background(), dir, since.Add(-10*time.Second), 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != newer {
		t.Errorf("got %q, want newest %q", got, newer)
	}
}

func TestWaitForDownloadIgnoresStaleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDownload(t, dir, "old.pdf")
	stale := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}

	_, err := WaitForDownload(context.Background(), dir, time.Now().Add(-time.Hour), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout, got nil")
	}
	if !strings.Contains(err.Error(), "no PDF arrived") {
		t.Errorf("error should report no arrival, got: %v", err)
	}
}

func TestWaitForDownloadIgnoresFileBeforeSince(t *testing.T) {
	dir := t.TempDir()
	writeDownload(t, dir, "previous.pdf")

	// since is after the file landed, so it must not be adopted.
	_, err := WaitForDownload(context.Background(), dir, time.Now().Add(time.Second), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout, got nil")
	}
}

func TestWaitForDownloadSkipsInProgress(t *testing.T) {
	dir := t.TempDir()
	writeDownload(t, dir, "paper.pdf")
	writeDownload(t, dir, "paper.pdf.crdownload")

	_, err := WaitForDownload(context.Background(), dir, time.Now().Add(-time.Second), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout while download is in progress, got nil")
	}
}

func TestWaitForDownloadIgnoresNonPDF(t *testing.T) {
	dir := t.TempDir()
	writeDownload(t, dir, "challenge.html")

	_, err := WaitForDownload(context.Background(), dir, time.Now().Add(-time.Second), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout, got nil")
	}
}

func TestWaitForDownloadAdoptsLateArrival(t *testing.T) {
	dir := t.TempDir()
	since := time.Now()

	go func() {
		time.Sleep(100 * time.Millisecond)
		// Not writeDownload: t.Fatal must not run off the test goroutine.
		_ = os.WriteFile(filepath.Join(dir, "late.pdf"), []byte("%PDF-1.4 test"), 0o644)
	}()

	got, err := WaitForDownload(context.Background(), dir, since, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(got) != "late.pdf" {
		t.Errorf("got %q, want late.pdf", got)
	}
}

func TestWaitForDownloadContextCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitForDownload(ctx, dir, time.Now(), 5*time.Second)
	if err == nil {
		t.Fatal("expected context error, got nil")
	}
}
