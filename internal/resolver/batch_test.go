// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// recordingLedger captures RecordOutcome calls for assertions.
type recordingLedger struct {
	mu  sync.Mutex
	got map[int]types.RetrievalOutcome
	err error
}

func (l *recordingLedger) RecordOutcome(_ context.Context, position int, outcome types.RetrievalOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.got == nil {
		l.got = make(map[int]types.RetrievalOutcome)
	}
	l.got[position] = outcome
	return l.err
}

func TestRetrieveBatchOutcomePositions(t *testing.T) {
	// One client whose behavior depends on identifier kind: arXiv IDs
	// succeed, PubMed IDs are unknown, DOIs blow up.
	client := &mockClient{
		name: "scripted",
		lookup: func(_ context.Context, id types.Identifier) (*types.SourceCandidate, error) {
			switch id.Kind {
			case types.KindArxiv:
				return &types.SourceCandidate{SourceName: "scripted", PDFURL: "https://x/" + id.Value}, nil
			case types.KindPubMed:
				return nil, nil
			default:
				return nil, errors.New("lookup exploded")
			}
		},
	}
	r := New([]source.Client{client}, testCfg(t.TempDir()))

	raws := []string{"2301.07041", "PMID:12345", "10.1145/999"}
	var buf bytes.Buffer
	report := r.RetrieveBatch(context.Background(), raws, nil, &buf)

	if report.Total != 3 {
		t.Fatalf("Total = %d, want 3", report.Total)
	}
	wantStatus := []types.OutcomeStatus{types.StatusSuccess, types.StatusNotFound, types.StatusFailed}
	for i, want := range wantStatus {
		if report.Outcomes[i].Status != want {
			t.Errorf("Outcomes[%d].Status = %v, want %v", i, report.Outcomes[i].Status, want)
		}
		if report.Outcomes[i].Identifier.Original != raws[i] {
			t.Errorf("Outcomes[%d].Identifier.Original = %q, want %q (order must match input)",
				i, report.Outcomes[i].Identifier.Original, raws[i])
		}
	}
	if report.Succeeded != 1 || report.NotFound != 1 || report.Failed != 1 {
		t.Errorf("tally = %d/%d/%d, want 1/1/1", report.Succeeded, report.NotFound, report.Failed)
	}
}

func TestRetrieveBatchConcurrencyCap(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	client := servingClient("slow")
	client.download = func(_ context.Context, _ *types.SourceCandidate, destPath string, _ io.Writer) error {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxSeen.Load()
			if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return writeFakePDF(destPath)
	}

	cfg := testCfg(t.TempDir())
	cfg.Concurrency = 2
	r := New([]source.Client{client}, cfg)

	var raws []string
	for i := 0; i < 6; i++ {
		raws = append(raws, fmt.Sprintf("2301.0700%d", i))
	}

	var buf bytes.Buffer
	report := r.RetrieveBatch(context.Background(), raws, nil, &buf)

	if report.Succeeded != 6 {
		t.Fatalf("Succeeded = %d, want 6 (output: %s)", report.Succeeded, buf.String())
	}
	if got := maxSeen.Load(); got > 2 {
		t.Errorf("max in-flight retrievals = %d, want <= 2", got)
	}
}

func TestRetrieveBatchRecordsEveryOutcome(t *testing.T) {
	client := servingClient("any")
	r := New([]source.Client{client}, testCfg(t.TempDir()))

	raws := []string{"2301.07041", "2301.07042", "2301.07043"}
	ledger := &recordingLedger{}

	var buf bytes.Buffer
	r.RetrieveBatch(context.Background(), raws, ledger, &buf)

	if len(ledger.got) != len(raws) {
		t.Fatalf("recorded %d outcomes, want %d", len(ledger.got), len(raws))
	}
	for i, raw := range raws {
		outcome, ok := ledger.got[i]
		if !ok {
			t.Errorf("position %d never recorded", i)
			continue
		}
		if outcome.Identifier.Original != raw {
			t.Errorf("recorded[%d].Identifier.Original = %q, want %q", i, outcome.Identifier.Original, raw)
		}
	}
}

func TestRetrieveBatchRecorderErrorIsWarning(t *testing.T) {
	client := servingClient("any")
	r := New([]source.Client{client}, testCfg(t.TempDir()))

	ledger := &recordingLedger{err: errors.New("database is locked")}

	var buf bytes.Buffer
	report := r.RetrieveBatch(context.Background(), []string{"2301.07041"}, ledger, &buf)

	if report.Succeeded != 1 {
		t.Fatalf("Succeeded = %d, want 1; recording problems must not fail retrievals", report.Succeeded)
	}
	if !strings.Contains(buf.String(), "warning: recording outcome") {
		t.Errorf("output = %q, want a recording warning", buf.String())
	}
}

func TestRetrieveBatchSummaryLine(t *testing.T) {
	r := New([]source.Client{servingClient("any")}, testCfg(t.TempDir()))

	var buf bytes.Buffer
	r.RetrieveBatch(context.Background(), []string{"2301.07041"}, nil, &buf)

	if !strings.Contains(buf.String(), "Batch summary:") {
		t.Errorf("output = %q, want a batch summary", buf.String())
	}
}

func TestRetrieveBatchGroupsPerItemOutput(t *testing.T) {
	// Each item's lines must come out contiguous even with concurrent
	// workers; the per-item header makes runs attributable.
	client := servingClient("any")
	cfg := testCfg(t.TempDir())
	cfg.Concurrency = 4
	r := New([]source.Client{client}, cfg)

	raws := []string{"2301.07041", "2301.07042", "2301.07043", "2301.07044"}
	var buf bytes.Buffer
	r.RetrieveBatch(context.Background(), raws, nil, &buf)

	out := buf.String()
	for i, raw := range raws {
		header := fmt.Sprintf("[%d/%d] %s", i+1, len(raws), raw)
		idx := strings.Index(out, header)
		if idx < 0 {
			t.Errorf("output missing header %q", header)
			continue
		}
		// The retrieved line for this item follows its header before any
		// other header intervenes.
		rest := out[idx:]
		end := len(rest)
		if next := strings.Index(rest[1:], "["); next > 0 {
			end = next + 1
		}
		if !strings.Contains(rest[:end], "retrieved: "+raw) {
			t.Errorf("item %d lines not contiguous:\n%s", i, out)
		}
	}
}
