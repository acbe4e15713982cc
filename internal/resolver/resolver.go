// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolver walks the source ladder for one identifier at a time
// and coordinates concurrent batch runs. A retrieval ends in exactly one
// of four states: success, skipped, not found, or failed.
// Implements: prd005-batch (R1-R4); docs/ARCHITECTURE § Resolution.
package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/internal/identify"
	"github.com/pdiddy/paperfetch/internal/source"
	"github.com/pdiddy/paperfetch/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// Resolver tries source clients in order until one lands a verified PDF.
type Resolver struct {
	clients []source.Client
	cfg     types.AcquisitionConfig
}

// New builds a Resolver over the given clients. Client order is the
// resolution order.
func New(clients []source.Client, cfg types.AcquisitionConfig) *Resolver {
	return &Resolver{clients: clients, cfg: cfg}
}

// Retrieve resolves one raw identifier to a stored PDF plus metadata
// sidecar. Individual source failures are logged to w and the next
// source is tried; the outcome is terminal and never carries an error
// alongside success (Per prd005-batch R1.2).
func (r *Resolver) Retrieve(ctx context.Context, raw string, w io.Writer) types.RetrievalOutcome {
	id := identify.Resolve(raw)
	outcome := types.RetrievalOutcome{Identifier: id}
	slug := identify.Slug(id)

	pdfPath := filepath.Join(r.cfg.PapersDir, rawDir, identify.PDFFilename(id))
	metaPath := filepath.Join(r.cfg.PapersDir, metadataDir, identify.SidecarFilename(id))

	// The skip check runs before any directory or network work so a
	// fully cached batch touches nothing but stat calls.
	if r.cfg.SkipExisting {
		if _, err := os.Stat(pdfPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", slug)
			outcome.Status = types.StatusSkipped
			outcome.PDFPath = pdfPath
			if rec, err := readSidecar(metaPath); err == nil {
				outcome.Source = rec.Source
				outcome.Meta = recordMeta(rec)
			}
			return outcome
		}
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = types.StatusFailed
		outcome.Err = err.Error()
		return outcome
	}

	for _, dir := range []string{
		filepath.Join(r.cfg.PapersDir, rawDir),
		filepath.Join(r.cfg.PapersDir, metadataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			outcome.Status = types.StatusFailed
			outcome.Err = fmt.Sprintf("creating directory %s: %v", dir, err)
			return outcome
		}
	}

	var lastErr error
	candidates := 0
	for _, c := range r.clients {
		if err := ctx.Err(); err != nil {
			outcome.Status = types.StatusFailed
			outcome.Err = err.Error()
			return outcome
		}
		if !c.Accepts(id) {
			continue
		}

		cand, err := c.Lookup(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "  %s lookup failed: %v\n", c.Name(), err)
			lastErr = err
			continue
		}
		if cand == nil {
			continue
		}
		candidates++

		fmt.Fprintf(w, "  trying %s: %s\n", cand.SourceName, cand.PDFURL)
		if err := c.Download(ctx, cand, pdfPath, w); err != nil {
			fmt.Fprintf(w, "  %s download failed: %v\n", cand.SourceName, err)
			lastErr = err
			continue
		}

		outcome.Status = types.StatusSuccess
		outcome.PDFPath = pdfPath
		outcome.Source = cand.SourceName
		outcome.Meta = cand.Meta
		// The PDF is already safely on disk; a sidecar problem is not
		// worth failing the retrieval over.
		if err := writeSidecar(id, cand, pdfPath, metaPath); err != nil {
			fmt.Fprintf(w, "  warning: writing metadata sidecar: %v\n", err)
		}
		fmt.Fprintf(w, "retrieved: %s via %s\n", slug, cand.SourceName)
		return outcome
	}

	if candidates == 0 && lastErr == nil {
		fmt.Fprintf(w, "not found: %s (no source has it)\n", slug)
		outcome.Status = types.StatusNotFound
		return outcome
	}

	outcome.Status = types.StatusFailed
	if lastErr != nil {
		outcome.Err = lastErr.Error()
		fmt.Fprintf(w, "failed: %s (%v)\n", slug, lastErr)
	} else {
		fmt.Fprintf(w, "failed: %s\n", slug)
	}
	return outcome
}

// writeSidecar records identifier provenance and the winning source next
// to the PDF (Per prd001-resolve R4.3).
func writeSidecar(id types.Identifier, cand *types.SourceCandidate, pdfPath, metaPath string) error {
	rec := &types.PaperRecord{
		ID:        identify.Slug(id),
		Original:  id.Original,
		Kind:      id.Kind,
		Value:     id.Value,
		SourceURL: cand.PDFURL,
		PDFPath:   pdfPath,
		Source:    cand.SourceName,
		Retrieved: time.Now().UTC(),
	}
	if cand.Meta != nil {
		rec.Title = cand.Meta.Title
		rec.Authors = cand.Meta.Authors
		rec.Date = cand.Meta.Date
		rec.Abstract = cand.Meta.Abstract
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(metaPath, data, 0o644)
}

// readSidecar loads a previously written metadata record.
func readSidecar(path string) (*types.PaperRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec types.PaperRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// recordMeta lifts the bibliographic fields of a sidecar back into a
// PaperMeta for outcomes that skip the network.
func recordMeta(rec *types.PaperRecord) *types.PaperMeta {
	if rec.Title == "" && len(rec.Authors) == 0 && rec.Abstract == "" {
		return nil
	}
	return &types.PaperMeta{
		Title:    rec.Title,
		Authors:  rec.Authors,
		Date:     rec.Date,
		Abstract: rec.Abstract,
	}
}
