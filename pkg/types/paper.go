// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperRecord is the YAML metadata sidecar written next to each retrieved
// PDF. Per prd001-resolve R4.3: identifier provenance, source attribution,
// local path, and whatever bibliographic fields the winning source returned.
type PaperRecord struct {
	// ID is the filename stem derived from the identifier (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// Original is the raw identifier string as supplied by the caller.
	Original string `json:"original" yaml:"original"`

	// Kind is the detected identifier class.
	Kind IdentifierKind `json:"kind" yaml:"kind"`

	// Value is the canonical identifier (bare DOI, bare arXiv ID, URL, or title).
	Value string `json:"value" yaml:"value"`

	// SourceURL is the URL from which the PDF was downloaded.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// PDFPath is the local filesystem path to the stored PDF.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Source names the client that produced the PDF (e.g. "unpaywall", "biorxiv").
	Source string `json:"source" yaml:"source"`

	// Retrieved is the wall-clock time the PDF landed on disk.
	Retrieved time.Time `json:"retrieved" yaml:"retrieved"`

	// Title is the paper title, when a source reported one.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}
