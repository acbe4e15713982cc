// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperfetch pipeline.
// Implements: prd001-resolve (Identifier, PaperRecord); prd002-sources
// (SourceCandidate, PaperMeta); prd004-sessions (SessionState, Cookie);
// prd005-batch (RetrievalOutcome, BatchReport).
// See docs/ARCHITECTURE § Data Structures.
package types

// IdentifierKind classifies a paper identifier.
type IdentifierKind string

const (
	KindDOI     IdentifierKind = "doi"
	KindArxiv   IdentifierKind = "arxiv"
	KindPubMed  IdentifierKind = "pubmed"
	KindPDFURL  IdentifierKind = "pdf_url"
	KindTitle   IdentifierKind = "title"
	KindUnknown IdentifierKind = "unknown"
)

// Identifier is a typed, normalized paper identifier. Immutable once
// resolved; Kind drives which source clients are attempted.
type Identifier struct {
	// Original is the raw input string exactly as the caller supplied it.
	Original string `json:"original" yaml:"original"`

	// Kind is the detected identifier class.
	Kind IdentifierKind `json:"kind" yaml:"kind"`

	// Value is the canonical form: a bare DOI, a bare arXiv ID (version
	// suffix kept), bare PubMed digits, the URL itself, or the trimmed
	// title text for free-text queries.
	Value string `json:"value" yaml:"value"`
}
