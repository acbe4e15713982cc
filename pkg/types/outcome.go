// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// OutcomeStatus is the terminal state of one retrieval attempt.
type OutcomeStatus string

const (
	// StatusSuccess means a verified PDF landed on disk.
	StatusSuccess OutcomeStatus = "success"

	// StatusSkipped means the target path already held a PDF, so no
	// network activity was attempted.
	StatusSkipped OutcomeStatus = "skipped"

	// StatusNotFound means no source produced a download candidate.
	StatusNotFound OutcomeStatus = "not_found"

	// StatusFailed means at least one candidate existed but every
	// download attempt was rejected or errored.
	StatusFailed OutcomeStatus = "failed"
)

// SourceCandidate is a concrete download target proposed by a source
// client's lookup.
type SourceCandidate struct {
	// SourceName identifies the client that produced the candidate.
	SourceName string `json:"source_name" yaml:"source_name"`

	// PDFURL is the URL believed to serve the PDF bytes.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// Proxied marks candidates routed through an authenticated proxy.
	// The downloader attaches stored session cookies and relaxes TLS
	// verification only for proxied candidates.
	Proxied bool `json:"proxied,omitempty" yaml:"proxied,omitempty"`

	// Meta carries whatever bibliographic fields the source returned.
	Meta *PaperMeta `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// PaperMeta holds bibliographic metadata recovered during resolution.
// Sources fill whatever subset they know; zero values mean unknown.
type PaperMeta struct {
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Authors  []string  `json:"authors,omitempty" yaml:"authors,omitempty"`
	Date     time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	Year     int       `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	DOI      string    `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID  string    `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	PubMedID string    `json:"pubmed_id,omitempty" yaml:"pubmed_id,omitempty"`
	Venue    string    `json:"venue,omitempty" yaml:"venue,omitempty"`
}

// RetrievalOutcome is the result of resolving one identifier.
type RetrievalOutcome struct {
	// Identifier is the typed identifier the outcome belongs to.
	Identifier Identifier `json:"identifier" yaml:"identifier"`

	// Status is the terminal state of the attempt.
	Status OutcomeStatus `json:"status" yaml:"status"`

	// PDFPath is the absolute path of the stored PDF on success or skip.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// Source names the client whose candidate produced the PDF.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Meta is the best bibliographic metadata recovered along the way.
	Meta *PaperMeta `json:"meta,omitempty" yaml:"meta,omitempty"`

	// Err describes the failure for StatusFailed outcomes.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchReport aggregates the outcomes of one batch run.
type BatchReport struct {
	Total     int                `json:"total" yaml:"total"`
	Succeeded int                `json:"succeeded" yaml:"succeeded"`
	Skipped   int                `json:"skipped" yaml:"skipped"`
	NotFound  int                `json:"not_found" yaml:"not_found"`
	Failed    int                `json:"failed" yaml:"failed"`
	Outcomes  []RetrievalOutcome `json:"outcomes" yaml:"outcomes"`
}

// Tally recomputes the counters from Outcomes.
func (r *BatchReport) Tally() {
	r.Total = len(r.Outcomes)
	r.Succeeded, r.Skipped, r.NotFound, r.Failed = 0, 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSuccess:
			r.Succeeded++
		case StatusSkipped:
			r.Skipped++
		case StatusNotFound:
			r.NotFound++
		case StatusFailed:
			r.Failed++
		}
	}
}
