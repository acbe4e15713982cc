// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/paperfetch/pkg/types"
)

const sampleEuropePMCJSON = `{
  "resultList": {
    "result": [{
      "title": "A Gene Study.",
      "authorString": "Doe J, Smith A.",
      "doi": "10.1093/nar/gkaa1100",
      "pmid": "33290552",
      "abstractText": "We studied a gene.",
      "firstPublicationDate": "2020-12-08",
      "fullTextUrlList": {
        "fullTextUrl": [
          {"availability": "Subscription required", "documentStyle": "pdf", "url": "https://publisher.example.com/paid.pdf"},
          {"availability": "Open access", "documentStyle": "html", "url": "https://europepmc.org/article/MED/33290552"},
          {"availability": "Open access", "documentStyle": "pdf", "url": "https://europepmc.org/articles/PMC7736788?pdf=render"}
        ]
      }
    }]
  }
}`

func TestEuropePMCAccepts(t *testing.T) {
	c := NewEuropePMC(testDeps(nil))
	tests := []struct {
		kind types.IdentifierKind
		want bool
	}{
		{types.KindDOI, true},
		{types.KindPubMed, true},
		{types.KindArxiv, false},
		{types.KindPDFURL, false},
	}
	for _, tt := range tests {
		if got := c.Accepts(types.Identifier{Kind: tt.kind}); got != tt.want {
			t.Errorf("Accepts(%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestEuropePMCLookupDOI(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleEuropePMCJSON)
	}))
	defer ts.Close()

	old := europePMCAPIBase
	europePMCAPIBase = ts.URL
	defer func() { europePMCAPIBase = old }()

	c := NewEuropePMC(testDeps(ts))
	id := types.Identifier{Kind: types.KindDOI, Value: "10.1093/nar/gkaa1100"}

	cand, err := c.Lookup(context.Background(), id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cand == nil {
		t.Fatal("expected a candidate")
	}

	// Only the open-access PDF link qualifies; the paywalled PDF and the
	// HTML view are passed over.
	want := "https://europepmc.org/articles/PMC7736788?pdf=render"
	if cand.PDFURL != want {
		t.Errorf("PDFURL = %q, want %q", cand.PDFURL, want)
	}
	if cand.SourceName != "europepmc" {
		t.Errorf("SourceName = %q, want %q", cand.SourceName, "europepmc")
	}

	q := capturedReq.URL.Query()
	if got := q.Get("query"); got != `DOI:"10.1093/nar/gkaa1100"` {
		t.Errorf("query param = %q", got)
	}
	if got := q.Get("resultType"); got != "core" {
		t.Errorf("resultType param = %q, want %q", got, "core")
	}
	if got := q.Get("format"); got != "json" {
		t.Errorf("format param = %q, want %q", got, "json")
	}

	if cand.Meta == nil {
		t.Fatal("expected metadata")
	}
	if cand.Meta.Title != "A Gene Study." {
		t.Errorf("Title = %q", cand.Meta.Title)
	}
	if len(cand.Meta.Authors) != 2 || cand.Meta.Authors[0] != "Doe J" {
		t.Errorf("Authors = %v", cand.Meta.Authors)
	}
	if cand.Meta.PubMedID != "33290552" {
		t.Errorf("PubMedID = %q", cand.Meta.PubMedID)
	}
	if cand.Meta.Date.Year() != 2020 {
		t.Errorf("Date = %v, want year 2020", cand.Meta.Date)
	}
}

func TestEuropePMCLookupPubMedQuery(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleEuropePMCJSON)
	}))
	defer ts.Close()

	old := europePMCAPIBase
	europePMCAPIBase = ts.URL
	defer func() { europePMCAPIBase = old }()

	c := NewEuropePMC(testDeps(ts))
	_, err := c.Lookup(context.Background(), types.Identifier{Kind: types.KindPubMed, Value: "33290552"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got := capturedReq.URL.Query().Get("query"); got != "EXT_ID:33290552 AND SRC:MED" {
		t.Errorf("query param = %q", got)
	}
}

func TestEuropePMCLookupNoOpenAccessPDF(t *testing.T) {
	body := `{
  "resultList": {
    "result": [{
      "title": "Paywalled Paper",
      "fullTextUrlList": {
        "fullTextUrl": [
          {"availability": "Subscription required", "documentStyle": "pdf", "url": "https://publisher.example.com/paid.pdf"}
        ]
      }
    }]
  }
}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	old := europePMCAPIBase
	europePMCAPIBase = ts.URL
	defer func() { europePMCAPIBase = old }()

	c := NewEuropePMC(testDeps(ts))
	cand, err := c.Lookup(context.Background(), types.Identifier{Kind: types.KindDOI, Value: "10.1/x"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cand != nil {
		t.Errorf("expected nil candidate without an open-access PDF, got %+v", cand)
	}
}

func TestEuropePMCLookupNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"resultList":{"result":[]}}`)
	}))
	defer ts.Close()

	old := europePMCAPIBase
	europePMCAPIBase = ts.URL
	defer func() { europePMCAPIBase = old }()

	c := NewEuropePMC(testDeps(ts))
	cand, err := c.Lookup(context.Background(), types.Identifier{Kind: types.KindDOI, Value: "10.9999/nope"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cand != nil {
		t.Errorf("expected nil candidate for unknown identifier, got %+v", cand)
	}
}
