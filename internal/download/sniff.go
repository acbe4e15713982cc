// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// findPDFLink extracts the PDF URL from a landing page. Scholarly pages
// advertise the file in a citation_pdf_url meta tag (the Google Scholar
// convention); failing that, the first anchor pointing at a .pdf is
// taken. Relative links resolve against pageURL. Returns "" when the
// page offers nothing.
func findPDFLink(pageURL string, body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	if href, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok && strings.TrimSpace(href) != "" {
		return absoluteURL(base, strings.TrimSpace(href))
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if looksLikePDFURL(href) {
			found = absoluteURL(base, href)
			return false
		}
		return true
	})
	return found
}

func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
