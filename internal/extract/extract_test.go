package extract

import (
	"strings"
	"testing"

	"promowatch/internal/fetch"
)

func result(html string) *fetch.Result {
	return &fetch.Result{URL: "https://example.com/promos", HTML: html}
}

func TestExtractSections(t *testing.T) {
	html := `<html><body>
		<div class="promo-banner">Save $25 on your next oil change with coupon SAVE25 this month only</div>
		<div class="promo-banner">Too short promo</div>
		<div class="footer">Copyright 2026 Example Corp, all rights reserved, contact us today</div>
	</body></html>`

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{
		Keywords: []string{"save", "offer", "coupon"},
	})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if !strings.Contains(c.RawText, "Save $25") {
		t.Fatalf("unexpected text %q", c.RawText)
	}
	if c.Selector != "div[class*='promo']" {
		t.Fatalf("unexpected selector %q", c.Selector)
	}
	if c.RawMarkup == "" {
		t.Fatal("expected raw markup captured")
	}
}

func TestExtractSectionsCollapsesNestedDuplicates(t *testing.T) {
	// An outer section wrapping a promo div carries identical text; the
	// first-words dedup key should collapse them into one candidate.
	html := `<html><body>
		<section><div class="promo">Limited time offer: save $40 on a full set of tires, installation included</div></section>
	</body></html>`

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{})
	if len(candidates) != 1 {
		t.Fatalf("expected nested duplicate collapsed to 1, got %d", len(candidates))
	}
}

func TestExtractRejectsTemplatePlaceholders(t *testing.T) {
	html := `<html><body>
		<div class="promo">Save {{ discount.amount }} on {{ service.name }} this week, limited time special offer</div>
	</body></html>`

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{MinPageChars: 10000})
	if len(candidates) != 0 {
		t.Fatalf("expected template output rejected, got %d candidates", len(candidates))
	}
}

func TestExtractDenyKeywords(t *testing.T) {
	html := `<html><body>
		<div class="promo">Subscribe to our newsletter for special offers and exclusive savings every week</div>
	</body></html>`

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{
		DenyKeywords: []string{"newsletter"},
		MinPageChars: 10000,
	})
	if len(candidates) != 0 {
		t.Fatalf("expected deny keyword to reject section, got %d", len(candidates))
	}
}

func TestExtractPDFLinks(t *testing.T) {
	html := `<html><body>
		<div class="sidebar">nothing promotional in the sections themselves</div>
		<a href="/coupons/oil-change.pdf"><img src="/img/oil-coupon.jpg" alt="oil change coupon"></a>
		<a href="/coupons/oil-change.pdf">duplicate link</a>
		<a href="/about">about us</a>
	</body></html>`

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{
		Keywords:     []string{"coupon", "save"},
		PDFLinks:     true,
		MinPageChars: 10000,
	})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 PDF candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.PDFURL != "https://example.com/coupons/oil-change.pdf" {
		t.Fatalf("unexpected pdf url %q", c.PDFURL)
	}
	if len(c.ImageURLs) != 1 || c.ImageURLs[0] != "https://example.com/img/oil-coupon.jpg" {
		t.Fatalf("expected inner image captured, got %v", c.ImageURLs)
	}
	if !c.HasAsset() {
		t.Fatal("expected candidate to report an asset")
	}
}

func TestExtractTaggedImages(t *testing.T) {
	html := `<html><body>
		<img class="coupon-img" data-src="https://cdn.example.com/winter-special.png" alt="Winter special $30 off">
		<img class="coupon-img" data-src="https://cdn.example.com/winter-special.png" alt="dup">
	</body></html>`

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{
		Keywords:      []string{"save"},
		ImageSelector: "img.coupon-img",
		MinPageChars:  10000,
	})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 image candidate, got %d", len(candidates))
	}
	if candidates[0].RawText != "Winter special $30 off" {
		t.Fatalf("expected alt text carried, got %q", candidates[0].RawText)
	}
}

func TestExtractWholePageFallback(t *testing.T) {
	long := strings.Repeat("Great deals on brakes and tires. ", 10)
	html := "<html><body><p>" + long + "</p></body></html>"

	e := New(nil)
	candidates := e.Extract(result(html), SourceConfig{
		Keywords: []string{"nomatch-keyword"},
	})

	if len(candidates) != 1 {
		t.Fatalf("expected whole-page fallback candidate, got %d", len(candidates))
	}
	if candidates[0].Selector != "page" {
		t.Fatalf("unexpected selector %q", candidates[0].Selector)
	}
}

func TestExtractWholePageTooShort(t *testing.T) {
	e := New(nil)
	candidates := e.Extract(result("<html><body><p>tiny page</p></body></html>"), SourceConfig{})
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates for short page, got %d", len(candidates))
	}
}
