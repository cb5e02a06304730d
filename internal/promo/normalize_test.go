package promo

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"promowatch/internal/model"
)

type fakeOCR struct {
	text  string
	calls []string
}

func (f *fakeOCR) Text(ctx context.Context, assetURL string) string {
	f.calls = append(f.calls, assetURL)
	return f.text
}

type fakeCleaner struct {
	enriched *model.EnrichedText
	calls    int
}

func (f *fakeCleaner) Clean(ctx context.Context, rawText, contextHint string) *model.EnrichedText {
	f.calls++
	return f.enriched
}

func fixedNormalizer(ocr *fakeOCR, cleaner *fakeCleaner) *Normalizer {
	n := NewNormalizer(ocr, cleaner, nil)
	n.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

var testCompetitor = model.Competitor{
	Name:    "Speedy Lube",
	Domain:  "speedylube.example",
	Address: "123 Main St, Edmonton, AB",
}

func requireAllFieldsSet(t *testing.T, p model.StandardPromo) {
	t.Helper()
	fields := map[string]string{
		"website":           p.Website,
		"page_url":          p.PageURL,
		"business_name":     p.BusinessName,
		"service_name":      p.ServiceName,
		"promo_description": p.PromoDescription,
		"category":          p.Category,
		"contact":           p.Contact,
		"location":          p.Location,
		"offer_details":     p.OfferDetails,
		"ad_title":          p.AdTitle,
		"ad_text":           p.AdText,
		"date_scraped":      p.DateScraped,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			t.Errorf("field %s is empty", name)
		}
	}
}

func TestNormalizeWithEnrichment(t *testing.T) {
	cleaner := &fakeCleaner{enriched: &model.EnrichedText{
		ServiceName:   "Synthetic Oil Change",
		Description:   "Save $25 on a full synthetic oil change",
		Category:      "oil change",
		OfferDetails:  "Valid at participating locations",
		DiscountValue: "$25",
	}}
	n := fixedNormalizer(&fakeOCR{}, cleaner)

	p := n.Normalize(context.Background(), testCompetitor, model.PromoCandidate{
		SourceURL: "https://speedylube.example/promos",
		RawText:   "Save $25 on a full synthetic oil change. Use code SAVE25. Expires 12/31/2026",
	}, "")

	requireAllFieldsSet(t, p)
	if p.ServiceName != "Synthetic Oil Change" {
		t.Fatalf("enriched service name should win, got %q", p.ServiceName)
	}
	if p.Category != "oil change" {
		t.Fatalf("unexpected category %q", p.Category)
	}
	if !strings.Contains(p.OfferDetails, "Discount: $25") {
		t.Fatalf("expected discount clause, got %q", p.OfferDetails)
	}
	if !strings.Contains(p.OfferDetails, "Code: SAVE25") {
		t.Fatalf("expected regex-extracted code to fill the gap, got %q", p.OfferDetails)
	}
	if p.DateScraped != "2026-09-01" {
		t.Fatalf("unexpected date %q", p.DateScraped)
	}
	if cleaner.calls != 1 {
		t.Fatalf("expected one cleaner call, got %d", cleaner.calls)
	}
}

func TestNormalizeSparseInputStillComplete(t *testing.T) {
	// Empty OCR, nil enrichment: every field must still come out
	// non-empty via deterministic fallbacks.
	n := fixedNormalizer(&fakeOCR{}, &fakeCleaner{})

	p := n.Normalize(context.Background(), testCompetitor, model.PromoCandidate{
		SourceURL: "https://speedylube.example/promos",
		ImageURLs: []string{"https://speedylube.example/img/coupon.png"},
	}, "")

	requireAllFieldsSet(t, p)
	if p.ChangeStatus != model.StatusNew {
		t.Fatalf("expected NEW default, got %q", p.ChangeStatus)
	}
}

func TestNormalizeOCRFallbackForAssets(t *testing.T) {
	ocr := &fakeOCR{text: "Winter special: $40 off a set of four tires, expires 11/30/2026"}
	n := fixedNormalizer(ocr, &fakeCleaner{})

	p := n.Normalize(context.Background(), testCompetitor, model.PromoCandidate{
		SourceURL: "https://speedylube.example/coupons",
		RawText:   "coupon",
		ImageURLs: []string{"https://speedylube.example/img/winter.png"},
		PDFURL:    "https://speedylube.example/coupons/winter.pdf",
	}, "")

	if len(ocr.calls) != 1 || ocr.calls[0] != "https://speedylube.example/img/winter.png" {
		t.Fatalf("expected image tried first, got calls %v", ocr.calls)
	}
	if !strings.Contains(p.OfferDetails, "Discount: $40") {
		t.Fatalf("expected OCR text feeding extraction, got %q", p.OfferDetails)
	}
	if !strings.Contains(p.OfferDetails, "Expires: 11/30/2026") {
		t.Fatalf("expected expiry clause, got %q", p.OfferDetails)
	}
	requireAllFieldsSet(t, p)
}

func TestNormalizeSkipsOCRWhenTextUsable(t *testing.T) {
	ocr := &fakeOCR{text: "should not be used"}
	n := fixedNormalizer(ocr, &fakeCleaner{})

	n.Normalize(context.Background(), testCompetitor, model.PromoCandidate{
		SourceURL: "https://speedylube.example/promos",
		RawText:   "Save 15% on brake service this month, all makes and models welcome",
		ImageURLs: []string{"https://speedylube.example/img/brakes.png"},
	}, "")

	if len(ocr.calls) != 0 {
		t.Fatalf("expected OCR skipped for usable inline text, got calls %v", ocr.calls)
	}
}

func TestNormalizeDefaultTitle(t *testing.T) {
	n := fixedNormalizer(&fakeOCR{}, &fakeCleaner{})

	p := n.Normalize(context.Background(), testCompetitor, model.PromoCandidate{
		SourceURL: "https://speedylube.example/promos",
		ImageURLs: []string{"https://speedylube.example/img/coupon.png"},
	}, "Seasonal Coupons")

	if p.ServiceName != "Seasonal Coupons" {
		t.Fatalf("expected per-source default title, got %q", p.ServiceName)
	}
}

func TestBoundedSliceKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("é", 200)
	got := boundedSlice(s, 301)
	if !utf8.ValidString(got) {
		t.Fatalf("cut produced invalid UTF-8: %q", got[len(got)-4:])
	}
	if len(got) > 301 {
		t.Fatalf("result exceeds limit: %d bytes", len(got))
	}
	if got != strings.Repeat("é", 150) {
		t.Fatalf("expected cut backed off to a rune boundary, got %d bytes", len(got))
	}
}

func TestBoundedSliceShortInputUntouched(t *testing.T) {
	if got := boundedSlice("  déjà vu  ", 300); got != "déjà vu" {
		t.Fatalf("short input should only be trimmed, got %q", got)
	}
}
