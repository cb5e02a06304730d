// Package promo builds canonical StandardPromo records from raw
// candidates, guaranteeing that no string field is ever left empty.
package promo

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"promowatch/internal/enrich"
	"promowatch/internal/model"
)

const (
	// minInlineChars is the threshold below which a candidate's inline
	// text is not considered usable and OCR takes over.
	minInlineChars = 30
	// substantiveLineChars is the minimum length for a raw-text line to
	// serve as a title.
	substantiveLineChars = 10
	// detailSliceChars bounds the raw-text tail appended to
	// offer details and ad text.
	detailSliceChars = 300
)

// Normalizer converts one candidate plus its enrichment output into a
// StandardPromo.
type Normalizer struct {
	ocr     enrich.OCR
	cleaner enrich.Cleaner
	logger  *slog.Logger
	now     func() time.Time
}

func NewNormalizer(ocr enrich.OCR, cleaner enrich.Cleaner, logger *slog.Logger) *Normalizer {
	return &Normalizer{ocr: ocr, cleaner: cleaner, logger: logger, now: time.Now}
}

// Normalize runs OCR (when the candidate's real content lives in an
// asset), LLM cleaning, and regex gap-filling, then assembles the
// record. Enrichment failure only reduces field completeness; the
// fallback chain makes every output field non-empty.
func (n *Normalizer) Normalize(ctx context.Context, comp model.Competitor, cand model.PromoCandidate, defaultTitle string) model.StandardPromo {
	effective := strings.TrimSpace(cand.RawText)

	if cand.HasAsset() && len(effective) < minInlineChars && n.ocr != nil {
		if text := n.ocrCandidate(ctx, cand); text != "" {
			effective = text
		}
	}

	var enriched *model.EnrichedText
	if n.cleaner != nil {
		hint := comp.Name + " promotion from " + cand.SourceURL
		enriched = n.cleaner.Clean(ctx, effective, hint)
	}
	if enriched == nil {
		enriched = &model.EnrichedText{}
	}

	// Regex extraction fills gaps only; enriched values win.
	discount := firstNonEmpty(enriched.DiscountValue, DiscountValue(effective))
	code := firstNonEmpty(enriched.CouponCode, CouponCode(effective))
	expiry := firstNonEmpty(enriched.ExpiryDate, ExpiryDate(effective))

	title := n.pickTitle(enriched, effective, defaultTitle, comp)
	description := firstNonEmpty(
		CleanText(enriched.Description),
		boundedSlice(effective, detailSliceChars),
		comp.Name+" promotional offer",
	)
	category := firstNonEmpty(
		CleanText(enriched.Category),
		InferCategory(title+" "+effective),
		"general",
	)

	offerDetails := assembleOfferDetails(enriched.OfferDetails, discount, code, expiry, effective)

	adText := firstNonEmpty(boundedSlice(effective, detailSliceChars), description)

	contact := firstNonEmpty(comp.Address, "not available")
	pageURL := firstNonEmpty(cand.SourceURL, comp.URL, comp.Domain)

	return model.StandardPromo{
		Website:          firstNonEmpty(comp.Domain, comp.URL, "unknown"),
		PageURL:          firstNonEmpty(pageURL, "unknown"),
		BusinessName:     firstNonEmpty(comp.Name, comp.Domain, "unknown"),
		ServiceName:      title,
		PromoDescription: description,
		Category:         category,
		Contact:          contact,
		Location:         contact,
		OfferDetails:     offerDetails,
		AdTitle:          title,
		AdText:           CleanText(adText),
		ChangeStatus:     model.StatusNew,
		DateScraped:      n.now().Format("2006-01-02"),
	}
}

// ocrCandidate tries the candidate's assets in order: images first,
// then the PDF. First non-empty OCR text wins.
func (n *Normalizer) ocrCandidate(ctx context.Context, cand model.PromoCandidate) string {
	for _, img := range cand.ImageURLs {
		if text := n.ocr.Text(ctx, img); strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	if cand.PDFURL != "" {
		if text := n.ocr.Text(ctx, cand.PDFURL); strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	if n.logger != nil && cand.HasAsset() {
		n.logger.Warn("ocr_yielded_nothing", "source", cand.SourceURL)
	}
	return ""
}

// pickTitle applies the title precedence: enriched service name, first
// line of the enriched description, first substantive raw-text line,
// then the deterministic per-source default.
func (n *Normalizer) pickTitle(enriched *model.EnrichedText, effective, defaultTitle string, comp model.Competitor) string {
	if t := CleanText(enriched.ServiceName); t != "" {
		return t
	}
	if line := firstLine(enriched.Description); line != "" {
		return CleanText(line)
	}
	for _, line := range strings.Split(effective, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > substantiveLineChars {
			return CleanText(boundedSlice(line, 80))
		}
	}
	// A single-line candidate has no \n but may still be substantive.
	if len(effective) > substantiveLineChars {
		return CleanText(boundedSlice(effective, 80))
	}
	if defaultTitle != "" {
		return defaultTitle
	}
	return firstNonEmpty(comp.Name, "Promotion") + " Services"
}

// assembleOfferDetails concatenates the discovered fragments as
// labeled clauses, then a bounded slice of the raw text, guaranteeing
// a non-empty result.
func assembleOfferDetails(enrichedDetails, discount, code, expiry, effective string) string {
	var clauses []string
	if d := CleanText(enrichedDetails); d != "" {
		clauses = append(clauses, d)
	}
	if discount != "" {
		clauses = append(clauses, "Discount: "+discount)
	}
	if code != "" {
		clauses = append(clauses, "Code: "+code)
	}
	if expiry != "" {
		clauses = append(clauses, "Expires: "+expiry)
	}
	if len(clauses) == 0 {
		if tail := CleanText(boundedSlice(effective, detailSliceChars)); tail != "" {
			return tail
		}
		return "See website for details"
	}
	return strings.Join(clauses, ". ")
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func boundedSlice(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	cut := s[:max]
	// Break on a word boundary when possible.
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return cut
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
