// Package extract pulls raw promotion candidates out of fetched pages.
// Per-site variation lives in SourceConfig data, not in code branches.
package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"promowatch/internal/fetch"
	"promowatch/internal/model"
)

const (
	defaultMinSectionChars = 30
	defaultMinPageChars    = 100
	// dedupWords is how many leading words feed the intra-step
	// duplicate key. Structural selectors often match nested elements
	// carrying byte-identical text.
	dedupWords = 30
)

// SourceConfig declares how promotion candidates are selected for one
// family of pages.
type SourceConfig struct {
	// SectionSelectors are tried against the document in order; all
	// matches are considered.
	SectionSelectors []string
	// Keywords gate section text: at least one must appear. Empty means
	// no keyword gate.
	Keywords []string
	// DenyKeywords reject a section outright (navigation, footers).
	DenyKeywords []string
	// MinSectionChars drops boilerplate-length matches silently.
	MinSectionChars int
	// MinPageChars bounds the whole-page fallback.
	MinPageChars int
	// ImageSelector matches promo images that become candidates on
	// their own (OCR sources the text later).
	ImageSelector string
	// PDFLinks turns linked PDFs into per-asset candidates.
	PDFLinks bool
	// DefaultTitle is the deterministic per-source fallback title.
	DefaultTitle string
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.MinSectionChars <= 0 {
		c.MinSectionChars = defaultMinSectionChars
	}
	if c.MinPageChars <= 0 {
		c.MinPageChars = defaultMinPageChars
	}
	if len(c.SectionSelectors) == 0 {
		c.SectionSelectors = DefaultSectionSelectors()
	}
	return c
}

// DefaultSectionSelectors covers the markup patterns promotional
// sections commonly use.
func DefaultSectionSelectors() []string {
	return []string{
		"div.promo",
		"div.promotion",
		"div[class*='promo']",
		"div[class*='offer']",
		"div[class*='special']",
		"div[class*='rebate']",
		"div[class*='coupon']",
		"article",
		"section",
	}
}

// Extractor turns one fetch result into promotion candidates.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract applies the source's strategies in order (structured
// sections, asset links, whole page) until one produces candidates.
// Every returned candidate has non-empty text or at least one asset.
func (e *Extractor) Extract(res *fetch.Result, cfg SourceConfig) []model.PromoCandidate {
	if res.Empty() {
		return nil
	}
	cfg = cfg.withDefaults()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil
	}
	doc.Find("script, style").Remove()

	if candidates := e.extractSections(doc, res.URL, cfg); len(candidates) > 0 {
		return candidates
	}

	var assets []model.PromoCandidate
	if cfg.PDFLinks {
		assets = append(assets, e.extractPDFLinks(doc, res.URL)...)
	}
	if cfg.ImageSelector != "" {
		assets = append(assets, e.extractTaggedImages(doc, res.URL, cfg.ImageSelector)...)
	}
	if len(assets) > 0 {
		return assets
	}

	return e.extractWholePage(doc, res, cfg)
}

// extractSections runs the structural selectors with keyword and
// length gates. Matches with identical normalized text are collapsed.
func (e *Extractor) extractSections(doc *goquery.Document, baseURL string, cfg SourceConfig) []model.PromoCandidate {
	seen := make(map[string]struct{})
	var out []model.PromoCandidate

	for _, selector := range cfg.SectionSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			text := collapseWhitespace(sel.Text())

			if hasTemplatePlaceholders(text) {
				return
			}
			if len(text) < cfg.MinSectionChars {
				return
			}
			if !matchesKeywords(text, cfg.Keywords) {
				return
			}
			if matchesAny(text, cfg.DenyKeywords) {
				return
			}

			key := dedupKey(text)
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}

			markup, _ := goquery.OuterHtml(sel)
			out = append(out, model.PromoCandidate{
				SourceURL: baseURL,
				RawText:   text,
				RawMarkup: markup,
				ImageURLs: sectionImages(sel, baseURL),
				Selector:  selector,
			})
		})
	}

	return out
}

// extractPDFLinks makes one candidate per linked PDF. The image inside
// the link (the coupon preview) rides along for OCR; minimal text is
// fine because enrichment sources the real content from the asset.
func (e *Extractor) extractPDFLinks(doc *goquery.Document, baseURL string) []model.PromoCandidate {
	seen := make(map[string]struct{})
	var out []model.PromoCandidate

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}

		pdfURL := resolveURL(baseURL, href)
		if pdfURL == "" {
			return
		}
		normalized := strings.ToLower(pdfURL)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}

		var images []string
		if img := sel.Find("img").First(); img.Length() > 0 {
			if src := fetch.ImageSource(img); src != "" {
				if resolved := resolveURL(baseURL, src); resolved != "" {
					images = append(images, resolved)
				}
			}
		}

		markup, _ := goquery.OuterHtml(sel)
		out = append(out, model.PromoCandidate{
			SourceURL: baseURL,
			RawText:   collapseWhitespace(sel.Text()),
			RawMarkup: markup,
			ImageURLs: images,
			PDFURL:    pdfURL,
			Selector:  "a[href$='.pdf']",
		})
	})

	return out
}

// extractTaggedImages matches promo images by CSS selector, one
// candidate per distinct image.
func (e *Extractor) extractTaggedImages(doc *goquery.Document, baseURL, selector string) []model.PromoCandidate {
	seen := make(map[string]struct{})
	var out []model.PromoCandidate

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		src := fetch.ImageSource(sel)
		if src == "" {
			return
		}
		resolved := resolveURL(baseURL, src)
		if resolved == "" {
			return
		}
		normalized := strings.ToLower(resolved)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}

		out = append(out, model.PromoCandidate{
			SourceURL: baseURL,
			RawText:   collapseWhitespace(sel.AttrOr("alt", "")),
			ImageURLs: []string{resolved},
			Selector:  selector,
		})
	})

	return out
}

// extractWholePage is the last resort: the whole page as one
// candidate, only when long enough to be worth normalizing. The
// markdown rendition is preferred because it preserves line structure
// for the cleaner; visible text is the fallback.
func (e *Extractor) extractWholePage(doc *goquery.Document, res *fetch.Result, cfg SourceConfig) []model.PromoCandidate {
	text := strings.TrimSpace(res.Markdown)
	if text == "" {
		text = collapseWhitespace(doc.Text())
	}
	if len(text) <= cfg.MinPageChars || hasTemplatePlaceholders(text) {
		return nil
	}

	return []model.PromoCandidate{{
		SourceURL: res.URL,
		RawText:   text,
		Selector:  "page",
	}}
}

func sectionImages(sel *goquery.Selection, baseURL string) []string {
	var images []string
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src := fetch.ImageSource(img); src != "" {
			if resolved := resolveURL(baseURL, src); resolved != "" {
				images = append(images, resolved)
			}
		}
	})
	return images
}

// dedupKey folds case, collapses whitespace, and keeps the first N
// words so nested structural matches with the same text collapse.
func dedupKey(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > dedupWords {
		words = words[:dedupWords]
	}
	return strings.Join(words, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hasTemplatePlaceholders rejects unresolved templating output.
func hasTemplatePlaceholders(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "}}")
}

func matchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	return matchesAny(text, keywords)
}

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func resolveURL(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if base != nil && !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
