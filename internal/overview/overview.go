// Package overview derives a single synthetic promotion record from a
// general business-information lookup. It backstops the page pipeline
// when a competitor's site yields nothing usable.
package overview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"promowatch/internal/metrics"
	"promowatch/internal/model"
	"promowatch/internal/promo"
)

// Searcher performs a business-information lookup for a query and
// returns a text overview plus optional review rating.
type Searcher interface {
	Lookup(ctx context.Context, query, location string) (*Lookup, error)
}

// Lookup is the provider-agnostic result of a business search.
type Lookup struct {
	Overview string
	Snippets []string
	Rating   *float64
	Website  string
	Address  string
}

// SearxngSearcher implements Searcher against a SearxNG instance with
// its JSON API enabled.
type SearxngSearcher struct {
	baseURL string
	client  *http.Client
}

func NewSearxngSearcher(baseURL string, timeout time.Duration) (*SearxngSearcher, error) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("search base URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SearxngSearcher{
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// searxngResponse models only the subset of the SearxNG JSON response
// we consume: web results and infoboxes.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
	Infoboxes []struct {
		Content string `json:"content"`
		URLs    []struct {
			URL string `json:"url"`
		} `json:"urls"`
		Attributes []struct {
			Label string `json:"label"`
			Value string `json:"value"`
		} `json:"attributes"`
	} `json:"infoboxes"`
}

// Lookup issues a form-encoded POST to /search, matching the default
// SearxNG API method restrictions.
func (s *SearxngSearcher) Lookup(ctx context.Context, query, location string) (*Lookup, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("format", "json")
	form.Set("categories", "general")
	if location != "" {
		form.Set("language", "en")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	out := &Lookup{}
	for _, box := range parsed.Infoboxes {
		if out.Overview == "" && strings.TrimSpace(box.Content) != "" {
			out.Overview = strings.TrimSpace(box.Content)
		}
		for _, attr := range box.Attributes {
			label := strings.ToLower(attr.Label)
			switch {
			case out.Rating == nil && (strings.Contains(label, "rating") || strings.Contains(label, "review")):
				if r := parseRating(attr.Value); r != nil {
					out.Rating = r
				}
			case out.Address == "" && strings.Contains(label, "address"):
				out.Address = attr.Value
			case out.Website == "" && strings.Contains(label, "website"):
				out.Website = attr.Value
			}
		}
		if out.Website == "" && len(box.URLs) > 0 {
			out.Website = box.URLs[0].URL
		}
	}
	for i, r := range parsed.Results {
		if i >= 3 {
			break
		}
		if strings.TrimSpace(r.Content) != "" {
			out.Snippets = append(out.Snippets, strings.TrimSpace(r.Content))
		}
	}
	return out, nil
}

// parseRating extracts the leading numeric rating from strings like
// "4.6/5" or "4.6 (1,234 reviews)".
func parseRating(s string) *float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

var discountIndicators = []string{
	"discount", "promotion", "special", "offer", "deal", "sale",
	"coupon", "rebate", "save", "free", "% off", "$ off",
}

var serviceIndicators = []string{"oil change", "brake", "tire", "battery", "inspection", "service"}

// Extractor turns a lookup into one synthetic StandardPromo. A nil
// return means the lookup found nothing usable.
type Extractor struct {
	searcher Searcher
	logger   *slog.Logger
	now      func() time.Time
}

func NewExtractor(searcher Searcher, logger *slog.Logger) *Extractor {
	return &Extractor{searcher: searcher, logger: logger, now: time.Now}
}

// Extract looks the competitor up and builds a record from whatever
// business overview text comes back. Every field falls back to
// deterministic competitor-derived text, so a successful lookup always
// produces a complete record.
func (e *Extractor) Extract(ctx context.Context, comp model.Competitor) *model.StandardPromo {
	if comp.Name == "" || e.searcher == nil {
		return nil
	}
	query := comp.Name + " auto service promotions discounts"
	lookup, err := e.searcher.Lookup(ctx, query, comp.Address)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("overview_lookup_failed", "competitor", comp.Name, "error", err)
		}
		return nil
	}
	metrics.RecordOverviewFallback(comp.Name)

	text := lookup.Overview
	if text == "" && len(lookup.Snippets) > 0 {
		text = strings.Join(lookup.Snippets, " ")
	}
	genericServices := comp.Name + " offers professional automotive services including oil changes, tire services, and maintenance."
	if strings.TrimSpace(text) == "" {
		text = comp.Name + " is a professional automotive service provider offering oil changes, tire services, and maintenance."
	}

	lower := strings.ToLower(text)
	hasDiscounts := containsAny(lower, discountIndicators)

	description := buildDescription(text, hasDiscounts, genericServices)
	serviceName := "auto service"
	for _, kw := range serviceIndicators {
		if strings.Contains(lower, kw) {
			serviceName = kw
			break
		}
	}
	offerDetails := buildOfferDetails(text, hasDiscounts)

	website := firstNonEmpty(lookup.Website, comp.Domain, comp.URL)
	address := firstNonEmpty(lookup.Address, comp.Address, "not available")
	pageURL := comp.URL
	if pageURL == "" && len(comp.PromoLinks) > 0 {
		pageURL = comp.PromoLinks[0]
	}
	pageURL = firstNonEmpty(pageURL, website)

	return &model.StandardPromo{
		Website:          firstNonEmpty(website, "unknown"),
		PageURL:          firstNonEmpty(pageURL, "unknown"),
		BusinessName:     comp.Name,
		ServiceName:      serviceName,
		PromoDescription: promo.CleanText(description),
		Category:         "auto service",
		Contact:          address,
		Location:         address,
		OfferDetails:     promo.CleanText(offerDetails),
		AdTitle:          comp.Name + " Services",
		AdText:           promo.CleanText(bounded(text, 500)),
		GoogleReviews:    lookup.Rating,
		ChangeStatus:     model.StatusNew,
		DateScraped:      e.now().Format("2006-01-02"),
	}
}

// buildDescription prefers discount-related sentences when any exist,
// otherwise the first substantive sentence of the overview.
func buildDescription(text string, hasDiscounts bool, fallback string) string {
	sentences := strings.Split(text, ". ")
	if hasDiscounts {
		var picked []string
		for _, s := range sentences {
			if containsAny(strings.ToLower(s), discountIndicators) {
				picked = append(picked, strings.TrimSpace(s))
			}
			if len(picked) == 3 {
				break
			}
		}
		if len(picked) > 0 {
			return strings.Join(picked, ". ")
		}
		return bounded(text, 500)
	}
	for _, s := range sentences {
		if len(strings.TrimSpace(s)) > 20 {
			return bounded(strings.TrimSpace(s), 500)
		}
	}
	return fallback
}

func buildOfferDetails(text string, hasDiscounts bool) string {
	if hasDiscounts {
		return bounded(text, 1000)
	}
	var picked []string
	for _, s := range strings.Split(text, ". ") {
		if containsAny(strings.ToLower(s), []string{"service", "repair", "maintenance", "inspection", "quality", "professional"}) {
			picked = append(picked, strings.TrimSpace(s))
		}
		if len(picked) == 5 {
			break
		}
	}
	if len(picked) > 0 {
		return strings.Join(picked, ". ")
	}
	return bounded(text, 1000)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func bounded(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Never cut in the middle of a multi-byte character.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
