package model

// ChangeStatus classifies a promotion against the previous run's record
// for the same (pageUrl, serviceName) key.
type ChangeStatus string

const (
	StatusNew     ChangeStatus = "NEW"
	StatusUpdated ChangeStatus = "UPDATED"
	StatusSame    ChangeStatus = "SAME"
)

// Competitor is the immutable per-run input describing one business to
// track: identity plus the ordered list of pages to extract from.
type Competitor struct {
	Name    string `json:"name"`
	Domain  string `json:"domain"`
	Address string `json:"address"`
	URL     string `json:"url,omitempty"`
	// PromoLinks are the source URLs, extracted in order. When empty the
	// pipeline falls back to URL.
	PromoLinks []string `json:"promo_links,omitempty"`
	// OverviewOnly skips page extraction entirely and always uses the
	// business-overview fallback. Some competitors never publish
	// structured promotions on their own pages.
	OverviewOnly bool `json:"overview_only,omitempty"`
	// Source names the extraction profile from config; empty means the
	// default profile.
	Source string `json:"source,omitempty"`
	// LimitPerEntity caps kept records per duplicate group (0 = keep the
	// single most complete record per group).
	LimitPerEntity int `json:"limit_per_entity,omitempty"`
}

// PromoCandidate is one unit of raw promotional material before
// normalization. Either RawText is non-empty or at least one asset
// (image or PDF) is attached; the extractor discards anything else.
type PromoCandidate struct {
	SourceURL string
	RawText   string
	RawMarkup string
	ImageURLs []string
	PDFURL    string
	// Selector records which extraction rule produced this candidate,
	// used for logging and per-source default titles.
	Selector string
}

// HasAsset reports whether the candidate carries an image or PDF that
// OCR can source text from.
func (c PromoCandidate) HasAsset() bool {
	return len(c.ImageURLs) > 0 || c.PDFURL != ""
}

// EnrichedText is the LLM cleaner's structured view of a candidate's
// text. Every field is optional; the pipeline degrades to regex-only
// extraction when enrichment is unavailable.
type EnrichedText struct {
	ServiceName   string `json:"service_name"`
	Description   string `json:"promo_description"`
	Category      string `json:"category"`
	OfferDetails  string `json:"offer_details"`
	DiscountValue string `json:"discount_value,omitempty"`
	CouponCode    string `json:"coupon_code,omitempty"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
}

// StandardPromo is the canonical output record. After construction all
// string fields are non-empty: sparse inputs are replaced with
// deterministic fallback text, never left blank.
type StandardPromo struct {
	Website          string       `json:"website"`
	PageURL          string       `json:"page_url"`
	BusinessName     string       `json:"business_name"`
	GoogleReviews    *float64     `json:"google_reviews"`
	ServiceName      string       `json:"service_name"`
	PromoDescription string       `json:"promo_description"`
	Category         string       `json:"category"`
	Contact          string       `json:"contact"`
	Location         string       `json:"location"`
	OfferDetails     string       `json:"offer_details"`
	AdTitle          string       `json:"ad_title"`
	AdText           string       `json:"ad_text"`
	ChangeStatus     ChangeStatus `json:"new_or_updated"`
	DateScraped      string       `json:"date_scraped"`
}

// Key returns the identity key used for change tracking and store
// lookups.
func (p StandardPromo) Key() string {
	return p.PageURL + "::" + p.ServiceName
}

// RunDocument is the persisted per-competitor JSON document, fully
// replaced each run.
type RunDocument struct {
	Competitor string          `json:"competitor"`
	ScrapedAt  string          `json:"scraped_at"`
	Promotions []StandardPromo `json:"promotions"`
	Count      int             `json:"count"`
}
