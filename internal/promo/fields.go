package promo

import (
	"regexp"
	"strings"
)

// Regex-based field extraction. These always run, independent of LLM
// enrichment, and fill gaps in the enriched fields; they never
// override a value enrichment already produced.

var (
	dollarRe  = regexp.MustCompile(`\$(\d+(?:\.\d+)?)`)
	percentRe = regexp.MustCompile(`(\d+)\s*%`)

	codeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:code|coupon|promo)[:\s]+([A-Z0-9]{3,20})`),
		regexp.MustCompile(`(?i)use[:\s]+([A-Z0-9]{3,20})`),
	}

	expiryRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:expires?|expiry|valid until|until|ends?)[:\s]+([A-Za-z]+\s+\d{1,2}[,\s]+\d{4})`),
		regexp.MustCompile(`(?i)(?:expires?|expiry|valid until|until|ends?)[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	}
)

// DiscountValue extracts the discount from text. Precedence: explicit
// currency amount, then percentage, then the literal token "free".
func DiscountValue(text string) string {
	if m := dollarRe.FindStringSubmatch(text); m != nil {
		return "$" + m[1]
	}
	if m := percentRe.FindStringSubmatch(text); m != nil {
		return m[1] + "%"
	}
	if strings.Contains(strings.ToLower(text), "free") {
		return "free"
	}
	return ""
}

// CouponCode extracts an explicit coupon code ("code SAVE20", "use
// OIL10").
func CouponCode(text string) string {
	for _, re := range codeRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// ExpiryDate extracts an expiry date in either written or numeric
// form. The match is returned verbatim; no date parsing.
func ExpiryDate(text string) string {
	for _, re := range expiryRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// BrandName returns the first known brand mentioned in the text,
// title-cased, or "" when none matches.
func BrandName(text string, brands []string) string {
	lower := strings.ToLower(text)
	for _, brand := range brands {
		b := strings.ToLower(brand)
		if b != "" && strings.Contains(lower, b) {
			return titleCase(b)
		}
	}
	return ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CleanText strips markdown formatting and collapses whitespace so
// downstream consumers get plain text.
func CleanText(text string) string {
	for _, marker := range []string{"**", "*", "__", "_", "###", "##", "#"} {
		text = strings.ReplaceAll(text, marker, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// categoryMap maps service keywords to categories when enrichment did
// not supply one.
var categoryMap = []struct {
	keyword  string
	category string
}{
	{"oil", "oil change"},
	{"synthetic", "oil change"},
	{"brake", "brakes"},
	{"battery", "battery"},
	{"exhaust", "exhaust"},
	{"tire", "tires"},
	{"seasonal", "seasonal"},
	{"coolant", "coolant flush"},
	{"transmission", "transmission"},
}

// InferCategory guesses a category from service keywords in the text.
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range categoryMap {
		if strings.Contains(lower, entry.keyword) {
			return entry.category
		}
	}
	return ""
}
