// Package dedup collapses near-duplicate promotion records within a
// single run using layered equivalence rules.
package dedup

import (
	"regexp"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"promowatch/internal/model"
	"promowatch/internal/promo"
)

// Params tunes the matching thresholds and the scoring weights used
// when a group must be ranked.
type Params struct {
	// NearExactTitle is the fuzzy ratio required for R2 to merge when
	// only one side carries a brand.
	NearExactTitle int
	// HighSimilarity is the token-set ratio floor for the fuzzy
	// fallback rule.
	HighSimilarity int
	// CouponBonus and KeywordBonus feed the promotional-strength score.
	CouponBonus  int
	KeywordBonus int
	// Brands is the list of entity names whose presence blocks merges
	// across different entities.
	Brands []string
	// StrongKeywords each add KeywordBonus to a record's score.
	StrongKeywords []string
	// GenericPhrases are stripped before exact-key comparison.
	GenericPhrases []string
}

func DefaultParams() Params {
	return Params{
		NearExactTitle: 95,
		HighSimilarity: 90,
		CouponBonus:    30,
		KeywordBonus:   10,
		Brands: []string{
			"michelin", "bridgestone", "goodyear", "continental", "pirelli",
			"bfgoodrich", "toyo", "nitto", "hankook", "falken", "kumho",
			"yokohama", "dunlop", "firestone", "general", "cooper",
			"uniroyal", "nexen", "hercules", "mastercraft", "goodrich",
		},
		StrongKeywords: []string{"sale", "offer", "save", "free", "limited", "special offer"},
		GenericPhrases: []string{"learn more", "see details", "click here", "shop now", "view details"},
	}
}

// Deduplicator holds no mutable state across calls; each Deduplicate
// invocation is independent.
type Deduplicator struct {
	params Params
}

// New fills unset Params fields from DefaultParams, so partial
// overrides keep the stock values for everything else.
func New(params Params) *Deduplicator {
	def := DefaultParams()
	if params.NearExactTitle <= 0 {
		params.NearExactTitle = def.NearExactTitle
	}
	if params.HighSimilarity <= 0 {
		params.HighSimilarity = def.HighSimilarity
	}
	if params.CouponBonus <= 0 {
		params.CouponBonus = def.CouponBonus
	}
	if params.KeywordBonus <= 0 {
		params.KeywordBonus = def.KeywordBonus
	}
	if len(params.Brands) == 0 {
		params.Brands = def.Brands
	}
	if len(params.StrongKeywords) == 0 {
		params.StrongKeywords = def.StrongKeywords
	}
	if len(params.GenericPhrases) == 0 {
		params.GenericPhrases = def.GenericPhrases
	}
	return &Deduplicator{params: params}
}

// Deduplicate groups duplicate records and keeps one representative
// per group, or the top-K strongest when limit is positive. Earlier
// records win ties. The operation is idempotent.
func (d *Deduplicator) Deduplicate(records []model.StandardPromo, limit int) []model.StandardPromo {
	if len(records) <= 1 {
		return records
	}

	// Union-find over pairwise duplicate checks.
	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra > rb {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			if d.isDuplicate(records[i], records[j]) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	var order []int
	for i := range records {
		root := find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	var out []model.StandardPromo
	for _, root := range order {
		members := groups[root]
		if len(members) == 1 {
			out = append(out, records[members[0]])
			continue
		}
		if limit > 0 {
			out = append(out, d.topByScore(records, members, limit)...)
		} else {
			out = append(out, records[d.mostComplete(records, members)])
		}
	}
	return out
}

// isDuplicate applies the layered rules. The hard negative override
// runs first: differing discount values or differing brands never
// merge, regardless of text similarity.
func (d *Deduplicator) isDuplicate(a, b model.StandardPromo) bool {
	discA := promo.DiscountValue(a.ServiceName + " " + a.PromoDescription + " " + a.OfferDetails)
	discB := promo.DiscountValue(b.ServiceName + " " + b.PromoDescription + " " + b.OfferDetails)
	brandA := promo.BrandName(a.ServiceName+" "+a.PromoDescription, d.params.Brands)
	brandB := promo.BrandName(b.ServiceName+" "+b.PromoDescription, d.params.Brands)

	if discA != "" && discB != "" && discA != discB {
		return false
	}
	if brandA != "" && brandB != "" && !strings.EqualFold(brandA, brandB) {
		return false
	}

	// R1: exact normalized composite key.
	if d.compositeKey(a) == d.compositeKey(b) {
		return true
	}

	// R2: same discount and same brand. One-sided brand requires a
	// near-exact title.
	if discA != "" && discA == discB {
		switch {
		case brandA != "" && strings.EqualFold(brandA, brandB):
			return true
		case (brandA == "") != (brandB == ""):
			if fuzzy.Ratio(strings.ToLower(a.ServiceName), strings.ToLower(b.ServiceName)) >= d.params.NearExactTitle {
				return true
			}
		}
	}

	// R3: high title similarity plus a shared discriminating attribute.
	// Requires brand parity (same brand, or neither names one); a pair
	// where only one side carries a brand merges solely through the
	// near-exact escape above.
	brandParity := strings.EqualFold(brandA, brandB)
	ratio := fuzzy.TokenSetRatio(strings.ToLower(a.ServiceName), strings.ToLower(b.ServiceName))
	if brandParity && ratio >= d.params.HighSimilarity {
		codeA := promo.CouponCode(a.OfferDetails + " " + a.PromoDescription)
		codeB := promo.CouponCode(b.OfferDetails + " " + b.PromoDescription)
		if (discA != "" && discA == discB) || (codeA != "" && codeA == codeB) {
			return true
		}
	}
	return false
}

var spaceRe = regexp.MustCompile(`\s+`)

func (d *Deduplicator) compositeKey(p model.StandardPromo) string {
	key := strings.ToLower(p.ServiceName + " " + p.PromoDescription + " " + p.OfferDetails)
	for _, phrase := range d.params.GenericPhrases {
		key = strings.ReplaceAll(key, phrase, " ")
	}
	return spaceRe.ReplaceAllString(strings.TrimSpace(key), " ")
}

// Score rates a record's promotional strength: discount magnitude,
// coupon presence, and strong keywords.
func (d *Deduplicator) Score(p model.StandardPromo) int {
	text := p.ServiceName + " " + p.PromoDescription + " " + p.OfferDetails
	score := discountPoints(promo.DiscountValue(text))
	if promo.CouponCode(text) != "" {
		score += d.params.CouponBonus
	}
	lower := strings.ToLower(text)
	for _, kw := range d.params.StrongKeywords {
		if strings.Contains(lower, kw) {
			score += d.params.KeywordBonus
		}
	}
	return score
}

func discountPoints(discount string) int {
	switch {
	case discount == "":
		return 0
	case strings.EqualFold(discount, "free"):
		return 50
	case strings.HasPrefix(discount, "$"):
		return atoiPrefix(discount[1:])
	case strings.HasSuffix(discount, "%"):
		return atoiPrefix(discount[:len(discount)-1])
	default:
		return 10
	}
}

func atoiPrefix(s string) int {
	n := 0
	seen := false
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	if !seen {
		return 10
	}
	return n
}

func (d *Deduplicator) topByScore(records []model.StandardPromo, members []int, limit int) []model.StandardPromo {
	ranked := make([]int, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		return d.Score(records[ranked[i]]) > d.Score(records[ranked[j]])
	})
	if limit > len(ranked) {
		limit = len(ranked)
	}
	kept := ranked[:limit]
	// Restore input order among the kept records.
	sort.Ints(kept)
	out := make([]model.StandardPromo, 0, len(kept))
	for _, idx := range kept {
		out = append(out, records[idx])
	}
	return out
}

// mostComplete prefers the record with the most non-empty fields,
// breaking ties on offer-details length, then input order.
func (d *Deduplicator) mostComplete(records []model.StandardPromo, members []int) int {
	best := members[0]
	bestFields, bestLen := completeness(records[best])
	for _, idx := range members[1:] {
		fields, detailLen := completeness(records[idx])
		if fields > bestFields || (fields == bestFields && detailLen > bestLen) {
			best, bestFields, bestLen = idx, fields, detailLen
		}
	}
	return best
}

func completeness(p model.StandardPromo) (fields, detailLen int) {
	for _, v := range []string{
		p.Website, p.PageURL, p.BusinessName, p.ServiceName,
		p.PromoDescription, p.Category, p.Contact, p.Location,
		p.OfferDetails, p.AdTitle, p.AdText,
	} {
		if strings.TrimSpace(v) != "" {
			fields++
		}
	}
	return fields, len(p.OfferDetails)
}
