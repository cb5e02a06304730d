package promo

import "testing"

func TestDiscountValuePrecedence(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Save $25.99 or get 10% off", "$25.99"},
		{"Get 15 % off brakes", "15%"},
		{"Free tire rotation with any service", "free"},
		{"Quality service you can trust", ""},
		{"$10 off plus free wipers", "$10"},
	}
	for _, tc := range cases {
		if got := DiscountValue(tc.text); got != tc.want {
			t.Errorf("DiscountValue(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestCouponCode(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Use code SAVE20 at checkout", "SAVE20"},
		{"coupon: OIL10", "OIL10"},
		{"Promo WINTER25 applies online", "WINTER25"},
		{"use: TIRE50", "TIRE50"},
		{"No codes here", ""},
	}
	for _, tc := range cases {
		if got := CouponCode(tc.text); got != tc.want {
			t.Errorf("CouponCode(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestExpiryDate(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Offer expires January 31, 2027", "January 31, 2027"},
		{"Valid until 12/31/2026", "12/31/2026"},
		{"Ends: 3-15-27", "3-15-27"},
		{"Available year round", ""},
	}
	for _, tc := range cases {
		if got := ExpiryDate(tc.text); got != tc.want {
			t.Errorf("ExpiryDate(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestBrandName(t *testing.T) {
	brands := []string{"michelin", "bridgestone", "goodyear"}
	if got := BrandName("Michelin rebate: get $70 back", brands); got != "Michelin" {
		t.Fatalf("BrandName = %q, want Michelin", got)
	}
	if got := BrandName("All-season tire sale", brands); got != "" {
		t.Fatalf("BrandName = %q, want empty", got)
	}
}

func TestCleanText(t *testing.T) {
	in := "## **Big Sale**\n\nSave __now__ on *tires*"
	want := "Big Sale Save now on tires"
	if got := CleanText(in); got != want {
		t.Fatalf("CleanText = %q, want %q", got, want)
	}
}

func TestInferCategory(t *testing.T) {
	if got := InferCategory("Full synthetic oil change special"); got != "oil change" {
		t.Fatalf("InferCategory = %q, want oil change", got)
	}
	if got := InferCategory("brake pad replacement deal"); got != "brakes" {
		t.Fatalf("InferCategory = %q, want brakes", got)
	}
	if got := InferCategory("detailing package"); got != "" {
		t.Fatalf("InferCategory = %q, want empty", got)
	}
}
