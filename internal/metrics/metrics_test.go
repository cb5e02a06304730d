package metrics

import (
	"strings"
	"testing"
)

func TestExportIncludesRecordedCounters(t *testing.T) {
	RecordFetch("render", false)
	RecordFetch("http", true)
	RecordOCR(true)
	RecordClean(false)
	RecordChangeStatus("Speedy Lube", "NEW")
	RecordDedupDropped("Speedy Lube", 2)
	RecordOverviewFallback("Speedy Lube")
	RecordRequest("GET", "/v1/promotions", 200)

	out := Export()
	for _, want := range []string{
		`promowatch_fetch_attempts_total{provider="http",success="true"}`,
		`promowatch_fetch_attempts_total{provider="render",success="false"}`,
		`promowatch_ocr_calls_total{success="true"} 1`,
		`promowatch_cleaner_calls_total{success="false"} 1`,
		`promowatch_records_total{competitor="Speedy Lube",status="NEW"}`,
		`promowatch_dedup_dropped_total{competitor="Speedy Lube"} 2`,
		`promowatch_overview_fallback_total{competitor="Speedy Lube"} 1`,
		`promowatch_http_requests_total{method="GET",path="/v1/promotions",status="200"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q\n%s", want, out)
		}
	}
}

func TestRecordDedupDroppedIgnoresNonPositive(t *testing.T) {
	RecordDedupDropped("Nobody", 0)
	RecordDedupDropped("Nobody", -3)
	if strings.Contains(Export(), `competitor="Nobody"`) {
		t.Fatal("non-positive drops must not be recorded")
	}
}
