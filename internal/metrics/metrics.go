package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style counters for the extraction pipeline.
// Intentionally minimal and in-memory only.

var (
	mu            sync.RWMutex
	fetchAttempts = make(map[fetchKey]int64)
	ocrCalls      = make(map[string]int64)
	cleanerCalls  = make(map[string]int64)
	changeStatus  = make(map[statusKey]int64)
	dedupDropped  = make(map[string]int64)
	overviewRuns  = make(map[string]int64)

	requestsTotal = make(map[reqKey]int64)
)

type fetchKey struct {
	Provider string
	Success  string
}

type statusKey struct {
	Competitor string
	Status     string
}

type reqKey struct {
	Method string
	Path   string
	Status int
}

func boolLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

// RecordFetch counts a single content-provider attempt.
func RecordFetch(provider string, success bool) {
	mu.Lock()
	defer mu.Unlock()
	fetchAttempts[fetchKey{Provider: provider, Success: boolLabel(success)}]++
}

// RecordOCR counts an OCR service call.
func RecordOCR(success bool) {
	mu.Lock()
	defer mu.Unlock()
	ocrCalls[boolLabel(success)]++
}

// RecordClean counts a text-cleaner (LLM) call.
func RecordClean(success bool) {
	mu.Lock()
	defer mu.Unlock()
	cleanerCalls[boolLabel(success)]++
}

// RecordChangeStatus counts output records by classification.
func RecordChangeStatus(competitor, status string) {
	mu.Lock()
	defer mu.Unlock()
	changeStatus[statusKey{Competitor: competitor, Status: status}]++
}

// RecordDedupDropped counts records discarded as duplicates.
func RecordDedupDropped(competitor string, dropped int) {
	if dropped <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	dedupDropped[competitor] += int64(dropped)
}

// RecordOverviewFallback counts secondary-extractor invocations.
func RecordOverviewFallback(competitor string) {
	mu.Lock()
	defer mu.Unlock()
	overviewRuns[competitor]++
}

// RecordRequest increments the HTTP request counter for the API.
func RecordRequest(method, path string, status int) {
	mu.Lock()
	defer mu.Unlock()
	requestsTotal[reqKey{Method: method, Path: path, Status: status}]++
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP promowatch_fetch_attempts_total Fetch attempts by provider\n")
	b.WriteString("# TYPE promowatch_fetch_attempts_total counter\n")
	var fks []fetchKey
	for k := range fetchAttempts {
		fks = append(fks, k)
	}
	sort.Slice(fks, func(i, j int) bool {
		if fks[i].Provider != fks[j].Provider {
			return fks[i].Provider < fks[j].Provider
		}
		return fks[i].Success < fks[j].Success
	})
	for _, k := range fks {
		fmt.Fprintf(&b, "promowatch_fetch_attempts_total{provider=%q,success=%q} %d\n",
			k.Provider, k.Success, fetchAttempts[k])
	}

	writeLabelled := func(name, help, label string, m map[string]int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
		var keys []string
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s{%s=%q} %d\n", name, label, k, m[k])
		}
	}

	writeLabelled("promowatch_ocr_calls_total", "OCR service calls", "success", ocrCalls)
	writeLabelled("promowatch_cleaner_calls_total", "Text cleaner calls", "success", cleanerCalls)
	writeLabelled("promowatch_dedup_dropped_total", "Records dropped as duplicates", "competitor", dedupDropped)
	writeLabelled("promowatch_overview_fallback_total", "Overview fallback invocations", "competitor", overviewRuns)

	b.WriteString("# HELP promowatch_records_total Output records by change status\n")
	b.WriteString("# TYPE promowatch_records_total counter\n")
	var sks []statusKey
	for k := range changeStatus {
		sks = append(sks, k)
	}
	sort.Slice(sks, func(i, j int) bool {
		if sks[i].Competitor != sks[j].Competitor {
			return sks[i].Competitor < sks[j].Competitor
		}
		return sks[i].Status < sks[j].Status
	})
	for _, k := range sks {
		fmt.Fprintf(&b, "promowatch_records_total{competitor=%q,status=%q} %d\n",
			k.Competitor, k.Status, changeStatus[k])
	}

	b.WriteString("# HELP promowatch_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE promowatch_http_requests_total counter\n")
	var rks []reqKey
	for k := range requestsTotal {
		rks = append(rks, k)
	}
	sort.Slice(rks, func(i, j int) bool {
		if rks[i].Method != rks[j].Method {
			return rks[i].Method < rks[j].Method
		}
		if rks[i].Path != rks[j].Path {
			return rks[i].Path < rks[j].Path
		}
		return rks[i].Status < rks[j].Status
	})
	for _, k := range rks {
		fmt.Fprintf(&b, "promowatch_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	return b.String()
}
