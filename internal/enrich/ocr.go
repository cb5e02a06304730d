// Package enrich wraps the external normalization services: OCR for
// image/PDF assets and an LLM cleaner for raw text. Both are black
// boxes with narrow contracts; their failures reduce field
// completeness but never abort the pipeline.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"promowatch/internal/metrics"
)

// OCR extracts text from an image or PDF asset. Implementations return
// an empty string on failure; no error ever reaches the caller.
type OCR interface {
	Text(ctx context.Context, assetURL string) string
}

// HTTPOCR calls a hosted vision endpoint that accepts an asset URL and
// responds with recognized text.
type HTTPOCR struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPOCR(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPOCR {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPOCR{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type ocrRequest struct {
	URL string `json:"url"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

func (o *HTTPOCR) Text(ctx context.Context, assetURL string) string {
	if o.baseURL == "" || assetURL == "" {
		return ""
	}

	payload, err := json.Marshal(ocrRequest{URL: assetURL})
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/ocr", bytes.NewReader(payload))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.warn("ocr_request_failed", "asset", assetURL, "error", err)
		metrics.RecordOCR(false)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		o.warn("ocr_bad_status", "asset", assetURL, "status", resp.StatusCode)
		metrics.RecordOCR(false)
		return ""
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		o.warn("ocr_bad_response", "asset", assetURL, "error", err)
		metrics.RecordOCR(false)
		return ""
	}

	metrics.RecordOCR(true)
	return strings.TrimSpace(parsed.Text)
}

func (o *HTTPOCR) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
