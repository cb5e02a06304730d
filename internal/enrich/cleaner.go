package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"promowatch/internal/metrics"
	"promowatch/internal/model"
)

// minCleanChars is the shortest text worth sending to the cleaner.
const minCleanChars = 10

// Cleaner structures raw promotional text into named fields. A nil
// result means "no enrichment" and is a normal outcome, not an error.
type Cleaner interface {
	Clean(ctx context.Context, rawText, contextHint string) *model.EnrichedText
}

// ChatCleaner implements Cleaner against an OpenAI-compatible Chat
// Completions endpoint.
type ChatCleaner struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewChatCleaner(baseURL, apiKey, modelName string, timeout time.Duration, logger *slog.Logger) *ChatCleaner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatCleaner{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You are an extraction engine. Extract structured promotion data from text. " +
	"Return only valid JSON. Do not hallucinate - only extract what is present. " +
	"Merge scattered text intelligently. Use plain text only, no markdown."

func userPrompt(rawText, contextHint string) string {
	return fmt.Sprintf(`Extract EXACTLY these fields from the promotion text below:
- service_name: short and readable service name (e.g., "oil change", "brake service")
- promo_description: clean summary of the promotion
- category: service category (e.g., "oil change", "brakes", "battery", "tires", "seasonal")
- offer_details: discount amount, coupon code, expiry date if present, merged into one clean text
- discount_value: discount amount such as "$20", "15%%" or "free" if present
- coupon_code: coupon code if present
- expiry_date: expiry date if present

Use null for missing fields. Plain text only, no markdown.
Return ONLY a JSON object.

Text to extract from:
%s

Context: %s`, rawText, contextHint)
}

// Clean sends the text to the LLM and parses a JSON object out of the
// reply. Any failure - transport, status, malformed output - yields
// nil rather than an error.
func (c *ChatCleaner) Clean(ctx context.Context, rawText, contextHint string) *model.EnrichedText {
	if c.baseURL == "" || c.apiKey == "" || c.model == "" {
		return nil
	}
	if len(strings.TrimSpace(rawText)) < minCleanChars {
		return nil
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(rawText, contextHint)},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.warn("cleaner_request_failed", "error", err)
		metrics.RecordClean(false)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.warn("cleaner_bad_status", "status", resp.StatusCode)
		metrics.RecordClean(false)
		return nil
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.warn("cleaner_bad_response", "error", err)
		metrics.RecordClean(false)
		return nil
	}
	if len(parsed.Choices) == 0 {
		metrics.RecordClean(false)
		return nil
	}

	enriched, err := ParseEnriched(parsed.Choices[0].Message.Content)
	if err != nil {
		c.warn("cleaner_unparsable_output", "error", err)
		metrics.RecordClean(false)
		return nil
	}

	metrics.RecordClean(true)
	return enriched
}

func (c *ChatCleaner) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// ParseEnriched pulls a JSON object out of LLM output. It tolerates
// code fences and surrounding prose: the whole string is tried first,
// then the first {...} block.
func ParseEnriched(content string) (*model.EnrichedText, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var enriched model.EnrichedText
	if err := json.Unmarshal([]byte(content), &enriched); err == nil {
		return &enriched, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON object found in content")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &enriched); err != nil {
		return nil, err
	}
	return &enriched, nil
}
