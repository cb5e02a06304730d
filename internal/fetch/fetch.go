package fetch

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"promowatch/internal/metrics"
)

// Request is a single fetch attempt handed to a content provider.
type Request struct {
	URL       string
	JSRender  bool
	WaitMs    int
	Timeout   time.Duration
	UserAgent string
}

// Result is the gateway's uniform fetch output. On total cascade
// exhaustion HTML is empty and Err carries the aggregated provider
// errors; callers check Empty() rather than an error return.
type Result struct {
	URL      string
	HTML     string
	Markdown string
	Images   []string
	Provider string
	Status   int
	Err      string
}

// Empty reports whether the fetch produced nothing usable.
func (r *Result) Empty() bool {
	return r == nil || strings.TrimSpace(r.HTML) == ""
}

// Provider fetches a URL's raw HTML. Implementations must treat a
// non-2xx response and a transport error identically: return an error
// so the gateway advances to the next provider.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// Gateway tries an ordered list of content providers until one returns
// non-empty content. Individual provider failures are logged as
// warnings and are never surfaced to the caller.
type Gateway struct {
	providers []Provider
	cache     *Cache
	userAgent string
	logger    *slog.Logger
}

func NewGateway(providers []Provider, cache *Cache, userAgent string, logger *slog.Logger) *Gateway {
	return &Gateway{providers: providers, cache: cache, userAgent: userAgent, logger: logger}
}

func (g *Gateway) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}

// Fetch runs the provider cascade for one URL. Each provider call is
// time-boxed independently by timeout. The returned Result is always
// non-nil; pure function of (url, available providers) apart from the
// optional cache.
func (g *Gateway) Fetch(ctx context.Context, rawURL string, timeout time.Duration) *Result {
	if g.cache != nil {
		if res := g.cache.Get(ctx, rawURL); res != nil {
			return res
		}
	}

	req := Request{URL: rawURL, Timeout: timeout, UserAgent: g.userAgent}

	var failures []string
	for _, p := range g.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := p.Fetch(attemptCtx, req)
		cancel()

		if err != nil {
			metrics.RecordFetch(p.Name(), false)
			g.warn("fetch_provider_failed", "provider", p.Name(), "url", rawURL, "error", err)
			failures = append(failures, p.Name()+": "+err.Error())
			continue
		}
		if res.Empty() {
			metrics.RecordFetch(p.Name(), false)
			g.warn("fetch_provider_empty", "provider", p.Name(), "url", rawURL)
			failures = append(failures, p.Name()+": empty body")
			continue
		}

		metrics.RecordFetch(p.Name(), true)
		res.URL = rawURL
		res.Provider = p.Name()
		finishResult(res)

		if g.cache != nil {
			g.cache.Set(ctx, rawURL, res)
		}
		return res
	}

	return &Result{URL: rawURL, Err: strings.Join(failures, "; ")}
}

// finishResult converts the winning provider's HTML to markdown and
// discovers image assets. Conversion failure degrades to visible text.
func finishResult(res *Result) {
	host := ""
	if u, err := url.Parse(res.URL); err == nil {
		host = u.Hostname()
	}

	converter := htmlmd.NewConverter(host, true, nil)
	markdown, mdErr := converter.ConvertString(res.HTML)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if mdErr != nil {
		if docErr == nil {
			markdown = doc.Text()
		} else {
			markdown = ""
		}
	}

	res.Markdown = markdown
	res.Images = ExtractImages(res.HTML, res.URL)
}
