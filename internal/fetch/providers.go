package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/temoto/robotstxt"
)

// RenderAPIProvider fetches through a hosted rendering API
// (js_render/wait style query parameters, HTML body response).
type RenderAPIProvider struct {
	name     string
	baseURL  string
	apiKey   string
	jsRender bool
	waitMs   int
	client   *http.Client
}

func NewRenderAPIProvider(name, baseURL, apiKey string, jsRender bool, waitMs int, timeout time.Duration) *RenderAPIProvider {
	return &RenderAPIProvider{
		name:     name,
		baseURL:  baseURL,
		apiKey:   apiKey,
		jsRender: jsRender,
		waitMs:   waitMs,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *RenderAPIProvider) Name() string { return p.name }

func (p *RenderAPIProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	q := endpoint.Query()
	q.Set("url", req.URL)
	q.Set("apikey", p.apiKey)
	if p.jsRender {
		q.Set("js_render", "true")
	}
	if p.waitMs > 0 {
		q.Set("wait", strconv.Itoa(p.waitMs))
	}
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{HTML: string(body), Status: resp.StatusCode}, nil
}

// BrowserProvider renders JS-heavy pages in a real browser via rod
// before handing back the final HTML.
type BrowserProvider struct {
	ControlURL string
	Timeout    time.Duration
}

func NewBrowserProvider(controlURL string, timeout time.Duration) *BrowserProvider {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &BrowserProvider{ControlURL: controlURL, Timeout: timeout}
}

func (p *BrowserProvider) Name() string { return "browser" }

func (p *BrowserProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	browser := rod.New().Context(ctx).Timeout(p.Timeout)
	if p.ControlURL != "" {
		browser = browser.ControlURL(p.ControlURL)
	}

	if err := browser.Connect(); err != nil {
		return nil, err
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{URL: u.String()})
	if err != nil {
		return nil, err
	}
	defer page.MustClose()

	if err := page.WaitLoad(); err != nil {
		return nil, err
	}

	htmlStr, err := page.HTML()
	if err != nil {
		return nil, err
	}

	return &Result{HTML: htmlStr, Status: http.StatusOK}, nil
}

// HTTPProvider is the last cascade rung: a direct unauthenticated GET.
// It optionally honors robots.txt, caching the parsed policy per host.
type HTTPProvider struct {
	client        *http.Client
	respectRobots bool

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

func NewHTTPProvider(timeout time.Duration, respectRobots bool) *HTTPProvider {
	return &HTTPProvider{
		client:        &http.Client{Timeout: timeout},
		respectRobots: respectRobots,
		robots:        make(map[string]*robotstxt.RobotsData),
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	if p.respectRobots {
		allowed, err := p.allowed(ctx, u, req.UserAgent)
		if err == nil && !allowed {
			return nil, fmt.Errorf("disallowed by robots.txt: %s", u.Path)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{HTML: string(body), Status: resp.StatusCode}, nil
}

// allowed checks the host's robots.txt policy for the request path. An
// unreachable or unparsable robots.txt allows the fetch.
func (p *HTTPProvider) allowed(ctx context.Context, u *url.URL, userAgent string) (bool, error) {
	host := u.Scheme + "://" + u.Host

	p.mu.Lock()
	data, ok := p.robots[host]
	p.mu.Unlock()

	if !ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
		if err != nil {
			return true, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		data, err = robotstxt.FromResponse(resp)
		if err != nil {
			return true, err
		}

		p.mu.Lock()
		p.robots[host] = data
		p.mu.Unlock()
	}

	agent := userAgent
	if agent == "" {
		agent = "promowatch"
	}
	return data.TestAgent(u.Path, agent), nil
}
