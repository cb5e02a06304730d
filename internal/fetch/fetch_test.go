package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeProvider struct {
	name  string
	html  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Result{HTML: f.html}, nil
}

func TestGatewayCascadeAdvancesPastFailures(t *testing.T) {
	first := &fakeProvider{name: "render", err: fmt.Errorf("status 500")}
	second := &fakeProvider{name: "browser", html: "   "}
	third := &fakeProvider{name: "http", html: "<html><body><p>Save $20 today</p></body></html>"}

	g := NewGateway([]Provider{first, second, third}, nil, "test-agent", nil)
	res := g.Fetch(context.Background(), "https://example.com/promos", time.Second)

	if res.Empty() {
		t.Fatalf("expected non-empty result, got err %q", res.Err)
	}
	if res.Provider != "http" {
		t.Fatalf("expected winning provider http, got %q", res.Provider)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Fatalf("expected each provider called once, got %d/%d/%d", first.calls, second.calls, third.calls)
	}
	if !strings.Contains(res.Markdown, "Save $20") {
		t.Fatalf("expected markdown conversion, got %q", res.Markdown)
	}
}

func TestGatewayExhaustionReturnsJoinedErrors(t *testing.T) {
	g := NewGateway([]Provider{
		&fakeProvider{name: "render", err: fmt.Errorf("timeout")},
		&fakeProvider{name: "http", err: fmt.Errorf("status 403")},
	}, nil, "test-agent", nil)

	res := g.Fetch(context.Background(), "https://example.com/promos", time.Second)
	if !res.Empty() {
		t.Fatal("expected empty result on exhaustion")
	}
	if !strings.Contains(res.Err, "render: timeout") || !strings.Contains(res.Err, "http: status 403") {
		t.Fatalf("expected both failures in err, got %q", res.Err)
	}
	if res.URL != "https://example.com/promos" {
		t.Fatalf("expected URL carried through, got %q", res.URL)
	}
}

func TestGatewayStopsAtFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "render", html: "<html><body>promo content here</body></html>"}
	second := &fakeProvider{name: "http"}

	g := NewGateway([]Provider{first, second}, nil, "", nil)
	res := g.Fetch(context.Background(), "https://example.com", time.Second)

	if res.Provider != "render" {
		t.Fatalf("expected render to win, got %q", res.Provider)
	}
	if second.calls != 0 {
		t.Fatalf("expected later providers skipped, got %d calls", second.calls)
	}
}

func TestHTTPProviderRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPProvider(2*time.Second, true)
	_, err := p.Fetch(context.Background(), Request{URL: srv.URL + "/promos", Timeout: 2 * time.Second})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestHTTPProviderRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	p := NewHTTPProvider(2*time.Second, true)

	if _, err := p.Fetch(context.Background(), Request{URL: srv.URL + "/private/page", Timeout: 2 * time.Second}); err == nil {
		t.Fatal("expected disallowed path to be refused")
	}

	res, err := p.Fetch(context.Background(), Request{URL: srv.URL + "/public", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("expected allowed path to fetch: %v", err)
	}
	if !strings.Contains(res.HTML, "hello") {
		t.Fatalf("unexpected body %q", res.HTML)
	}
}

func TestExtractImagesResolvesAndFiltersSources(t *testing.T) {
	html := `<html><body>
		<img src="/img/banner.png">
		<img data-src="https://cdn.example.com/lazy.jpg">
		<img srcset="https://cdn.example.com/small.jpg 480w, https://cdn.example.com/big.jpg 1024w">
		<img src="data:image/png;base64,AAAA">
	</body></html>`

	images := ExtractImages(html, "https://example.com/promos/")
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d (%v)", len(images), images)
	}
	if images[0] != "https://example.com/img/banner.png" {
		t.Fatalf("expected relative src resolved, got %q", images[0])
	}
	if images[1] != "https://cdn.example.com/lazy.jpg" {
		t.Fatalf("expected data-src honored, got %q", images[1])
	}
	if images[2] != "https://cdn.example.com/small.jpg" {
		t.Fatalf("expected first srcset entry, got %q", images[2])
	}
}
