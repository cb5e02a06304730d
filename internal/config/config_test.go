package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  enabled: true
  port: 9090
fetch:
  userAgent: promowatch/1.0
  timeoutMs: 30000
  respectRobots: true
  providers:
    - name: render
      baseURL: https://render.example/api
      apiKey: secret
      jsRender: true
      waitMs: 2000
cache:
  redisURL: redis://localhost:6379/0
  ttlHours: 48
sources:
  coupons:
    pdfLinks: true
    defaultTitle: Seasonal Coupons
dedup:
  highSimilarity: 85
store:
  dir: /tmp/promos
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if len(cfg.Fetch.Providers) != 1 || cfg.Fetch.Providers[0].Name != "render" {
		t.Fatalf("unexpected providers %+v", cfg.Fetch.Providers)
	}
	if !cfg.Fetch.Providers[0].JSRender {
		t.Fatal("expected jsRender true")
	}
	src, ok := cfg.Sources["coupons"]
	if !ok || !src.PDFLinks || src.DefaultTitle != "Seasonal Coupons" {
		t.Fatalf("unexpected source profile %+v", src)
	}
	if cfg.Dedup.HighSimilarity != 85 {
		t.Fatalf("unexpected dedup override %d", cfg.Dedup.HighSimilarity)
	}
	if cfg.Store.Dir != "/tmp/promos" {
		t.Fatalf("unexpected store dir %q", cfg.Store.Dir)
	}
	if len(cfg.PromoKeywords) == 0 {
		t.Fatal("expected default promo keywords")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "fetch:\n  timeoutMs: 1000\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Dir != "data/promotions" {
		t.Fatalf("expected default store dir, got %q", cfg.Store.Dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadCompetitors(t *testing.T) {
	path := writeFile(t, "competitors.json", `[
		{
			"name": "Speedy Lube",
			"domain": "speedylube.example",
			"address": "123 Main St, Edmonton, AB",
			"promo_links": ["https://speedylube.example/promos"],
			"limit_per_entity": 2
		},
		{
			"name": "Mr. Lube",
			"domain": "mrlube.example",
			"address": "456 Other Rd",
			"overview_only": true
		}
	]`)

	competitors, err := LoadCompetitors(path)
	if err != nil {
		t.Fatalf("LoadCompetitors failed: %v", err)
	}
	if len(competitors) != 2 {
		t.Fatalf("expected 2 competitors, got %d", len(competitors))
	}
	if competitors[0].LimitPerEntity != 2 || len(competitors[0].PromoLinks) != 1 {
		t.Fatalf("unexpected first competitor %+v", competitors[0])
	}
	if !competitors[1].OverviewOnly {
		t.Fatal("expected overview_only flag honored")
	}
}
