package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"promowatch/internal/model"
)

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// RenderProviderConfig describes one hosted rendering API in the fetch
// cascade (e.g. a premium rendering service plus cheaper alternatives).
type RenderProviderConfig struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"baseURL"`
	APIKey    string `yaml:"apiKey"`
	JSRender  bool   `yaml:"jsRender"`
	WaitMs    int    `yaml:"waitMs"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

type BrowserConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ControlURL string `yaml:"controlURL"`
	TimeoutMs  int    `yaml:"timeoutMs"`
}

type FetchConfig struct {
	UserAgent     string                 `yaml:"userAgent"`
	TimeoutMs     int                    `yaml:"timeoutMs"`
	RespectRobots bool                   `yaml:"respectRobots"`
	Providers     []RenderProviderConfig `yaml:"providers"`
	Browser       BrowserConfig          `yaml:"browser"`
}

type CacheConfig struct {
	RedisURL string `yaml:"redisURL"`
	TTLHours int    `yaml:"ttlHours"`
}

type OCRConfig struct {
	BaseURL   string `yaml:"baseURL"`
	APIKey    string `yaml:"apiKey"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

type CleanerConfig struct {
	BaseURL   string `yaml:"baseURL"`
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// SourceConfigYAML is the declarative extraction profile for a family of
// pages. Strategy variants are data, not code branches.
type SourceConfigYAML struct {
	SectionSelectors []string `yaml:"sectionSelectors"`
	Keywords         []string `yaml:"keywords"`
	DenyKeywords     []string `yaml:"denyKeywords"`
	MinSectionChars  int      `yaml:"minSectionChars"`
	MinPageChars     int      `yaml:"minPageChars"`
	ImageSelector    string   `yaml:"imageSelector"`
	PDFLinks         bool     `yaml:"pdfLinks"`
	DefaultTitle     string   `yaml:"defaultTitle"`
}

type SearchConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
	Limit     int    `yaml:"limit"`
}

// DedupConfig overrides the deduplication thresholds and score weights.
// Zero values fall back to the package defaults; the numbers are
// empirically tuned and should be validated against labeled data before
// changing.
type DedupConfig struct {
	NearExactTitle int      `yaml:"nearExactTitle"`
	HighSimilarity int      `yaml:"highSimilarity"`
	CouponBonus    int      `yaml:"couponBonus"`
	KeywordBonus   int      `yaml:"keywordBonus"`
	Brands         []string `yaml:"brands"`
	StrongKeywords []string `yaml:"strongKeywords"`
	GenericPhrases []string `yaml:"genericPhrases"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type Config struct {
	Server   ServerConfig                `yaml:"server"`
	Fetch    FetchConfig                 `yaml:"fetch"`
	Cache    CacheConfig                 `yaml:"cache"`
	OCR      OCRConfig                   `yaml:"ocr"`
	Cleaner  CleanerConfig               `yaml:"cleaner"`
	Search   SearchConfig                `yaml:"search"`
	Sources  map[string]SourceConfigYAML `yaml:"sources"`
	Dedup    DedupConfig                 `yaml:"dedup"`
	Store    StoreConfig                 `yaml:"store"`
	Database DatabaseConfig              `yaml:"database"`
	// PromoKeywords drive candidate filtering and the diagnostic
	// keyword sniff before the overview fallback.
	PromoKeywords []string `yaml:"promoKeywords"`
}

// Load reads and decodes the YAML config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "data/promotions"
	}
	if len(cfg.PromoKeywords) == 0 {
		cfg.PromoKeywords = DefaultPromoKeywords()
	}

	return &cfg, nil
}

// LoadCompetitors reads the competitor list JSON document.
func LoadCompetitors(path string) ([]model.Competitor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read competitor list: %w", err)
	}

	var competitors []model.Competitor
	if err := json.Unmarshal(raw, &competitors); err != nil {
		return nil, fmt.Errorf("decode competitor list: %w", err)
	}

	return competitors, nil
}

// DefaultPromoKeywords is the stock indicator set for promotional
// content.
func DefaultPromoKeywords() []string {
	return []string{
		"offer", "offers", "promo", "promotion", "promotions",
		"coupon", "coupons", "special", "discount", "save", "free",
		"rebate", "deal", "sale", "limited",
	}
}
