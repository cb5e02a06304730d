package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"promowatch/internal/archive"
	"promowatch/internal/config"
	"promowatch/internal/dedup"
	"promowatch/internal/enrich"
	"promowatch/internal/extract"
	"promowatch/internal/fetch"
	"promowatch/internal/migrate"
	"promowatch/internal/overview"
	"promowatch/internal/pipeline"
	"promowatch/internal/promo"
	"promowatch/internal/server"
	"promowatch/internal/track"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	competitorsPath := flag.String("competitors", "config/competitors.json", "path to competitor list")
	role := flag.String("role", "run", "process role: run|serve|all")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	store := track.NewStore(cfg.Store.Dir, logger)

	var archiver pipeline.Archiver
	if cfg.Database.DSN != "" {
		if err := migrate.Up(context.Background(), cfg.Database.DSN); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		st, err := archive.Open(context.Background(), cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open archive failed: %v", err)
		}
		defer st.Close()
		archiver = st
	}

	switch *role {
	case "run":
		runPipeline(cfg, *competitorsPath, store, archiver, logger)
	case "serve":
		serveAPI(cfg, store, logger)
	case "all":
		runPipeline(cfg, *competitorsPath, store, archiver, logger)
		serveAPI(cfg, store, logger)
	default:
		log.Fatalf("invalid role: %s (expected run|serve|all)", *role)
	}
}

func runPipeline(cfg *config.Config, competitorsPath string, store *track.Store, archiver pipeline.Archiver, logger *slog.Logger) {
	competitors, err := config.LoadCompetitors(competitorsPath)
	if err != nil {
		log.Fatalf("load competitors failed: %v", err)
	}

	orch := buildOrchestrator(cfg, store, archiver, logger)
	ctx := context.Background()
	for _, comp := range competitors {
		if _, err := orch.Run(ctx, comp); err != nil {
			logger.Error("competitor_run_failed", "competitor", comp.Name, "error", err)
		}
	}
}

func buildOrchestrator(cfg *config.Config, store *track.Store, archiver pipeline.Archiver, logger *slog.Logger) *pipeline.Orchestrator {
	var providers []fetch.Provider
	for _, pc := range cfg.Fetch.Providers {
		providers = append(providers, fetch.NewRenderAPIProvider(
			pc.Name, pc.BaseURL, pc.APIKey, pc.JSRender, pc.WaitMs,
			time.Duration(pc.TimeoutMs)*time.Millisecond,
		))
	}
	if cfg.Fetch.Browser.Enabled {
		providers = append(providers, fetch.NewBrowserProvider(
			cfg.Fetch.Browser.ControlURL,
			time.Duration(cfg.Fetch.Browser.TimeoutMs)*time.Millisecond,
		))
	}
	providers = append(providers, fetch.NewHTTPProvider(
		time.Duration(cfg.Fetch.TimeoutMs)*time.Millisecond,
		cfg.Fetch.RespectRobots,
	))

	cache := fetch.NewCache(cfg.Cache.RedisURL, time.Duration(cfg.Cache.TTLHours)*time.Hour)
	gateway := fetch.NewGateway(providers, cache, cfg.Fetch.UserAgent, logger)

	var ocr enrich.OCR
	if cfg.OCR.BaseURL != "" {
		ocr = enrich.NewHTTPOCR(cfg.OCR.BaseURL, cfg.OCR.APIKey,
			time.Duration(cfg.OCR.TimeoutMs)*time.Millisecond, logger)
	}
	var cleaner enrich.Cleaner
	if cfg.Cleaner.BaseURL != "" {
		cleaner = enrich.NewChatCleaner(cfg.Cleaner.BaseURL, cfg.Cleaner.APIKey, cfg.Cleaner.Model,
			time.Duration(cfg.Cleaner.TimeoutMs)*time.Millisecond, logger)
	}

	var ovr *overview.Extractor
	if cfg.Search.BaseURL != "" {
		searcher, err := overview.NewSearxngSearcher(cfg.Search.BaseURL,
			time.Duration(cfg.Search.TimeoutMs)*time.Millisecond)
		if err != nil {
			log.Fatalf("search setup failed: %v", err)
		}
		ovr = overview.NewExtractor(searcher, logger)
	}

	// dedup.New fills anything the config leaves unset.
	params := dedup.Params{
		NearExactTitle: cfg.Dedup.NearExactTitle,
		HighSimilarity: cfg.Dedup.HighSimilarity,
		CouponBonus:    cfg.Dedup.CouponBonus,
		KeywordBonus:   cfg.Dedup.KeywordBonus,
		Brands:         cfg.Dedup.Brands,
		StrongKeywords: cfg.Dedup.StrongKeywords,
		GenericPhrases: cfg.Dedup.GenericPhrases,
	}

	return pipeline.New(pipeline.Options{
		Gateway:       gateway,
		Extractor:     extract.New(logger),
		Normalizer:    promo.NewNormalizer(ocr, cleaner, logger),
		Deduplicator:  dedup.New(params),
		Store:         store,
		Overview:      ovr,
		Archiver:      archiver,
		Logger:        logger,
		Sources:       cfg.Sources,
		PromoKeywords: cfg.PromoKeywords,
		FetchTimeout:  time.Duration(cfg.Fetch.TimeoutMs) * time.Millisecond,
	})
}

func serveAPI(cfg *config.Config, store *track.Store, logger *slog.Logger) {
	host := cfg.Server.Host
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	s := server.New(store, logger)
	if err := s.Listen(host, port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
