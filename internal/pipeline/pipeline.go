// Package pipeline orchestrates one competitor run: fetch, extract,
// enrich, normalize, classify, deduplicate, persist.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"promowatch/internal/config"
	"promowatch/internal/dedup"
	"promowatch/internal/extract"
	"promowatch/internal/fetch"
	"promowatch/internal/metrics"
	"promowatch/internal/model"
	"promowatch/internal/overview"
	"promowatch/internal/promo"
	"promowatch/internal/track"
)

// Archiver records completed runs to long-term storage. Implementations
// must be safe to skip: a nil Archiver disables archiving.
type Archiver interface {
	RecordRun(ctx context.Context, competitor string, promos []model.StandardPromo, startedAt time.Time) error
}

// Orchestrator wires the pipeline stages together and drives them
// sequentially per competitor.
type Orchestrator struct {
	gateway    *fetch.Gateway
	extractor  *extract.Extractor
	normalizer *promo.Normalizer
	dedup      *dedup.Deduplicator
	store      *track.Store
	overview   *overview.Extractor
	archiver   Archiver
	logger     *slog.Logger

	sources       map[string]config.SourceConfigYAML
	promoKeywords []string
	fetchTimeout  time.Duration
}

type Options struct {
	Gateway       *fetch.Gateway
	Extractor     *extract.Extractor
	Normalizer    *promo.Normalizer
	Deduplicator  *dedup.Deduplicator
	Store         *track.Store
	Overview      *overview.Extractor
	Archiver      Archiver
	Logger        *slog.Logger
	Sources       map[string]config.SourceConfigYAML
	PromoKeywords []string
	FetchTimeout  time.Duration
}

func New(opts Options) *Orchestrator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.PromoKeywords) == 0 {
		opts.PromoKeywords = config.DefaultPromoKeywords()
	}
	return &Orchestrator{
		gateway:       opts.Gateway,
		extractor:     opts.Extractor,
		normalizer:    opts.Normalizer,
		dedup:         opts.Deduplicator,
		store:         opts.Store,
		overview:      opts.Overview,
		archiver:      opts.Archiver,
		logger:        opts.Logger,
		sources:       opts.Sources,
		promoKeywords: opts.PromoKeywords,
		fetchTimeout:  opts.FetchTimeout,
	}
}

// Run executes the full pipeline for one competitor and returns the
// final record list. A run that finds nothing is a valid outcome, not
// an error; the error return covers only local resource failures such
// as an unwritable store.
func (o *Orchestrator) Run(ctx context.Context, comp model.Competitor) ([]model.StandardPromo, error) {
	startedAt := time.Now()
	logger := o.logger.With("competitor", comp.Name)

	var records []model.StandardPromo
	if comp.OverviewOnly {
		logger.Info("overview_only_competitor")
		if rec := o.overviewRecord(ctx, comp); rec != nil {
			records = append(records, *rec)
		}
	} else {
		records = o.runPrimary(ctx, comp, logger)
		if !hasCompleteRecord(records) {
			o.sniffKeywords(ctx, comp, logger)
			if rec := o.overviewRecord(ctx, comp); rec != nil {
				records = []model.StandardPromo{*rec}
			}
			// Otherwise keep whatever the primary produced, even if
			// incomplete, so the caller can tell "found little" from
			// "crashed".
		}
	}

	previous := o.store.Load(comp.Name)
	records = track.Classify(previous, records)
	for _, r := range records {
		metrics.RecordChangeStatus(comp.Name, string(r.ChangeStatus))
	}

	before := len(records)
	records = o.dedup.Deduplicate(records, comp.LimitPerEntity)
	if dropped := before - len(records); dropped > 0 {
		metrics.RecordDedupDropped(comp.Name, dropped)
		logger.Info("dedup_dropped_records", "dropped", dropped, "kept", len(records))
	}

	if err := o.store.Replace(comp.Name, records); err != nil {
		return records, err
	}

	if o.archiver != nil {
		if err := o.archiver.RecordRun(ctx, comp.Name, records, startedAt); err != nil {
			logger.Warn("archive_failed", "error", err)
		}
	}

	logger.Info("run_complete", "records", len(records), "elapsed", time.Since(startedAt).Round(time.Millisecond))
	return records, nil
}

// runPrimary walks the competitor's page list, extracting and
// normalizing candidates. An exhausted fetch cascade skips that URL and
// continues with the rest.
func (o *Orchestrator) runPrimary(ctx context.Context, comp model.Competitor, logger *slog.Logger) []model.StandardPromo {
	srcCfg := o.sourceConfig(comp)
	var records []model.StandardPromo
	for _, pageURL := range o.pageURLs(comp) {
		res := o.gateway.Fetch(ctx, pageURL, o.fetchTimeout)
		if res.Empty() {
			logger.Warn("source_exhausted", "url", pageURL, "error", res.Err)
			continue
		}
		candidates := o.extractor.Extract(res, srcCfg)
		logger.Info("candidates_extracted", "url", pageURL, "count", len(candidates), "provider", res.Provider)
		for _, cand := range candidates {
			records = append(records, o.normalizer.Normalize(ctx, comp, cand, srcCfg.DefaultTitle))
		}
	}
	return records
}

func (o *Orchestrator) pageURLs(comp model.Competitor) []string {
	if len(comp.PromoLinks) > 0 {
		return comp.PromoLinks
	}
	if comp.URL != "" {
		return []string{comp.URL}
	}
	return nil
}

func (o *Orchestrator) sourceConfig(comp model.Competitor) extract.SourceConfig {
	yamlCfg, ok := o.sources[comp.Source]
	if !ok && comp.Source != "" {
		o.logger.Warn("unknown_source_profile", "competitor", comp.Name, "source", comp.Source)
	}
	cfg := extract.SourceConfig{
		SectionSelectors: yamlCfg.SectionSelectors,
		Keywords:         yamlCfg.Keywords,
		DenyKeywords:     yamlCfg.DenyKeywords,
		MinSectionChars:  yamlCfg.MinSectionChars,
		MinPageChars:     yamlCfg.MinPageChars,
		ImageSelector:    yamlCfg.ImageSelector,
		PDFLinks:         yamlCfg.PDFLinks,
		DefaultTitle:     yamlCfg.DefaultTitle,
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = o.promoKeywords
	}
	return cfg
}

func (o *Orchestrator) overviewRecord(ctx context.Context, comp model.Competitor) *model.StandardPromo {
	if o.overview == nil {
		return nil
	}
	return o.overview.Extract(ctx, comp)
}

// sniffKeywords refetches the first page cheaply and logs whether any
// promotional indicator appears at all. Diagnostic only; the fallback
// runs regardless.
func (o *Orchestrator) sniffKeywords(ctx context.Context, comp model.Competitor, logger *slog.Logger) {
	urls := o.pageURLs(comp)
	if len(urls) == 0 {
		return
	}
	res := o.gateway.Fetch(ctx, urls[0], o.fetchTimeout)
	if res.Empty() {
		return
	}
	lower := strings.ToLower(res.HTML)
	var found []string
	for _, kw := range o.promoKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 0 {
		logger.Info("promo_indicators_present_but_unextracted", "url", urls[0], "keywords", strings.Join(found, ","))
	} else {
		logger.Info("no_promo_indicators_on_page", "url", urls[0])
	}
}

// hasCompleteRecord implements the validity predicate for the primary
// path: at least one record carries every display-critical field.
func hasCompleteRecord(records []model.StandardPromo) bool {
	for _, r := range records {
		if r.ServiceName != "" && r.PromoDescription != "" && r.OfferDetails != "" &&
			r.AdTitle != "" && r.AdText != "" {
			return true
		}
	}
	return false
}
