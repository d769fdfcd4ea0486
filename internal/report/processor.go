package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/enrich"
	"github.com/TobiSchelling/adreport/internal/exposure"
	"github.com/TobiSchelling/adreport/internal/rules"
)

// DefaultConcurrency is the enrichment fan-out used when none is configured.
const DefaultConcurrency = 4

// ProgressFunc receives the number of ads resolved so far and the batch size.
type ProgressFunc func(done, total int)

// BatchStats counts enrichment outcomes for one batch.
type BatchStats struct {
	Processed int
	Enriched  int
	Failed    int
}

// Processor runs the per-ad steps: exposure, rules, then enrichment.
type Processor struct {
	enricher    enrich.Enricher
	classify    func(creative.Ad) creative.RuleClassification
	concurrency int
	logger      *zap.Logger
}

// NewProcessor creates a processor. enricher may be nil, in which case ads
// carry rule output only.
func NewProcessor(enricher enrich.Enricher, concurrency int, logger *zap.Logger) *Processor {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Processor{
		enricher:    enricher,
		classify:    rules.Classify,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessAd analyzes one ad. Enrichment failures, including panics, are
// logged and leave LLM nil. A panic in any other step is logged and yields
// the ad with an unknown rule classification and no LLM output.
func (p *Processor) ProcessAd(ctx context.Context, ad creative.Ad, cutoff time.Time) (analyzed creative.AnalyzedAd) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Ad processing panicked",
				zap.String("ad_id", ad.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
			analyzed = creative.AnalyzedAd{Ad: ad, Rules: rules.Unclassified()}
		}
	}()

	if !ad.HasExposure() {
		days, proxy := exposure.Compute(ad, cutoff)
		ad.RunDays = &days
		ad.ExposureProxy = &proxy
	} else if e := ad.Exposure(); e != *ad.ExposureProxy {
		ad.ExposureProxy = &e
	}

	analyzed = creative.AnalyzedAd{
		Ad:    ad,
		Rules: p.classify(ad),
	}
	analyzed.LLM = p.enrich(ctx, ad)
	return analyzed
}

func (p *Processor) enrich(ctx context.Context, ad creative.Ad) (result *creative.LLMClassification) {
	if p.enricher == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Enrichment panicked",
				zap.String("ad_id", ad.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
			result = nil
		}
	}()

	classification, err := p.enricher.Classify(ctx, ad)
	if err != nil {
		p.logger.Warn("Enrichment failed", zap.String("ad_id", ad.ID), zap.Error(err))
		return nil
	}
	return classification
}

// ProcessBatch analyzes every ad with bounded parallelism and returns them in
// input order once all have resolved.
func (p *Processor) ProcessBatch(ctx context.Context, ads []creative.Ad, cutoff time.Time, progress ProgressFunc) ([]creative.AnalyzedAd, BatchStats) {
	results := make([]creative.AnalyzedAd, len(ads))
	total := len(ads)
	done := 0
	var progressMu sync.Mutex

	wp := pool.New().WithMaxGoroutines(p.concurrency)
	for idx := range ads {
		wp.Go(func() {
			results[idx] = p.ProcessAd(ctx, ads[idx], cutoff)
			progressMu.Lock()
			done++
			if progress != nil {
				progress(done, total)
			}
			progressMu.Unlock()
		})
	}
	wp.Wait()

	stats := BatchStats{Processed: total}
	for i := range results {
		if results[i].LLM != nil {
			stats.Enriched++
		} else if p.enricher != nil {
			stats.Failed++
		}
	}
	p.logger.Info("Batch processed",
		zap.Int("ads", stats.Processed),
		zap.Int("enriched", stats.Enriched),
		zap.Int("failed", stats.Failed),
	)
	return results, stats
}
