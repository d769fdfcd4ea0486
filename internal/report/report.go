// Package report runs the analysis pipeline over a batch of ads and tracks
// each run as a job with status and progress.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/adreport/internal/aggregate"
	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
	"github.com/TobiSchelling/adreport/internal/voc"
)

// Job statuses.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// ErrNoAds is returned when a report is requested with no ads available.
var ErrNoAds = errors.New("no ads available for report")

// JobStore persists report status, progress and the final JSON.
type JobStore interface {
	CreateReport(id string, cutoff time.Time, total int) error
	SetReportStatus(id, status, errMsg string) error
	SetReportProgress(id string, current, total int) error
	CompleteReport(id string, reportJSON []byte) error
}

// AdSource supplies the ads to analyze.
type AdSource interface {
	ListAds() ([]creative.Ad, error)
}

// CorpusSource supplies the VOC snapshot for comparison.
type CorpusSource interface {
	LoadCorpus() (voc.Corpus, error)
}

// Request describes one report run.
type Request struct {
	// Cutoff closes open delivery windows. Zero means ReportEnd, then now.
	Cutoff    time.Time
	ReportEnd time.Time
	// CompareVOC adds a VOC comparison to the report.
	CompareVOC bool
}

// Output is the stored report document.
type Output struct {
	ID            string                `json:"id"`
	SchemaVersion string                `json:"schema_version"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Cutoff        time.Time             `json:"cutoff"`
	Ads           []creative.AnalyzedAd `json:"ads"`
	Aggregate     aggregate.Report      `json:"aggregate"`
	Comparison    *voc.Result           `json:"comparison,omitempty"`
	Enriched      int                   `json:"enriched"`
	EnrichFailed  int                   `json:"enrich_failed"`
}

// Job is a created report awaiting Run.
type Job struct {
	ID      string
	Cutoff  time.Time
	Total   int
	Request Request
	ads     []creative.Ad
}

// Generator creates and runs report jobs.
type Generator struct {
	store         JobStore
	ads           AdSource
	corpus        CorpusSource
	processor     *Processor
	vocSampleSize int
	logger        *zap.Logger
	now           func() time.Time
}

// NewGenerator creates a generator. corpus may be nil when VOC comparison
// is never requested.
func NewGenerator(store JobStore, ads AdSource, corpus CorpusSource, processor *Processor, vocSampleSize int, logger *zap.Logger) *Generator {
	return &Generator{
		store:         store,
		ads:           ads,
		corpus:        corpus,
		processor:     processor,
		vocSampleSize: vocSampleSize,
		logger:        logger,
		now:           time.Now,
	}
}

// ResolveCutoff picks the run's cutoff: explicit cutoff, then report end,
// then now.
func ResolveCutoff(req Request, now time.Time) time.Time {
	switch {
	case !req.Cutoff.IsZero():
		return req.Cutoff.UTC()
	case !req.ReportEnd.IsZero():
		return req.ReportEnd.UTC()
	default:
		return now.UTC()
	}
}

// Create loads the ads and records a pending job. It returns ErrNoAds when
// there is nothing to analyze.
func (g *Generator) Create(req Request) (*Job, error) {
	ads, err := g.ads.ListAds()
	if err != nil {
		return nil, fmt.Errorf("loading ads: %w", err)
	}
	if len(ads) == 0 {
		return nil, ErrNoAds
	}

	job := &Job{
		ID:      uuid.NewString(),
		Cutoff:  ResolveCutoff(req, g.now()),
		Total:   len(ads),
		Request: req,
		ads:     ads,
	}
	if err := g.store.CreateReport(job.ID, job.Cutoff, len(ads)); err != nil {
		return nil, fmt.Errorf("creating report %s: %w", job.ID, err)
	}
	return job, nil
}

// Run executes a created job and stores the result. Any error marks the job
// failed.
func (g *Generator) Run(ctx context.Context, job *Job) (*Output, error) {
	out, err := g.run(ctx, job)
	if err != nil {
		g.logger.Error("Report failed", zap.String("report_id", job.ID), zap.Error(err))
		if serr := g.store.SetReportStatus(job.ID, StatusFailed, err.Error()); serr != nil {
			g.logger.Error("Could not mark report failed", zap.String("report_id", job.ID), zap.Error(serr))
		}
		return nil, err
	}
	return out, nil
}

// Generate creates and runs a job synchronously.
func (g *Generator) Generate(ctx context.Context, req Request) (*Output, error) {
	job, err := g.Create(req)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx, job)
}

func (g *Generator) run(ctx context.Context, job *Job) (*Output, error) {
	if err := g.store.SetReportStatus(job.ID, StatusRunning, ""); err != nil {
		return nil, fmt.Errorf("marking report running: %w", err)
	}

	g.logger.Info("Step 1/3: Analyzing ads", zap.String("report_id", job.ID), zap.Int("ads", len(job.ads)))
	analyzed, stats := g.processor.ProcessBatch(ctx, job.ads, job.Cutoff, func(done, total int) {
		if err := g.store.SetReportProgress(job.ID, done, total); err != nil {
			g.logger.Warn("Could not update progress", zap.String("report_id", job.ID), zap.Error(err))
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.logger.Info("Step 2/3: Aggregating", zap.String("report_id", job.ID))
	out := &Output{
		ID:            job.ID,
		SchemaVersion: taxonomy.SchemaVersion,
		GeneratedAt:   g.now().UTC(),
		Cutoff:        job.Cutoff,
		Ads:           analyzed,
		Aggregate:     aggregate.Aggregate(analyzed),
		Enriched:      stats.Enriched,
		EnrichFailed:  stats.Failed,
	}

	if job.Request.CompareVOC {
		g.logger.Info("Step 3/3: Comparing with VOC themes", zap.String("report_id", job.ID))
		cmp, err := g.compare(job.ads)
		if err != nil {
			return nil, err
		}
		out.Comparison = cmp
	} else {
		g.logger.Info("Step 3/3: VOC comparison not requested", zap.String("report_id", job.ID))
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	if err := g.store.CompleteReport(job.ID, data); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}
	g.logger.Info("Report complete",
		zap.String("report_id", job.ID),
		zap.Int("ads", len(analyzed)),
		zap.Int("enriched", stats.Enriched),
	)
	return out, nil
}

func (g *Generator) compare(ads []creative.Ad) (*voc.Result, error) {
	if g.corpus == nil {
		return nil, errors.New("VOC comparison requested but no corpus source configured")
	}
	corpus, err := g.corpus.LoadCorpus()
	if err != nil {
		return nil, fmt.Errorf("loading VOC corpus: %w", err)
	}
	res, err := voc.Compare(voc.BuildThemes(corpus, g.vocSampleSize), ads)
	if err != nil {
		return nil, fmt.Errorf("comparing VOC themes: %w", err)
	}
	return &res, nil
}
