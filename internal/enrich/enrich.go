// Package enrich asks a text-generation provider to classify ad creatives
// and normalizes the answer against the taxonomy.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/llm"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
)

// Defaults for LLMEnricher.
const (
	DefaultPrimaryTextCap = 1500
	DefaultMaxTokens      = 1200
)

var (
	// ErrNoProvider means no text-generation provider is configured.
	ErrNoProvider = errors.New("no LLM provider configured")
	// ErrGenerate wraps provider transport or API failures.
	ErrGenerate = errors.New("LLM generation failed")
	// ErrUnparseable means the model did not return a JSON object.
	ErrUnparseable = errors.New("LLM response is not a JSON object")
)

// Enricher classifies a single ad. A nil classification with a non-nil
// error means "no LLM data for this ad"; callers continue without it.
type Enricher interface {
	Classify(ctx context.Context, ad creative.Ad) (*creative.LLMClassification, error)
}

// LLMEnricher is the Enricher backed by an llm.Provider.
type LLMEnricher struct {
	provider       llm.Provider
	registry       *taxonomy.Registry
	system         string
	primaryTextCap int
	maxTokens      int
	logger         *zap.Logger
}

// Option customizes an LLMEnricher.
type Option func(*LLMEnricher)

// WithPrimaryTextCap sets the rune cap applied to primary text.
func WithPrimaryTextCap(n int) Option {
	return func(e *LLMEnricher) {
		if n > 0 {
			e.primaryTextCap = n
		}
	}
}

// WithMaxTokens sets the completion token budget.
func WithMaxTokens(n int) Option {
	return func(e *LLMEnricher) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithRegistry replaces the default taxonomy.
func WithRegistry(r *taxonomy.Registry) Option {
	return func(e *LLMEnricher) {
		if r != nil {
			e.registry = r
		}
	}
}

// NewLLMEnricher creates an enricher. provider may be nil, in which case
// every call returns ErrNoProvider.
func NewLLMEnricher(provider llm.Provider, logger *zap.Logger, opts ...Option) *LLMEnricher {
	e := &LLMEnricher{
		provider:       provider,
		registry:       taxonomy.Default,
		primaryTextCap: DefaultPrimaryTextCap,
		maxTokens:      DefaultMaxTokens,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.system = SystemInstruction(e.registry)
	return e
}

// Classify builds the payload, calls the provider and normalizes the reply.
func (e *LLMEnricher) Classify(ctx context.Context, ad creative.Ad) (*creative.LLMClassification, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}

	prompt, err := BuildPayload(ad, e.primaryTextCap)
	if err != nil {
		return nil, err
	}

	responseText, err := e.provider.Generate(ctx, e.system, prompt, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	parsed, err := llm.ParseJSONResponse(responseText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	result := Normalize(e.registry, parsed)
	e.logger.Debug("Classified ad",
		zap.String("ad_id", ad.ID),
		zap.String("hook_type", result.HookType),
		zap.String("funnel_stage", result.FunnelStage),
	)
	return result, nil
}
