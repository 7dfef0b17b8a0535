package qa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/machine-telemetry-qa-platform/internal/models"
)

// SnapshotSearcher executes a compiled query against the telemetry store and
// returns matching snapshots most-recent-first. Implementations should fail
// soft on transient errors where possible; any error returned here is
// absorbed by the pipeline and treated as "no data".
type SnapshotSearcher interface {
	Search(ctx context.Context, query models.CompiledQuery) ([]models.MonitoringSnapshot, error)
}

// Generator produces a best-effort free-text paraphrase of a structured
// answer. It may time out or fail; the pipeline never depends on it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PipelineConfig bounds the pipeline's two blocking collaborator calls.
type PipelineConfig struct {
	// SearchTimeout caps the snapshot store call; expiry degrades to zero
	// records rather than an error
	SearchTimeout time.Duration

	// GenerateTimeout caps the generative enrichment call; expiry keeps the
	// structured text unchanged
	GenerateTimeout time.Duration
}

// DefaultPipelineConfig returns the bounds used when none are configured.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SearchTimeout:   5 * time.Second,
		GenerateTimeout: 10 * time.Second,
	}
}

// Pipeline orchestrates question answering: resolve a time window, classify
// the intent, compile and run the store query, format the structured answer,
// and optionally enrich it. The pipeline is stateless and reentrant; every
// per-request value is created inside Process and nothing is shared between
// concurrent calls.
type Pipeline struct {
	resolver   *TimeRangeResolver
	classifier *IntentClassifier
	compiler   *QueryCompiler
	searcher   SnapshotSearcher
	generator  Generator
	config     PipelineConfig
}

// NewPipeline wires the engine together. generator may be nil, in which case
// no answer is ever enriched.
func NewPipeline(resolver *TimeRangeResolver, classifier *IntentClassifier, compiler *QueryCompiler,
	searcher SnapshotSearcher, generator Generator, config PipelineConfig) *Pipeline {
	if config.SearchTimeout <= 0 {
		config.SearchTimeout = DefaultPipelineConfig().SearchTimeout
	}
	if config.GenerateTimeout <= 0 {
		config.GenerateTimeout = DefaultPipelineConfig().GenerateTimeout
	}
	return &Pipeline{
		resolver:   resolver,
		classifier: classifier,
		compiler:   compiler,
		searcher:   searcher,
		generator:  generator,
		config:     config,
	}
}

// Process answers one question. now is captured by the caller exactly once
// per request so every downstream computation sees a consistent clock.
// Process never fails: store errors collapse to zero records and enrichment
// errors collapse to the structured text, so the caller always receives a
// well-formed Answer.
func (p *Pipeline) Process(ctx context.Context, question string, now time.Time) models.Answer {
	// Window resolution and intent classification are independent pure
	// functions of the question text.
	window := p.resolver.Resolve(question, now)
	intent := p.classifier.Classify(question)

	query := p.compiler.Compile(intent, window)

	records := p.search(ctx, query)
	structured := FormatResponse(intent, records, window)
	natural := p.enrich(ctx, question, intent, structured)

	return models.Answer{
		ID:             uuid.New().String(),
		Query:          question,
		Intent:         intent,
		TimeWindow:     window,
		RecordCount:    len(records),
		StructuredText: structured,
		NaturalText:    natural,
		Timestamp:      time.Now(),
	}
}

// search runs the store query under a bounded timeout. A failed or timed-out
// search yields zero records; the store layer is responsible for logging the
// degradation.
func (p *Pipeline) search(ctx context.Context, query models.CompiledQuery) []models.MonitoringSnapshot {
	searchCtx, cancel := context.WithTimeout(ctx, p.config.SearchTimeout)
	defer cancel()

	records, err := p.searcher.Search(searchCtx, query)
	if err != nil {
		return nil
	}
	return records
}

// enrich paraphrases the structured text for low-confidence answers. Only
// general_status answers are enriched; the deterministic categories return
// their structured text verbatim to stay fast and reproducible.
func (p *Pipeline) enrich(ctx context.Context, question string, intent models.Intent, structured string) string {
	if p.generator == nil || intent.Category != models.IntentGeneralStatus {
		return structured
	}

	genCtx, cancel := context.WithTimeout(ctx, p.config.GenerateTimeout)
	defer cancel()

	prompt := buildEnrichmentPrompt(question, structured)
	text, err := p.generator.Generate(genCtx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		return structured
	}
	return strings.TrimSpace(text)
}

func buildEnrichmentPrompt(question, structured string) string {
	return fmt.Sprintf("User question: %s\nFindings: %s\nAnswer:", question, structured)
}
