// Package reasoning wires the store and the evaluator into one engine
// facade with logging, tracing, metrics, and uniform error outcomes.
package reasoning

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"reasongraph-engine/domain/core/entities"
	"reasongraph-engine/domain/core/valueobjects"
	"reasongraph-engine/domain/events"
	"reasongraph-engine/domain/services"
	"reasongraph-engine/infrastructure/config"
	"reasongraph-engine/infrastructure/observability"
	"reasongraph-engine/internal/evaluation"
	"reasongraph-engine/internal/store"
	"reasongraph-engine/pkg/clock"
	pkgerrors "reasongraph-engine/pkg/errors"
)

const tracerName = "reasongraph-engine/reasoning"

// Engine is the top-level service surface. Every operation delegates to
// the store or the evaluator and records metrics; errors out of mutating
// operations can be flattened with pkg/errors.OutcomeFrom at the boundary.
type Engine struct {
	store     *store.Store
	evaluator *evaluation.Evaluator
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Options carries the optional collaborators of an Engine. Zero values get
// safe defaults.
type Options struct {
	Config   *config.Config
	Provider services.EmbeddingProvider
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *observability.Collector
}

// NewEngine builds an engine with a fresh store.
func NewEngine(opts Options) *Engine {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewCollector("reasongraph")
	}

	s := store.New(opts.Config, opts.Provider, opts.Clock, opts.Logger)
	return &Engine{
		store:     s,
		evaluator: evaluation.New(s, opts.Provider, opts.Config, opts.Logger),
		metrics:   opts.Metrics,
		tracer:    otel.Tracer(tracerName),
		logger:    opts.Logger,
	}
}

// NewEngineFromLog rebuilds an engine from an ordered event log, the
// recovery path after a restart.
func NewEngineFromLog(ctx context.Context, opts Options, log []events.Event) (*Engine, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewCollector("reasongraph")
	}

	s, err := store.Replay(ctx, opts.Config, opts.Provider, opts.Clock, opts.Logger, log)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:     s,
		evaluator: evaluation.New(s, opts.Provider, opts.Config, opts.Logger),
		metrics:   opts.Metrics,
		tracer:    otel.Tracer(tracerName),
		logger:    opts.Logger,
	}, nil
}

// AddThought stores and analyzes one thought.
func (e *Engine) AddThought(ctx context.Context, input store.AddThoughtInput) (*store.AddThoughtResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.AddThought")
	defer span.End()

	result, err := e.store.AddThought(ctx, input)
	if err != nil {
		if pkgerrors.IsValidation(err) || pkgerrors.IsNotFound(err) {
			e.metrics.ValidationErrors.Inc()
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("thought.id", result.ThoughtID.String()),
		attribute.String("branch.id", result.BranchID.String()),
		attribute.Bool("thought.duplicate", result.Duplicate),
	)
	if result.Duplicate {
		return result, nil
	}

	e.metrics.ThoughtsAdded.Inc()
	e.metrics.EventsAppended.Inc()
	if result.BranchCreated {
		e.metrics.BranchesCreated.Inc()
		e.metrics.EventsAppended.Inc()
	}
	e.metrics.CrossRefsAdded.Add(float64(len(input.CrossRefs)))
	e.metrics.EventsAppended.Add(float64(len(input.CrossRefs)))
	if result.Contradiction.PotentialContradiction {
		e.metrics.ContradictionCandidates.Inc()
	}
	e.observeBloomFill()
	return result, nil
}

// CreateBranch creates a branch with a generated id.
func (e *Engine) CreateBranch(ctx context.Context, parentID string) (valueobjects.BranchID, error) {
	_, span := e.tracer.Start(ctx, "engine.CreateBranch")
	defer span.End()

	id, err := e.store.CreateBranch(parentID)
	if err != nil {
		e.metrics.ValidationErrors.Inc()
		return "", err
	}
	e.metrics.BranchesCreated.Inc()
	e.metrics.EventsAppended.Inc()
	span.SetAttributes(attribute.String("branch.id", id.String()))
	return id, nil
}

// CreateBranchWithID creates a branch with a caller-chosen id.
func (e *Engine) CreateBranchWithID(ctx context.Context, id, parentID string) (valueobjects.BranchID, error) {
	_, span := e.tracer.Start(ctx, "engine.CreateBranchWithID")
	defer span.End()

	branchID, err := e.store.CreateBranchWithID(id, parentID)
	if err != nil {
		e.metrics.ValidationErrors.Inc()
		return "", err
	}
	e.metrics.BranchesCreated.Inc()
	e.metrics.EventsAppended.Inc()
	return branchID, nil
}

// SetBranchState transitions a branch's lifecycle state.
func (e *Engine) SetBranchState(id string, state entities.BranchState) error {
	return e.store.SetBranchState(id, state)
}

// GetThought returns a stored thought.
func (e *Engine) GetThought(id valueobjects.ThoughtID) (*entities.Thought, error) {
	return e.store.GetThought(id)
}

// GetBranch returns a snapshot of one branch.
func (e *Engine) GetBranch(id string) (*entities.Branch, error) {
	return e.store.GetBranch(id)
}

// GetAllBranches returns snapshots of every branch.
func (e *Engine) GetAllBranches() []*entities.Branch {
	return e.store.GetAllBranches()
}

// GetRecentThoughts returns the last n thoughts of a branch.
func (e *Engine) GetRecentThoughts(branchID string, n int) ([]*entities.Thought, error) {
	return e.store.GetRecentThoughts(branchID, n)
}

// GetEventsSince returns all events with index >= cursor in order.
func (e *Engine) GetEventsSince(cursor uint64) []events.Event {
	return e.store.GetEventsSince(cursor)
}

// BreadthFirstSearch walks the branch hierarchy from a start branch.
func (e *Engine) BreadthFirstSearch(startBranch string, maxDepth int) (map[valueobjects.BranchID]struct{}, error) {
	return e.store.BreadthFirstSearch(startBranch, maxDepth)
}

// SearchThoughts matches stored thoughts against a case-insensitive
// regular expression.
func (e *Engine) SearchThoughts(pattern string) ([]store.SearchResult, error) {
	return e.store.SearchThoughts(pattern)
}

// Evaluate returns the incremental quality metrics for a branch.
func (e *Engine) Evaluate(ctx context.Context, branchID string) (evaluation.Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Evaluate")
	defer span.End()

	id, err := valueobjects.ParseBranchID(branchID)
	if err != nil {
		e.metrics.Evaluations.WithLabelValues("invalid").Inc()
		return evaluation.Result{}, err
	}

	start := time.Now()
	result := e.evaluator.Evaluate(ctx, id)
	e.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	status := "ok"
	if result.Stale {
		status = "stale"
		e.metrics.StaleResults.Inc()
	}
	e.metrics.Evaluations.WithLabelValues(status).Inc()
	span.SetAttributes(
		attribute.String("branch.id", branchID),
		attribute.Float64("evaluation.overall_score", result.OverallScore),
		attribute.Bool("evaluation.stale", result.Stale),
	)
	return result, nil
}

// SetGoal replaces the evaluation goal, invalidating the evaluator cache.
func (e *Engine) SetGoal(ctx context.Context, goal string) {
	ctx, span := e.tracer.Start(ctx, "engine.SetGoal")
	defer span.End()
	e.evaluator.SetGoal(ctx, goal)
}

// Goal returns the active evaluation goal.
func (e *Engine) Goal() string {
	return e.evaluator.Goal()
}

// CalculateSimilarity computes the similarity between two stored thoughts.
func (e *Engine) CalculateSimilarity(ctx context.Context, id1, id2 valueobjects.ThoughtID) (float64, error) {
	return e.store.CalculateSimilarity(ctx, id1, id2)
}

// MostSimilar returns the top-k most similar thoughts recorded for id.
func (e *Engine) MostSimilar(id valueobjects.ThoughtID, k int) []services.SimilarityEntry {
	return e.store.MostSimilar(id, k)
}

// Clusters returns similarity clusters at the given minimum similarity.
func (e *Engine) Clusters(minSimilarity float64) [][]valueobjects.ThoughtID {
	return e.store.Clusters(minSimilarity)
}

// DetectCircularReasoning runs all cycle detectors over the accumulated
// dependency graph.
func (e *Engine) DetectCircularReasoning(ctx context.Context) []services.CircularPattern {
	_, span := e.tracer.Start(ctx, "engine.DetectCircularReasoning")
	defer span.End()

	patterns := e.store.DetectCircularReasoning()
	for _, p := range patterns {
		e.metrics.CircularPatternsFound.WithLabelValues(string(p.Type)).Inc()
	}
	span.SetAttributes(attribute.Int("patterns.count", len(patterns)))
	return patterns
}

// CheckContradiction runs the pre-filter on arbitrary text without storing
// a thought.
func (e *Engine) CheckContradiction(text string) services.ContradictionCheck {
	check := e.store.CheckContradiction(text)
	if check.PotentialContradiction {
		e.metrics.ContradictionCandidates.Inc()
	}
	return check
}

// GetStatistics aggregates counters across all engine components.
func (e *Engine) GetStatistics() store.Statistics {
	return e.store.GetStatistics()
}

// observeBloomFill refreshes the bloom fill-ratio gauges from filter stats.
func (e *Engine) observeBloomFill() {
	stats := e.store.GetStatistics().Contradiction
	e.metrics.BloomFillRatio.WithLabelValues("positive_assertions").Set(stats.PositiveAssertions.FillRatio)
	e.metrics.BloomFillRatio.WithLabelValues("negative_assertions").Set(stats.NegativeAssertions.FillRatio)
	e.metrics.BloomFillRatio.WithLabelValues("concept_pairs").Set(stats.ConceptPairs.FillRatio)
}
