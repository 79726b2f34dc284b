// Package evaluation implements the differential evaluator: incremental,
// amortized O(1) scoring of a branch's reasoning quality from the store's
// event log.
package evaluation

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"reasongraph-engine/domain/core/valueobjects"
	"reasongraph-engine/domain/events"
	"reasongraph-engine/domain/services"
	"reasongraph-engine/infrastructure/config"
)

// Result holds the six quality metrics for a branch plus the derived
// overall score. Values live in [0,1]; contradiction and redundancy are
// penalties (higher is worse).
type Result struct {
	Coherence          float64   `json:"coherence"`
	Contradiction      float64   `json:"contradiction"`
	InformationGain    float64   `json:"information_gain"`
	Redundancy         float64   `json:"redundancy"`
	GoalAlignment      float64   `json:"goal_alignment"`
	ConfidenceGradient float64   `json:"confidence_gradient"`
	OverallScore       float64   `json:"overall_score"`
	ThoughtsEvaluated  int       `json:"thoughts_evaluated"`
	// Stale is set when a provider failure forced the evaluator to fall
	// back to the previous cached state
	Stale       bool      `json:"stale,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// EventSource is the slice of the store the evaluator depends on.
type EventSource interface {
	GetEventsSince(cursor uint64) []events.Event
}

// windowEntry caches the per-thought features needed to score newcomers
// against the backward window.
type windowEntry struct {
	content    string
	confidence float64
	terms      map[string]bool
	concepts   []string
	negated    bool
	vec        []float32
}

// branchState is the cached incremental evaluation of one branch.
type branchState struct {
	mu sync.Mutex

	coherence     float64
	contradiction float64
	infoGain      float64
	redundancy    float64
	count         int

	window      []windowEntry
	confidences []float64
	stale       bool
}

// Evaluator consumes the store's event log and maintains per-branch
// incremental quality metrics. Concurrent Evaluate calls are safe: event
// consumption happens under a single cursor lock that partitions new
// events into per-branch queues, and each branch's queue drains under its
// own lock, so events are neither double-counted nor skipped.
type Evaluator struct {
	source   EventSource
	provider services.EmbeddingProvider
	analyzer services.TextAnalyzer
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	cursor   uint64
	pending  map[valueobjects.BranchID][]events.Event
	branches map[valueobjects.BranchID]*branchState
	goal     string
	goalVec  []float32
}

// New creates an evaluator over the given event source. provider may be
// nil; similarity then falls back to term overlap.
func New(source EventSource, provider services.EmbeddingProvider, cfg *config.Config, logger *zap.Logger) *Evaluator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		source:   source,
		provider: provider,
		analyzer: services.NewDefaultTextAnalyzer(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[valueobjects.BranchID][]events.Event),
		branches: make(map[valueobjects.BranchID]*branchState),
	}
}

// SetGoal replaces the evaluation goal. Goal changes cannot be folded
// incrementally, so the entire cache is invalidated and the cursor rewinds
// to 0 for a full replay on the next Evaluate.
func (e *Evaluator) SetGoal(ctx context.Context, goal string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if goal == e.goal {
		return
	}
	e.goal = goal
	e.goalVec = nil
	e.cursor = 0
	e.pending = make(map[valueobjects.BranchID][]events.Event)
	e.branches = make(map[valueobjects.BranchID]*branchState)

	if e.provider != nil && goal != "" {
		embedCtx, cancel := context.WithTimeout(ctx, e.cfg.EmbeddingTimeout)
		defer cancel()
		if vec, err := e.provider.Embed(embedCtx, goal); err == nil {
			e.goalVec = vec
		} else {
			e.logger.Warn("Goal embedding failed, using term overlap", zap.Error(err))
		}
	}

	e.logger.Info("Evaluation goal changed, cache invalidated", zap.String("goal", goal))
}

// Goal returns the active evaluation goal.
func (e *Evaluator) Goal() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goal
}

// Evaluate returns the current quality metrics for a branch, folding in
// any events appended since the last call. Cost is amortized O(1) per new
// thought. An empty, never-evaluated branch yields neutral defaults.
//
// The branch lock is acquired before the pending queue is drained, so
// concurrent calls on the same branch fold events strictly in log order
// and the cached metrics always match a from-scratch recompute.
func (e *Evaluator) Evaluate(ctx context.Context, branchID valueobjects.BranchID) Result {
	for {
		state := e.branchState(branchID)
		state.mu.Lock()

		queue, ok := e.takePending(branchID, state)
		if !ok {
			// SetGoal swapped the cache out from under us; start over
			// on the fresh state
			state.mu.Unlock()
			continue
		}

		if len(queue) > 0 {
			failed := false
			for _, event := range queue {
				if !e.applyThought(ctx, state, event.Thought) {
					failed = true
				}
			}
			state.stale = failed
		}

		result := e.snapshot(ctx, state)
		state.mu.Unlock()
		return result
	}
}

// branchState returns (creating if needed) the cached state for a branch.
func (e *Evaluator) branchState(branchID valueobjects.BranchID) *branchState {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.branches[branchID]
	if !ok {
		state = &branchState{}
		e.branches[branchID] = state
	}
	return state
}

// takePending advances the global cursor, partitions newly fetched events
// into per-branch queues, and pops the queue for the requested branch.
// Partitioning everything (not just the requested branch) means one
// branch's evaluation never discards another branch's events. Callers must
// hold state.mu; ok is false when state no longer backs the branch.
func (e *Evaluator) takePending(branchID valueobjects.BranchID, state *branchState) ([]events.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.branches[branchID] != state {
		return nil, false
	}

	fetched := e.source.GetEventsSince(e.cursor)
	for _, event := range fetched {
		if event.Index >= e.cursor {
			e.cursor = event.Index + 1
		}
		if event.Kind == events.TypeThoughtAdded && event.Thought != nil {
			e.pending[event.BranchID] = append(e.pending[event.BranchID], event)
		}
	}

	queue := e.pending[branchID]
	delete(e.pending, branchID)
	return queue, true
}

// applyThought folds one thought_added event into the cached metrics using
// only the bounded backward window. It reports false when the embedding
// provider failed and term fallbacks were used for the delta.
func (e *Evaluator) applyThought(ctx context.Context, state *branchState, payload *events.ThoughtPayload) bool {
	ok := true
	entry := windowEntry{
		content:    payload.Content,
		confidence: payload.Confidence,
		terms:      e.analyzer.TokenizeWords(payload.Content),
		concepts:   e.analyzer.ExtractConcepts(payload.Content),
		negated:    e.analyzer.HasNegation(payload.Content),
	}

	if e.provider != nil {
		embedCtx, cancel := context.WithTimeout(ctx, e.cfg.EmbeddingTimeout)
		vec, err := e.provider.Embed(embedCtx, payload.Content)
		cancel()
		if err != nil {
			// Fail closed: keep going on term features, flag the fold
			ok = false
			e.logger.Warn("Embedding failed during evaluation, using term fallback", zap.Error(err))
		} else {
			entry.vec = vec
		}
	}

	window := state.window
	var coherenceDelta, contradictionDelta, infoGainDelta, redundancyDelta float64

	if len(window) == 0 {
		// First thought: nothing to cohere with, everything is new
		coherenceDelta = 1.0
		infoGainDelta = 1.0
	} else {
		var simSum float64
		flagged := 0
		for _, prev := range window {
			sim := e.similarity(entry, prev)
			simSum += sim
			if sim > e.cfg.SimilarityThreshold {
				redundancyDelta = 1.0
			}
			if e.contradicts(entry, prev) {
				flagged++
			}
		}
		coherenceDelta = simSum / float64(len(window))
		contradictionDelta = float64(flagged) / float64(len(window))

		newTerms := 0
		for term := range entry.terms {
			known := false
			for _, prev := range window {
				if prev.terms[term] {
					known = true
					break
				}
			}
			if !known {
				newTerms++
			}
		}
		if len(entry.terms) > 0 {
			infoGainDelta = float64(newTerms) / float64(len(entry.terms))
		}
	}

	// Incremental mean: new = old*(total-1)/total + delta/total.
	// Reproduces the from-scratch average exactly.
	total := float64(state.count + 1)
	state.coherence = state.coherence*(total-1)/total + coherenceDelta/total
	state.contradiction = state.contradiction*(total-1)/total + contradictionDelta/total
	state.infoGain = state.infoGain*(total-1)/total + infoGainDelta/total
	state.redundancy = state.redundancy*(total-1)/total + redundancyDelta/total
	state.count++

	state.window = append(state.window, entry)
	if len(state.window) > e.cfg.WindowSize {
		state.window = state.window[len(state.window)-e.cfg.WindowSize:]
	}
	state.confidences = append(state.confidences, payload.Confidence)
	if len(state.confidences) > gradientWindow {
		state.confidences = state.confidences[len(state.confidences)-gradientWindow:]
	}
	return ok
}

// gradientWindow is the fixed lookback for the confidence-gradient metric.
const gradientWindow = 5

// snapshot assembles a Result from cached folds plus the two metrics that
// are recomputed fresh on every call.
func (e *Evaluator) snapshot(ctx context.Context, state *branchState) Result {
	result := Result{
		ThoughtsEvaluated: state.count,
		Stale:             state.stale,
		EvaluatedAt:       e.now(),
	}

	if state.count == 0 {
		// Neutral defaults for an empty branch
		result.Coherence = 1.0
		result.InformationGain = 1.0
		result.GoalAlignment = 0.5
		result.ConfidenceGradient = 0.5
		result.OverallScore = e.overall(result)
		return result
	}

	result.Coherence = state.coherence
	result.Contradiction = state.contradiction
	result.InformationGain = state.infoGain
	result.Redundancy = state.redundancy
	result.ConfidenceGradient = confidenceGradient(state.confidences)
	result.GoalAlignment = e.goalAlignment(ctx, state)
	result.OverallScore = e.overall(result)
	return result
}

func (e *Evaluator) overall(r Result) float64 {
	w := e.cfg.Weights
	return w.Coherence*r.Coherence +
		w.Contradiction*(1-r.Contradiction) +
		w.InformationGain*r.InformationGain +
		w.Redundancy*(1-r.Redundancy) +
		w.GoalAlignment*r.GoalAlignment +
		w.ConfidenceGradient*r.ConfidenceGradient
}

// similarity scores two window entries: embedding cosine when both vectors
// exist, term-overlap Jaccard otherwise.
func (e *Evaluator) similarity(a, b windowEntry) float64 {
	if e.provider != nil && len(a.vec) > 0 && len(b.vec) > 0 {
		return float64(e.provider.CosineSimilarity(a.vec, b.vec))
	}
	if len(a.terms) == 0 || len(b.terms) == 0 {
		return 0
	}
	intersection := 0
	union := make(map[string]bool, len(a.terms)+len(b.terms))
	for t := range a.terms {
		union[t] = true
		if b.terms[t] {
			intersection++
		}
	}
	for t := range b.terms {
		union[t] = true
	}
	return float64(intersection) / float64(len(union))
}

// contradicts is the negation-term heuristic: opposite polarity plus at
// least one shared concept.
func (e *Evaluator) contradicts(a, b windowEntry) bool {
	if a.negated == b.negated {
		return false
	}
	set := make(map[string]bool, len(a.concepts))
	for _, c := range a.concepts {
		set[c] = true
	}
	for _, c := range b.concepts {
		if set[c] {
			return true
		}
	}
	return false
}

// goalAlignment measures how well recent thoughts track the active goal:
// embedding cosine against the goal vector when available, otherwise the
// fraction of goal terms present in the window's vocabulary. No goal
// scores a neutral 0.5.
func (e *Evaluator) goalAlignment(ctx context.Context, state *branchState) float64 {
	e.mu.Lock()
	goal := e.goal
	goalVec := e.goalVec
	e.mu.Unlock()

	if goal == "" || len(state.window) == 0 {
		return 0.5
	}

	if e.provider != nil && len(goalVec) > 0 {
		var sum float64
		counted := 0
		for _, entry := range state.window {
			if len(entry.vec) > 0 {
				sim := float64(e.provider.CosineSimilarity(entry.vec, goalVec))
				sum += (sim + 1) / 2
				counted++
			}
		}
		if counted > 0 {
			return sum / float64(counted)
		}
	}

	goalTerms := e.analyzer.TokenizeWords(goal)
	if len(goalTerms) == 0 {
		return 0.5
	}
	vocabulary := make(map[string]bool)
	for _, entry := range state.window {
		for t := range entry.terms {
			vocabulary[t] = true
		}
	}
	matched := 0
	for t := range goalTerms {
		if vocabulary[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(goalTerms))
}

// confidenceGradient fits a least-squares line through the last few
// confidences and normalizes the slope into [0,1]: 0.5 is flat, above is
// rising confidence.
func confidenceGradient(confidences []float64) float64 {
	n := len(confidences)
	if n < 2 {
		return 0.5
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range confidences {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := float64(n)*sumXX - sumX*sumX
	if denom == 0 {
		return 0.5
	}
	slope := (float64(n)*sumXY - sumX*sumY) / denom

	// Slope of a [0,1] series over gradientWindow points lies in [-1,1]
	// after scaling; clamp and shift into [0,1]
	normalized := (slope + 1) / 2
	return math.Max(0, math.Min(1, normalized))
}
