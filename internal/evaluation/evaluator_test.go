package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasongraph-engine/domain/services"
	"reasongraph-engine/infrastructure/config"
	"reasongraph-engine/infrastructure/embedding"
	"reasongraph-engine/internal/store"
)

func newFixture(t *testing.T) (*store.Store, *Evaluator) {
	t.Helper()
	cfg := config.DefaultConfig()
	s := store.New(cfg, nil, nil, nil)
	return s, New(s, nil, cfg, nil)
}

func addThought(t *testing.T, s *store.Store, branch, content string, confidence float64) {
	t.Helper()
	_, err := s.AddThought(context.Background(), store.AddThoughtInput{
		Content:    content,
		BranchID:   branch,
		Confidence: &confidence,
	})
	require.NoError(t, err)
}

func TestEvaluate_EmptyBranch(t *testing.T) {
	_, eval := newFixture(t)

	result := eval.Evaluate(context.Background(), "main")

	assert.Equal(t, 0, result.ThoughtsEvaluated)
	assert.Equal(t, 1.0, result.Coherence)
	assert.Equal(t, 0.0, result.Contradiction)
	assert.Equal(t, 1.0, result.InformationGain)
	assert.Equal(t, 0.0, result.Redundancy)
	assert.Equal(t, 0.5, result.GoalAlignment)
	assert.Equal(t, 0.5, result.ConfidenceGradient)
}

func TestEvaluate_SingleThought(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "Solar panels convert sunlight into electricity.", 0.8)

	result := eval.Evaluate(context.Background(), "main")

	assert.Equal(t, 1, result.ThoughtsEvaluated)
	assert.Equal(t, 1.0, result.Coherence)
	assert.Equal(t, 0.0, result.Contradiction)
	assert.Equal(t, 1.0, result.InformationGain)
	assert.Equal(t, 0.0, result.Redundancy)
	assert.False(t, result.Stale)
}

func TestEvaluate_ContradictionRaisesPenalty(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "Cats are mammals.", 0.9)
	addThought(t, s, "main", "Cats are not mammals.", 0.5)

	result := eval.Evaluate(context.Background(), "main")

	assert.Equal(t, 2, result.ThoughtsEvaluated)
	assert.Greater(t, result.Contradiction, 0.0)
}

func TestEvaluate_RedundancyOnNearDuplicate(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "The northern harbor needs a deeper channel for cargo ships.", 0.8)
	addThought(t, s, "main", "The northern harbor needs a deeper channel for cargo vessels.", 0.8)

	result := eval.Evaluate(context.Background(), "main")

	assert.Greater(t, result.Redundancy, 0.0)
	assert.Less(t, result.InformationGain, 1.0)
}

func TestEvaluate_InformationGainDropsForOldTerms(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "Glaciers store freshwater in mountain regions.", 0.8)
	addThought(t, s, "main", "Glaciers shrink when mountain temperatures rise.", 0.8)

	result := eval.Evaluate(context.Background(), "main")

	// Second thought reuses "glaciers" and "mountain", so gain < 1
	assert.Less(t, result.InformationGain, 1.0)
	assert.Greater(t, result.InformationGain, 0.0)
}

func TestEvaluate_IncrementalMatchesBatch(t *testing.T) {
	contents := []string{
		"Urban trees reduce street level air pollution.",
		"Street trees also lower summer pavement temperatures.",
		"Lower temperatures reduce energy demand for cooling.",
		"Reduced cooling demand cuts urban electricity costs.",
		"Cheaper electricity frees municipal budget for parks.",
	}

	cfg := config.DefaultConfig()
	incStore := store.New(cfg, nil, nil, nil)
	incEval := New(incStore, nil, cfg, nil)

	var incremental Result
	for i, content := range contents {
		addThought(t, incStore, "main", content, 0.5+0.1*float64(i%4))
		incremental = incEval.Evaluate(context.Background(), "main")
	}

	batchStore := store.New(cfg, nil, nil, nil)
	batchEval := New(batchStore, nil, cfg, nil)
	for i, content := range contents {
		addThought(t, batchStore, "main", content, 0.5+0.1*float64(i%4))
	}
	batch := batchEval.Evaluate(context.Background(), "main")

	assert.InDelta(t, batch.Coherence, incremental.Coherence, 1e-9)
	assert.InDelta(t, batch.Contradiction, incremental.Contradiction, 1e-9)
	assert.InDelta(t, batch.InformationGain, incremental.InformationGain, 1e-9)
	assert.InDelta(t, batch.Redundancy, incremental.Redundancy, 1e-9)
	assert.InDelta(t, batch.ConfidenceGradient, incremental.ConfidenceGradient, 1e-9)
	assert.InDelta(t, batch.OverallScore, incremental.OverallScore, 1e-9)
	assert.Equal(t, batch.ThoughtsEvaluated, incremental.ThoughtsEvaluated)
}

func TestEvaluate_ConcurrentCallsMatchBatch(t *testing.T) {
	contents := make([]string, 12)
	for i := range contents {
		contents[i] = fmt.Sprintf("Reading number %d from the coastal tide gauge network.", i)
	}

	cfg := config.DefaultConfig()
	s := store.New(cfg, nil, nil, nil)
	eval := New(s, nil, cfg, nil)

	// Writer appends while several evaluators race; events must still
	// fold in log order
	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, content := range contents {
			conf := 0.4 + 0.04*float64(i)
			_, err := s.AddThought(context.Background(), store.AddThoughtInput{
				Content:    content,
				BranchID:   "main",
				Confidence: &conf,
			})
			if err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				eval.Evaluate(context.Background(), "main")
			}
		}()
	}
	wg.Wait()
	require.NoError(t, <-errCh)
	final := eval.Evaluate(context.Background(), "main")

	batchStore := store.New(cfg, nil, nil, nil)
	batchEval := New(batchStore, nil, cfg, nil)
	for i, content := range contents {
		addThought(t, batchStore, "main", content, 0.4+0.04*float64(i))
	}
	batch := batchEval.Evaluate(context.Background(), "main")

	assert.Equal(t, batch.ThoughtsEvaluated, final.ThoughtsEvaluated)
	assert.InDelta(t, batch.Coherence, final.Coherence, 1e-9)
	assert.InDelta(t, batch.Contradiction, final.Contradiction, 1e-9)
	assert.InDelta(t, batch.InformationGain, final.InformationGain, 1e-9)
	assert.InDelta(t, batch.Redundancy, final.Redundancy, 1e-9)
	assert.InDelta(t, batch.ConfidenceGradient, final.ConfidenceGradient, 1e-9)
	assert.InDelta(t, batch.OverallScore, final.OverallScore, 1e-9)
}

// flakyProvider fails a fixed number of Embed calls before recovering.
type flakyProvider struct {
	mu       sync.Mutex
	failures int
}

func (p *flakyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return nil, errors.New("embedding backend unavailable")
	}
	return embedding.NewLocalProvider(16).Embed(ctx, text)
}

func (p *flakyProvider) CosineSimilarity(a, b []float32) float32 {
	return services.CosineSimilarity(a, b)
}

func TestEvaluate_StaleClearsAfterProviderRecovers(t *testing.T) {
	cfg := config.DefaultConfig()
	s := store.New(cfg, nil, nil, nil)
	eval := New(s, &flakyProvider{failures: 1}, cfg, nil)

	addThought(t, s, "main", "Initial reading from the tide gauge.", 0.7)
	degraded := eval.Evaluate(context.Background(), "main")
	assert.True(t, degraded.Stale)

	// No new events: the cached result keeps its stale marker
	cached := eval.Evaluate(context.Background(), "main")
	assert.True(t, cached.Stale)

	// A successful fold clears it
	addThought(t, s, "main", "Second reading confirms the trend.", 0.8)
	recovered := eval.Evaluate(context.Background(), "main")
	assert.False(t, recovered.Stale)
	assert.Equal(t, 2, recovered.ThoughtsEvaluated)
}

func TestEvaluate_BranchIsolation(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "alpha", "Wind turbines generate power offshore.", 0.8)
	addThought(t, s, "beta", "Rail freight reduces highway congestion.", 0.8)

	// Evaluating alpha must not discard beta's pending events
	alpha := eval.Evaluate(context.Background(), "alpha")
	beta := eval.Evaluate(context.Background(), "beta")

	assert.Equal(t, 1, alpha.ThoughtsEvaluated)
	assert.Equal(t, 1, beta.ThoughtsEvaluated)
}

func TestEvaluate_ConfidenceGradient(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "First estimate of the budget shortfall.", 0.3)
	addThought(t, s, "main", "Revised estimate with vendor quotes included.", 0.5)
	addThought(t, s, "main", "Final estimate confirmed against invoices.", 0.9)

	result := eval.Evaluate(context.Background(), "main")

	// Rising confidence maps above the neutral 0.5
	assert.Greater(t, result.ConfidenceGradient, 0.5)
	assert.LessOrEqual(t, result.ConfidenceGradient, 1.0)
}

func TestSetGoal_InvalidatesAndRealigns(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "Desalination plants supply coastal cities with drinking water.", 0.8)

	before := eval.Evaluate(context.Background(), "main")
	assert.Equal(t, 0.5, before.GoalAlignment)

	eval.SetGoal(context.Background(), "secure drinking water for coastal cities")
	after := eval.Evaluate(context.Background(), "main")

	// Full replay after invalidation
	assert.Equal(t, 1, after.ThoughtsEvaluated)
	assert.Greater(t, after.GoalAlignment, 0.5)
}

func TestSetGoal_SameGoalKeepsCache(t *testing.T) {
	s, eval := newFixture(t)
	eval.SetGoal(context.Background(), "map the supply chain")
	addThought(t, s, "main", "The supply chain starts at the smelter.", 0.8)

	first := eval.Evaluate(context.Background(), "main")
	eval.SetGoal(context.Background(), "map the supply chain")
	second := eval.Evaluate(context.Background(), "main")

	assert.Equal(t, first.ThoughtsEvaluated, second.ThoughtsEvaluated)
	assert.InDelta(t, first.OverallScore, second.OverallScore, 1e-9)
}

func TestConfidenceGradient_Shapes(t *testing.T) {
	tests := []struct {
		name        string
		confidences []float64
		check       func(t *testing.T, got float64)
	}{
		{
			name:        "too few points is neutral",
			confidences: []float64{0.7},
			check:       func(t *testing.T, got float64) { assert.Equal(t, 0.5, got) },
		},
		{
			name:        "flat series is neutral",
			confidences: []float64{0.6, 0.6, 0.6, 0.6},
			check:       func(t *testing.T, got float64) { assert.InDelta(t, 0.5, got, 1e-9) },
		},
		{
			name:        "rising series scores above neutral",
			confidences: []float64{0.2, 0.4, 0.6, 0.8},
			check:       func(t *testing.T, got float64) { assert.Greater(t, got, 0.5) },
		},
		{
			name:        "falling series scores below neutral",
			confidences: []float64{0.9, 0.6, 0.4, 0.2},
			check:       func(t *testing.T, got float64) { assert.Less(t, got, 0.5) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, confidenceGradient(tt.confidences))
		})
	}
}

func TestEvaluate_OverallScoreWeighting(t *testing.T) {
	s, eval := newFixture(t)
	addThought(t, s, "main", "A single clean thought with no penalties.", 0.8)

	result := eval.Evaluate(context.Background(), "main")
	w := config.DefaultConfig().Weights

	expected := w.Coherence*result.Coherence +
		w.Contradiction*(1-result.Contradiction) +
		w.InformationGain*result.InformationGain +
		w.Redundancy*(1-result.Redundancy) +
		w.GoalAlignment*result.GoalAlignment +
		w.ConfidenceGradient*result.ConfidenceGradient
	assert.InDelta(t, expected, result.OverallScore, 1e-9)
}
