// Package store implements the branch graph store: the system of record
// for thoughts, branches, and the append-only event log.
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"reasongraph-engine/domain/core/entities"
	"reasongraph-engine/domain/core/valueobjects"
	"reasongraph-engine/domain/events"
	"reasongraph-engine/domain/services"
	"reasongraph-engine/infrastructure/config"
	"reasongraph-engine/pkg/clock"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// DefaultConfidence is used when a thought is added without an explicit
// confidence.
const DefaultConfidence = 0.8

// CrossRefInput is a caller-supplied cross-reference; the from-branch is
// the branch the thought lands in.
type CrossRefInput struct {
	ToBranch string
	Kind     events.CrossRefKind
	Reason   string
	Strength float64
}

// AddThoughtInput carries all parameters of an AddThought call. BranchID
// and ParentBranchID are optional; an empty BranchID creates a new branch
// parented at ParentBranchID (default main).
type AddThoughtInput struct {
	Content        string
	BranchID       string
	ParentBranchID string
	Kind           string
	Confidence     *float64
	KeyPoints      []string
	CrossRefs      []CrossRefInput
}

// AddThoughtResult reports where the thought landed and what the inline
// analyses observed.
type AddThoughtResult struct {
	ThoughtID valueobjects.ThoughtID
	BranchID  valueobjects.BranchID
	// Duplicate is true when identical content was already stored; the
	// call was a no-op
	Duplicate bool
	// BranchCreated is true when the call created the branch the thought
	// landed in, which appends a branch_created event before thought_added
	BranchCreated bool
	// Contradiction is the pre-filter outcome for this content
	Contradiction services.ContradictionCheck
	// OverlapWarning is an advisory raised when the content sits closer
	// to another branch's semantic center than to its own
	OverlapWarning string
}

// SearchResult pairs a matched thought with its branch.
type SearchResult struct {
	ThoughtID valueobjects.ThoughtID
	BranchID  valueobjects.BranchID
}

// Statistics aggregates counters across the store and its analysis
// components.
type Statistics struct {
	ThoughtCount  int                      `json:"thought_count"`
	BranchCount   int                      `json:"branch_count"`
	EventCount    int                      `json:"event_count"`
	Contradiction services.FilterStats     `json:"contradiction"`
	Similarity    services.SimilarityStats `json:"similarity"`
	Circular      services.DetectorStats   `json:"circular"`
}

// Store is the system of record. All mutations are serialized behind a
// single writer lock; queries take the read lock and never observe a
// partially applied mutation.
type Store struct {
	mu sync.RWMutex

	cfg      *config.Config
	clk      clock.Clock
	logger   *zap.Logger
	provider services.EmbeddingProvider
	analyzer services.TextAnalyzer

	contradictions *services.ContradictionFilter
	similarity     *services.SimilarityMatrix
	circular       *services.CircularDetector

	thoughts   map[valueobjects.ThoughtID]*entities.Thought
	embeddings map[valueobjects.ThoughtID][]float32
	branches   map[valueobjects.BranchID]*entities.Branch
	eventLog   []events.Event

	newBranchID func() valueobjects.BranchID
}

// New creates a store with the branch "main" already present. provider may
// be nil; semantic profiles then fall back to keyword overlap.
func New(cfg *config.Config, provider services.EmbeddingProvider, clk clock.Clock, logger *zap.Logger) *Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	analyzer := services.NewDefaultTextAnalyzer()
	s := &Store{
		cfg:            cfg,
		clk:            clk,
		logger:         logger,
		provider:       provider,
		analyzer:       analyzer,
		contradictions: services.NewContradictionFilter(cfg.BloomExpectedElements, cfg.BloomFalsePositiveRate, analyzer),
		similarity:     services.NewSimilarityMatrix(cfg.MatrixInitialCapacity, cfg.SimilarityThreshold),
		circular:       services.NewCircularDetector(services.NewRegexReasoningExtractor(), cfg.MaxTrackedThoughts),
		thoughts:       make(map[valueobjects.ThoughtID]*entities.Thought),
		embeddings:     make(map[valueobjects.ThoughtID][]float32),
		branches:       make(map[valueobjects.BranchID]*entities.Branch),
		newBranchID:    valueobjects.NewBranchID,
	}

	s.branches[valueobjects.MainBranchID] = entities.NewBranch(valueobjects.MainBranchID, "", clk.Now())
	return s
}

// AddThought validates, stores, and analyzes one thought. All validation
// happens before any mutation; a failed call leaves the store untouched.
// Identical content is a no-op insert returning the existing id.
func (s *Store) AddThought(ctx context.Context, input AddThoughtInput) (*AddThoughtResult, error) {
	confidence := DefaultConfidence
	if input.Confidence != nil {
		confidence = *input.Confidence
	}

	// Validation phase: nothing below may mutate.
	thought, err := entities.NewThought(input.Content, "", input.Kind, confidence, input.KeyPoints, s.cfg.HashLength, s.clk.Now())
	if err != nil {
		return nil, err
	}

	var requestedBranch valueobjects.BranchID
	if input.BranchID != "" {
		if requestedBranch, err = valueobjects.ParseBranchID(input.BranchID); err != nil {
			return nil, err
		}
	}
	parentBranch := valueobjects.MainBranchID
	if input.ParentBranchID != "" {
		if parentBranch, err = valueobjects.ParseBranchID(input.ParentBranchID); err != nil {
			return nil, err
		}
	}

	crossRefs := make([]events.CrossReference, 0, len(input.CrossRefs))
	for _, ref := range input.CrossRefs {
		toBranch, err := valueobjects.ParseBranchID(ref.ToBranch)
		if err != nil {
			return nil, err
		}
		crossRef := events.CrossReference{
			ToBranch: toBranch,
			Kind:     ref.Kind,
			Reason:   ref.Reason,
			Strength: ref.Strength,
		}
		if err := crossRef.Validate(); err != nil {
			return nil, err
		}
		crossRefs = append(crossRefs, crossRef)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[parentBranch]; !ok {
		return nil, pkgerrors.NewNotFoundf("parent branch %q not found", parentBranch)
	}
	for _, ref := range crossRefs {
		if _, ok := s.branches[ref.ToBranch]; !ok {
			return nil, pkgerrors.NewNotFoundf("cross-reference target branch %q not found", ref.ToBranch)
		}
	}

	if existing, ok := s.thoughts[thought.ID]; ok {
		return &AddThoughtResult{
			ThoughtID: existing.ID,
			BranchID:  existing.BranchID,
			Duplicate: true,
		}, nil
	}

	// Mutation phase.
	branch, created := s.resolveBranchLocked(requestedBranch, parentBranch)
	thought.BranchID = branch.ID
	if created {
		s.appendEventLocked(events.Event{
			Kind:     events.TypeBranchCreated,
			BranchID: branch.ID,
			Branch:   &events.BranchCreatedPayload{ParentID: branch.ParentID},
		})
	}

	s.thoughts[thought.ID] = thought
	branch.AppendThought(thought.ID)

	result := &AddThoughtResult{ThoughtID: thought.ID, BranchID: branch.ID, BranchCreated: created}

	// Analysis side effects, in fixed order: profile, overlap advisory,
	// contradiction pre-filter, circular detector, similarity matrix.
	vec := s.embedLocked(ctx, thought.ID, thought.Content)
	keywords := s.analyzer.ExtractKeywords(thought.Content)
	branch.UpdateProfile(vec, keywords)
	result.OverlapWarning = s.overlapWarningLocked(branch, vec, keywords)

	result.Contradiction = s.contradictions.CheckAndAdd(thought.Content)
	if result.Contradiction.PotentialContradiction {
		s.logger.Info("Potential contradiction flagged",
			zap.String("thought_id", thought.ID.String()),
			zap.String("branch_id", branch.ID.String()),
		)
	}

	s.circular.AddThought(thought.ID, thought.Content, s.crossRefDependenciesLocked(crossRefs))
	s.similarity.Register(thought.ID)
	s.scoreAgainstWindowLocked(branch, thought.ID, vec)

	s.appendEventLocked(events.Event{
		Kind:      events.TypeThoughtAdded,
		BranchID:  branch.ID,
		ThoughtID: thought.ID,
		Thought: &events.ThoughtPayload{
			Content:    thought.Content,
			Kind:       thought.Kind,
			Confidence: thought.Confidence,
			KeyPoints:  thought.KeyPoints,
		},
	})

	// Cross-reference events are appended last.
	for i := range crossRefs {
		crossRefs[i].FromBranch = branch.ID
		s.appendEventLocked(events.Event{
			Kind:      events.TypeCrossRefAdded,
			BranchID:  branch.ID,
			ThoughtID: thought.ID,
			CrossRef:  &crossRefs[i],
		})
	}

	s.logger.Debug("Thought added",
		zap.String("thought_id", thought.ID.String()),
		zap.String("branch_id", branch.ID.String()),
		zap.Int("cross_refs", len(crossRefs)),
	)
	return result, nil
}

// CreateBranch creates a branch with a generated id under the given parent
// (default main).
func (s *Store) CreateBranch(parentID string) (valueobjects.BranchID, error) {
	parent := valueobjects.MainBranchID
	if parentID != "" {
		var err error
		if parent, err = valueobjects.ParseBranchID(parentID); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createBranchLocked(s.newBranchIDLocked(), parent)
}

// CreateBranchWithID creates a branch with a caller-chosen id. Creating an
// id that already exists is an error, never a silent no-op.
func (s *Store) CreateBranchWithID(id, parentID string) (valueobjects.BranchID, error) {
	branchID, err := valueobjects.ParseBranchID(id)
	if err != nil {
		return "", err
	}
	parent := valueobjects.MainBranchID
	if parentID != "" {
		if parent, err = valueobjects.ParseBranchID(parentID); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.branches[branchID]; exists {
		return "", pkgerrors.NewValidationf("branch %q already exists", branchID)
	}
	return s.createBranchLocked(branchID, parent)
}

// SetBranchState transitions a branch's lifecycle state.
func (s *Store) SetBranchState(id string, state entities.BranchState) error {
	branchID, err := valueobjects.ParseBranchID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	branch, ok := s.branches[branchID]
	if !ok {
		return pkgerrors.NewNotFoundf("branch %q not found", branchID)
	}
	return branch.SetState(state)
}

// GetThought returns a stored thought.
func (s *Store) GetThought(id valueobjects.ThoughtID) (*entities.Thought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thought, ok := s.thoughts[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundf("thought %q not found", id)
	}
	copied := *thought
	return &copied, nil
}

// GetBranch returns a snapshot of a branch.
func (s *Store) GetBranch(id string) (*entities.Branch, error) {
	branchID, err := valueobjects.ParseBranchID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[branchID]
	if !ok {
		return nil, pkgerrors.NewNotFoundf("branch %q not found", branchID)
	}
	return copyBranch(branch), nil
}

// GetAllBranches returns snapshots of every branch.
func (s *Store) GetAllBranches() []*entities.Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]*entities.Branch, 0, len(s.branches))
	for _, branch := range s.branches {
		branches = append(branches, copyBranch(branch))
	}
	return branches
}

// GetRecentThoughts returns the last n thoughts of a branch in
// chronological order.
func (s *Store) GetRecentThoughts(branchID string, n int) ([]*entities.Thought, error) {
	id, err := valueobjects.ParseBranchID(branchID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundf("branch %q not found", id)
	}

	ids := branch.ThoughtIDs
	if n > 0 && n < len(ids) {
		ids = ids[len(ids)-n:]
	}
	thoughts := make([]*entities.Thought, 0, len(ids))
	for _, tid := range ids {
		copied := *s.thoughts[tid]
		thoughts = append(thoughts, &copied)
	}
	return thoughts, nil
}

// GetEventsSince returns all events with index >= cursor, in order.
// Replaying the full log from 0 deterministically reconstructs store state.
func (s *Store) GetEventsSince(cursor uint64) []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cursor >= uint64(len(s.eventLog)) {
		return nil
	}
	return append([]events.Event(nil), s.eventLog[cursor:]...)
}

// CalculateSimilarity computes (and caches) the similarity between two
// stored thoughts.
func (s *Store) CalculateSimilarity(ctx context.Context, id1, id2 valueobjects.ThoughtID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t1, ok := s.thoughts[id1]
	if !ok {
		return 0, pkgerrors.NewNotFoundf("thought %q not found", id1)
	}
	t2, ok := s.thoughts[id2]
	if !ok {
		return 0, pkgerrors.NewNotFoundf("thought %q not found", id2)
	}
	if id1 == id2 {
		return 1, nil
	}

	if cached, ok := s.similarity.Similarity(id1, id2); ok {
		return cached, nil
	}

	score := s.similarityLocked(t1, t2)
	s.similarity.Set(id1, id2, score)
	return score, nil
}

// MostSimilar returns the top-k most similar thoughts recorded for id.
func (s *Store) MostSimilar(id valueobjects.ThoughtID, k int) []services.SimilarityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.similarity.MostSimilar(id, k)
}

// Clusters returns similarity clusters of size >= 2 at the given minimum
// similarity.
func (s *Store) Clusters(minSimilarity float64) [][]valueobjects.ThoughtID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.similarity.Clusters(minSimilarity)
}

// DetectCircularReasoning runs all three cycle detectors over the
// accumulated dependency graph.
func (s *Store) DetectCircularReasoning() []services.CircularPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.circular.DetectAllPatterns()
}

// CheckContradiction exposes the pre-filter outcome for arbitrary text
// without storing a thought.
func (s *Store) CheckContradiction(text string) services.ContradictionCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contradictions.CheckAndAdd(text)
}

// GetStatistics aggregates counters across the store and its analysis
// components.
func (s *Store) GetStatistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Statistics{
		ThoughtCount:  len(s.thoughts),
		BranchCount:   len(s.branches),
		EventCount:    len(s.eventLog),
		Contradiction: s.contradictions.GetStats(),
		Similarity:    s.similarity.GetStats(),
		Circular:      s.circular.GetStats(),
	}
}

// internal helpers; all require s.mu held for writing

// newBranchIDLocked generates a branch id that is not already in use. Short
// ids make collisions rare but not impossible; overwriting an existing map
// entry would orphan that branch's thought list.
func (s *Store) newBranchIDLocked() valueobjects.BranchID {
	for {
		id := s.newBranchID()
		if _, exists := s.branches[id]; !exists {
			return id
		}
	}
}

func (s *Store) resolveBranchLocked(requested, parent valueobjects.BranchID) (*entities.Branch, bool) {
	if requested.IsEmpty() {
		requested = s.newBranchIDLocked()
	} else if branch, ok := s.branches[requested]; ok {
		return branch, false
	}

	branch := entities.NewBranch(requested, parent, s.clk.Now())
	s.branches[requested] = branch
	s.branches[parent].AddChild(requested)
	return branch, true
}

func (s *Store) createBranchLocked(id, parent valueobjects.BranchID) (valueobjects.BranchID, error) {
	parentBranch, ok := s.branches[parent]
	if !ok {
		return "", pkgerrors.NewNotFoundf("parent branch %q not found", parent)
	}

	branch := entities.NewBranch(id, parent, s.clk.Now())
	s.branches[id] = branch
	parentBranch.AddChild(id)

	s.appendEventLocked(events.Event{
		Kind:     events.TypeBranchCreated,
		BranchID: id,
		Branch:   &events.BranchCreatedPayload{ParentID: parent},
	})
	return id, nil
}

func (s *Store) appendEventLocked(event events.Event) {
	event.Index = uint64(len(s.eventLog))
	event.Timestamp = s.clk.Now()
	s.eventLog = append(s.eventLog, event)
}

// embedLocked fetches and caches the content embedding. Provider failures
// are recoverable: the thought simply has no vector and keyword fallbacks
// apply.
func (s *Store) embedLocked(ctx context.Context, id valueobjects.ThoughtID, content string) []float32 {
	if s.provider == nil {
		return nil
	}
	if vec, ok := s.embeddings[id]; ok {
		return vec
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()

	vec, err := s.provider.Embed(embedCtx, content)
	if err != nil {
		s.logger.Warn("Embedding failed, continuing without vector",
			zap.String("thought_id", id.String()),
			zap.Error(err),
		)
		return nil
	}
	s.embeddings[id] = vec
	return vec
}

// overlapWarningLocked checks whether the content is more similar to
// another branch's semantic center than to its own, by more than the
// configured margin.
func (s *Store) overlapWarningLocked(own *entities.Branch, vec []float32, keywords []string) string {
	ownScore := profileSimilarity(own, vec, keywords, s.provider)

	for id, other := range s.branches {
		if id == own.ID || other.Profile == nil {
			continue
		}
		otherScore := profileSimilarity(other, vec, keywords, s.provider)
		if otherScore > ownScore+s.cfg.BranchOverlapMargin {
			s.logger.Warn("Branch overlap detected",
				zap.String("branch_id", own.ID.String()),
				zap.String("overlapping_branch", id.String()),
				zap.Float64("own_score", ownScore),
				zap.Float64("other_score", otherScore),
			)
			return "content is more similar to branch " + id.String() + " than to its own branch"
		}
	}
	return ""
}

// crossRefDependenciesLocked maps cross-reference targets to the most
// recent thought of each target branch, which is the concrete node a
// dependency edge can point at.
func (s *Store) crossRefDependenciesLocked(refs []events.CrossReference) []valueobjects.ThoughtID {
	deps := make([]valueobjects.ThoughtID, 0, len(refs))
	for _, ref := range refs {
		target := s.branches[ref.ToBranch]
		if len(target.ThoughtIDs) > 0 {
			deps = append(deps, target.ThoughtIDs[len(target.ThoughtIDs)-1])
		}
	}
	return deps
}

// scoreAgainstWindowLocked records similarity between the new thought and
// the preceding thoughts of its branch, bounded by the evaluator window.
func (s *Store) scoreAgainstWindowLocked(branch *entities.Branch, id valueobjects.ThoughtID, vec []float32) {
	ids := branch.ThoughtIDs
	if len(ids) < 2 {
		return
	}
	start := len(ids) - 1 - s.cfg.WindowSize
	if start < 0 {
		start = 0
	}
	newThought := s.thoughts[id]
	for _, prev := range ids[start : len(ids)-1] {
		score := s.similarityWithVecLocked(newThought, vec, s.thoughts[prev], s.embeddings[prev])
		s.similarity.Set(id, prev, score)
	}
}

func (s *Store) similarityLocked(a, b *entities.Thought) float64 {
	return s.similarityWithVecLocked(a, s.embeddings[a.ID], b, s.embeddings[b.ID])
}

func (s *Store) similarityWithVecLocked(a *entities.Thought, vecA []float32, b *entities.Thought, vecB []float32) float64 {
	if s.provider != nil && len(vecA) > 0 && len(vecB) > 0 {
		return float64(s.provider.CosineSimilarity(vecA, vecB))
	}
	return keywordJaccard(s.analyzer.TokenizeWords(a.Content), s.analyzer.TokenizeWords(b.Content))
}

func profileSimilarity(branch *entities.Branch, vec []float32, keywords []string, provider services.EmbeddingProvider) float64 {
	profile := branch.Profile
	if profile == nil {
		return 0
	}
	if provider != nil && len(vec) > 0 && len(profile.Embedding) > 0 {
		return float64(provider.CosineSimilarity(vec, profile.Embedding))
	}

	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[kw] = true
	}
	profileSet := make(map[string]bool, len(profile.Keywords))
	for kw := range profile.Keywords {
		profileSet[kw] = true
	}
	return keywordJaccard(set, profileSet)
}

func keywordJaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	union := make(map[string]bool, len(a)+len(b))
	for w := range a {
		union[w] = true
		if b[w] {
			intersection++
		}
	}
	for w := range b {
		union[w] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func copyBranch(branch *entities.Branch) *entities.Branch {
	copied := *branch
	copied.ChildIDs = make(map[valueobjects.BranchID]struct{}, len(branch.ChildIDs))
	for id := range branch.ChildIDs {
		copied.ChildIDs[id] = struct{}{}
	}
	copied.ThoughtIDs = append([]valueobjects.ThoughtID(nil), branch.ThoughtIDs...)
	// The profile is mutated in place on every AddThought; a shared pointer
	// would leak live state out of the lock
	if branch.Profile != nil {
		profile := entities.SemanticProfile{
			Embedding: append([]float32(nil), branch.Profile.Embedding...),
			Keywords:  make(map[string]int, len(branch.Profile.Keywords)),
			Count:     branch.Profile.Count,
		}
		for kw, n := range branch.Profile.Keywords {
			profile.Keywords[kw] = n
		}
		copied.Profile = &profile
	}
	return &copied
}
