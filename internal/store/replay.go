package store

import (
	"context"

	"go.uber.org/zap"

	"reasongraph-engine/domain/events"
	"reasongraph-engine/domain/services"
	"reasongraph-engine/infrastructure/config"
	"reasongraph-engine/pkg/clock"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// Replay builds a fresh store by applying an ordered event log from index
// 0. The log must be gap-free; replaying the complete log of another store
// reconstructs its thoughts, branches, and analysis state deterministically.
func Replay(ctx context.Context, cfg *config.Config, provider services.EmbeddingProvider, clk clock.Clock, logger *zap.Logger, log []events.Event) (*Store, error) {
	s := New(cfg, provider, clk, logger)

	for i, event := range log {
		if event.Index != uint64(i) {
			return nil, pkgerrors.NewValidationf("event log has a gap: expected index %d, got %d", i, event.Index)
		}

		switch event.Kind {
		case events.TypeBranchCreated:
			parent := ""
			if event.Branch != nil {
				parent = event.Branch.ParentID.String()
			}
			if _, err := s.CreateBranchWithID(event.BranchID.String(), parent); err != nil {
				return nil, pkgerrors.Wrap(err, "replaying branch_created")
			}

		case events.TypeThoughtAdded:
			if event.Thought == nil {
				return nil, pkgerrors.NewValidationf("thought_added event %d has no payload", event.Index)
			}
			confidence := event.Thought.Confidence
			if _, err := s.AddThought(ctx, AddThoughtInput{
				Content:    event.Thought.Content,
				BranchID:   event.BranchID.String(),
				Kind:       event.Thought.Kind,
				Confidence: &confidence,
				KeyPoints:  event.Thought.KeyPoints,
			}); err != nil {
				return nil, pkgerrors.Wrap(err, "replaying thought_added")
			}

		case events.TypeCrossRefAdded:
			if event.CrossRef == nil {
				return nil, pkgerrors.NewValidationf("cross_ref_added event %d has no payload", event.Index)
			}
			s.applyCrossRef(event)

		default:
			return nil, pkgerrors.NewValidationf("unknown event kind %q at index %d", event.Kind, event.Index)
		}
	}

	return s, nil
}

// applyCrossRef re-records a replayed cross-reference event. The thought
// it belongs to was already stored by the preceding thought_added event,
// so only the event append and the dependency edge remain.
func (s *Store) applyCrossRef(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deps := s.crossRefDependenciesLocked([]events.CrossReference{*event.CrossRef})
	if len(deps) > 0 {
		s.circular.AddThought(event.ThoughtID, "", deps)
	}
	s.appendEventLocked(events.Event{
		Kind:      events.TypeCrossRefAdded,
		BranchID:  event.BranchID,
		ThoughtID: event.ThoughtID,
		CrossRef:  event.CrossRef,
	})
}
