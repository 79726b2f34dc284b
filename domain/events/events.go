// Package events defines the append-only event log records that other
// components replay for incremental work.
package events

import (
	"time"

	"reasongraph-engine/domain/core/valueobjects"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// EventType identifies the kind of a log record.
type EventType string

const (
	TypeThoughtAdded  EventType = "thought_added"
	TypeBranchCreated EventType = "branch_created"
	TypeCrossRefAdded EventType = "cross_ref_added"
)

// CrossRefKind classifies the relationship a cross-reference asserts
// between two branches.
type CrossRefKind string

const (
	CrossRefComplementary CrossRefKind = "complementary"
	CrossRefContradictory CrossRefKind = "contradictory"
	CrossRefBuildsUpon    CrossRefKind = "builds_upon"
	CrossRefAlternative   CrossRefKind = "alternative"
	CrossRefSupports      CrossRefKind = "supports"
)

var validCrossRefKinds = map[CrossRefKind]bool{
	CrossRefComplementary: true,
	CrossRefContradictory: true,
	CrossRefBuildsUpon:    true,
	CrossRefAlternative:   true,
	CrossRefSupports:      true,
}

// CrossReference links two branches. It exists only as an event payload,
// never as a separate mutable entity.
type CrossReference struct {
	FromBranch valueobjects.BranchID `json:"from_branch"`
	ToBranch   valueobjects.BranchID `json:"to_branch"`
	Kind       CrossRefKind          `json:"kind"`
	Reason     string                `json:"reason"`
	Strength   float64               `json:"strength"`
}

// Validate checks kind and strength bounds.
func (c CrossReference) Validate() error {
	if !validCrossRefKinds[c.Kind] {
		return pkgerrors.NewValidationf("unknown cross-reference kind %q", c.Kind)
	}
	if c.Strength < 0 || c.Strength > 1 {
		return pkgerrors.NewValidationf("cross-reference strength must be in [0,1], got %v", c.Strength)
	}
	return nil
}

// BranchCreatedPayload carries the parent of a newly created branch.
type BranchCreatedPayload struct {
	ParentID valueobjects.BranchID `json:"parent_id,omitempty"`
}

// ThoughtPayload carries everything needed to replay a thought_added event
// without consulting the store it came from.
type ThoughtPayload struct {
	Content    string   `json:"content"`
	Kind       string   `json:"kind,omitempty"`
	Confidence float64  `json:"confidence"`
	KeyPoints  []string `json:"key_points,omitempty"`
}

// Event is one record of the append-only log. Indices start at 0 and are
// gap-free and strictly increasing for the lifetime of a store instance;
// replaying the full log from index 0 deterministically reconstructs all
// store state.
type Event struct {
	Index     uint64                 `json:"index"`
	Kind      EventType              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	BranchID  valueobjects.BranchID  `json:"branch_id"`
	ThoughtID valueobjects.ThoughtID `json:"thought_id,omitempty"`
	Thought   *ThoughtPayload        `json:"thought,omitempty"`
	CrossRef  *CrossReference        `json:"cross_ref,omitempty"`
	Branch    *BranchCreatedPayload  `json:"branch,omitempty"`
}
