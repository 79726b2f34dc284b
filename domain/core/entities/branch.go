package entities

import (
	"time"

	"reasongraph-engine/domain/core/valueobjects"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// BranchState represents the lifecycle state of a branch
type BranchState string

const (
	StateActive    BranchState = "active"
	StateSuspended BranchState = "suspended"
	StateCompleted BranchState = "completed"
	StateDeadEnd   BranchState = "dead_end"
)

// validStates guards SetState against unknown values.
var validStates = map[BranchState]bool{
	StateActive:    true,
	StateSuspended: true,
	StateCompleted: true,
	StateDeadEnd:   true,
}

// SemanticProfile is a branch's running-average embedding plus extracted
// keywords, used to detect topical overlap between branches.
type SemanticProfile struct {
	Embedding []float32
	Keywords  map[string]int
	Count     int
}

// Branch is a line of reasoning: an ordered, append-only sequence of
// thoughts plus its position in the branch hierarchy.
type Branch struct {
	ID         valueobjects.BranchID
	ParentID   valueobjects.BranchID
	ChildIDs   map[valueobjects.BranchID]struct{}
	ThoughtIDs []valueobjects.ThoughtID
	State      BranchState
	Priority   float64
	Confidence float64
	Profile    *SemanticProfile
	CreatedAt  time.Time
}

// NewBranch creates a branch in the active state. ParentID may be empty for
// the root branch only.
func NewBranch(id, parentID valueobjects.BranchID, createdAt time.Time) *Branch {
	return &Branch{
		ID:         id,
		ParentID:   parentID,
		ChildIDs:   make(map[valueobjects.BranchID]struct{}),
		ThoughtIDs: make([]valueobjects.ThoughtID, 0),
		State:      StateActive,
		Priority:   1.0,
		Confidence: 1.0,
		CreatedAt:  createdAt,
	}
}

// AddChild records a child branch.
func (b *Branch) AddChild(id valueobjects.BranchID) {
	b.ChildIDs[id] = struct{}{}
}

// AppendThought records a thought id in chronological order. The list is
// append-only; callers never reorder or truncate it.
func (b *Branch) AppendThought(id valueobjects.ThoughtID) {
	b.ThoughtIDs = append(b.ThoughtIDs, id)
}

// ContainsThought reports whether the branch already holds the thought.
func (b *Branch) ContainsThought(id valueobjects.ThoughtID) bool {
	for _, existing := range b.ThoughtIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// SetState transitions the branch lifecycle state.
func (b *Branch) SetState(state BranchState) error {
	if !validStates[state] {
		return pkgerrors.NewValidationf("unknown branch state %q", state)
	}
	b.State = state
	return nil
}

// UpdateProfile folds a new thought's embedding and keywords into the
// running-average semantic profile.
func (b *Branch) UpdateProfile(embedding []float32, keywords []string) {
	if b.Profile == nil {
		b.Profile = &SemanticProfile{Keywords: make(map[string]int)}
	}
	p := b.Profile

	if len(embedding) > 0 {
		if len(p.Embedding) == 0 {
			p.Embedding = append([]float32(nil), embedding...)
		} else if len(p.Embedding) == len(embedding) {
			n := float32(p.Count)
			for i := range p.Embedding {
				p.Embedding[i] = (p.Embedding[i]*n + embedding[i]) / (n + 1)
			}
		}
	}

	for _, kw := range keywords {
		p.Keywords[kw]++
	}
	p.Count++
}

// TopKeywords returns up to limit keywords ordered by frequency.
func (b *Branch) TopKeywords(limit int) []string {
	if b.Profile == nil || limit <= 0 {
		return nil
	}
	type entry struct {
		word  string
		count int
	}
	entries := make([]entry, 0, len(b.Profile.Keywords))
	for w, c := range b.Profile.Keywords {
		entries = append(entries, entry{w, c})
	}
	// Insertion sort is fine at profile sizes
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && (entries[j].count > entries[j-1].count ||
			(entries[j].count == entries[j-1].count && entries[j].word < entries[j-1].word)); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	if limit > len(entries) {
		limit = len(entries)
	}
	words := make([]string, limit)
	for i := 0; i < limit; i++ {
		words[i] = entries[i].word
	}
	return words
}
