// Package entities contains the core domain model for reasoning graphs.
package entities

import (
	"strings"
	"time"

	"reasongraph-engine/domain/core/valueobjects"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// MaxContentLength bounds thought content size.
const MaxContentLength = 10000

// Thought is a single unit of reasoning. Its id is content-addressed, so a
// thought is immutable once created.
type Thought struct {
	ID         valueobjects.ThoughtID
	Content    string
	BranchID   valueobjects.BranchID
	Kind       string
	Confidence float64
	KeyPoints  []string
	CreatedAt  time.Time
}

// NewThought validates and builds a thought. Content is trimmed before
// hashing so that insignificant whitespace does not change identity.
func NewThought(content string, branchID valueobjects.BranchID, kind string, confidence float64, keyPoints []string, hashLength int, createdAt time.Time) (*Thought, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, pkgerrors.NewValidation("thought content cannot be empty")
	}
	if len(trimmed) > MaxContentLength {
		return nil, pkgerrors.NewValidationf("thought content exceeds maximum length of %d characters", MaxContentLength)
	}
	if confidence < 0 || confidence > 1 {
		return nil, pkgerrors.NewValidationf("confidence must be in [0,1], got %v", confidence)
	}

	return &Thought{
		ID:         valueobjects.NewThoughtID(trimmed, hashLength),
		Content:    trimmed,
		BranchID:   branchID,
		Kind:       kind,
		Confidence: confidence,
		KeyPoints:  append([]string(nil), keyPoints...),
		CreatedAt:  createdAt,
	}, nil
}
