// Package valueobjects holds identifier types shared across the domain.
package valueobjects

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	pkgerrors "reasongraph-engine/pkg/errors"
)

// MainBranchID is the root branch that exists from store construction.
const MainBranchID = BranchID("main")

// DefaultThoughtIDLength is the default hex length of a thought id.
const DefaultThoughtIDLength = 16

var branchIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ThoughtID identifies a thought. It is content-addressed: derived from a
// SHA-256 digest of the trimmed content, so identical content always maps
// to the same id.
type ThoughtID string

// NewThoughtID derives a thought id from content. hexLength bounds the
// digest prefix kept; values outside [8, 64] fall back to the default.
func NewThoughtID(content string, hexLength int) ThoughtID {
	if hexLength < 8 || hexLength > 64 {
		hexLength = DefaultThoughtIDLength
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return ThoughtID(hex.EncodeToString(sum[:])[:hexLength])
}

// String returns the id as a plain string.
func (id ThoughtID) String() string {
	return string(id)
}

// IsEmpty reports whether the id is unset.
func (id ThoughtID) IsEmpty() bool {
	return id == ""
}

// BranchID identifies a branch of reasoning.
type BranchID string

// NewBranchID generates a fresh branch id.
func NewBranchID() BranchID {
	return BranchID("branch-" + uuid.New().String()[:8])
}

// ParseBranchID validates a caller-supplied branch id against the allowed
// pattern [A-Za-z0-9_-], length 1-64.
func ParseBranchID(s string) (BranchID, error) {
	if !branchIDPattern.MatchString(s) {
		return "", pkgerrors.NewValidationf("invalid branch id %q: must match [A-Za-z0-9_-]{1,64}", s)
	}
	return BranchID(s), nil
}

// String returns the id as a plain string.
func (id BranchID) String() string {
	return string(id)
}

// IsEmpty reports whether the id is unset.
func (id BranchID) IsEmpty() bool {
	return id == ""
}
