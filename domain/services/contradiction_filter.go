package services

import (
	"reasongraph-engine/pkg/bloom"
)

// ContradictionType labels the kind of candidate contradiction found.
type ContradictionType string

const (
	// ContradictionPolarity means a concept was previously asserted with
	// the opposite polarity
	ContradictionPolarity ContradictionType = "polarity_conflict"
	// ContradictionReversedPair means an adjacent concept pair was
	// previously seen in the reverse order
	ContradictionReversedPair ContradictionType = "reversed_pair"
)

// ContradictionCheck is the outcome of feeding one text through the filter.
// A positive result is a candidate only; the filters can produce false
// positives but never false negatives, so heavier analysis is warranted,
// not proven.
type ContradictionCheck struct {
	PotentialContradiction bool                `json:"potential_contradiction"`
	Types                  []ContradictionType `json:"types,omitempty"`
	Concepts               []string            `json:"concepts,omitempty"`
}

// FilterStats reports the state of the three underlying bloom filters.
type FilterStats struct {
	PositiveAssertions bloom.Stats `json:"positive_assertions"`
	NegativeAssertions bloom.Stats `json:"negative_assertions"`
	ConceptPairs       bloom.Stats `json:"concept_pairs"`
	ChecksPerformed    uint64      `json:"checks_performed"`
	CandidatesFlagged  uint64      `json:"candidates_flagged"`
}

// ContradictionFilter is a cheap pre-filter for contradictory assertions.
// It composes three bloom filters: positive assertions, negative
// assertions, and ordered concept pairs.
type ContradictionFilter struct {
	positive     *bloom.Filter
	negative     *bloom.Filter
	conceptPairs *bloom.Filter
	analyzer     TextAnalyzer
	checks       uint64
	flagged      uint64
}

// NewContradictionFilter sizes all three filters identically from the
// expected element count and target false-positive rate.
func NewContradictionFilter(expectedElements int, falsePositiveRate float64, analyzer TextAnalyzer) *ContradictionFilter {
	if analyzer == nil {
		analyzer = NewDefaultTextAnalyzer()
	}
	return &ContradictionFilter{
		positive:     bloom.New(expectedElements, falsePositiveRate),
		negative:     bloom.New(expectedElements, falsePositiveRate),
		conceptPairs: bloom.New(expectedElements, falsePositiveRate),
		analyzer:     analyzer,
	}
}

// CheckAndAdd checks the text against previously seen assertions, then
// records its concepts and concept pairs. For each concept it asks whether
// the opposite-polarity filter already contains it; for each adjacent pair
// it asks whether the reversed pair was seen.
func (cf *ContradictionFilter) CheckAndAdd(text string) ContradictionCheck {
	cf.checks++

	concepts := cf.analyzer.ExtractConcepts(text)
	pairs := cf.analyzer.ConceptPairs(text)
	negated := cf.analyzer.HasNegation(text)

	result := ContradictionCheck{Concepts: concepts}
	typeSet := make(map[ContradictionType]bool)

	opposite := cf.positive
	if !negated {
		opposite = cf.negative
	}
	for _, concept := range concepts {
		if opposite.Contains(concept) {
			typeSet[ContradictionPolarity] = true
			break
		}
	}

	for _, pair := range pairs {
		if cf.conceptPairs.Contains(pairKey(pair[1], pair[0])) {
			typeSet[ContradictionReversedPair] = true
			break
		}
	}

	// Insert after checking so a text never contradicts itself
	current := cf.positive
	if negated {
		current = cf.negative
	}
	for _, concept := range concepts {
		current.Add(concept)
	}
	for _, pair := range pairs {
		cf.conceptPairs.Add(pairKey(pair[0], pair[1]))
	}

	for t := range typeSet {
		result.Types = append(result.Types, t)
	}
	result.PotentialContradiction = len(result.Types) > 0
	if result.PotentialContradiction {
		cf.flagged++
	}
	return result
}

// GetStats returns the state of the underlying filters.
func (cf *ContradictionFilter) GetStats() FilterStats {
	return FilterStats{
		PositiveAssertions: cf.positive.GetStats(),
		NegativeAssertions: cf.negative.GetStats(),
		ConceptPairs:       cf.conceptPairs.GetStats(),
		ChecksPerformed:    cf.checks,
		CandidatesFlagged:  cf.flagged,
	}
}

func pairKey(a, b string) string {
	return a + "|" + b
}
