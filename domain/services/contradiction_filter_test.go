package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndAddFlagsOppositePolarity(t *testing.T) {
	cf := NewContradictionFilter(1000, 0.01, nil)

	first := cf.CheckAndAdd("Cats are mammals.")
	assert.False(t, first.PotentialContradiction)

	second := cf.CheckAndAdd("Cats are not mammals.")
	assert.True(t, second.PotentialContradiction)
	assert.Contains(t, second.Types, ContradictionPolarity)
}

func TestCheckAndAddFlagsNegatedThenPositive(t *testing.T) {
	cf := NewContradictionFilter(1000, 0.01, nil)

	cf.CheckAndAdd("The algorithm never terminates.")
	result := cf.CheckAndAdd("The algorithm terminates.")

	assert.True(t, result.PotentialContradiction)
	assert.Contains(t, result.Types, ContradictionPolarity)
}

func TestCheckAndAddReversedPair(t *testing.T) {
	cf := NewContradictionFilter(1000, 0.01, nil)

	cf.CheckAndAdd("scarcity drives demand")
	result := cf.CheckAndAdd("demand drives scarcity")

	assert.True(t, result.PotentialContradiction)
	assert.Contains(t, result.Types, ContradictionReversedPair)
}

func TestCheckAndAddUnrelatedTextsDoNotFlag(t *testing.T) {
	cf := NewContradictionFilter(1000, 0.01, nil)

	require.False(t, cf.CheckAndAdd("Photosynthesis converts sunlight into energy.").PotentialContradiction)
	assert.False(t, cf.CheckAndAdd("Volcanoes erupt when magma pressure builds.").PotentialContradiction)
}

func TestTextNeverContradictsItself(t *testing.T) {
	cf := NewContradictionFilter(1000, 0.01, nil)

	result := cf.CheckAndAdd("Cats are mammals and cats are not reptiles.")
	// Insertion happens after the check, so a single text cannot trip
	// its own filters.
	assert.False(t, result.PotentialContradiction)
}

func TestGetStatsCounts(t *testing.T) {
	cf := NewContradictionFilter(1000, 0.01, nil)

	cf.CheckAndAdd("Cats are mammals.")
	cf.CheckAndAdd("Cats are not mammals.")

	stats := cf.GetStats()
	assert.Equal(t, uint64(2), stats.ChecksPerformed)
	assert.Equal(t, uint64(1), stats.CandidatesFlagged)
	assert.Greater(t, stats.PositiveAssertions.InsertedElements, uint64(0))
	assert.Greater(t, stats.NegativeAssertions.InsertedElements, uint64(0))
}
