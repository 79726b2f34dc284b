package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasongraph-engine/domain/core/valueobjects"
)

func TestDetectDirectCircles(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("t1", "First claim.", []valueobjects.ThoughtID{"t2"})
	cd.AddThought("t2", "Second claim.", []valueobjects.ThoughtID{"t1"})

	patterns := cd.DetectDirectCircles()
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternDirectCycle, patterns[0].Type)
	assert.Equal(t, 1.0, patterns[0].Confidence)
	assert.ElementsMatch(t, []valueobjects.ThoughtID{"t1", "t2"}, patterns[0].ThoughtIDs)
}

func TestDetectDirectCirclesNoCycle(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("t1", "Root claim.", nil)
	cd.AddThought("t2", "Derived claim.", []valueobjects.ThoughtID{"t1"})
	cd.AddThought("t3", "Further derived.", []valueobjects.ThoughtID{"t2"})

	assert.Empty(t, cd.DetectDirectCircles())
	assert.Empty(t, cd.DetectAllPatterns())
}

func TestDetectDirectCirclesFromTextReferences(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	idA := valueobjects.NewThoughtID("thought a", 16)
	idB := valueobjects.NewThoughtID("thought b", 16)

	cd.AddThought(idA, fmt.Sprintf("This depends on %s.", idB), nil)
	cd.AddThought(idB, fmt.Sprintf("This builds on %s.", idA), nil)

	patterns := cd.DetectDirectCircles()
	require.Len(t, patterns, 1)
	assert.ElementsMatch(t, []valueobjects.ThoughtID{idA, idB}, patterns[0].ThoughtIDs)
}

func TestDetectPremiseConclusionCircles(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("t1",
		"Because scripture declares absolute truth, therefore scripture declares absolute truth everywhere.", nil)
	cd.AddThought("t2",
		"Since scripture declares absolute truth everywhere, thus scripture declares absolute truth.", nil)

	patterns := cd.DetectPremiseConclusionCircles()
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternPremiseConclusion, patterns[0].Type)
	assert.Equal(t, 0.8, patterns[0].Confidence)
	assert.ElementsMatch(t, []valueobjects.ThoughtID{"t1", "t2"}, patterns[0].ThoughtIDs)
}

func TestDetectPremiseConclusionRequiresBothDirections(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("t1", "Because inflation rises, therefore wages stagnate badly.", nil)
	cd.AddThought("t2", "Since wages stagnate badly, thus consumption drops sharply.", nil)

	assert.Empty(t, cd.DetectPremiseConclusionCircles())
}

func TestDetectIndirectCircles(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	// Five-node cycle: only indirect detection flags long loops at 0.7
	ids := []valueobjects.ThoughtID{"n1", "n2", "n3", "n4", "n5"}
	for i, id := range ids {
		next := ids[(i+1)%len(ids)]
		cd.AddThought(id, "A claim.", []valueobjects.ThoughtID{next})
	}

	patterns := cd.DetectIndirectCircles()
	require.NotEmpty(t, patterns)
	assert.Equal(t, PatternIndirectCycle, patterns[0].Type)
	assert.Equal(t, 0.7, patterns[0].Confidence)
	assert.Len(t, patterns[0].ThoughtIDs, 5)
}

func TestDetectIndirectIgnoresShortCycles(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("a", "A.", []valueobjects.ThoughtID{"b"})
	cd.AddThought("b", "B.", []valueobjects.ThoughtID{"a"})

	// Two-hop cycle belongs to direct detection only
	assert.Empty(t, cd.DetectIndirectCircles())
	assert.NotEmpty(t, cd.DetectDirectCircles())
}

func TestDetectAllPatternsUnions(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("a", "A.", []valueobjects.ThoughtID{"b"})
	cd.AddThought("b", "B.", []valueobjects.ThoughtID{"a"})

	all := cd.DetectAllPatterns()
	require.Len(t, all, 1)
	assert.Equal(t, PatternDirectCycle, all[0].Type)
}

func TestCapacityBoundEvictsOldest(t *testing.T) {
	cd := NewCircularDetector(nil, 3)

	cd.AddThought("t1", "One.", []valueobjects.ThoughtID{"t2"})
	cd.AddThought("t2", "Two.", []valueobjects.ThoughtID{"t1"})
	require.NotEmpty(t, cd.DetectDirectCircles())

	cd.AddThought("t3", "Three.", nil)
	cd.AddThought("t4", "Four.", nil)

	stats := cd.GetStats()
	assert.Equal(t, 3, stats.TrackedThoughts)
	assert.Equal(t, 1, stats.Evicted)

	// The cycle through the evicted t1 is no longer detectable
	assert.Empty(t, cd.DetectDirectCircles())
}

func TestReAddingSameThoughtIsNoOp(t *testing.T) {
	cd := NewCircularDetector(nil, 0)

	cd.AddThought("t1", "Because apples fall, therefore gravity acts.", nil)
	cd.AddThought("t1", "Because apples fall, therefore gravity acts.", nil)

	assert.Equal(t, 1, cd.GetStats().TrackedThoughts)
}
