package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesSizing(t *testing.T) {
	tests := []struct {
		name     string
		expected int
		fpRate   float64
	}{
		{name: "small filter", expected: 100, fpRate: 0.01},
		{name: "large filter", expected: 10000, fpRate: 0.001},
		{name: "loose filter", expected: 50, fpRate: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.expected, tt.fpRate)
			assert.Greater(t, f.numBits, uint64(0))
			assert.Greater(t, f.numHashes, uint32(0))
			// m grows as the target rate tightens
			assert.GreaterOrEqual(t, f.numBits, uint64(tt.expected))
		})
	}
}

func TestNoFalseNegatives(t *testing.T) {
	f := New(1000, 0.01)

	items := make([]string, 500)
	for i := range items {
		items[i] = fmt.Sprintf("assertion-%d", i)
		f.Add(items[i])
	}

	for _, item := range items {
		require.True(t, f.Contains(item), "added item %q must be reported present", item)
	}
}

func TestContainsUnseenMostlyFalse(t *testing.T) {
	f := New(1000, 0.01)
	for i := 0; i < 500; i++ {
		f.Add(fmt.Sprintf("present-%d", i))
	}

	falsePositives := 0
	const probes = 1000
	for i := 0; i < probes; i++ {
		if f.Contains(fmt.Sprintf("absent-%d", i)) {
			falsePositives++
		}
	}

	// At half the expected load the observed rate should stay well under
	// 10x the 1% target.
	assert.Less(t, falsePositives, probes/10)
}

func TestFalsePositiveRateGrowsMonotonically(t *testing.T) {
	f := New(100, 0.01)
	assert.Zero(t, f.EstimatedFalsePositiveRate())

	prev := 0.0
	for i := 0; i < 200; i++ {
		f.Add(fmt.Sprintf("item-%d", i))
		current := f.EstimatedFalsePositiveRate()
		assert.GreaterOrEqual(t, current, prev)
		prev = current
	}

	// Overfilled filter exceeds its target rate.
	assert.Greater(t, prev, 0.01)
}

func TestGetStats(t *testing.T) {
	f := New(100, 0.01)
	f.Add("one")
	f.Add("two")

	stats := f.GetStats()
	assert.Equal(t, uint64(2), stats.InsertedElements)
	assert.Equal(t, uint64(100), stats.ExpectedElements)
	assert.InDelta(t, 0.01, stats.TargetFPRate, 1e-9)
	assert.Greater(t, stats.FillRatio, 0.0)
	assert.Less(t, stats.FillRatio, 1.0)
}

func TestDegenerateConstruction(t *testing.T) {
	f := New(0, 2.0)
	f.Add("x")
	assert.True(t, f.Contains("x"))
}
