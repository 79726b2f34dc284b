package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	m := NewMatrix(16, 0.1)

	m.Set(1, 2, 0.75)
	v, ok := m.Get(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)

	// Unset cell
	_, ok = m.Get(3, 4)
	assert.False(t, ok)
	assert.Zero(t, m.Value(3, 4))
}

func TestThresholdPruning(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantKept  bool
	}{
		{name: "above threshold", value: 0.5, wantKept: true},
		{name: "negative above threshold", value: -0.5, wantKept: true},
		{name: "below threshold", value: 0.05, wantKept: false},
		{name: "exactly zero", value: 0, wantKept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatrix(16, 0.1)
			m.Set(0, 1, tt.value)

			v, ok := m.Get(0, 1)
			assert.Equal(t, tt.wantKept, ok)
			if tt.wantKept {
				assert.Equal(t, tt.value, v)
			} else {
				assert.Zero(t, m.Value(0, 1))
			}
		})
	}
}

func TestSubThresholdWriteDeletesExistingCell(t *testing.T) {
	m := NewMatrix(16, 0.1)
	m.Set(2, 3, 0.9)
	assert.Equal(t, 1, m.NonZeroCells())

	m.Set(2, 3, 0.01)
	_, ok := m.Get(2, 3)
	assert.False(t, ok)
	assert.Zero(t, m.NonZeroCells())
}

func TestCapacityDoublingPreservesEntries(t *testing.T) {
	m := NewMatrix(4, 0.1)
	m.Set(0, 1, 0.5)
	assert.Equal(t, 4, m.Capacity())

	m.Set(100, 3, 0.8)
	assert.Equal(t, 128, m.Capacity())

	// Pre-growth entry survives
	v, ok := m.Get(0, 1)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)

	v, ok = m.Get(100, 3)
	assert.True(t, ok)
	assert.Equal(t, 0.8, v)
}

func TestRowReturnsCopy(t *testing.T) {
	m := NewMatrix(16, 0.1)
	m.Set(5, 1, 0.4)
	m.Set(5, 2, 0.6)

	row := m.Row(5)
	assert.Len(t, row, 2)

	row[3] = 0.9
	_, ok := m.Get(5, 3)
	assert.False(t, ok)
}

func TestGetStats(t *testing.T) {
	m := NewMatrix(8, 0.1)
	m.Set(0, 1, 0.5)
	m.Set(1, 0, 0.5)

	stats := m.GetStats()
	assert.Equal(t, 8, stats.Capacity)
	assert.Equal(t, 2, stats.NonZeroCells)
	assert.InDelta(t, 2.0/64.0, stats.OccupancyRate, 1e-9)
}

func TestNegativeIndicesIgnored(t *testing.T) {
	m := NewMatrix(8, 0.1)
	m.Set(-1, 2, 0.9)
	assert.Zero(t, m.NonZeroCells())
}
