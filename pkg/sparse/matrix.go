// Package sparse provides a threshold-pruned sparse 2-D numeric store.
package sparse

import "math"

// Matrix is a logical N×N matrix that only materializes cells whose
// magnitude meets the significance threshold. Capacity doubles whenever an
// index crosses the current bound; existing entries are preserved.
type Matrix struct {
	rows      map[int]map[int]float64
	capacity  int
	threshold float64
	cells     int
}

// Stats is a snapshot of matrix occupancy.
type Stats struct {
	Capacity      int     `json:"capacity"`
	NonZeroCells  int     `json:"non_zero_cells"`
	Threshold     float64 `json:"threshold"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

// NewMatrix creates a matrix with the given initial capacity and
// significance threshold. Cells written with |value| < threshold are
// deleted rather than stored.
func NewMatrix(initialCapacity int, threshold float64) *Matrix {
	if initialCapacity < 1 {
		initialCapacity = 16
	}
	return &Matrix{
		rows:      make(map[int]map[int]float64),
		capacity:  initialCapacity,
		threshold: threshold,
	}
}

// Set writes a single cell. Sub-threshold values actively delete any
// existing entry, so absence always means "unset or insignificant".
func (m *Matrix) Set(row, col int, value float64) {
	if row < 0 || col < 0 {
		return
	}
	m.grow(row)
	m.grow(col)

	if math.Abs(value) < m.threshold {
		m.delete(row, col)
		return
	}

	cells, ok := m.rows[row]
	if !ok {
		cells = make(map[int]float64)
		m.rows[row] = cells
	}
	if _, exists := cells[col]; !exists {
		m.cells++
	}
	cells[col] = value
}

// Get returns the stored value and whether the cell is materialized. The
// second result distinguishes "never set" and "set but pruned" from a
// significant stored value.
func (m *Matrix) Get(row, col int) (float64, bool) {
	cells, ok := m.rows[row]
	if !ok {
		return 0, false
	}
	v, ok := cells[col]
	return v, ok
}

// Value returns the stored value, or 0 for absent cells.
func (m *Matrix) Value(row, col int) float64 {
	v, _ := m.Get(row, col)
	return v
}

// Row returns a copy of the materialized cells in a row.
func (m *Matrix) Row(row int) map[int]float64 {
	cells := m.rows[row]
	out := make(map[int]float64, len(cells))
	for col, v := range cells {
		out[col] = v
	}
	return out
}

// Capacity returns the current logical dimension bound.
func (m *Matrix) Capacity() int {
	return m.capacity
}

// NonZeroCells returns the number of materialized cells.
func (m *Matrix) NonZeroCells() int {
	return m.cells
}

// Threshold returns the significance threshold.
func (m *Matrix) Threshold() float64 {
	return m.threshold
}

// GetStats returns a snapshot of matrix occupancy.
func (m *Matrix) GetStats() Stats {
	total := float64(m.capacity) * float64(m.capacity)
	occupancy := 0.0
	if total > 0 {
		occupancy = float64(m.cells) / total
	}
	return Stats{
		Capacity:      m.capacity,
		NonZeroCells:  m.cells,
		Threshold:     m.threshold,
		OccupancyRate: occupancy,
	}
}

func (m *Matrix) grow(index int) {
	for index >= m.capacity {
		m.capacity *= 2
	}
}

func (m *Matrix) delete(row, col int) {
	cells, ok := m.rows[row]
	if !ok {
		return
	}
	if _, exists := cells[col]; exists {
		delete(cells, col)
		m.cells--
		if len(cells) == 0 {
			delete(m.rows, row)
		}
	}
}
