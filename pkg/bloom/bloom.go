// Package bloom implements a seeded-hash Bloom filter for cheap
// set-membership pre-checks.
package bloom

import (
	"hash/fnv"
	"math"
	"math/bits"
)

// Filter is a probabilistic set-membership structure. It never produces
// false negatives; the false-positive rate starts at the configured target
// and grows monotonically with insertions.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint32
	inserted  uint64
	expected  uint64
	targetFPR float64
}

// Stats is a snapshot of filter sizing and load.
type Stats struct {
	NumBits           uint64  `json:"num_bits"`
	NumHashes         uint32  `json:"num_hashes"`
	InsertedElements  uint64  `json:"inserted_elements"`
	ExpectedElements  uint64  `json:"expected_elements"`
	TargetFPRate      float64 `json:"target_fp_rate"`
	EstimatedFPRate   float64 `json:"estimated_fp_rate"`
	FillRatio         float64 `json:"fill_ratio"`
}

// New derives the bit-array size and hash count from the expected element
// count and the target false-positive rate:
//
//	m = ceil(-n * ln(p) / ln(2)^2)
//	k = ceil((m / n) * ln(2))
func New(expectedElements int, falsePositiveRate float64) *Filter {
	if expectedElements < 1 {
		expectedElements = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedElements)
	ln2 := math.Ln2
	m := uint64(math.Ceil(-n * math.Log(falsePositiveRate) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint32(math.Ceil(float64(m) / n * ln2))
	if k == 0 {
		k = 1
	}

	return &Filter{
		bits:      make([]uint64, (m+63)/64),
		numBits:   m,
		numHashes: k,
		expected:  uint64(expectedElements),
		targetFPR: falsePositiveRate,
	}
}

// Add inserts an item by setting k seeded bit positions.
func (f *Filter) Add(item string) {
	h1, h2 := f.hashPair(item)
	for i := uint32(0); i < f.numHashes; i++ {
		pos := f.position(h1, h2, i)
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.inserted++
}

// Contains reports whether the item may have been added. A false result is
// definitive; a true result may be a false positive.
func (f *Filter) Contains(item string) bool {
	h1, h2 := f.hashPair(item)
	for i := uint32(0); i < f.numHashes; i++ {
		pos := f.position(h1, h2, i)
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// EstimatedFalsePositiveRate computes the current rate from the actual
// insertion count: (1 - e^(-k*n/m))^k.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	if f.inserted == 0 {
		return 0
	}
	exponent := -float64(f.numHashes) * float64(f.inserted) / float64(f.numBits)
	return math.Pow(1-math.Exp(exponent), float64(f.numHashes))
}

// InsertedElements returns how many Add calls have been made.
func (f *Filter) InsertedElements() uint64 {
	return f.inserted
}

// GetStats returns a snapshot of the filter's sizing and load.
func (f *Filter) GetStats() Stats {
	setBits := uint64(0)
	for _, word := range f.bits {
		setBits += uint64(bits.OnesCount64(word))
	}
	return Stats{
		NumBits:          f.numBits,
		NumHashes:        f.numHashes,
		InsertedElements: f.inserted,
		ExpectedElements: f.expected,
		TargetFPRate:     f.targetFPR,
		EstimatedFPRate:  f.EstimatedFalsePositiveRate(),
		FillRatio:        float64(setBits) / float64(f.numBits),
	}
}

// hashPair derives two independent 64-bit hashes; the k positions are
// generated by double hashing (h1 + i*h2), which preserves the independence
// guarantees needed for the sizing formulas.
func (f *Filter) hashPair(item string) (uint64, uint64) {
	h := fnv.New64a()
	h.Write([]byte(item))
	h1 := h.Sum64()

	h.Reset()
	h.Write([]byte{0x9e})
	h.Write([]byte(item))
	h2 := h.Sum64()
	if h2 == 0 {
		h2 = 0x9e3779b97f4a7c15
	}
	return h1, h2
}

func (f *Filter) position(h1, h2 uint64, i uint32) uint64 {
	return (h1 + uint64(i)*h2) % f.numBits
}
