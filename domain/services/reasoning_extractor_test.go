package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPremises(t *testing.T) {
	e := NewRegexReasoningExtractor()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "because clause",
			text: "The ground is wet because it rained overnight.",
			want: []string{"it rained overnight"},
		},
		{
			name: "since clause",
			text: "Since the data is stale, we must refetch.",
			want: []string{"the data is stale"},
		},
		{
			name: "given that clause",
			text: "Given that demand is rising, prices follow.",
			want: []string{"demand is rising"},
		},
		{
			name: "no premise",
			text: "The sky is blue.",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.text)
			assert.Equal(t, tt.want, got.Premises)
		})
	}
}

func TestExtractConclusions(t *testing.T) {
	e := NewRegexReasoningExtractor()

	got := e.Extract("It rained overnight. Therefore the ground is wet.")
	assert.Equal(t, []string{"the ground is wet"}, got.Conclusions)

	got = e.Extract("Thus, the hypothesis holds.")
	assert.Equal(t, []string{"the hypothesis holds"}, got.Conclusions)
}

func TestExtractDependencies(t *testing.T) {
	e := NewRegexReasoningExtractor()

	got := e.Extract("This builds on a1b2c3d4e5f60718 and depends on thought deadbeefcafe0123.")
	assert.Equal(t, []string{"a1b2c3d4e5f60718", "deadbeefcafe0123"}, got.Dependencies)

	got = e.Extract("No references here.")
	assert.Empty(t, got.Dependencies)
}

func TestExtractDeduplicates(t *testing.T) {
	e := NewRegexReasoningExtractor()

	got := e.Extract("Because it rained and because it rained again... no wait, because it rained")
	assert.Equal(t, []string{"it rained and because it rained again", "it rained"}, got.Premises)
}
