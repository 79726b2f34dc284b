// Package config provides configuration for the reasoning-graph engine.
// Values load from defaults, an optional YAML file, then environment
// variables (highest priority), and are validated before use.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	pkgerrors "reasongraph-engine/pkg/errors"
)

// Weights are the fixed linear-combination coefficients for the overall
// evaluation score. Contradiction and redundancy are penalty metrics; their
// complements are weighted.
type Weights struct {
	Coherence          float64 `yaml:"coherence" validate:"gte=0,lte=1"`
	Contradiction      float64 `yaml:"contradiction" validate:"gte=0,lte=1"`
	InformationGain    float64 `yaml:"information_gain" validate:"gte=0,lte=1"`
	Redundancy         float64 `yaml:"redundancy" validate:"gte=0,lte=1"`
	GoalAlignment      float64 `yaml:"goal_alignment" validate:"gte=0,lte=1"`
	ConfidenceGradient float64 `yaml:"confidence_gradient" validate:"gte=0,lte=1"`
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Coherence + w.Contradiction + w.InformationGain +
		w.Redundancy + w.GoalAlignment + w.ConfidenceGradient
}

// Config holds all engine configuration. It is a plain value object with no
// behavior beyond loading and validation.
type Config struct {
	// Thought id prefix length, in hex characters
	HashLength int `yaml:"hash_length" validate:"min=8,max=64"`

	// Evaluator backward window, in thoughts
	WindowSize int `yaml:"window_size" validate:"min=1,max=100"`

	// Minimum similarity magnitude kept in the sparse matrix
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`

	// Margin by which another branch's semantic center must win before a
	// branch-overlap advisory is raised
	BranchOverlapMargin float64 `yaml:"branch_overlap_margin" validate:"gte=0,lte=1"`

	// Bloom filter sizing
	BloomExpectedElements  int     `yaml:"bloom_expected_elements" validate:"min=1"`
	BloomFalsePositiveRate float64 `yaml:"bloom_false_positive_rate" validate:"gt=0,lt=1"`

	// Initial similarity-matrix capacity
	MatrixInitialCapacity int `yaml:"matrix_initial_capacity" validate:"min=1"`

	// Dependency-graph capacity for the circular detector; 0 disables
	// eviction
	MaxTrackedThoughts int `yaml:"max_tracked_thoughts" validate:"min=0"`

	// Deadline for a single embedding call
	EmbeddingTimeout time.Duration `yaml:"embedding_timeout" validate:"min=0"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Metric weights for the overall score
	Weights Weights `yaml:"weights"`
}

// DefaultConfig returns a balanced default configuration.
func DefaultConfig() *Config {
	return &Config{
		HashLength:             16,
		WindowSize:             5,
		SimilarityThreshold:    0.3,
		BranchOverlapMargin:    0.15,
		BloomExpectedElements:  10000,
		BloomFalsePositiveRate: 0.01,
		MatrixInitialCapacity:  64,
		MaxTrackedThoughts:     1000,
		EmbeddingTimeout:       5 * time.Second,
		LogLevel:               "info",
		Weights: Weights{
			Coherence:          0.25,
			Contradiction:      0.15,
			InformationGain:    0.20,
			Redundancy:         0.10,
			GoalAlignment:      0.20,
			ConfidenceGradient: 0.10,
		},
	}
}

// LoadConfig loads configuration from environment variables on top of
// defaults and validates the result.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads a YAML file on top of defaults, then applies
// environment variables, then validates.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, pkgerrors.NewConfiguration("invalid config file: " + err.Error())
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return pkgerrors.NewConfiguration("invalid configuration: " + err.Error())
	}

	sum := c.Weights.Sum()
	if sum < 0.999 || sum > 1.001 {
		return pkgerrors.NewConfiguration("metric weights must sum to 1.0")
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HashLength = getEnvInt("REASONGRAPH_HASH_LENGTH", c.HashLength)
	c.WindowSize = getEnvInt("REASONGRAPH_WINDOW_SIZE", c.WindowSize)
	c.SimilarityThreshold = getEnvFloat("REASONGRAPH_SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.BranchOverlapMargin = getEnvFloat("REASONGRAPH_BRANCH_OVERLAP_MARGIN", c.BranchOverlapMargin)
	c.BloomExpectedElements = getEnvInt("REASONGRAPH_BLOOM_EXPECTED_ELEMENTS", c.BloomExpectedElements)
	c.BloomFalsePositiveRate = getEnvFloat("REASONGRAPH_BLOOM_FP_RATE", c.BloomFalsePositiveRate)
	c.MatrixInitialCapacity = getEnvInt("REASONGRAPH_MATRIX_CAPACITY", c.MatrixInitialCapacity)
	c.MaxTrackedThoughts = getEnvInt("REASONGRAPH_MAX_TRACKED_THOUGHTS", c.MaxTrackedThoughts)
	c.LogLevel = getEnv("REASONGRAPH_LOG_LEVEL", c.LogLevel)

	if ms := getEnvInt("REASONGRAPH_EMBEDDING_TIMEOUT_MS", 0); ms > 0 {
		c.EmbeddingTimeout = time.Duration(ms) * time.Millisecond
	}
}

// getEnv retrieves an environment variable with a fallback
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback
func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback
func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
