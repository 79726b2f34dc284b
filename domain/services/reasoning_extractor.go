package services

import (
	"regexp"
	"strings"
)

// ReasoningElements is the structural decomposition of a thought's text.
type ReasoningElements struct {
	// Premises are clauses the thought argues from
	Premises []string
	// Conclusions are clauses the thought argues to
	Conclusions []string
	// Dependencies are thought ids the text explicitly references
	Dependencies []string
}

// ReasoningExtractor parses premises, conclusions, and explicit dependency
// references out of free text. Implementations are pluggable so the NLP
// strategy can be swapped without touching graph or evaluator logic.
type ReasoningExtractor interface {
	Extract(text string) ReasoningElements
}

// RegexReasoningExtractor recognizes common argumentative connectives.
type RegexReasoningExtractor struct {
	premisePatterns    []*regexp.Regexp
	conclusionPatterns []*regexp.Regexp
	dependencyPattern  *regexp.Regexp
}

// NewRegexReasoningExtractor builds the default pattern set.
func NewRegexReasoningExtractor() *RegexReasoningExtractor {
	return &RegexReasoningExtractor{
		premisePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bbecause\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bsince\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bgiven that\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bassuming\s+(?:that\s+)?([^,.;]+)`),
			regexp.MustCompile(`(?i)\bif\s+([^,.;]+?)\s*,?\s*then\b`),
		},
		conclusionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\btherefore\s*,?\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bthus\s*,?\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bhence\s*,?\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bit follows that\s+([^,.;]+)`),
			regexp.MustCompile(`(?i)\bwhich means\s+(?:that\s+)?([^,.;]+)`),
			regexp.MustCompile(`(?i)\bso\s+(?:we can conclude\s+(?:that\s+)?)?([^,.;]+)`),
		},
		dependencyPattern: regexp.MustCompile(`(?i)\b(?:depends on|builds on|based on|follows from|relies on)\s+(?:thought\s+)?([0-9a-f]{8,64})\b`),
	}
}

// Extract runs every pattern over the text and returns the trimmed,
// deduplicated matches.
func (e *RegexReasoningExtractor) Extract(text string) ReasoningElements {
	return ReasoningElements{
		Premises:     collectMatches(e.premisePatterns, text),
		Conclusions:  collectMatches(e.conclusionPatterns, text),
		Dependencies: collectMatches([]*regexp.Regexp{e.dependencyPattern}, text),
	}
}

func collectMatches(patterns []*regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	results := make([]string, 0)

	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			clause := strings.ToLower(strings.TrimSpace(match[1]))
			if clause == "" || seen[clause] {
				continue
			}
			seen[clause] = true
			results = append(results, clause)
		}
	}

	return results
}
