// Package services contains the analytical domain services: text analysis,
// premise/conclusion extraction, contradiction pre-filtering, similarity
// tracking, and circular-reasoning detection.
package services

import (
	"strings"
	"unicode"
)

// TextAnalyzer provides text analysis capabilities for the domain
// This is a domain service that encapsulates text processing logic
type TextAnalyzer interface {
	// ExtractKeywords extracts meaningful keywords from text
	ExtractKeywords(text string) []string

	// TokenizeWords breaks text into a set of unique lowercase words
	TokenizeWords(text string) map[string]bool

	// ExtractConcepts returns significant words in order of appearance,
	// with duplicates removed
	ExtractConcepts(text string) []string

	// ConceptPairs returns ordered adjacent concept bigrams
	ConceptPairs(text string) [][2]string

	// HasNegation reports whether the text contains a negation keyword
	HasNegation(text string) bool
}

// DefaultTextAnalyzer provides a default implementation of TextAnalyzer
type DefaultTextAnalyzer struct {
	stopWords     map[string]bool
	negationWords map[string]bool
	minWordLength int
}

// NewDefaultTextAnalyzer creates a new text analyzer with common English
// stop words and negation markers.
func NewDefaultTextAnalyzer() *DefaultTextAnalyzer {
	return &DefaultTextAnalyzer{
		stopWords:     getDefaultStopWords(),
		negationWords: getNegationWords(),
		minWordLength: 3,
	}
}

// ExtractKeywords extracts meaningful keywords from text
func (ta *DefaultTextAnalyzer) ExtractKeywords(text string) []string {
	words := ta.TokenizeWords(text)
	keywords := make([]string, 0)

	for word := range words {
		// Skip stop words and very short words
		if !ta.stopWords[word] && len(word) > 2 {
			keywords = append(keywords, word)
		}
	}

	return keywords
}

// TokenizeWords breaks text into a set of unique lowercase words
func (ta *DefaultTextAnalyzer) TokenizeWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range ta.tokenize(text) {
		if len(word) > 1 {
			words[word] = true
		}
	}
	return words
}

// ExtractConcepts returns significant words in their order of appearance.
// Unlike ExtractKeywords the ordering is stable, which matters for
// concept-pair construction.
func (ta *DefaultTextAnalyzer) ExtractConcepts(text string) []string {
	seen := make(map[string]bool)
	concepts := make([]string, 0)

	for _, word := range ta.tokenize(text) {
		if len(word) < ta.minWordLength || ta.stopWords[word] || ta.negationWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		concepts = append(concepts, word)
	}

	return concepts
}

// ConceptPairs returns ordered adjacent concept bigrams. A reversed pair
// appearing in later text is a cheap signal of a flipped relationship.
func (ta *DefaultTextAnalyzer) ConceptPairs(text string) [][2]string {
	concepts := ta.ExtractConcepts(text)
	if len(concepts) < 2 {
		return nil
	}

	pairs := make([][2]string, 0, len(concepts)-1)
	for i := 0; i+1 < len(concepts); i++ {
		pairs = append(pairs, [2]string{concepts[i], concepts[i+1]})
	}
	return pairs
}

// HasNegation reports whether the text contains a negation keyword.
func (ta *DefaultTextAnalyzer) HasNegation(text string) bool {
	for _, word := range ta.tokenize(text) {
		if ta.negationWords[word] {
			return true
		}
	}
	// Contractions tokenize with the apostrophe dropped
	lower := strings.ToLower(text)
	return strings.Contains(lower, "n't")
}

// tokenize splits text into ordered lowercase words on non-alphanumeric
// boundaries.
func (ta *DefaultTextAnalyzer) tokenize(text string) []string {
	text = strings.ToLower(text)
	words := make([]string, 0)

	var currentWord strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			currentWord.WriteRune(r)
		} else if currentWord.Len() > 0 {
			words = append(words, currentWord.String())
			currentWord.Reset()
		}
	}
	if currentWord.Len() > 0 {
		words = append(words, currentWord.String())
	}

	return words
}

// getNegationWords returns markers used by the polarity heuristic.
func getNegationWords() map[string]bool {
	return map[string]bool{
		"not": true, "no": true, "never": true, "none": true, "neither": true,
		"nor": true, "cannot": true, "cant": true, "wont": true, "dont": true,
		"doesnt": true, "isnt": true, "arent": true, "wasnt": true,
		"werent": true, "without": true, "false": true, "untrue": true,
		"incorrect": true, "wrong": true, "impossible": true,
	}
}

// getDefaultStopWords returns a set of common English stop words
func getDefaultStopWords() map[string]bool {
	stopWords := map[string]bool{
		"the": true, "be": true, "to": true, "of": true, "and": true,
		"a": true, "in": true, "that": true, "have": true, "i": true,
		"it": true, "for": true, "on": true, "with": true,
		"he": true, "as": true, "you": true, "do": true, "at": true,
		"this": true, "but": true, "his": true, "by": true, "from": true,
		"they": true, "we": true, "say": true, "her": true, "she": true,
		"or": true, "an": true, "will": true, "my": true, "one": true,
		"all": true, "would": true, "there": true, "their": true, "what": true,
		"so": true, "up": true, "out": true, "if": true, "about": true,
		"who": true, "get": true, "which": true, "go": true, "me": true,
		"when": true, "make": true, "can": true, "like": true, "time": true,
		"just": true, "him": true, "know": true, "take": true,
		"people": true, "into": true, "year": true, "your": true, "good": true,
		"some": true, "could": true, "them": true, "see": true, "other": true,
		"than": true, "then": true, "now": true, "look": true, "only": true,
		"come": true, "its": true, "over": true, "think": true, "also": true,
		"back": true, "after": true, "use": true, "two": true, "how": true,
		"our": true, "work": true, "first": true, "well": true, "way": true,
		"even": true, "new": true, "want": true, "because": true, "any": true,
		"these": true, "give": true, "day": true, "most": true, "us": true,
		"is": true, "was": true, "are": true, "been": true, "has": true,
		"had": true, "were": true, "said": true, "did": true, "having": true,
		"may": true, "am": true, "should": true, "too": true, "very": true,
	}
	return stopWords
}
