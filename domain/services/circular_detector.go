package services

import (
	"fmt"
	"sort"
	"strings"

	"reasongraph-engine/domain/core/valueobjects"
)

// CircularPatternType labels how a cycle was found.
type CircularPatternType string

const (
	PatternDirectCycle       CircularPatternType = "direct_cycle"
	PatternPremiseConclusion CircularPatternType = "premise_conclusion_loop"
	PatternIndirectCycle     CircularPatternType = "indirect_cycle"
)

// CircularPattern is one detected instance of circular reasoning.
type CircularPattern struct {
	Type        CircularPatternType      `json:"type"`
	ThoughtIDs  []valueobjects.ThoughtID `json:"thought_ids"`
	Description string                   `json:"description"`
	Confidence  float64                  `json:"confidence"`
}

// DetectorStats reports the size of the tracked dependency graph.
type DetectorStats struct {
	TrackedThoughts int `json:"tracked_thoughts"`
	Premises        int `json:"premises"`
	Conclusions     int `json:"conclusions"`
	Dependencies    int `json:"dependencies"`
	Evicted         int `json:"evicted"`
}

type trackedThought struct {
	premises    []string
	conclusions []string
}

// CircularDetector accumulates each thought's premises, conclusions, and
// explicit dependencies, and runs cycle detection over the resulting graph.
//
// The graph is capacity-bounded: once maxTracked thoughts are registered,
// the oldest tracked thought is evicted (FIFO) and cycles passing through
// it can no longer be found. Worst case for detection is O(V^3) in tracked
// thoughts.
type CircularDetector struct {
	extractor ReasoningExtractor

	premiseMap    map[string]map[valueobjects.ThoughtID]struct{}
	conclusionMap map[string]map[valueobjects.ThoughtID]struct{}
	dependencyMap map[valueobjects.ThoughtID]map[valueobjects.ThoughtID]struct{}
	thoughts      map[valueobjects.ThoughtID]*trackedThought

	order      []valueobjects.ThoughtID
	maxTracked int
	evicted    int
}

// NewCircularDetector creates a detector with the given extractor and
// capacity bound. A bound below 1 disables eviction.
func NewCircularDetector(extractor ReasoningExtractor, maxTracked int) *CircularDetector {
	if extractor == nil {
		extractor = NewRegexReasoningExtractor()
	}
	return &CircularDetector{
		extractor:     extractor,
		premiseMap:    make(map[string]map[valueobjects.ThoughtID]struct{}),
		conclusionMap: make(map[string]map[valueobjects.ThoughtID]struct{}),
		dependencyMap: make(map[valueobjects.ThoughtID]map[valueobjects.ThoughtID]struct{}),
		thoughts:      make(map[valueobjects.ThoughtID]*trackedThought),
		maxTracked:    maxTracked,
	}
}

// AddThought parses the text and records its premises, conclusions, and
// dependencies. extraDependencies lets the caller supply targets the text
// itself does not name (e.g. from cross-references).
func (cd *CircularDetector) AddThought(id valueobjects.ThoughtID, text string, extraDependencies []valueobjects.ThoughtID) {
	if _, exists := cd.thoughts[id]; exists {
		// Content-addressed ids make re-adds true duplicates
		cd.addDependencies(id, extraDependencies)
		return
	}

	elements := cd.extractor.Extract(text)

	tracked := &trackedThought{
		premises:    elements.Premises,
		conclusions: elements.Conclusions,
	}
	cd.thoughts[id] = tracked
	cd.order = append(cd.order, id)

	for _, premise := range elements.Premises {
		if cd.premiseMap[premise] == nil {
			cd.premiseMap[premise] = make(map[valueobjects.ThoughtID]struct{})
		}
		cd.premiseMap[premise][id] = struct{}{}
	}
	for _, conclusion := range elements.Conclusions {
		if cd.conclusionMap[conclusion] == nil {
			cd.conclusionMap[conclusion] = make(map[valueobjects.ThoughtID]struct{})
		}
		cd.conclusionMap[conclusion][id] = struct{}{}
	}

	deps := make([]valueobjects.ThoughtID, 0, len(elements.Dependencies)+len(extraDependencies))
	for _, dep := range elements.Dependencies {
		deps = append(deps, valueobjects.ThoughtID(dep))
	}
	deps = append(deps, extraDependencies...)
	cd.addDependencies(id, deps)

	if cd.maxTracked > 0 {
		for len(cd.order) > cd.maxTracked {
			cd.evict(cd.order[0])
		}
	}
}

// DetectAllPatterns unions direct, premise/conclusion, and indirect cycle
// detection.
func (cd *CircularDetector) DetectAllPatterns() []CircularPattern {
	patterns := cd.DetectDirectCircles()
	patterns = append(patterns, cd.DetectPremiseConclusionCircles()...)
	patterns = append(patterns, cd.DetectIndirectCircles()...)
	return patterns
}

// DetectDirectCircles runs a depth-first search from every tracked thought
// over the dependency map, reporting a cycle whenever a node already on the
// current exploration path is revisited. The in-path set is cloned per
// branch so sibling explorations do not contaminate each other.
func (cd *CircularDetector) DetectDirectCircles() []CircularPattern {
	patterns := make([]CircularPattern, 0)
	reported := make(map[string]bool)

	var dfs func(node valueobjects.ThoughtID, path []valueobjects.ThoughtID, inPath map[valueobjects.ThoughtID]bool)
	dfs = func(node valueobjects.ThoughtID, path []valueobjects.ThoughtID, inPath map[valueobjects.ThoughtID]bool) {
		for dep := range cd.dependencyMap[node] {
			if inPath[dep] {
				cycle := extractCycle(path, dep)
				key := canonicalKey(cycle)
				if !reported[key] {
					reported[key] = true
					patterns = append(patterns, CircularPattern{
						Type:        PatternDirectCycle,
						ThoughtIDs:  cycle,
						Description: fmt.Sprintf("dependency cycle through %d thoughts", len(cycle)),
						Confidence:  1.0,
					})
				}
				continue
			}

			clonedPath := append(append([]valueobjects.ThoughtID(nil), path...), dep)
			clonedInPath := make(map[valueobjects.ThoughtID]bool, len(inPath)+1)
			for k := range inPath {
				clonedInPath[k] = true
			}
			clonedInPath[dep] = true
			dfs(dep, clonedPath, clonedInPath)
		}
	}

	for _, start := range cd.order {
		dfs(start, []valueobjects.ThoughtID{start}, map[valueobjects.ThoughtID]bool{start: true})
	}

	return patterns
}

// DetectPremiseConclusionCircles finds pairs of thoughts that argue into
// each other: a conclusion of one is lexically similar to a premise of the
// other, in both directions. Word-overlap Jaccard above 0.5 over words
// longer than 3 characters counts as similar.
func (cd *CircularDetector) DetectPremiseConclusionCircles() []CircularPattern {
	patterns := make([]CircularPattern, 0)
	reported := make(map[string]bool)

	for i, t1 := range cd.order {
		for _, t2 := range cd.order[i+1:] {
			if cd.arguesInto(t1, t2) && cd.arguesInto(t2, t1) {
				cycle := []valueobjects.ThoughtID{t1, t2}
				key := canonicalKey(cycle)
				if reported[key] {
					continue
				}
				reported[key] = true
				patterns = append(patterns, CircularPattern{
					Type:        PatternPremiseConclusion,
					ThoughtIDs:  cycle,
					Description: "conclusion of each thought restates a premise of the other",
					Confidence:  0.8,
				})
			}
		}
	}

	return patterns
}

// DetectIndirectCircles computes the transitive closure of the dependency
// map via reachability-set joins and flags any thought reachable from
// itself through a path longer than 3 hops. The reported path is
// reconstructed with a breadth-first search.
func (cd *CircularDetector) DetectIndirectCircles() []CircularPattern {
	reachable := make(map[valueobjects.ThoughtID]map[valueobjects.ThoughtID]bool, len(cd.dependencyMap))
	for node, deps := range cd.dependencyMap {
		set := make(map[valueobjects.ThoughtID]bool, len(deps))
		for dep := range deps {
			set[dep] = true
		}
		reachable[node] = set
	}

	// Floyd-Warshall-style joins: whenever k is reachable from i, fold
	// k's reachability set into i's. Iterate to a fixed point.
	changed := true
	for changed {
		changed = false
		for _, i := range cd.order {
			ri := reachable[i]
			for k := range ri {
				for j := range reachable[k] {
					if !ri[j] {
						ri[j] = true
						changed = true
					}
				}
			}
		}
	}

	patterns := make([]CircularPattern, 0)
	reported := make(map[string]bool)

	for _, node := range cd.order {
		if !reachable[node][node] {
			continue
		}
		path := cd.shortestCycle(node)
		// Hop count is the number of edges traversed back to the start
		if len(path) <= 3 {
			continue
		}
		key := canonicalKey(path)
		if reported[key] {
			continue
		}
		reported[key] = true
		patterns = append(patterns, CircularPattern{
			Type:        PatternIndirectCycle,
			ThoughtIDs:  path,
			Description: fmt.Sprintf("indirect dependency cycle of %d hops", len(path)),
			Confidence:  0.7,
		})
	}

	return patterns
}

// GetStats reports the size of the tracked dependency graph.
func (cd *CircularDetector) GetStats() DetectorStats {
	deps := 0
	for _, set := range cd.dependencyMap {
		deps += len(set)
	}
	return DetectorStats{
		TrackedThoughts: len(cd.thoughts),
		Premises:        len(cd.premiseMap),
		Conclusions:     len(cd.conclusionMap),
		Dependencies:    deps,
		Evicted:         cd.evicted,
	}
}

func (cd *CircularDetector) addDependencies(id valueobjects.ThoughtID, deps []valueobjects.ThoughtID) {
	if len(deps) == 0 {
		return
	}
	set := cd.dependencyMap[id]
	if set == nil {
		set = make(map[valueobjects.ThoughtID]struct{})
		cd.dependencyMap[id] = set
	}
	for _, dep := range deps {
		if dep == "" || dep == id {
			continue
		}
		set[dep] = struct{}{}
	}
}

// arguesInto reports whether any conclusion of from is lexically similar to
// any premise of into.
func (cd *CircularDetector) arguesInto(from, into valueobjects.ThoughtID) bool {
	fromThought := cd.thoughts[from]
	intoThought := cd.thoughts[into]
	if fromThought == nil || intoThought == nil {
		return false
	}
	for _, conclusion := range fromThought.conclusions {
		for _, premise := range intoThought.premises {
			if clauseOverlap(conclusion, premise) > 0.5 {
				return true
			}
		}
	}
	return false
}

// shortestCycle runs a breadth-first search from node back to itself over
// the dependency map and returns the node sequence of the shortest cycle.
func (cd *CircularDetector) shortestCycle(node valueobjects.ThoughtID) []valueobjects.ThoughtID {
	parent := make(map[valueobjects.ThoughtID]valueobjects.ThoughtID)
	visited := map[valueobjects.ThoughtID]bool{node: true}
	queue := []valueobjects.ThoughtID{node}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for dep := range cd.dependencyMap[current] {
			if dep == node {
				// Rebuild node -> ... -> current
				path := []valueobjects.ThoughtID{current}
				for at := current; at != node; {
					at = parent[at]
					path = append(path, at)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if !visited[dep] {
				visited[dep] = true
				parent[dep] = current
				queue = append(queue, dep)
			}
		}
	}

	return nil
}

func (cd *CircularDetector) evict(id valueobjects.ThoughtID) {
	tracked := cd.thoughts[id]
	if tracked == nil {
		return
	}

	for _, premise := range tracked.premises {
		delete(cd.premiseMap[premise], id)
		if len(cd.premiseMap[premise]) == 0 {
			delete(cd.premiseMap, premise)
		}
	}
	for _, conclusion := range tracked.conclusions {
		delete(cd.conclusionMap[conclusion], id)
		if len(cd.conclusionMap[conclusion]) == 0 {
			delete(cd.conclusionMap, conclusion)
		}
	}

	delete(cd.dependencyMap, id)
	for _, set := range cd.dependencyMap {
		delete(set, id)
	}

	delete(cd.thoughts, id)
	cd.order = cd.order[1:]
	cd.evicted++
}

// extractCycle returns the path suffix starting at the revisited node.
func extractCycle(path []valueobjects.ThoughtID, revisited valueobjects.ThoughtID) []valueobjects.ThoughtID {
	for i, node := range path {
		if node == revisited {
			return append([]valueobjects.ThoughtID(nil), path[i:]...)
		}
	}
	return append([]valueobjects.ThoughtID(nil), path...)
}

// canonicalKey builds an order-independent identity for a cycle so the same
// cycle discovered from different entry points is reported once.
func canonicalKey(ids []valueobjects.ThoughtID) string {
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = id.String()
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// clauseOverlap computes word-overlap Jaccard between two clauses,
// considering only words longer than 3 characters.
func clauseOverlap(a, b string) float64 {
	wordsA := significantClauseWords(a)
	wordsB := significantClauseWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	union := make(map[string]bool, len(wordsA)+len(wordsB))
	for w := range wordsA {
		union[w] = true
		if wordsB[w] {
			intersection++
		}
	}
	for w := range wordsB {
		union[w] = true
	}

	return float64(intersection) / float64(len(union))
}

func significantClauseWords(clause string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(clause)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}
