package store

import (
	"regexp"

	"reasongraph-engine/domain/core/valueobjects"
	"reasongraph-engine/domain/events"
	pkgerrors "reasongraph-engine/pkg/errors"
)

// BreadthFirstSearch walks the branch hierarchy outward from a starting
// branch, following both parent and child links, and returns every branch
// id reachable within maxDepth hops (including the start). maxDepth < 0
// means unbounded.
func (s *Store) BreadthFirstSearch(startBranch string, maxDepth int) (map[valueobjects.BranchID]struct{}, error) {
	start, err := valueobjects.ParseBranchID(startBranch)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.branches[start]; !ok {
		return nil, pkgerrors.NewNotFoundf("branch %q not found", start)
	}

	type queued struct {
		id    valueobjects.BranchID
		depth int
	}

	visited := map[valueobjects.BranchID]struct{}{start: {}}
	queue := []queued{{id: start}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if maxDepth >= 0 && current.depth >= maxDepth {
			continue
		}

		branch := s.branches[current.id]
		neighbors := make([]valueobjects.BranchID, 0, len(branch.ChildIDs)+1)
		if !branch.ParentID.IsEmpty() {
			neighbors = append(neighbors, branch.ParentID)
		}
		for child := range branch.ChildIDs {
			neighbors = append(neighbors, child)
		}

		for _, neighbor := range neighbors {
			if _, seen := visited[neighbor]; seen {
				continue
			}
			visited[neighbor] = struct{}{}
			queue = append(queue, queued{id: neighbor, depth: current.depth + 1})
		}
	}

	return visited, nil
}

// SearchThoughts returns every thought whose content matches the pattern,
// interpreted as a case-insensitive regular expression. Results follow the
// event log's insertion order.
func (s *Store) SearchThoughts(pattern string) ([]SearchResult, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, pkgerrors.NewValidationf("invalid search pattern: %v", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0)
	for _, event := range s.eventLog {
		if event.Kind != events.TypeThoughtAdded {
			continue
		}
		thought := s.thoughts[event.ThoughtID]
		if thought != nil && re.MatchString(thought.Content) {
			results = append(results, SearchResult{
				ThoughtID: thought.ID,
				BranchID:  thought.BranchID,
			})
		}
	}
	return results, nil
}
