package graphstore

import (
	"sort"

	"github.com/storygraph/backend/pkg/common"
)

// ConnectedComponents returns the connected components of the news similarity
// graph, keeping only components with at least minSize members. Components
// and their members come back in deterministic order.
func (s *Store) ConnectedComponents(minSize int) [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.componentsLocked(minSize)
}

func (s *Store) componentsLocked(minSize int) [][]string {
	if minSize < 1 {
		minSize = 1
	}

	visited := make(map[string]bool, len(s.news))
	var components [][]string

	for _, start := range s.sortedNewsIDs() {
		if visited[start] {
			continue
		}
		component := []string{}
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			component = append(component, id)
			for _, peer := range sortedKeysRelation(s.newsEdges[id]) {
				if visited[peer] {
					continue
				}
				visited[peer] = true
				queue = append(queue, peer)
			}
		}
		if len(component) < minSize {
			continue
		}
		sort.Strings(component)
		components = append(components, component)
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// Subgraph returns the news relations induced by a set of news ids, each
// undirected edge reported once.
func (s *Store) Subgraph(newsIDs []string) []*common.NewsRelation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subgraphLocked(newsIDs)
}

func (s *Store) subgraphLocked(newsIDs []string) []*common.NewsRelation {
	member := make(map[string]struct{}, len(newsIDs))
	for _, id := range newsIDs {
		member[id] = struct{}{}
	}

	var edges []*common.NewsRelation
	for _, id := range newsIDs {
		for peer, rel := range s.newsEdges[id] {
			if id >= peer {
				continue
			}
			if _, ok := member[peer]; !ok {
				continue
			}
			edges = append(edges, rel)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SourceNewsID != edges[j].SourceNewsID {
			return edges[i].SourceNewsID < edges[j].SourceNewsID
		}
		return edges[i].TargetNewsID < edges[j].TargetNewsID
	})
	return edges
}

// Neighbors returns the ids of news reachable from the given item within
// depth hops, excluding the item itself. Depth 1 is the direct neighborhood.
func (s *Store) Neighbors(newsID string, depth int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.news[newsID]; !ok {
		return nil, ErrNotFound
	}
	if depth < 1 {
		return nil, nil
	}

	visited := map[string]bool{newsID: true}
	frontier := []string{newsID}
	var reached []string

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, peer := range sortedKeysRelation(s.newsEdges[id]) {
				if visited[peer] {
					continue
				}
				visited[peer] = true
				reached = append(reached, peer)
				next = append(next, peer)
			}
		}
		frontier = next
	}

	sort.Strings(reached)
	return reached, nil
}

// Cohesion computes the mean weight of the edges induced by a member set.
// A set with fewer than two members is perfectly cohesive; a larger set with
// no internal edges has zero cohesion.
func (s *Store) Cohesion(newsIDs []string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cohesionLocked(newsIDs)
}

func (s *Store) cohesionLocked(newsIDs []string) float64 {
	if len(newsIDs) < 2 {
		return 1.0
	}
	edges := s.subgraphLocked(newsIDs)
	if len(edges) == 0 {
		return 0.0
	}
	total := 0.0
	for _, rel := range edges {
		total += rel.Weight
	}
	return total / float64(len(edges))
}

func sortedKeysRelation(peers map[string]*common.NewsRelation) []string {
	if len(peers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(peers))
	for k := range peers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
