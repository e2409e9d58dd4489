package cluster

import (
	"sort"

	"github.com/storygraph/backend/pkg/ai"
)

const (
	labelUndefined = 0
	labelNoise     = -1
)

// dbscan runs density-based clustering over embedding vectors using cosine
// distance. Points with fewer than minPts neighbors inside eps that are not
// reachable from a core point are noise and appear in no group. Groups come
// back with members sorted for stable output.
func dbscan(ids []string, vectors [][]float32, eps float64, minPts int) [][]string {
	labels := make([]int, len(ids))
	cluster := 0

	for i := range ids {
		if labels[i] != labelUndefined {
			continue
		}
		neighbors := regionQuery(vectors, i, eps)
		if len(neighbors) < minPts {
			labels[i] = labelNoise
			continue
		}

		cluster++
		labels[i] = cluster

		// Expand the cluster through every density-reachable point.
		queue := append([]int{}, neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == labelNoise {
				labels[j] = cluster
			}
			if labels[j] != labelUndefined {
				continue
			}
			labels[j] = cluster
			reachable := regionQuery(vectors, j, eps)
			if len(reachable) >= minPts {
				queue = append(queue, reachable...)
			}
		}
	}

	groups := make(map[int][]string)
	for i, label := range labels {
		if label == labelNoise {
			continue
		}
		groups[label] = append(groups[label], ids[i])
	}

	result := make([][]string, 0, len(groups))
	for _, members := range groups {
		if len(members) < minPts {
			continue
		}
		sort.Strings(members)
		result = append(result, members)
	}
	sort.Slice(result, func(i, j int) bool { return result[i][0] < result[j][0] })
	return result
}

// regionQuery returns the indices of every point within eps cosine distance
// of point i, including i itself.
func regionQuery(vectors [][]float32, i int, eps float64) []int {
	var neighbors []int
	for j := range vectors {
		if ai.CosineDistance(vectors[i], vectors[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
