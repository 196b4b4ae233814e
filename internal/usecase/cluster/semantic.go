package cluster

import (
	"cmp"
	"slices"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

type semanticGrouping struct{}

// partition walks results by descending score and puts each into the most
// similar open group whose running centroid reaches the similarity
// threshold. A group stops accepting members at MaxClusterSize.
func (semanticGrouping) partition(in *input, o dc.Options, _ int) partition {
	vecs := in.f.semantic
	order := make([]int, len(vecs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(in.scores[b], in.scores[a])
	})

	var groups [][]int
	var sums [][]float64
	for _, i := range order {
		best, bestSim := -1, 0.0
		for g := range groups {
			if len(groups[g]) >= o.MaxClusterSize {
				continue
			}
			sim := cosine(vecs[i], sums[g])
			if sim >= o.SimilarityThreshold && (best < 0 || sim > bestSim) {
				best, bestSim = g, sim
			}
		}
		if best < 0 {
			groups = append(groups, []int{i})
			sums = append(sums, append([]float64(nil), vecs[i]...))
			continue
		}
		groups[best] = append(groups[best], i)
		for j, x := range vecs[i] {
			sums[best][j] += x
		}
	}
	for _, g := range groups {
		slices.Sort(g)
	}
	return partition{groups: groups}
}
