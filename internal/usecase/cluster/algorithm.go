package cluster

import (
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

// partition is the raw output of an algorithm: member indices per group in
// discovery order, plus the trailing bucket of unassigned results.
type partition struct {
	groups [][]int
	noise  []int
	// terms are the topic terms of each group, topic clustering only.
	terms [][]string
}

// size is the number of results the partition covers.
func (p partition) size() int {
	n := len(p.noise)
	for _, g := range p.groups {
		n += len(g)
	}
	return n
}

// input is what every algorithm reads.
type input struct {
	f      *features
	scores []float64
}

func (in *input) n() int { return len(in.f.combined) }

// algorithm partitions the input. k is the resolved cluster count for the
// algorithms that take one and zero otherwise.
type algorithm interface {
	partition(in *input, o dc.Options, k int) partition
}

// usesK reports whether the algorithm needs a cluster count.
func usesK(a dc.Algorithm) bool {
	return a == dc.KMeans || a == dc.Hierarchical
}

func algorithms() map[dc.Algorithm]algorithm {
	return map[dc.Algorithm]algorithm{
		dc.KMeans:       kmeans{},
		dc.Hierarchical: hierarchical{},
		dc.DBSCAN:       dbscan{},
		dc.Semantic:     semanticGrouping{},
		dc.Topic:        topicModel{},
	}
}

// groupsFromAssignment turns a label per point into groups ordered by label.
// Negative labels are skipped.
func groupsFromAssignment(assign []int, k int) [][]int {
	groups := make([][]int, k)
	for i, c := range assign {
		if c >= 0 {
			groups[c] = append(groups[c], i)
		}
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}
