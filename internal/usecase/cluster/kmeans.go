package cluster

import (
	"math"
	"math/rand/v2"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

const (
	kmeansMaxIterations = 100
	kmeansTolerance     = 1e-4
)

type kmeans struct{}

// partition runs Lloyd's iterations from a seeded Forgy initialization.
// After convergence every empty cluster takes the point farthest from the
// centroid of a cluster with more than one member, so k <= n always yields
// exactly k groups.
func (kmeans) partition(in *input, o dc.Options, k int) partition {
	pts := in.f.combined
	n := len(pts)
	k = max(1, min(k, n))

	rng := rand.New(rand.NewPCG(uint64(o.Seed), uint64(o.Seed)^0x9e3779b97f4a7c15))
	centroids := make([][]float64, k)
	for c, i := range rng.Perm(n)[:k] {
		centroids[c] = append([]float64(nil), pts[i]...)
	}

	assign := make([]int, n)
	for range kmeansMaxIterations {
		for i, p := range pts {
			assign[i] = nearest(p, centroids)
		}
		shift := 0.0
		for c := range centroids {
			members := membersOf(assign, c)
			if len(members) == 0 {
				continue
			}
			next := mean(pts, members)
			shift = math.Max(shift, euclidean(next, centroids[c]))
			centroids[c] = next
		}
		if shift < kmeansTolerance {
			break
		}
	}

	repairEmpty(pts, assign, centroids)
	return partition{groups: groupsFromAssignment(assign, k)}
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, ctr := range centroids {
		if d := euclidean(p, ctr); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func membersOf(assign []int, c int) []int {
	var out []int
	for i, a := range assign {
		if a == c {
			out = append(out, i)
		}
	}
	return out
}

// repairEmpty moves one point into every empty cluster.
func repairEmpty(pts [][]float64, assign []int, centroids [][]float64) {
	sizes := make([]int, len(centroids))
	for _, a := range assign {
		sizes[a]++
	}
	for c := range centroids {
		if sizes[c] > 0 {
			continue
		}
		donor, far := -1, -1.0
		for i, a := range assign {
			if sizes[a] < 2 {
				continue
			}
			if d := euclidean(pts[i], centroids[a]); d > far {
				donor, far = i, d
			}
		}
		if donor < 0 {
			return
		}
		from := assign[donor]
		assign[donor] = c
		sizes[from]--
		sizes[c]++
		centroids[c] = append([]float64(nil), pts[donor]...)
		centroids[from] = mean(pts, membersOf(assign, from))
	}
}
