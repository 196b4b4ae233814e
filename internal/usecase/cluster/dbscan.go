package cluster

import (
	"slices"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

type dbscan struct{}

// partition grows clusters from core points, those whose eps-neighborhood
// (the point included) holds at least MinPoints points. Points reachable
// from no core point are returned as noise.
func (dbscan) partition(in *input, o dc.Options, _ int) partition {
	pts := in.f.combined
	n := len(pts)
	dist := pairwise(pts)
	eps := o.Eps
	if eps == 0 {
		eps = autoEps(dist, o.MinPoints)
	}

	neighbors := func(p int) []int {
		var out []int
		for q := range n {
			if dist[p][q] <= eps {
				out = append(out, q)
			}
		}
		return out
	}

	const (
		unvisited = -2
		noise     = -1
	)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for p := range n {
		if labels[p] != unvisited {
			continue
		}
		nb := neighbors(p)
		if len(nb) < o.MinPoints {
			labels[p] = noise
			continue
		}
		c := next
		next++
		labels[p] = c
		queue := slices.Clone(nb)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] == noise {
				labels[q] = c
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = c
			if qn := neighbors(q); len(qn) >= o.MinPoints {
				queue = append(queue, qn...)
			}
		}
	}

	var out partition
	out.groups = groupsFromAssignment(labels, next)
	for i, l := range labels {
		if l == noise {
			out.noise = append(out.noise, i)
		}
	}
	return out
}

// autoEps is the median distance from each point to its (minPoints-1)-th
// nearest other point, so a typical point is a core point.
func autoEps(dist [][]float64, minPoints int) float64 {
	n := len(dist)
	if n < 2 {
		return 0
	}
	rank := min(max(minPoints-1, 1), n-1) - 1
	kd := make([]float64, n)
	for i := range dist {
		row := make([]float64, 0, n-1)
		for j, d := range dist[i] {
			if j != i {
				row = append(row, d)
			}
		}
		slices.Sort(row)
		kd[i] = row[rank]
	}
	slices.Sort(kd)
	if n%2 == 1 {
		return kd[n/2]
	}
	return (kd[n/2-1] + kd[n/2]) / 2
}
