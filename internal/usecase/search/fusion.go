package search

import (
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

// fuse combines the semantic and keyword rankings with weighted reciprocal
// rank: score = (1-w)/rank_semantic + w/rank_keyword, a missing rank
// contributing zero. The maximum is 1, reached by a result ranked first in
// both channels. w=0 returns the semantic channel and w=1 the keyword
// channel, even when that channel is empty. Otherwise an empty channel
// yields the other one with its own scores.
func fuse(semantic, keyword []result.Result, w float64, window int) []result.Result {
	switch {
	case w <= 0:
		return truncate(semantic, window)
	case w >= 1:
		return truncate(keyword, window)
	case len(keyword) == 0:
		return truncate(semantic, window)
	case len(semantic) == 0:
		return truncate(keyword, window)
	}

	scores := make(map[string]float64, len(semantic)+len(keyword))
	merged := make(map[string]result.Result, len(semantic)+len(keyword))
	var order []string
	add := func(rs []result.Result, weight float64) {
		for i := range rs {
			id := rs[i].ID()
			scores[id] += weight / float64(i+1)
			if prev, ok := merged[id]; ok {
				merged[id] = result.Merge(prev, rs[i])
				continue
			}
			merged[id] = rs[i]
			order = append(order, id)
		}
	}
	add(semantic, 1-w)
	add(keyword, w)

	out := make([]result.Result, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id].WithScore(scores[id]))
	}
	sortByScore(out)
	return truncate(out, window)
}

func truncate(rs []result.Result, n int) []result.Result {
	if len(rs) > n {
		return rs[:n]
	}
	return rs
}
