// Package cluster groups search results by feature similarity and names
// the groups.
package cluster

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	"github.com/kailas-cloud/modeldex/internal/metrics"
)

// Config tunes worker usage.
type Config struct {
	// PoolThreshold is the result count from which runs use the pool.
	PoolThreshold    int
	MaxFanout        int
	EmbeddingTimeout time.Duration
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{PoolThreshold: 64, MaxFanout: 8, EmbeddingTimeout: 5 * time.Second}
}

// Service clusters and labels result sets.
type Service struct {
	embed      Embedder
	pool       Pool
	cache      ResponseCache
	logger     *zap.Logger
	cfg        Config
	tracer     trace.Tracer
	newID      func() string
	algorithms map[dc.Algorithm]algorithm
	labelers   map[dc.LabelStrategy]labeler
}

// Option configures a Service.
type Option func(*Service)

// WithPool runs large clustering runs on p.
func WithPool(p Pool) Option {
	return func(s *Service) { s.pool = p }
}

// WithCache enables the cluster response cache.
func WithCache(c ResponseCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithConfig overrides the default tuning. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		d := DefaultConfig()
		if cfg.PoolThreshold <= 0 {
			cfg.PoolThreshold = d.PoolThreshold
		}
		if cfg.MaxFanout <= 0 {
			cfg.MaxFanout = d.MaxFanout
		}
		if cfg.EmbeddingTimeout <= 0 {
			cfg.EmbeddingTimeout = d.EmbeddingTimeout
		}
		s.cfg = cfg
	}
}

// WithIDGenerator replaces the run id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a clustering service. embed may be nil, in which case results
// without an embedding get a zero semantic vector.
func New(embed Embedder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		embed:      embed,
		logger:     logger,
		cfg:        DefaultConfig(),
		tracer:     otel.Tracer("github.com/kailas-cloud/modeldex/internal/usecase/cluster"),
		newID:      uuid.NewString,
		algorithms: algorithms(),
		labelers:   labelers(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Cluster partitions results into labeled clusters. Every result belongs to
// exactly one cluster. Only configuration errors are returned.
func (s *Service) Cluster(ctx context.Context, results []result.Result, p dc.Params) (*dc.Response, error) {
	if err := dc.CheckSize(len(results)); err != nil {
		return nil, fmt.Errorf("cluster input: %w", err)
	}
	o, err := dc.NewOptions(p)
	if err != nil {
		return nil, fmt.Errorf("cluster options: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "cluster.Cluster", trace.WithAttributes(
		attribute.String("cluster.algorithm", string(o.Algorithm)),
		attribute.Int("cluster.results", len(results)),
	))
	defer span.End()

	start := time.Now()
	compute := func(ctx context.Context) (*dc.Response, error) {
		return s.run(ctx, results, o), nil
	}

	var resp *dc.Response
	if s.cache != nil && len(results) >= 2 {
		var hit bool
		resp, hit, err = s.cache.GetOrCompute(ctx, cacheKey(results, o), compute)
		span.SetAttributes(attribute.Bool("cluster.cache_hit", hit))
		if err != nil {
			return nil, err
		}
	} else {
		resp, _ = compute(ctx)
	}

	metrics.ClusterRunsTotal.WithLabelValues(string(o.Algorithm)).Inc()
	metrics.ClusterDuration.WithLabelValues(string(o.Algorithm)).Observe(time.Since(start).Seconds())
	return resp, nil
}

func (s *Service) run(ctx context.Context, results []result.Result, o dc.Options) *dc.Response {
	start := time.Now()
	n := len(results)
	records := make([]catalog.Record, n)
	scores := make([]float64, n)
	for i := range results {
		records[i] = results[i].Record()
		scores[i] = results[i].Score()
	}

	var (
		part     partition
		k        int
		in       *input
		degraded []string
	)
	if n < 2 {
		in = &input{f: extractFeatures(records, make([][]float32, n), o.Features), scores: scores}
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		part, k = partition{groups: [][]int{all}}, 1
	} else {
		vecs, failed := s.embeddings(ctx, results, o)
		if failed {
			degraded = append(degraded, "embedder")
		}
		in = &input{f: extractFeatures(records, vecs, o.Features), scores: scores}
		var complete bool
		k, part, complete = s.partition(ctx, in, o)
		if !complete {
			degraded = append(degraded, "deadline")
		}
	}

	resp := s.assemble(in, records, part, o)
	resp.RunID = s.newID()
	resp.Algorithm = o.Algorithm
	resp.K = k
	resp.Duration = time.Since(start)
	resp.Degraded = degraded
	return resp
}

// embeddings returns one vector per result, generating the missing ones
// when the semantic channel is used. A failed embedding stays nil and
// failed is set.
func (s *Service) embeddings(ctx context.Context, results []result.Result, o dc.Options) (out [][]float32, failed bool) {
	out = make([][]float32, len(results))
	var missing []int
	for i := range results {
		out[i] = results[i].Vector()
		if len(out[i]) == 0 {
			missing = append(missing, i)
		}
	}
	needed := o.Algorithm == dc.Semantic || slices.Contains(o.Features, dc.ChannelSemantic)
	if !needed || len(missing) == 0 {
		return out, false
	}
	if s.embed == nil {
		s.logger.Warn("No embedder configured, missing embeddings left empty", zap.Int("missing", len(missing)))
		return out, false
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxFanout)
	for _, i := range missing {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.cfg.EmbeddingTimeout)
			defer cancel()
			rec := results[i].Record()
			res, err := s.embed.Embed(cctx, rec.EmbeddingText())
			if err != nil {
				s.logger.Warn("Result embedding failed, using zero vector",
					zap.String("id", results[i].ID()),
					zap.Error(&domain.CollaboratorError{Source: "embedder", Err: err}),
				)
				mu.Lock()
				failed = true
				mu.Unlock()
				return nil
			}
			domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
			out[i] = res.Embedding
			return nil
		})
	}
	_ = g.Wait()
	return out, failed
}

// partition resolves the cluster count and runs the algorithm. complete is
// false when ctx ended before every optimal-k trial ran.
func (s *Service) partition(ctx context.Context, in *input, o dc.Options) (k int, p partition, complete bool) {
	alg := s.algorithms[o.Algorithm]
	n := in.n()

	switch {
	case !usesK(o.Algorithm):
		s.runAll(n, func() { p = alg.partition(in, o, o.K) })
		return len(p.groups), p, true
	case o.K > 0:
		k = min(o.K, n)
		s.runAll(n, func() { p = alg.partition(in, o, k) })
		return k, p, true
	case o.Algorithm == dc.Hierarchical && o.DistanceThreshold > 0:
		s.runAll(n, func() { p = alg.partition(in, o, 1) })
		return len(p.groups), p, true
	}
	return s.optimalK(ctx, in, alg, o)
}

// optimalK tries every k in 2..min(MaxClusters, n/2) and keeps the
// partition with the highest silhouette; ties go to the smaller k. Trials
// not started before ctx ends are skipped. When none ran, every result
// lands in one cluster.
func (s *Service) optimalK(ctx context.Context, in *input, alg algorithm, o dc.Options) (int, partition, bool) {
	n := in.n()
	hi := min(o.MaxClusters, n/2)
	if hi < 2 {
		var p partition
		s.runAll(n, func() { p = alg.partition(in, o, 1) })
		return 1, p, true
	}

	parts := make([]partition, hi-1)
	sils := make([]float64, hi-1)
	ran := make([]bool, hi-1)
	tasks := make([]func(), hi-1)
	for i := range tasks {
		k := i + 2
		tasks[i] = func() {
			if ctx.Err() != nil {
				return
			}
			parts[i] = alg.partition(in, o, k)
			sils[i] = silhouette(in.f.combined, parts[i].groups)
			ran[i] = true
		}
	}
	s.runAll(n, tasks...)

	best, complete := -1, true
	for i := range sils {
		if !ran[i] {
			complete = false
			continue
		}
		if best < 0 || sils[i] > sils[best] {
			best = i
		}
	}
	if best < 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return 1, partition{groups: [][]int{all}}, false
	}
	return best + 2, parts[best], complete
}

// runAll runs tasks on the pool when the input is large enough, inline
// otherwise, and waits for all of them.
func (s *Service) runAll(n int, tasks ...func()) {
	if s.pool == nil || n < s.cfg.PoolThreshold {
		for _, t := range tasks {
			t()
		}
		return
	}
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			t()
		}); err != nil {
			s.logger.Warn("Pool submit failed, running inline", zap.Error(err))
			t()
			wg.Done()
		}
	}
	wg.Wait()
}

// assemble builds the sorted, labeled response from a partition.
func (s *Service) assemble(in *input, records []catalog.Record, part partition, o dc.Options) *dc.Response {
	clusters := make([]dc.Cluster, 0, len(part.groups)+1)
	for gi, g := range part.groups {
		c := buildCluster(gi, g, in, records)
		if part.terms != nil {
			c.Centroid.Terms = part.terms[gi]
		}
		clusters = append(clusters, c)
	}
	slices.SortStableFunc(clusters, func(a, b dc.Cluster) int {
		return cmp.Or(cmp.Compare(b.Size, a.Size), cmp.Compare(a.ID, b.ID))
	})

	lb := s.labelers[o.LabelStrategy]
	groups := make([][]int, len(clusters))
	centroids := make([][]float64, len(clusters))
	for pos := range clusters {
		c := &clusters[pos]
		groups[pos], centroids[pos] = c.Members, c.Centroid.Vector
		v := &clusterView{
			members:        c.Members,
			records:        records,
			texts:          in.f.texts,
			combined:       in.f.combined,
			centroid:       c.Centroid.Vector,
			representative: c.Representative,
		}
		l, err := lb.label(v)
		if err != nil {
			s.logger.Debug("Labeling failed, using fallback label", zap.Int("cluster", c.ID), zap.Error(err))
			l = fallbackLabel(pos)
		}
		c.Label = l
	}

	if len(part.noise) > 0 {
		c := buildCluster(len(part.groups), part.noise, in, records)
		c.Noise = true
		c.Label = unclusteredLabel()
		clusters = append(clusters, c)
	}

	resp := &dc.Response{
		Clusters:    clusters,
		NumClusters: len(clusters),
		Quality:     measure(in.f.combined, groups, centroids),
	}
	if len(clusters) > 0 {
		resp.AvgClusterSize = float64(part.size()) / float64(len(clusters))
	}
	return resp
}

func buildCluster(id int, members []int, in *input, records []catalog.Record) dc.Cluster {
	centroid := mean(in.f.combined, members)
	c := dc.Cluster{
		ID:             id,
		Members:        members,
		Size:           len(members),
		Centroid:       dc.Centroid{Vector: centroid},
		Representative: -1,
		Stats:          dc.Stats{Providers: map[string]int{}},
	}
	if len(members) == 0 {
		return c
	}

	minScore, maxScore, sum := math.Inf(1), math.Inf(-1), 0.0
	bestDist, cohesion := math.Inf(1), 0.0
	for _, i := range members {
		sc := in.scores[i]
		sum += sc
		minScore = math.Min(minScore, sc)
		maxScore = math.Max(maxScore, sc)
		c.Stats.Providers[records[i].Provider]++

		d := euclidean(in.f.combined[i], centroid)
		cohesion += d
		if d < bestDist {
			bestDist, c.Representative = d, i
		}
	}
	size := float64(len(members))
	c.Stats.AvgScore = sum / size
	c.Stats.MinScore = minScore
	c.Stats.MaxScore = maxScore
	c.Stats.Cohesion = cohesion / size
	return c
}

// cacheKey identifies a clustering run by its input ids, scores and options.
func cacheKey(results []result.Result, o dc.Options) string {
	parts := []string{
		string(o.Algorithm), string(o.LabelStrategy), string(o.Linkage),
		strconv.Itoa(o.K), strconv.Itoa(o.MinPoints), strconv.Itoa(o.MaxClusters),
		strconv.Itoa(o.MaxClusterSize), strconv.FormatInt(o.Seed, 10),
		strconv.FormatFloat(o.DistanceThreshold, 'g', -1, 64),
		strconv.FormatFloat(o.Eps, 'g', -1, 64),
		strconv.FormatFloat(o.SimilarityThreshold, 'g', -1, 64),
	}
	for _, c := range o.Features {
		parts = append(parts, string(c))
	}
	for i := range results {
		parts = append(parts, results[i].ID()+"="+strconv.FormatFloat(results[i].Score(), 'g', -1, 64))
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1e")))
	return hex.EncodeToString(h[:])
}
