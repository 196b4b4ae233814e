// Package cluster defines clustering options and the clustered result shape.
package cluster

import (
	"slices"
	"strconv"
	"time"

	"github.com/kailas-cloud/modeldex/internal/domain"
)

// Algorithm selects the partitioning method.
type Algorithm string

// Clustering algorithms.
const (
	KMeans       Algorithm = "kmeans"
	Hierarchical Algorithm = "hierarchical"
	DBSCAN       Algorithm = "dbscan"
	Semantic     Algorithm = "semantic"
	Topic        Algorithm = "topic"
)

// IsValid checks if the algorithm is supported.
func (a Algorithm) IsValid() bool {
	switch a {
	case KMeans, Hierarchical, DBSCAN, Semantic, Topic:
		return true
	default:
		return false
	}
}

// LabelStrategy selects how clusters are named.
type LabelStrategy string

// Labeling strategies.
const (
	LabelCentroid       LabelStrategy = "centroid"
	LabelCommonTerms    LabelStrategy = "common_terms"
	LabelRepresentative LabelStrategy = "representative"
	LabelSemantic       LabelStrategy = "semantic"
	LabelHybrid         LabelStrategy = "hybrid"
	// LabelFallback marks a label produced after every strategy failed.
	LabelFallback LabelStrategy = "fallback"
)

// IsValid checks if the strategy can be requested.
func (s LabelStrategy) IsValid() bool {
	switch s {
	case LabelCentroid, LabelCommonTerms, LabelRepresentative, LabelSemantic, LabelHybrid:
		return true
	default:
		return false
	}
}

// Linkage is the inter-cluster distance of hierarchical clustering.
type Linkage string

// Linkage methods.
const (
	LinkageSingle   Linkage = "single"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
	LinkageWard     Linkage = "ward"
)

// IsValid checks if the linkage is supported.
func (l Linkage) IsValid() bool {
	switch l {
	case LinkageSingle, LinkageComplete, LinkageAverage, LinkageWard:
		return true
	default:
		return false
	}
}

// Channel is one feature family of the combined vector.
type Channel string

// Feature channels.
const (
	ChannelSemantic     Channel = "semantic"
	ChannelProvider     Channel = "provider"
	ChannelModelType    Channel = "model_type"
	ChannelCapabilities Channel = "capabilities"
	ChannelPerformance  Channel = "performance"
	ChannelDomain       Channel = "domain"
)

// AllChannels lists every channel in concatenation order.
var AllChannels = []Channel{
	ChannelSemantic, ChannelProvider, ChannelModelType,
	ChannelCapabilities, ChannelPerformance, ChannelDomain,
}

// Weight returns the fixed relative weight of the channel.
func (c Channel) Weight() float64 {
	switch c {
	case ChannelSemantic:
		return 0.4
	case ChannelProvider, ChannelModelType, ChannelCapabilities:
		return 0.15
	case ChannelPerformance:
		return 0.1
	case ChannelDomain:
		return 0.05
	default:
		return 0
	}
}

// Defaults for Params.
const (
	DefaultAlgorithm           = Semantic
	DefaultLabelStrategy       = LabelHybrid
	DefaultLinkage             = LinkageAverage
	DefaultMaxClusters         = 10
	DefaultMinPoints           = 2
	DefaultMaxClusterSize      = 10
	DefaultSimilarityThreshold = 0.75
	DefaultSeed                = 42
)

// MaxResults caps the size of one clustering input. It matches the deepest
// search window so any search page can be clustered.
const MaxResults = 500

// CheckSize rejects inputs larger than MaxResults.
func CheckSize(n int) error {
	if n > MaxResults {
		return domain.NewConfigError("results", strconv.Itoa(n))
	}
	return nil
}

// Params are the caller-facing clustering options. Zero values select defaults.
type Params struct {
	Algorithm           Algorithm
	Features            []Channel
	K                   int
	LabelStrategy       LabelStrategy
	Linkage             Linkage
	DistanceThreshold   float64
	Eps                 float64
	MinPoints           int
	MaxClusters         int
	MaxClusterSize      int
	SimilarityThreshold float64
	Seed                *int64
}

// Options is a validated Params.
type Options struct {
	Algorithm           Algorithm
	Features            []Channel
	K                   int
	LabelStrategy       LabelStrategy
	Linkage             Linkage
	DistanceThreshold   float64
	Eps                 float64
	MinPoints           int
	MaxClusters         int
	MaxClusterSize      int
	SimilarityThreshold float64
	Seed                int64
}

// NewOptions validates p and applies defaults.
func NewOptions(p Params) (Options, error) {
	o := Options{
		Algorithm:           p.Algorithm,
		K:                   p.K,
		LabelStrategy:       p.LabelStrategy,
		Linkage:             p.Linkage,
		DistanceThreshold:   p.DistanceThreshold,
		Eps:                 p.Eps,
		MinPoints:           p.MinPoints,
		MaxClusters:         p.MaxClusters,
		MaxClusterSize:      p.MaxClusterSize,
		SimilarityThreshold: p.SimilarityThreshold,
		Seed:                DefaultSeed,
	}
	if o.Algorithm == "" {
		o.Algorithm = DefaultAlgorithm
	}
	if !o.Algorithm.IsValid() {
		return Options{}, domain.NewConfigError("algorithm", string(o.Algorithm))
	}
	if o.LabelStrategy == "" {
		o.LabelStrategy = DefaultLabelStrategy
	}
	if !o.LabelStrategy.IsValid() {
		return Options{}, domain.NewConfigError("labeling_strategy", string(o.LabelStrategy))
	}
	if o.Linkage == "" {
		o.Linkage = DefaultLinkage
	}
	if !o.Linkage.IsValid() {
		return Options{}, domain.NewConfigError("linkage", string(o.Linkage))
	}
	if o.K < 0 {
		return Options{}, domain.NewConfigError("k", strconv.Itoa(o.K))
	}
	if o.DistanceThreshold < 0 {
		return Options{}, domain.NewConfigError("distance_threshold", strconv.FormatFloat(o.DistanceThreshold, 'g', -1, 64))
	}
	if o.Eps < 0 {
		return Options{}, domain.NewConfigError("eps", strconv.FormatFloat(o.Eps, 'g', -1, 64))
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		return Options{}, domain.NewConfigError("similarity_threshold",
			strconv.FormatFloat(o.SimilarityThreshold, 'g', -1, 64))
	}

	if len(p.Features) == 0 {
		o.Features = slices.Clone(AllChannels)
	} else {
		seen := make(map[Channel]bool, len(p.Features))
		for _, c := range p.Features {
			if c.Weight() == 0 {
				return Options{}, domain.NewConfigError("features", string(c))
			}
			seen[c] = true
		}
		for _, c := range AllChannels {
			if seen[c] {
				o.Features = append(o.Features, c)
			}
		}
	}

	if o.MinPoints <= 0 {
		o.MinPoints = DefaultMinPoints
	}
	if o.MaxClusters <= 0 {
		o.MaxClusters = DefaultMaxClusters
	}
	if o.MaxClusterSize <= 0 {
		o.MaxClusterSize = DefaultMaxClusterSize
	}
	if o.SimilarityThreshold == 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if p.Seed != nil {
		o.Seed = *p.Seed
	}
	return o, nil
}

// Label names a cluster.
type Label struct {
	Text         string        `json:"text"`
	Confidence   float64       `json:"confidence"`
	Strategy     LabelStrategy `json:"strategy"`
	Alternatives []Label       `json:"alternatives,omitempty"`
}

// Stats summarizes a cluster's members.
type Stats struct {
	AvgScore  float64        `json:"avg_score"`
	MinScore  float64        `json:"min_score"`
	MaxScore  float64        `json:"max_score"`
	Providers map[string]int `json:"providers"`
	// Cohesion is the mean member distance to the centroid.
	Cohesion float64 `json:"cohesion"`
}

// Centroid is the feature-space center of a cluster.
type Centroid struct {
	Vector []float64 `json:"vector,omitempty"`
	// Terms are the topic keywords of topic clusters.
	Terms []string `json:"terms,omitempty"`
}

// Cluster is one group of the partition.
type Cluster struct {
	ID             int      `json:"id"`
	Members        []int    `json:"members"`
	Size           int      `json:"size"`
	Centroid       Centroid `json:"centroid"`
	Stats          Stats    `json:"stats"`
	Representative int      `json:"representative"`
	Label          Label    `json:"label"`
	// Noise marks the trailing bucket of unassigned results.
	Noise bool `json:"noise,omitempty"`
}

// Quality scores a partition.
type Quality struct {
	Silhouette float64 `json:"silhouette"`
	Cohesion   float64 `json:"cohesion"`
	Separation float64 `json:"separation"`
	Overall    float64 `json:"overall"`
}

// Response is the outcome of one clustering run.
type Response struct {
	RunID          string        `json:"run_id"`
	Algorithm      Algorithm     `json:"algorithm"`
	K              int           `json:"k"`
	Clusters       []Cluster     `json:"clusters"`
	NumClusters    int           `json:"num_clusters"`
	AvgClusterSize float64       `json:"avg_cluster_size"`
	Quality        Quality       `json:"quality"`
	Duration       time.Duration `json:"duration_ns"`
	// Degraded lists collaborators that failed during the run.
	Degraded []string `json:"degraded,omitempty"`
}

// Cacheable reports whether r ran without degraded collaborators.
func (r *Response) Cacheable() bool {
	return r != nil && len(r.Degraded) == 0
}
