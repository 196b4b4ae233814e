package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
)

type clusterFlags struct {
	algorithm string
	features  []string
	k         int
	labeling  string
	linkage   string
	threshold float64
	eps       float64
	minPoints int
	maxSize   int
	seed      int64
}

func (f *clusterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.algorithm, "algorithm", "a", "", "kmeans, hierarchical, dbscan, semantic, topic")
	fs.StringSliceVar(&f.features, "features", nil, "feature channels: semantic, provider, model_type, domain, capabilities, performance")
	fs.IntVar(&f.k, "k", 0, "cluster count (0 picks the best by silhouette)")
	fs.StringVarP(&f.labeling, "labeling", "l", "", "centroid, common_terms, representative, semantic")
	fs.StringVar(&f.linkage, "linkage", "", "hierarchical linkage: single, complete, average, ward")
	fs.Float64Var(&f.threshold, "distance-threshold", 0, "hierarchical merge distance cutoff")
	fs.Float64Var(&f.eps, "eps", 0, "dbscan neighborhood radius")
	fs.IntVar(&f.minPoints, "min-points", 0, "dbscan core point size")
	fs.IntVar(&f.maxSize, "max-cluster-size", 0, "split clusters larger than this")
	fs.Int64Var(&f.seed, "seed", 0, "random seed (default from config)")
}

func (f *clusterFlags) params(cmd *cobra.Command) dc.Params {
	p := dc.Params{
		Algorithm:         dc.Algorithm(strings.ToLower(f.algorithm)),
		K:                 f.k,
		LabelStrategy:     dc.LabelStrategy(strings.ToLower(f.labeling)),
		Linkage:           dc.Linkage(strings.ToLower(f.linkage)),
		DistanceThreshold: f.threshold,
		Eps:               f.eps,
		MinPoints:         f.minPoints,
		MaxClusterSize:    f.maxSize,
	}
	for _, ch := range f.features {
		p.Features = append(p.Features, dc.Channel(strings.ToLower(strings.TrimSpace(ch))))
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		p.Seed = &seed
	}
	return p
}

// clusterOutput is the JSON shape of the cluster command.
type clusterOutput struct {
	*dc.Response
	Results []result.Result `json:"results"`
}

func newClusterCmd(g *globalOptions, stdout io.Writer) *cobra.Command {
	sf := &searchFlags{}
	cf := &clusterFlags{}
	cmd := &cobra.Command{
		Use:   "cluster <query>",
		Short: "Search and group the results into labeled clusters",
		Long: `Run a search and cluster the returned page.

Examples:
  mdx cluster "image generation"
  mdx cluster -a hierarchical --linkage ward -n 50 "speech models"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := sf.params(cmd)
			if err != nil {
				return err
			}
			cp := cf.params(cmd)

			ctx, usage := withUsage(cmd.Context())
			a, cleanup, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, clustered, err := a.Engine.SearchAndCluster(ctx, strings.Join(args, " "), sp, cp)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(stdout, clusterOutput{Response: clustered, Results: resp.Results})
			}
			printClusters(stdout, clustered, resp.Results, usage)
			return nil
		},
	}
	sf.register(cmd)
	cf.register(cmd)
	return cmd
}
