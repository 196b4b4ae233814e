package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
	"github.com/kailas-cloud/modeldex/internal/domain/search/mode"
	"github.com/kailas-cloud/modeldex/internal/domain/search/request"
	"github.com/kailas-cloud/modeldex/internal/domain/search/strategy"
)

// searchFlags holds the search options shared by search and cluster.
type searchFlags struct {
	mode         string
	strategy     string
	limit        int
	offset       int
	collections  []string
	filters      []string
	threshold    float64
	hybridWeight float64
	noRerank     bool
	noDiversify  bool
	userID       string
	sessionID    string
	prior        []string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.mode, "mode", "m", "", "search mode: hybrid, semantic, keyword, contextual")
	fs.StringVar(&f.strategy, "strategy", "", "vector strategy: exact, approximate, multi_vector, hierarchical")
	fs.IntVarP(&f.limit, "limit", "n", 0, "page size (default from config)")
	fs.IntVar(&f.offset, "offset", 0, "page offset")
	fs.StringSliceVarP(&f.collections, "collection", "c", nil, "collection to search (repeatable)")
	fs.StringArrayVarP(&f.filters, "filter", "f", nil, "metadata filter key=value or key=a|b (repeatable)")
	fs.Float64Var(&f.threshold, "threshold", 0, "minimum similarity in [0,1]")
	fs.Float64Var(&f.hybridWeight, "hybrid-weight", 0, "keyword share of hybrid fusion in [0,1]")
	fs.BoolVar(&f.noRerank, "no-rerank", false, "skip context reranking")
	fs.BoolVar(&f.noDiversify, "no-diversify", false, "keep near-duplicate results")
	fs.StringVar(&f.userID, "user", "", "user id for personalization")
	fs.StringVar(&f.sessionID, "session", "", "session id for personalization")
	fs.StringArrayVar(&f.prior, "prior", nil, "prior query of the session (repeatable)")
}

// params converts the flags. Only flags the user set become explicit
// values, the rest fall back to configured defaults.
func (f *searchFlags) params(cmd *cobra.Command) (request.Params, error) {
	p := request.Params{
		Mode:           mode.Mode(strings.ToLower(f.mode)),
		VectorStrategy: strategy.Strategy(strings.ToLower(f.strategy)),
		Limit:          f.limit,
		Offset:         f.offset,
		Collections:    f.collections,
		Context: dq.Context{
			UserID:       f.userID,
			SessionID:    f.sessionID,
			PriorQueries: f.prior,
		},
	}

	changed := cmd.Flags().Changed
	if changed("threshold") {
		t := f.threshold
		p.SimilarityThreshold = &t
	}
	if changed("hybrid-weight") {
		w := f.hybridWeight
		p.HybridWeight = &w
	}
	if f.noRerank {
		off := false
		p.Rerank = &off
	}
	if f.noDiversify {
		off := false
		p.Diversify = &off
	}

	expr, err := parseFilters(f.filters)
	if err != nil {
		return request.Params{}, err
	}
	p.Filters = expr
	return p, nil
}

// parseFilters turns key=value flags into must conditions. A value with
// "|" separators matches any of its parts.
func parseFilters(raw []string) (filter.Expression, error) {
	if len(raw) == 0 {
		return filter.Expression{}, nil
	}
	must := make([]filter.Condition, 0, len(raw))
	for _, r := range raw {
		key, value, ok := strings.Cut(r, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return filter.Expression{}, domain.NewConfigError("filter", r)
		}

		var (
			c   filter.Condition
			err error
		)
		if strings.Contains(value, "|") {
			c, err = filter.NewAnyOf(key, strings.Split(value, "|"))
		} else {
			c, err = filter.NewMatch(key, value)
		}
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}
	return filter.NewExpression(must, nil, nil)
}

func newSearchCmd(g *globalOptions, stdout io.Writer) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the model catalog",
		Long: `Search the model catalog with hybrid, semantic, keyword or
contextual retrieval.

Examples:
  mdx search "fast code completion model"
  mdx search -m keyword -f provider=Acme "chat"
  mdx search --user u1 --prior "code models" -m contextual "small"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.params(cmd)
			if err != nil {
				return err
			}

			ctx, usage := withUsage(cmd.Context())
			a, cleanup, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := a.Engine.Search(ctx, strings.Join(args, " "), p)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(stdout, resp)
			}
			printSearch(stdout, resp, usage)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
