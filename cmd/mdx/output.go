package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
	"github.com/kailas-cloud/modeldex/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/modeldex/internal/usecase/catalog"
)

// descriptionMaxLen truncates descriptions in result listings.
const descriptionMaxLen = 72

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withUsage attaches an embedding usage counter to ctx.
func withUsage(ctx context.Context) (context.Context, *domain.EmbeddingUsage) {
	return domain.NewContextWithUsage(ctx)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printSearch(w io.Writer, resp *result.Response, usage *domain.EmbeddingUsage) {
	md := resp.Metadata
	fmt.Fprintf(w, "%d results (showing %d from offset %d), mode %s",
		resp.Total, len(resp.Results), resp.Offset, md.Mode)
	if md.FallbackMode != "" {
		fmt.Fprintf(w, ", fell back to %s", md.FallbackMode)
	}
	fmt.Fprintf(w, ", intent %s (%.2f)\n", resp.Intent.Intent, resp.Intent.Confidence)
	if len(md.Degraded) > 0 {
		fmt.Fprintf(w, "degraded: %s\n", strings.Join(md.Degraded, ", "))
	}
	fmt.Fprintln(w)

	for i := range resp.Results {
		printResult(w, resp.Offset+i+1, &resp.Results[i])
	}

	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(w, "\nDid you mean: %s\n", strings.Join(resp.Suggestions, ", "))
	}
	printUsage(w, usage)
}

func printResult(w io.Writer, rank int, r *result.Result) {
	rec := r.Record()
	fmt.Fprintf(w, "%3d. %-28s %.3f  %s/%s  [%s]\n",
		rank, rec.Name, r.Score(), rec.Provider, rec.ModelType, r.SearchType())
	if rec.Description != "" {
		fmt.Fprintf(w, "     %s\n", truncate(rec.Description, descriptionMaxLen))
	}
}

func printUsage(w io.Writer, usage *domain.EmbeddingUsage) {
	if usage == nil || usage.Calls() == 0 {
		return
	}
	fmt.Fprintf(w, "\nembedding: %d calls, %d tokens\n", usage.Calls(), usage.TotalTokens())
}

func printProcessed(w io.Writer, pq *dq.Processed) {
	fmt.Fprintf(w, "query:      %s\n", pq.Query)
	fmt.Fprintf(w, "normalized: %s\n", pq.Normalized)
	fmt.Fprintf(w, "intent:     %s (%.2f)\n", pq.Intent.Primary.Intent, pq.Intent.Primary.Confidence)
	for _, alt := range pq.Intent.Alternates {
		fmt.Fprintf(w, "            %s (%.2f)\n", alt.Intent, alt.Confidence)
	}
	fmt.Fprintf(w, "confidence: %.2f\n", pq.Confidence)

	if len(pq.Entities.Items) > 0 {
		fmt.Fprintln(w, "entities:")
		for _, e := range pq.Entities.Items {
			fmt.Fprintf(w, "  %-14s %q -> %s (%.2f)\n", e.Type, e.Text, e.Normalized, e.Confidence)
		}
	}
	if terms := pq.Expansions.Terms(); len(terms) > 0 {
		fmt.Fprintf(w, "expansions: %s\n", strings.Join(terms, ", "))
	}
}

func printClusters(w io.Writer, resp *dc.Response, results []result.Result, usage *domain.EmbeddingUsage) {
	fmt.Fprintf(w, "%d clusters (%s, k=%d), silhouette %.3f\n\n",
		resp.NumClusters, resp.Algorithm, resp.K, resp.Quality.Silhouette)

	for _, c := range resp.Clusters {
		title := c.Label.Text
		if c.Noise {
			title = "Unclustered"
		}
		fmt.Fprintf(w, "[%d] %s  (size %d, avg score %.3f)\n", c.ID, title, c.Size, c.Stats.AvgScore)
		for _, m := range c.Members {
			if m < 0 || m >= len(results) {
				continue
			}
			rec := results[m].Record()
			marker := " "
			if m == c.Representative {
				marker = "*"
			}
			fmt.Fprintf(w, "   %s %s (%s)\n", marker, rec.Name, rec.Provider)
		}
		fmt.Fprintln(w)
	}
	printUsage(w, usage)
}

func printSeedReport(w io.Writer, report cataloguc.Report) {
	for _, c := range report.Collections {
		created := ""
		if c.IndexCreated {
			created = ", index created"
		}
		fmt.Fprintf(w, "%-24s indexed %d, skipped %d, %d tokens%s\n",
			c.Name, c.Indexed, c.Skipped, c.Tokens, created)
	}
	fmt.Fprintf(w, "done in %s\n", report.Duration.Round(time.Millisecond))
}
