package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

func newProcessCmd(g *globalOptions, stdout io.Writer) *cobra.Command {
	var qc dq.Context
	cmd := &cobra.Command{
		Use:   "process <query>",
		Short: "Show how a query is understood",
		Long: `Run the query understanding pipeline and print the detected intent,
entities, expansions and semantic features without searching.

Example:
  mdx process "cheap llama models for code under 1$"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			pq, err := a.Engine.Process(cmd.Context(), strings.Join(args, " "), qc)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(stdout, pq)
			}
			printProcessed(stdout, pq)
			return nil
		},
	}
	cmd.Flags().StringVar(&qc.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&qc.SessionID, "session", "", "session id")
	cmd.Flags().StringArrayVar(&qc.PriorQueries, "prior", nil, "prior query of the session (repeatable)")
	return cmd
}
