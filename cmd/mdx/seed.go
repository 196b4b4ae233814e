package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cataloguc "github.com/kailas-cloud/modeldex/internal/usecase/catalog"
)

func newSeedCmd(g *globalOptions, stdout io.Writer) *cobra.Command {
	var (
		file     string
		recreate bool
	)
	cmd := &cobra.Command{
		Use:   "seed --file catalog.yaml",
		Short: "Embed and index a catalog file",
		Long: `Embed every model of a catalog file and write it with its vector
index. Malformed and duplicate records are skipped and reported.

Example:
  mdx seed --file config/catalog.yaml --recreate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := cataloguc.LoadFile(file)
			if err != nil {
				return err
			}

			a, cleanup, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := a.Seed(cmd.Context(), f, cataloguc.SeedOptions{Recreate: recreate})
			if err != nil {
				return fmt.Errorf("seed %s: %w", file, err)
			}
			if g.jsonOutput {
				return writeJSON(stdout, report)
			}
			printSeedReport(stdout, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and rebuild existing indexes")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
