package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

const defaultEmbedBatch = 64

// SeedOptions tunes a seeding run.
type SeedOptions struct {
	// Recreate drops and rebuilds existing indexes.
	Recreate bool
}

// CollectionReport summarizes one seeded collection.
type CollectionReport struct {
	Name         string
	Indexed      int
	Skipped      int
	IndexCreated bool
	Tokens       int
}

// Report summarizes a seeding run.
type Report struct {
	Collections []CollectionReport
	Duration    time.Duration
}

// Seeder embeds catalog records and writes them with their index.
type Seeder struct {
	writer Writer
	embed  Embedder
	logger *zap.Logger
	batch  int
}

// NewSeeder creates a Seeder.
func NewSeeder(writer Writer, embed Embedder, logger *zap.Logger) *Seeder {
	return &Seeder{writer: writer, embed: embed, logger: logger, batch: defaultEmbedBatch}
}

// Seed writes every collection of f. Malformed and duplicate records are
// skipped and counted. Embedding or store failures abort the run.
func (s *Seeder) Seed(ctx context.Context, f *File, opts SeedOptions) (Report, error) {
	start := time.Now()
	report := Report{Collections: make([]CollectionReport, 0, len(f.Collections))}

	for _, c := range f.Collections {
		cr, err := s.seedCollection(ctx, c, opts)
		if err != nil {
			return report, fmt.Errorf("seed %s: %w", c.Name, err)
		}
		report.Collections = append(report.Collections, cr)
		s.logger.Info("Collection seeded",
			zap.String("collection", cr.Name),
			zap.Int("indexed", cr.Indexed),
			zap.Int("skipped", cr.Skipped),
			zap.Bool("index_created", cr.IndexCreated),
		)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (s *Seeder) seedCollection(ctx context.Context, c Collection, opts SeedOptions) (CollectionReport, error) {
	cr := CollectionReport{Name: c.Name}

	records := s.valid(c)
	cr.Skipped = len(c.Models) - len(records)
	if len(records) == 0 {
		return cr, nil
	}

	vectors := make([][]float32, 0, len(records))
	for offset := 0; offset < len(records); offset += s.batch {
		chunk := records[offset:min(offset+s.batch, len(records))]
		texts := make([]string, len(chunk))
		for i := range chunk {
			texts[i] = chunk[i].EmbeddingText()
		}

		res, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			return cr, &domain.CollaboratorError{Source: "embedder", Err: err}
		}
		if len(res.Embeddings) != len(chunk) {
			return cr, fmt.Errorf("got %d vectors for %d records: %w",
				len(res.Embeddings), len(chunk), domain.ErrEmbeddingProviderError)
		}
		vectors = append(vectors, res.Embeddings...)
		cr.Tokens += res.TotalTokens
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return cr, fmt.Errorf("record %q has %d dims, want %d: %w",
				records[i].ID, len(v), dim, domain.ErrVectorDimMismatch)
		}
	}

	created, err := s.writer.EnsureIndex(ctx, c.Name, dim, opts.Recreate)
	if err != nil {
		return cr, err
	}
	cr.IndexCreated = created

	if err := s.writer.Upsert(ctx, c.Name, records, vectors); err != nil {
		return cr, err
	}
	cr.Indexed = len(records)
	return cr, nil
}

// valid normalizes records, dropping malformed ones and repeated ids.
func (s *Seeder) valid(c Collection) []dcat.Record {
	seen := make(map[string]bool, len(c.Models))
	out := make([]dcat.Record, 0, len(c.Models))
	for _, rec := range c.Models {
		if err := rec.Normalize(); err != nil {
			var de *domain.DataError
			if errors.As(err, &de) {
				s.logger.Warn("Skipping catalog record",
					zap.String("collection", c.Name), zap.String("id", de.ID), zap.String("reason", de.Reason))
			}
			continue
		}
		if seen[rec.ID] {
			s.logger.Warn("Skipping duplicate catalog record",
				zap.String("collection", c.Name), zap.String("id", rec.ID))
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	return out
}
