package catalog

import (
	"github.com/kailas-cloud/modeldex/internal/db"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

// buildIndex describes the FT index of one catalog collection: categorical
// fields as TAG, benchmark data as NUMERIC, name and description as TEXT
// when the backend scores text, and an HNSW cosine vector.
func buildIndex(name, prefix string, vectorDim int, textSearchEnabled bool, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(name)
	if prefix != "" {
		b.Prefix(prefix)
	}

	b.Tag(dcat.FieldProvider, dcat.FieldModelType, dcat.FieldDomain, dcat.FieldLicense).
		List(dcat.ListSeparator, dcat.FieldCapabilities, dcat.FieldTags).
		Numeric(dcat.FieldQualityIndex, dcat.FieldTokensPerSec, dcat.FieldPricePerMTok,
			dcat.FieldLatency, dcat.FieldContextWindow)
	if textSearchEnabled {
		b.Text(dcat.TextFields...)
	}
	b.VectorHNSW(db.VectorField, vectorDim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct)

	return b.Build()
}
