package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/domain"
	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.Collections) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(f.Collections))
	}
	if f.Size() != 5 {
		t.Errorf("expected 5 records, got %d", f.Size())
	}
	cg := f.Collections[0].Models[0]
	if cg.Performance.QualityIndex != 55 || len(cg.Capabilities) != 2 {
		t.Errorf("unexpected record %+v", cg)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(strings.NewReader("collections:\n  - models: []\n")); err == nil {
		t.Error("expected error for unnamed collection")
	}
	if _, err := Decode(strings.NewReader("colections: []\n")); err == nil {
		t.Error("expected error for unknown key")
	}
	f, err := Decode(strings.NewReader(""))
	if err != nil || f.Size() != 0 {
		t.Errorf("empty input should decode to an empty catalog, got %v, %v", f, err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Size() != 5 {
		t.Errorf("expected 5 records, got %d", f.Size())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSeed(t *testing.T) {
	f, err := Decode(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	w := &mockWriter{}
	emb := &mockEmbedder{}

	report, err := NewSeeder(w, emb, zap.NewNop()).Seed(context.Background(), f, SeedOptions{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if len(report.Collections) != 2 {
		t.Fatalf("expected 2 collection reports, got %d", len(report.Collections))
	}
	first := report.Collections[0]
	if first.Indexed != 2 || first.Skipped != 2 || !first.IndexCreated {
		t.Errorf("unexpected report %+v", first)
	}
	if first.Tokens != 4 {
		t.Errorf("expected 4 tokens, got %d", first.Tokens)
	}

	if len(w.upserts) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(w.upserts))
	}
	up := w.upserts[0]
	if up.collection != "model_descriptions" || len(up.records) != 2 || len(up.vectors) != 2 {
		t.Errorf("unexpected upsert %+v", up)
	}
	if up.records[1].Domain != "general" {
		t.Errorf("expected default domain, got %q", up.records[1].Domain)
	}
	if emb.texts[0] != "CodeGen 7B. Program synthesis model" {
		t.Errorf("unexpected embedding text %q", emb.texts[0])
	}
	if w.dims[0] != 2 {
		t.Errorf("expected dim 2, got %d", w.dims[0])
	}
}

func TestSeed_EmbeddingFailureAborts(t *testing.T) {
	f := &File{Collections: []Collection{{Name: "c", Models: mustModels(t, "fail-model")}}}
	w := &mockWriter{}

	_, err := NewSeeder(w, &mockEmbedder{}, zap.NewNop()).Seed(context.Background(), f, SeedOptions{})
	var ce *domain.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if len(w.upserts) != 0 {
		t.Error("nothing should be written after an embedding failure")
	}
}

func TestSeed_DimensionMismatch(t *testing.T) {
	f := &File{Collections: []Collection{{Name: "c", Models: mustModels(t, "a", "bb")}}}
	emb := &mockEmbedder{dims: func(text string) int { return len(text) }}

	_, err := NewSeeder(&mockWriter{}, emb, zap.NewNop()).Seed(context.Background(), f, SeedOptions{})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSeed_RecreateAndBatches(t *testing.T) {
	f := &File{Collections: []Collection{{Name: "c", Models: mustModels(t, "a", "b", "c")}}}
	var recreated bool
	w := &mockWriter{ensureFn: func(_ context.Context, _ string, _ int, recreate bool) (bool, error) {
		recreated = recreate
		return true, nil
	}}
	emb := &mockEmbedder{}
	s := NewSeeder(w, emb, zap.NewNop())
	s.batch = 2

	report, err := s.Seed(context.Background(), f, SeedOptions{Recreate: true})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !recreated {
		t.Error("expected recreate to reach the writer")
	}
	if report.Collections[0].Indexed != 3 || len(emb.texts) != 3 {
		t.Errorf("unexpected report %+v, texts %v", report.Collections[0], emb.texts)
	}
}

func TestSeed_WriterError(t *testing.T) {
	boom := errors.New("boom")
	f := &File{Collections: []Collection{{Name: "c", Models: mustModels(t, "a")}}}
	w := &mockWriter{ensureFn: func(context.Context, string, int, bool) (bool, error) { return false, boom }}

	if _, err := NewSeeder(w, &mockEmbedder{}, zap.NewNop()).Seed(context.Background(), f, SeedOptions{}); !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func mustModels(t *testing.T, names ...string) []dcat.Record {
	t.Helper()
	out := make([]dcat.Record, len(names))
	for i, n := range names {
		out[i] = dcat.Record{ID: n, Name: n}
	}
	return out
}

func TestLoadFile_ShippedCatalog(t *testing.T) {
	f, err := LoadFile(filepath.Join("..", "..", "..", "config", "catalog.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(f.Collections) == 0 || f.Size() == 0 {
		t.Fatal("expected models in the shipped catalog")
	}
	for _, c := range f.Collections {
		for _, rec := range c.Models {
			if err := rec.Normalize(); err != nil {
				t.Errorf("%s/%s: %v", c.Name, rec.ID, err)
			}
		}
	}
}
