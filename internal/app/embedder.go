package app

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/config"
	"github.com/kailas-cloud/modeldex/internal/db"
	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/metrics"
	"github.com/kailas-cloud/modeldex/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/modeldex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/modeldex/internal/usecase/embedding"
)

// vectorizer resolves the configured vectorizer and its provider. Without an
// explicit choice the alphabetically first vectorizer is used.
func vectorizer(cfg *config.Config) (string, config.VectorizerConfig, config.ProviderConfig, error) {
	name := cfg.Embedding.Vectorizer
	if name == "" {
		names := make([]string, 0, len(cfg.Embedding.Vectorizers))
		for n := range cfg.Embedding.Vectorizers {
			names = append(names, n)
		}
		if len(names) == 0 {
			return "", config.VectorizerConfig{}, config.ProviderConfig{},
				fmt.Errorf("no embedding vectorizer configured")
		}
		sort.Strings(names)
		name = names[0]
	}
	vec, ok := cfg.Embedding.Vectorizers[name]
	if !ok {
		return "", config.VectorizerConfig{}, config.ProviderConfig{},
			fmt.Errorf("embedding vectorizer %q is not defined", name)
	}
	prov, ok := cfg.Embedding.Providers[vec.Provider]
	if !ok {
		return "", config.VectorizerConfig{}, config.ProviderConfig{},
			fmt.Errorf("embedding provider %q is not defined", vec.Provider)
	}
	return name, vec, prov, nil
}

// embedders holds the query-side and document-side chains over one provider.
type embedders struct {
	query    domain.Embedder
	document domain.Embedder
	base     *openaiTransport.Embedder
}

// buildEmbedders assembles the decorator chains: OpenAI -> Cached -> Instrumented -> Instruction.
// kv may be nil, which disables the embedding cache.
func buildEmbedders(cfg *config.Config, kv db.KVStore, logger *zap.Logger) (*embedders, error) {
	_, vec, prov, err := vectorizer(cfg)
	if err != nil {
		return nil, err
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      vec.Model,
		Dimensions: vec.Dimensions,
		Provider:   vec.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if kv != nil {
		embedder = embcache.New(base, kv, metrics.EmbeddingCacheTotal, logger,
			embcache.WithKeyPrefix(cfg.Storage.KeyPrefix),
			embcache.WithTTL(time.Duration(cfg.Embedding.CacheTTLSec)*time.Second),
		)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vec.Provider, vec.Model, logger)

	// Instruction prefix is outermost so cache keys include it.
	withInstruction := func(instruction string) domain.Embedder {
		if instruction == "" {
			return embedder
		}
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return &embedders{
		query:    withInstruction(vec.QueryInstruction),
		document: withInstruction(vec.DocumentInstruction),
		base:     base,
	}, nil
}
