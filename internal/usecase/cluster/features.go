package cluster

import (
	"math"
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	dc "github.com/kailas-cloud/modeldex/internal/domain/cluster"
)

// Fixed category lists of the one-hot and binary channels. A value outside
// the list lands in the trailing "other" slot.
var (
	providerCategories = []string{
		"openai", "anthropic", "google", "meta", "mistral", "cohere", "microsoft",
		"amazon", "nvidia", "stability", "hugging face", "deepseek", "alibaba",
	}
	modelTypeCategories = []string{
		"llm", "embedding", "vision", "audio", "multimodal", "image-generation", "code",
	}
	domainCategories = []string{
		"code", "healthcare", "legal", "finance", "vision", "audio", "science",
		"education", "creative", "general",
	}
	capabilityCategories = []string{
		"text-generation", "code-generation", "chat", "reasoning", "vision",
		"image-generation", "embedding", "transcription", "translation",
		"summarization", "function-calling", "multimodal",
	}
)

// Performance scaling bounds.
const (
	maxQualityIndex    = 100.0
	maxTokensPerSecond = 1000.0
	maxPricePerMTok    = 100.0
	// unknownPerformance is the neutral value of a missing metric.
	unknownPerformance = 0.5
)

// features holds the per-result vectors clustering reads.
type features struct {
	// combined is the weighted concatenation of the requested channels.
	combined [][]float64
	// semantic is the unit-length embedding of each result, zero when missing.
	semantic [][]float64
	// texts is the lower-cased searchable text of each result.
	texts []string
}

// extractFeatures builds the combined vectors of records. embeddings holds
// one vector per record, nil when unavailable.
func extractFeatures(records []catalog.Record, embeddings [][]float32, channels []dc.Channel) *features {
	dim := 0
	for _, e := range embeddings {
		if len(e) > 0 {
			dim = len(e)
			break
		}
	}

	f := &features{
		combined: make([][]float64, len(records)),
		semantic: make([][]float64, len(records)),
		texts:    make([]string, len(records)),
	}
	for i := range records {
		rec := &records[i]
		f.texts[i] = rec.SearchText()
		f.semantic[i] = semanticVector(embeddings[i], dim)

		var v []float64
		for _, ch := range channels {
			var part []float64
			switch ch {
			case dc.ChannelSemantic:
				part = f.semantic[i]
			case dc.ChannelProvider:
				part = oneHot(rec.Provider, providerCategories)
			case dc.ChannelModelType:
				part = oneHot(rec.ModelType, modelTypeCategories)
			case dc.ChannelCapabilities:
				part = capabilityVector(rec.Capabilities)
			case dc.ChannelPerformance:
				part = performanceVector(rec.Performance)
			case dc.ChannelDomain:
				part = oneHot(rec.Domain, domainCategories)
			}
			w := ch.Weight()
			for _, x := range part {
				v = append(v, x*w)
			}
		}
		f.combined[i] = v
	}
	return f
}

// semanticVector normalizes e to unit length. A missing or mismatched
// embedding yields a zero vector of dim.
func semanticVector(e []float32, dim int) []float64 {
	v := make([]float64, dim)
	if len(e) != dim {
		return v
	}
	var norm float64
	for i, x := range e {
		v[i] = float64(x)
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func oneHot(value string, categories []string) []float64 {
	v := make([]float64, len(categories)+1)
	value = strings.ToLower(strings.TrimSpace(value))
	for i, c := range categories {
		if value == c || strings.Contains(value, c) {
			v[i] = 1
			return v
		}
	}
	v[len(categories)] = 1
	return v
}

func capabilityVector(capabilities []string) []float64 {
	v := make([]float64, len(capabilityCategories))
	for _, c := range capabilities {
		slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "-")
		for i, cat := range capabilityCategories {
			if strings.Contains(slug, cat) {
				v[i] = 1
			}
		}
	}
	return v
}

// performanceVector scales quality linearly, throughput and price on a log
// scale. Price is inverted so cheaper models score higher.
func performanceVector(p catalog.Performance) []float64 {
	v := []float64{unknownPerformance, unknownPerformance, unknownPerformance}
	if p.QualityIndex > 0 {
		v[0] = clamp01(p.QualityIndex / maxQualityIndex)
	}
	if p.TokensPerSecond > 0 {
		v[1] = clamp01(math.Log1p(p.TokensPerSecond) / math.Log1p(maxTokensPerSecond))
	}
	if p.PricePerMTok > 0 {
		v[2] = 1 - clamp01(math.Log1p(p.PricePerMTok)/math.Log1p(maxPricePerMTok))
	}
	return v
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// mean returns the component-wise mean of the vectors at idx.
func mean(vectors [][]float64, idx []int) []float64 {
	if len(idx) == 0 || len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[idx[0]]))
	for _, i := range idx {
		for j, x := range vectors[i] {
			out[j] += x
		}
	}
	for j := range out {
		out[j] /= float64(len(idx))
	}
	return out
}
