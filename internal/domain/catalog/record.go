// Package catalog defines the catalog record schema shared by every store
// adapter. Field aliases and defaults are resolved once in FromFields.
package catalog

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain"
)

// Stored field names.
const (
	FieldID            = "id"
	FieldName          = "name"
	FieldProvider      = "provider"
	FieldModelType     = "model_type"
	FieldDomain        = "domain"
	FieldDescription   = "description"
	FieldCapabilities  = "capabilities"
	FieldTags          = "tags"
	FieldLicense       = "license"
	FieldQualityIndex  = "quality_index"
	FieldTokensPerSec  = "tokens_per_second"
	FieldPricePerMTok  = "price_per_mtok"
	FieldLatency       = "latency_seconds"
	FieldContextWindow = "context_window"
	FieldVector        = "vector"
)

// StoredFields lists every scalar field a store returns for a record.
var StoredFields = []string{
	FieldName, FieldProvider, FieldModelType, FieldDomain, FieldDescription,
	FieldCapabilities, FieldTags, FieldLicense, FieldQualityIndex,
	FieldTokensPerSec, FieldPricePerMTok, FieldLatency, FieldContextWindow,
}

// TextFields lists the full-text indexed fields.
var TextFields = []string{FieldName, FieldDescription}

// Defaults applied to optional fields.
const (
	DefaultProvider  = "unknown"
	DefaultModelType = "other"
	DefaultDomain    = "general"
)

// ListSeparator joins multi-valued fields in flat stores.
const ListSeparator = ","

// aliases lists legacy field names accepted for a canonical field, in order.
var aliases = map[string][]string{
	FieldName:      {"model_name", "title"},
	FieldProvider:  {"organization", "creator"},
	FieldModelType: {"type", "category"},
}

// Performance holds benchmark data. Zero means unknown.
type Performance struct {
	QualityIndex    float64 `json:"quality_index,omitempty" yaml:"quality_index"`
	TokensPerSecond float64 `json:"tokens_per_second,omitempty" yaml:"tokens_per_second"`
	PricePerMTok    float64 `json:"price_per_mtok,omitempty" yaml:"price_per_mtok"`
	LatencySeconds  float64 `json:"latency_seconds,omitempty" yaml:"latency_seconds"`
	ContextWindow   int     `json:"context_window,omitempty" yaml:"context_window"`
}

// Record is one AI model description in the catalog.
type Record struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Provider     string      `json:"provider" yaml:"provider"`
	ModelType    string      `json:"model_type" yaml:"model_type"`
	Domain       string      `json:"domain" yaml:"domain"`
	Description  string      `json:"description,omitempty" yaml:"description"`
	Capabilities []string    `json:"capabilities,omitempty" yaml:"capabilities"`
	Tags         []string    `json:"tags,omitempty" yaml:"tags"`
	License      string      `json:"license,omitempty" yaml:"license"`
	Performance  Performance `json:"performance" yaml:"performance"`
}

// Normalize validates required fields and applies defaults.
func (r *Record) Normalize() error {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	if r.ID == "" {
		return &domain.DataError{Reason: "missing id"}
	}
	if r.Name == "" {
		return &domain.DataError{ID: r.ID, Reason: "missing name"}
	}
	if r.Provider == "" {
		r.Provider = DefaultProvider
	}
	if r.ModelType == "" {
		r.ModelType = DefaultModelType
	}
	if r.Domain == "" {
		r.Domain = DefaultDomain
	}
	r.Capabilities = cleanList(r.Capabilities)
	r.Tags = cleanList(r.Tags)
	if r.Performance.QualityIndex < 0 || r.Performance.PricePerMTok < 0 || r.Performance.TokensPerSecond < 0 {
		return &domain.DataError{ID: r.ID, Reason: "negative performance metric"}
	}
	return nil
}

// FromFields builds a record from a flat field map as returned by the vector
// stores. id overrides any id field in the map.
func FromFields(id string, fields map[string]string) (Record, error) {
	get := func(name string) string {
		if v := strings.TrimSpace(fields[name]); v != "" {
			return v
		}
		for _, alias := range aliases[name] {
			if v := strings.TrimSpace(fields[alias]); v != "" {
				return v
			}
		}
		return ""
	}
	if id == "" {
		id = get(FieldID)
	}

	r := Record{
		ID:           id,
		Name:         get(FieldName),
		Provider:     get(FieldProvider),
		ModelType:    get(FieldModelType),
		Domain:       get(FieldDomain),
		Description:  get(FieldDescription),
		Capabilities: splitList(get(FieldCapabilities)),
		Tags:         splitList(get(FieldTags)),
		License:      get(FieldLicense),
	}

	var err error
	perf := &r.Performance
	if perf.QualityIndex, err = parseFloat(get(FieldQualityIndex)); err != nil {
		return Record{}, &domain.DataError{ID: id, Reason: "bad " + FieldQualityIndex}
	}
	if perf.TokensPerSecond, err = parseFloat(get(FieldTokensPerSec)); err != nil {
		return Record{}, &domain.DataError{ID: id, Reason: "bad " + FieldTokensPerSec}
	}
	if perf.PricePerMTok, err = parseFloat(get(FieldPricePerMTok)); err != nil {
		return Record{}, &domain.DataError{ID: id, Reason: "bad " + FieldPricePerMTok}
	}
	if perf.LatencySeconds, err = parseFloat(get(FieldLatency)); err != nil {
		return Record{}, &domain.DataError{ID: id, Reason: "bad " + FieldLatency}
	}
	if cw := get(FieldContextWindow); cw != "" {
		n, convErr := strconv.Atoi(cw)
		if convErr != nil {
			return Record{}, &domain.DataError{ID: id, Reason: "bad " + FieldContextWindow}
		}
		perf.ContextWindow = n
	}

	if err := r.Normalize(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Fields flattens the record into string fields for hash-based stores.
// Unknown performance values are omitted.
func (r *Record) Fields() map[string]string {
	f := map[string]string{
		FieldID:        r.ID,
		FieldName:      r.Name,
		FieldProvider:  r.Provider,
		FieldModelType: r.ModelType,
		FieldDomain:    r.Domain,
	}
	if r.Description != "" {
		f[FieldDescription] = r.Description
	}
	if len(r.Capabilities) > 0 {
		f[FieldCapabilities] = strings.Join(r.Capabilities, ListSeparator)
	}
	if len(r.Tags) > 0 {
		f[FieldTags] = strings.Join(r.Tags, ListSeparator)
	}
	if r.License != "" {
		f[FieldLicense] = r.License
	}
	p := r.Performance
	putFloat(f, FieldQualityIndex, p.QualityIndex)
	putFloat(f, FieldTokensPerSec, p.TokensPerSecond)
	putFloat(f, FieldPricePerMTok, p.PricePerMTok)
	putFloat(f, FieldLatency, p.LatencySeconds)
	if p.ContextWindow > 0 {
		f[FieldContextWindow] = strconv.Itoa(p.ContextWindow)
	}
	return f
}

// EmbeddingText is the text embedded for the record at ingestion.
func (r *Record) EmbeddingText() string {
	if r.Description == "" {
		return r.Name
	}
	return r.Name + ". " + r.Description
}

// SearchText is the lower-cased text keyword matching and clustering read.
func (r *Record) SearchText() string {
	parts := make([]string, 0, 6+len(r.Capabilities)+len(r.Tags))
	parts = append(parts, r.Name, r.Provider, r.ModelType, r.Domain, r.Description)
	parts = append(parts, r.Capabilities...)
	parts = append(parts, r.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

// HasCapability reports whether the record lists capability (case-insensitive).
func (r *Record) HasCapability(capability string) bool {
	for _, c := range r.Capabilities {
		if strings.EqualFold(c, capability) {
			return true
		}
	}
	return false
}

// Numeric returns the numeric value of a filterable performance field.
func (r *Record) Numeric(field string) (float64, bool) {
	switch field {
	case FieldQualityIndex:
		return r.Performance.QualityIndex, true
	case FieldTokensPerSec:
		return r.Performance.TokensPerSecond, true
	case FieldPricePerMTok:
		return r.Performance.PricePerMTok, true
	case FieldLatency:
		return r.Performance.LatencySeconds, true
	case FieldContextWindow:
		return float64(r.Performance.ContextWindow), true
	default:
		return 0, false
	}
}

// Values returns the tag values of a filterable categorical field.
func (r *Record) Values(field string) []string {
	switch field {
	case FieldProvider:
		return []string{r.Provider}
	case FieldModelType:
		return []string{r.ModelType}
	case FieldDomain:
		return []string{r.Domain}
	case FieldLicense:
		return []string{r.License}
	case FieldCapabilities:
		return r.Capabilities
	case FieldTags:
		return r.Tags
	default:
		return nil
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return cleanList(strings.Split(s, ListSeparator))
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func putFloat(f map[string]string, key string, v float64) {
	if v != 0 {
		f[key] = strconv.FormatFloat(v, 'f', -1, 64)
	}
}
