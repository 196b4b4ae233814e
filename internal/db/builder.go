package db

import (
	"slices"
	"strings"
)

// IndexBuilder assembles an FT index definition field by field. Field
// methods accept several names so a schema reads as one group per type.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

func (b *IndexBuilder) add(t IndexFieldType, names ...string) *IndexBuilder {
	for _, n := range names {
		b.def.Fields = append(b.def.Fields, IndexField{Name: n, Type: t})
	}
	return b
}

// Prefix restricts the index to keys starting with any of prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Tag adds exact-match TAG fields.
func (b *IndexBuilder) Tag(names ...string) *IndexBuilder { return b.add(IndexFieldTag, names...) }

// Numeric adds NUMERIC fields used by range filters.
func (b *IndexBuilder) Numeric(names ...string) *IndexBuilder {
	return b.add(IndexFieldNumeric, names...)
}

// Text adds full-text TEXT fields.
func (b *IndexBuilder) Text(names ...string) *IndexBuilder { return b.add(IndexFieldText, names...) }

// List adds case-insensitive TAG fields holding separator-joined values.
func (b *IndexBuilder) List(separator string, names ...string) *IndexBuilder {
	for _, n := range names {
		b.def.Fields = append(b.def.Fields, IndexField{Name: n, Type: IndexFieldTag, Separator: separator})
	}
	return b
}

// VectorHNSW adds an HNSW vector field.
func (b *IndexBuilder) VectorHNSW(name string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:   name,
		Type:   IndexFieldVector,
		Vector: &HNSW{Dim: dim, Distance: distance, M: m, EFConstruct: efConstruct},
	})
	return b
}

// Build validates the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	def := IndexDefinition{
		Name:     b.def.Name,
		Prefixes: slices.Clone(b.def.Prefixes),
		Fields:   slices.Clone(b.def.Fields),
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// MustBuild is Build for definitions known to be valid. It panics otherwise.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String renders the definition in FT.CREATE form for logs.
func (idx *IndexDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("FT.CREATE ")
	sb.WriteString(idx.Name)
	sb.WriteString(" ON HASH")
	if len(idx.Prefixes) > 0 {
		sb.WriteString(" PREFIX " + strings.Join(idx.Prefixes, " "))
	}
	sb.WriteString(" SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		sb.WriteString(" " + f.Name + " " + string(f.Type))
		if f.Type == IndexFieldVector {
			sb.WriteString(" HNSW")
		}
	}
	return sb.String()
}
