package db

import (
	"errors"
	"fmt"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

// Supported distance metrics.
const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceL2     DistanceMetric = "L2"
)

// IndexFieldType is the FT.CREATE schema keyword of a field.
type IndexFieldType string

// Indexed field types.
const (
	IndexFieldTag     IndexFieldType = "TAG"
	IndexFieldNumeric IndexFieldType = "NUMERIC"
	IndexFieldText    IndexFieldType = "TEXT"
	IndexFieldVector  IndexFieldType = "VECTOR"
)

// HNSW describes an HNSW vector field. Zero M or EFConstruct leave the
// server defaults (16 and 200).
type HNSW struct {
	Dim         int
	Distance    DistanceMetric
	M           int
	EFConstruct int
}

// IndexField is one field of a catalog index schema.
type IndexField struct {
	Name string
	Type IndexFieldType
	// Separator marks a TAG field holding a joined list of values.
	Separator string
	// Vector is set for IndexFieldVector fields only.
	Vector *HNSW
}

// IndexDefinition is the schema of one catalog collection. Records are
// stored as hashes under Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks that the definition can be sent to FT.CREATE.
func (idx *IndexDefinition) Validate() error {
	switch {
	case idx.Name == "":
		return errors.New("index name is required")
	case !IsValidIdentifier(idx.Name):
		return errors.New("index name contains invalid characters")
	case len(idx.Fields) == 0:
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if err := f.validate(); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

func (f *IndexField) validate() error {
	if f.Name == "" {
		return errors.New("field name is required")
	}
	switch f.Type {
	case IndexFieldTag, IndexFieldNumeric, IndexFieldText:
		if f.Vector != nil {
			return fmt.Errorf("%s: vector options on a %s field", f.Name, f.Type)
		}
	case IndexFieldVector:
		if f.Vector == nil || f.Vector.Dim <= 0 {
			return fmt.Errorf("%s: vector field requires positive DIM", f.Name)
		}
	default:
		return fmt.Errorf("%s: unknown field type %q", f.Name, f.Type)
	}
	if f.Separator != "" && f.Type != IndexFieldTag {
		return fmt.Errorf("%s: separator is only valid on TAG fields", f.Name)
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
