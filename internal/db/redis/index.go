package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/modeldex/internal/db"
)

// CreateIndex runs FT.CREATE for a catalog collection schema.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := ftCreateArgs(def)
	if err != nil {
		return err
	}
	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// DropIndex removes an index, keeping the indexed hashes.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	return s.indexCmd(ctx, db.OpDropIndex, name)
}

// IndexExists reports whether FT.INFO knows name.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.indexCmd(ctx, db.OpIndexInfo, name)
	if errors.Is(err, db.ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

// indexCmd runs a single-argument FT command against an index name.
func (s *Store) indexCmd(ctx context.Context, op, name string) error {
	err := s.do(ctx, s.b().Arbitrary(op).Args(name).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "unknown index name"):
		return db.ErrIndexNotFound
	default:
		return &db.Error{Op: op, Err: err}
	}
}

// ftCreateArgs renders def as FT.CREATE arguments:
//
//	<name> ON HASH [PREFIX n p...] SCHEMA <field args>...
func ftCreateArgs(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	args := []string{def.Name, "ON", "HASH"}
	if n := len(def.Prefixes); n > 0 {
		args = append(args, "PREFIX", strconv.Itoa(n))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range def.Fields {
		args = appendField(args, &def.Fields[i])
	}
	return args, nil
}

// appendField appends one validated schema field.
func appendField(args []string, f *db.IndexField) []string {
	args = append(args, f.Name, string(f.Type))
	switch f.Type {
	case db.IndexFieldTag:
		if f.Separator != "" {
			args = append(args, "SEPARATOR", f.Separator)
		}
	case db.IndexFieldVector:
		args = append(args, "HNSW")
		args = append(args, hnswAttrs(f.Vector)...)
	}
	return args
}

// hnswAttrs returns the counted attribute list of an HNSW field.
func hnswAttrs(v *db.HNSW) []string {
	distance := v.Distance
	if distance == "" {
		distance = db.DistanceCosine
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruct))
	}
	return append([]string{strconv.Itoa(len(attrs))}, attrs...)
}
