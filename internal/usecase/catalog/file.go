// Package catalog loads model catalog files and seeds them into the
// vector store.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	dcat "github.com/kailas-cloud/modeldex/internal/domain/catalog"
)

// File is a catalog file: named collections of model records.
//
//	collections:
//	  - name: model_descriptions
//	    models:
//	      - id: codegen-7b
//	        name: CodeGen 7B
//	        capabilities: [code generation]
type File struct {
	Collections []Collection `yaml:"collections"`
}

// Collection is one named set of records.
type Collection struct {
	Name   string        `yaml:"name"`
	Models []dcat.Record `yaml:"models"`
}

// LoadFile reads a YAML catalog file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	cf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cf, nil
}

// Decode parses a YAML catalog. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cf File
	if err := dec.Decode(&cf); err != nil {
		if errors.Is(err, io.EOF) {
			return &cf, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, c := range cf.Collections {
		if c.Name == "" {
			return nil, fmt.Errorf("collection #%d: name is required", i+1)
		}
	}
	return &cf, nil
}

// Size returns the number of records across collections.
func (f *File) Size() int {
	n := 0
	for _, c := range f.Collections {
		n += len(c.Models)
	}
	return n
}
