package propertydb

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

type fileRecord struct {
	Cation     string                 `yaml:"cation"`
	Anion      string                 `yaml:"anion"`
	Properties []domain.PropertyValue `yaml:"properties"`
}

type fileDocument struct {
	Records []fileRecord `yaml:"records"`
}

type ionPair struct {
	cation, anion domain.MoleculeIdentity
}

// File serves labels from a YAML document. Ion SMILES are canonicalized on
// load, so any spelling of an ion matches.
type File struct {
	records map[ionPair][]domain.PropertyValue
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read property file: %w", err)
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (*File, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse property file: %w", err)
	}

	f := &File{records: make(map[ionPair][]domain.PropertyValue)}
	for i, r := range doc.Records {
		cation, err := chem.Canonicalize(r.Cation)
		if err != nil {
			return nil, fmt.Errorf("record %d: cation: %w", i+1, err)
		}
		anion, err := chem.Canonicalize(r.Anion)
		if err != nil {
			return nil, fmt.Errorf("record %d: anion: %w", i+1, err)
		}
		key := ionPair{cation, anion}
		f.records[key] = append(f.records[key], r.Properties...)
	}
	return f, nil
}

func (f *File) Lookup(_ context.Context, cation, anion domain.MoleculeIdentity) ([]domain.PropertyValue, error) {
	props := f.records[ionPair{cation, anion}]
	if len(props) == 0 {
		return nil, nil
	}
	out := make([]domain.PropertyValue, len(props))
	copy(out, props)
	return out, nil
}
