package io

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// DirStore writes run artifacts into a single directory.
// Arrays become .npy files, tables .csv (and .xlsx when XLSX is set), documents .yaml.
type DirStore struct {
	Dir  string
	XLSX bool
}

// NewDirStore creates dir if needed
func NewDirStore(dir string, xlsx bool) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("[NewDirStore] failed to create %s: %w", dir, err)
	}
	return &DirStore{Dir: dir, XLSX: xlsx}, nil
}

// Path returns the location of file within the store
func (s *DirStore) Path(file string) string {
	return filepath.Join(s.Dir, file)
}

func (s *DirStore) record(file string) {
	log.WithField("artifact", s.Path(file)).Debug("Saved")
}

// SaveArray writes m as <name>.npy
func (s *DirStore) SaveArray(name string, m *mat.Dense) error {
	file := name + ".npy"
	if err := DenseToNpy(s.Path(file), m); err != nil {
		return err
	}
	s.record(file)
	return nil
}

// SaveVector writes v as a one-dimensional <name>.npy
func (s *DirStore) SaveVector(name string, v []float64) error {
	file := name + ".npy"
	if err := VectorToNpy(s.Path(file), v); err != nil {
		return err
	}
	s.record(file)
	return nil
}

// SaveTable writes t as <name>.csv and, if enabled, <name>.xlsx
func (s *DirStore) SaveTable(name string, t Table) error {
	file := name + ".csv"
	if err := TableToCSV(s.Path(file), t); err != nil {
		return err
	}
	s.record(file)

	if !s.XLSX {
		return nil
	}
	file = name + ".xlsx"
	if err := TableToXLSX(s.Path(file), t); err != nil {
		return err
	}
	s.record(file)
	return nil
}

// SaveYAML marshals v into <name>.yaml
func (s *DirStore) SaveYAML(name string, v any) error {
	file := name + ".yaml"
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("[SaveYAML] %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(file), b, 0o644); err != nil {
		return fmt.Errorf("[SaveYAML] failed to write %s: %w", file, err)
	}
	s.record(file)
	return nil
}
