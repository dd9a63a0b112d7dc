package duplicate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrNonUTF8Path is returned when a path cannot be stored in a JSON document.
var ErrNonUTF8Path = errors.New("path is not valid UTF-8")

// Serialize encodes the pool as a JSON list of path lists. Cached file
// features are not stored.
func (p *Pool) Serialize(excludeSingletons bool) ([]byte, error) {
	doc := make([][]string, 0, len(p.sets))
	for _, s := range p.sets {
		if excludeSingletons && s.IsSingleton() {
			continue
		}
		paths := s.Paths()
		for _, path := range paths {
			if !utf8.ValidString(path) {
				return nil, fmt.Errorf("serialize %q: %w", path, ErrNonUTF8Path)
			}
		}
		doc = append(doc, paths)
	}
	return json.MarshalIndent(doc, "", "    ")
}

// Deserialize rebuilds a pool from a document produced by Serialize.
func Deserialize(data []byte, logger *zap.Logger) (*Pool, error) {
	var doc [][]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode pool document: %w", err)
	}
	pool := NewPool(logger)
	for i, paths := range doc {
		if err := pool.AddFromPaths(paths); err != nil {
			return nil, fmt.Errorf("pool document set %d: %w", i, err)
		}
	}
	return pool, nil
}

// ReadFile loads a pool document.
func ReadFile(path string, logger *zap.Logger) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool document: %w", err)
	}
	return Deserialize(data, logger)
}

// WriteFile stores the pool document, replacing path atomically.
func (p *Pool) WriteFile(path string, excludeSingletons bool) error {
	data, err := p.Serialize(excludeSingletons)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dupsweep-*.json")
	if err != nil {
		return fmt.Errorf("write pool document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write pool document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write pool document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write pool document: %w", err)
	}
	return nil
}

// WriteExplain stores the keeper -> duplicates map as JSON.
func (p *Pool) WriteExplain(path string) error {
	data, err := json.MarshalIndent(p.Explain(), "", "    ")
	if err != nil {
		return fmt.Errorf("encode explain: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write explain: %w", err)
	}
	return nil
}
