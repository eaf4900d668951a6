package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/civicworks/voterbase/internal/address"
)

// ErrNotFound is returned when no profile exists for a state. Callers are
// expected to run onboarding first.
var ErrNotFound = errors.New("profile not found")

// Store persists and retrieves per-state profiles.
type Store interface {
	Load(stateCode string) (*Profile, error)
	Save(p *Profile) error
}

// FileStore keeps one document per state under an explicit directory:
// <dir>/<state>_config.json, with <state>_config.yaml accepted as a legacy
// fallback on reads. The directory is always passed in, never discovered
// from the binary's own location.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) jsonPath(stateCode string) string {
	return filepath.Join(s.dir, strings.ToLower(stateCode)+"_config.json")
}

func (s *FileStore) yamlPath(stateCode string) string {
	return filepath.Join(s.dir, strings.ToLower(stateCode)+"_config.yaml")
}

// Load reads the profile for a state, trying JSON first and YAML second.
func (s *FileStore) Load(stateCode string) (*Profile, error) {
	if data, err := os.ReadFile(s.jsonPath(stateCode)); err == nil {
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", s.jsonPath(stateCode), err)
		}
		return &p, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	if data, err := os.ReadFile(s.yamlPath(stateCode)); err == nil {
		p, err := decodeYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", s.yamlPath(stateCode), err)
		}
		return p, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	return nil, fmt.Errorf("%w: state %s", ErrNotFound, strings.ToUpper(stateCode))
}

// Exists reports whether a profile is already on disk for a state.
func (s *FileStore) Exists(stateCode string) bool {
	if _, err := os.Stat(s.jsonPath(stateCode)); err == nil {
		return true
	}
	if _, err := os.Stat(s.yamlPath(stateCode)); err == nil {
		return true
	}
	return false
}

// Save writes the profile as indented JSON, stamping timestamps. An existing
// document for the state is replaced whole; there is no merging.
func (s *FileStore) Save(p *Profile) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	p.LastUpdated = now
	p.FileFormat = normalizeFormat(p.FileFormat)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(s.jsonPath(p.StateCode), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// List returns the state codes that have a profile on disk.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile dir: %w", err)
	}
	var states []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, "_config.json") || strings.HasSuffix(name, "_config.yaml") {
			code := strings.ToUpper(name[:strings.Index(name, "_config.")])
			states = append(states, code)
		}
	}
	return states, nil
}

// decodeYAML handles legacy YAML profiles, including the bare-string
// file_format shape.
func decodeYAML(data []byte) (*Profile, error) {
	var doc struct {
		StateCode      string                  `yaml:"state_code"`
		FileFormat     any                     `yaml:"file_format"`
		Delimiter      string                  `yaml:"delimiter"`
		Encoding       string                  `yaml:"encoding"`
		HasHeader      *bool                   `yaml:"has_header"`
		ColumnMappings map[string]string       `yaml:"column_mappings"`
		AddressFields  map[string]address.Rule `yaml:"address_fields"`
		ColumnNames    []string                `yaml:"column_names"`
		CreatedAt      string                  `yaml:"created_at"`
		LastUpdated    string                  `yaml:"last_updated"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	p := &Profile{
		StateCode:      doc.StateCode,
		ColumnMappings: doc.ColumnMappings,
		AddressFields:  doc.AddressFields,
		ColumnNames:    doc.ColumnNames,
		CreatedAt:      doc.CreatedAt,
		LastUpdated:    doc.LastUpdated,
	}

	ff := FileFormat{HasHeader: true}
	switch v := doc.FileFormat.(type) {
	case string:
		ff.Type = v
		ff.Delimiter = doc.Delimiter
		ff.Encoding = doc.Encoding
		if doc.HasHeader != nil {
			ff.HasHeader = *doc.HasHeader
		}
	case map[string]any:
		if t, ok := v["type"].(string); ok {
			ff.Type = t
		}
		if d, ok := v["delimiter"].(string); ok {
			ff.Delimiter = d
		}
		if e, ok := v["encoding"].(string); ok {
			ff.Encoding = e
		}
		if h, ok := v["has_header"].(bool); ok {
			ff.HasHeader = h
		}
	}
	p.FileFormat = normalizeFormat(ff)
	return p, nil
}
