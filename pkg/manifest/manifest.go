// Package manifest describes which collections a seed run provisions and the
// documents it inserts into them.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	seederrors "github.com/mouradhm/mongo-seed/pkg/errors"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

//go:embed default.yaml
var defaultManifest []byte

// Manifest lists the collections to provision
type Manifest struct {
	Collections []Collection `yaml:"collections" toml:"collections" json:"collections"`
}

// Collection is one collection to ensure, with optional indexes and seed documents
type Collection struct {
	Name      string            `yaml:"name" toml:"name" json:"name"`
	Indexes   []Index           `yaml:"indexes,omitempty" toml:"indexes,omitempty" json:"indexes,omitempty"`
	Documents []models.Document `yaml:"documents,omitempty" toml:"documents,omitempty" json:"documents,omitempty"`
}

// Index is a secondary index created once the collection exists
type Index struct {
	Name   string     `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Keys   []IndexKey `yaml:"keys" toml:"keys" json:"keys"`
	Unique bool       `yaml:"unique,omitempty" toml:"unique,omitempty" json:"unique,omitempty"`
}

// IndexKey is one field of an index; Order is 1 (ascending) or -1 (descending)
type IndexKey struct {
	Field string `yaml:"field" toml:"field" json:"field"`
	Order int    `yaml:"order" toml:"order" json:"order"`
}

// Default returns the built-in manifest
func Default() (*Manifest, error) {
	m, err := parse(defaultManifest, ".yaml")
	if err != nil {
		return nil, err
	}
	return m, m.Validate()
}

// Load reads a manifest from path. The format follows the file extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, seederrors.NewManifestError("failed to read manifest file").WithCause(err)
	}

	m, err := parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	return m, m.Validate()
}

// LoadOrDefault loads the manifest at path, or the built-in one when path is empty
func LoadOrDefault(path string) (*Manifest, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

func parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	var err error

	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".json":
		// json.Number keeps integers integral; bson encodes it as int64 or double
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&m)
	default:
		return nil, seederrors.NewManifestError(fmt.Sprintf("cannot load manifest with extension %q", ext)).
			WithCause(seederrors.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, seederrors.NewManifestError("failed to parse manifest").WithCause(err)
	}
	return &m, nil
}

// Validate checks collection names and index definitions
func (m *Manifest) Validate() error {
	if len(m.Collections) == 0 {
		return seederrors.NewManifestError("manifest declares no collections")
	}

	seen := make(map[string]bool, len(m.Collections))
	for _, c := range m.Collections {
		if err := validateCollectionName(c.Name); err != nil {
			return seederrors.NewManifestError(err.Error()).WithCollection(c.Name)
		}
		if seen[c.Name] {
			return seederrors.NewManifestError("duplicate collection").WithCollection(c.Name)
		}
		seen[c.Name] = true

		for i, idx := range c.Indexes {
			if len(idx.Keys) == 0 {
				return seederrors.NewManifestError(fmt.Sprintf("index %d has no keys", i)).WithCollection(c.Name)
			}
			for _, k := range idx.Keys {
				if k.Field == "" {
					return seederrors.NewManifestError(fmt.Sprintf("index %d has an empty field name", i)).WithCollection(c.Name)
				}
				if k.Order != 1 && k.Order != -1 {
					return seederrors.NewManifestError(fmt.Sprintf("index %d field %q has order %d, want 1 or -1", i, k.Field, k.Order)).
						WithCollection(c.Name)
				}
			}
		}
	}
	return nil
}

func validateCollectionName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("collection name is empty")
	case strings.ContainsAny(name, "$\x00"):
		return fmt.Errorf("collection name contains '$' or a NUL byte")
	case strings.HasPrefix(name, "system."):
		return fmt.Errorf("collection name uses the reserved system. prefix")
	}
	return nil
}

// CollectionNames returns the declared collection names in manifest order
func (m *Manifest) CollectionNames() []string {
	names := make([]string, 0, len(m.Collections))
	for _, c := range m.Collections {
		names = append(names, c.Name)
	}
	return names
}

// Filter returns a manifest restricted to the named collections.
// An empty list returns the manifest unchanged.
func (m *Manifest) Filter(names []string) (*Manifest, error) {
	if len(names) == 0 {
		return m, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	out := &Manifest{}
	for _, c := range m.Collections {
		if want[c.Name] {
			out.Collections = append(out.Collections, c)
			delete(want, c.Name)
		}
	}
	for n := range want {
		return nil, seederrors.NewManifestError("collection not declared in manifest").WithCollection(n)
	}
	return out, nil
}

// TotalDocuments counts the seed documents across all collections
func (m *Manifest) TotalDocuments() int {
	total := 0
	for _, c := range m.Collections {
		total += len(c.Documents)
	}
	return total
}
