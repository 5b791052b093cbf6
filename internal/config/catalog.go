package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rpcpool/ggml-weight-prefetch/internal/catalog"
)

// CatalogFile is the on-disk shape of the optional catalogue config file
// (§3): a human-checked-in description of a model's layer layout, for
// operators and tests that don't want to wire the live runtime side-
// channel.
type CatalogFile struct {
	K             int32                       `json:"k" yaml:"k"`
	W             int32                       `json:"w" yaml:"w"`
	PrefetchInput bool                        `json:"prefetchInput" yaml:"prefetchInput"`
	Layers        map[string]CatalogFileLayer `json:"layers" yaml:"layers"`
}

type CatalogFileLayer struct {
	Index     int32              `json:"index" yaml:"index"`
	Fragments []CatalogFileRange `json:"fragments" yaml:"fragments"`
}

type CatalogFileRange struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// LoadCatalogFile reads a catalogue config file, sniffing JSON vs YAML by
// file extension the way the reference server's LoadConfig does.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	var cf CatalogFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := loadJSON(path, &cf); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := loadYAML(path, &cf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("config: catalogue file %q must be .json, .yaml or .yml", path)
	}
	return &cf, nil
}

func loadJSON(path string, out *CatalogFile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read catalogue file %q: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse catalogue file %q as JSON: %w", path, err)
	}
	return nil
}

func loadYAML(path string, out *CatalogFile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read catalogue file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse catalogue file %q as YAML: %w", path, err)
	}
	return nil
}

// BuildFromConfig loads a catalogue config file and builds a Catalog from
// it via catalog.New, so config-file-driven and live-runtime-driven
// catalogues share one construction routine and one set of invariants.
func BuildFromConfig(path string) (*catalog.Catalog, error) {
	cf, err := LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}

	offsets := make(map[string][]catalog.OffsetEntry, len(cf.Layers))
	for name, layer := range cf.Layers {
		entries := make([]catalog.OffsetEntry, 0, len(layer.Fragments))
		for _, r := range layer.Fragments {
			entries = append(entries, catalog.OffsetEntry{Name: name, Start: r.Start, End: r.End, Index: layer.Index})
		}
		offsets[name] = entries
	}

	return catalog.New(offsets, cf.K, cf.W, cf.PrefetchInput)
}
