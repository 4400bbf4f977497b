// Package datafile reads the YAML document that describes models and the rows
// to preload into them.
package datafile

import (
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/Lumos-Labs-HQ/preload/internal/preload"
	"gopkg.in/yaml.v3"
)

type File struct {
	Models  []models.Descriptor         `yaml:"models"`
	Lists   map[string][][]string       `yaml:"list_data"`
	Entries []ModelEntry                `yaml:"model_data"`
	Renames map[string]map[string][]any `yaml:"unique_field_data"`
}

type ModelEntry struct {
	Model       string           `yaml:"model"`
	UniqueField string           `yaml:"unique_field,omitempty"`
	Rows        []map[string]any `yaml:"rows"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	for label, choices := range f.Lists {
		for i, c := range choices {
			if len(c) != 2 {
				return fmt.Errorf("list_data %s: choice %d must be [name, display_name], got %d values", label, i, len(c))
			}
		}
	}
	for i, entry := range f.Entries {
		if entry.Model == "" {
			return fmt.Errorf("model_data entry %d has no model", i)
		}
	}
	for label, fields := range f.Renames {
		for field, pair := range fields {
			if len(pair) != 2 {
				return fmt.Errorf("unique_field_data %s.%s must be [old, new], got %d values", label, field, len(pair))
			}
		}
	}
	return nil
}

func (f *File) Descriptors() []models.Descriptor {
	return f.Models
}

func (f *File) ListData() preload.ListData {
	if len(f.Lists) == 0 {
		return nil
	}
	out := make(preload.ListData, len(f.Lists))
	for label, choices := range f.Lists {
		list := make([]preload.Choice, len(choices))
		for i, c := range choices {
			list[i] = preload.Choice{Name: c[0], DisplayName: c[1]}
		}
		out[label] = list
	}
	return out
}

// ModelData merges entries naming the same model and unique field.
func (f *File) ModelData() preload.ModelData {
	if len(f.Entries) == 0 {
		return nil
	}
	out := make(preload.ModelData, len(f.Entries))
	for _, entry := range f.Entries {
		key := preload.ModelKey{Model: entry.Model, UniqueField: entry.UniqueField}
		for _, row := range entry.Rows {
			out[key] = append(out[key], models.Row(row))
		}
	}
	return out
}

func (f *File) UniqueFieldData() preload.UniqueFieldData {
	if len(f.Renames) == 0 {
		return nil
	}
	out := make(preload.UniqueFieldData, len(f.Renames))
	for label, fields := range f.Renames {
		renames := make(map[string]preload.Rename, len(fields))
		for field, pair := range fields {
			renames[field] = preload.Rename{Old: pair[0], New: pair[1]}
		}
		out[label] = renames
	}
	return out
}
