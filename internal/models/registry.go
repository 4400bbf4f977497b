package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultRegistry is the process-wide registry. Host applications register
// their models here at start; the seeder uses it unless told otherwise.
var DefaultRegistry = NewRegistry()

// Register adds a model to DefaultRegistry.
func Register(m Model) error {
	return DefaultRegistry.Register(m)
}

type Registry struct {
	mu   sync.RWMutex
	apps map[string]map[string]Model
}

func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]map[string]Model)}
}

// SplitLabel splits "app_label.ModelName" into its parts.
func SplitLabel(label string) (string, string, error) {
	parts := strings.Split(label, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: got %q", ErrInvalidLabel, label)
	}
	return parts[0], parts[1], nil
}

func (r *Registry) Register(m Model) error {
	desc := m.Descriptor()
	appLabel, modelName, err := SplitLabel(desc.Label)
	if err != nil {
		return err
	}
	if desc.Table == "" {
		return fmt.Errorf("model %s has no table", desc.Label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	models, ok := r.apps[appLabel]
	if !ok {
		models = make(map[string]Model)
		r.apps[appLabel] = models
	}
	key := strings.ToLower(modelName)
	if _, exists := models[key]; exists {
		return fmt.Errorf("model %s is already registered", desc.Label)
	}
	models[key] = m
	return nil
}

// GetModel resolves a label. The model name is matched case-insensitively.
func (r *Registry) GetModel(label string) (Model, error) {
	appLabel, modelName, err := SplitLabel(label)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	models, ok := r.apps[appLabel]
	if !ok {
		return nil, &LookupError{AppLabel: appLabel, ModelName: modelName, NoApp: true}
	}
	m, ok := models[strings.ToLower(modelName)]
	if !ok {
		return nil, &LookupError{AppLabel: appLabel, ModelName: modelName}
	}
	return m, nil
}

// Models returns every registered model sorted by label.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Model
	for _, models := range r.apps {
		for _, m := range models {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor().Label < out[j].Descriptor().Label
	})
	return out
}
