package models

import (
	"fmt"
	"sort"
)

// DependencyGraph orders model labels so that every model comes after the
// models it references.
type DependencyGraph struct {
	deps map[string][]string
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{deps: make(map[string][]string)}
}

// Add records label and the labels it depends on. Dependencies that are never
// added themselves are ignored by Order.
func (g *DependencyGraph) Add(label string, dependsOn ...string) {
	g.deps[label] = append(g.deps[label], dependsOn...)
}

// Order returns the labels with dependencies first. Labels without an
// ordering constraint between them are sorted.
func (g *DependencyGraph) Order() ([]string, error) {
	labels := make([]string, 0, len(g.deps))
	for label := range g.deps {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	visited := make(map[string]bool)
	temp := make(map[string]bool)
	order := make([]string, 0, len(labels))

	var visit func(string) error
	visit = func(label string) error {
		if temp[label] {
			return fmt.Errorf("circular dependency detected involving model: %s", label)
		}
		if visited[label] {
			return nil
		}

		temp[label] = true
		deps := append([]string(nil), g.deps[label]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := g.deps[dep]; !ok || dep == label {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		temp[label] = false
		visited[label] = true
		order = append(order, label)
		return nil
	}

	for _, label := range labels {
		if err := visit(label); err != nil {
			return nil, err
		}
	}
	return order, nil
}
