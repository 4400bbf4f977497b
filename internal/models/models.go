package models

import (
	"context"
	"strings"
)

// Row is a single record keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Field struct {
	Name    string `json:"name" yaml:"name"`
	Unique  bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	Primary bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// Reference describes a column in another table that points at rows of a
// model. A row that is still referenced cannot be deleted.
type Reference struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"` // defaults to the primary key
}

type Descriptor struct {
	Label       string      `json:"label" yaml:"label"`
	Table       string      `json:"table" yaml:"table"`
	PrimaryKey  string      `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Fields      []Field     `json:"fields,omitempty" yaml:"fields,omitempty"`
	ProtectedBy []Reference `json:"protected_by,omitempty" yaml:"protected_by,omitempty"`
	// References lists the tables this model's rows point at.
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// ModelName returns the part of the label after the app label.
func (d Descriptor) ModelName() string {
	if idx := strings.LastIndex(d.Label, "."); idx >= 0 {
		return d.Label[idx+1:]
	}
	return d.Label
}

func (d Descriptor) PK() string {
	if d.PrimaryKey != "" {
		return d.PrimaryKey
	}
	return "id"
}

// Field returns the declared field with the given name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Model is the capability set the seeder needs from one entity type.
type Model interface {
	Descriptor() Descriptor

	// Get returns exactly one row matching every key of filter. It fails with
	// ErrDoesNotExist or ErrMultipleObjectsReturned.
	Get(ctx context.Context, filter Row) (Row, error)

	// Create inserts a row. Constraint violations fail with ErrIntegrity.
	Create(ctx context.Context, fields Row) error

	// Save persists every column of a row previously returned by Get.
	Save(ctx context.Context, row Row) error

	// Delete removes a row previously returned by Get. It fails with
	// ErrProtected when the row is still referenced.
	Delete(ctx context.Context, row Row) error
}

// Apps resolves model labels to handles.
type Apps interface {
	GetModel(label string) (Model, error)
}
