package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Lumos-Labs-HQ/preload/internal/database"
	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/Lumos-Labs-HQ/preload/internal/types"
)

// BuildRegistry registers a Table for every descriptor. Descriptors without
// fields are completed from the table's columns, which also supplies the
// primary key when none was given. Foreign keys of those tables that block
// deletes protect the rows they point at.
func BuildRegistry(ctx context.Context, adapter database.DatabaseAdapter, descs []models.Descriptor) (*models.Registry, error) {
	described := make([]models.Descriptor, 0, len(descs))
	incoming := make(map[string][]models.Reference)
	for _, desc := range descs {
		if len(desc.Fields) == 0 {
			columns, err := adapter.GetTableColumns(ctx, desc.Table)
			if err != nil {
				return nil, fmt.Errorf("failed to describe model %s: %w", desc.Label, err)
			}
			desc, err = describeColumns(desc, columns)
			if err != nil {
				return nil, err
			}
			for _, col := range columns {
				if restrictsDelete(col) {
					incoming[col.ForeignKeyTable] = append(incoming[col.ForeignKeyTable], models.Reference{
						Table:  desc.Table,
						Column: col.Name,
						Target: col.ForeignKeyColumn,
					})
				}
			}
		}
		described = append(described, desc)
	}

	registry := models.NewRegistry()
	for _, desc := range described {
		for _, ref := range incoming[desc.Table] {
			if !slices.ContainsFunc(desc.ProtectedBy, func(r models.Reference) bool {
				return r.Table == ref.Table && r.Column == ref.Column
			}) {
				desc.ProtectedBy = append(desc.ProtectedBy, ref)
			}
		}

		table, err := NewTable(adapter, desc)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(table); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Describe fills desc.Fields from the database in column order. Foreign keys
// to other tables are added to desc.References.
func Describe(ctx context.Context, adapter database.DatabaseAdapter, desc models.Descriptor) (models.Descriptor, error) {
	columns, err := adapter.GetTableColumns(ctx, desc.Table)
	if err != nil {
		return desc, fmt.Errorf("failed to describe model %s: %w", desc.Label, err)
	}
	return describeColumns(desc, columns)
}

// describeColumns builds fields from introspected columns. A single-column
// primary key or a declared primary_key counts as unique. A composite key
// needs primary_key to name a column that identifies one row. Generated
// columns are never unique fields: data file rows do not carry their values.
func describeColumns(desc models.Descriptor, columns []types.SchemaColumn) (models.Descriptor, error) {
	var pk []string
	for _, col := range columns {
		if col.IsPrimary {
			pk = append(pk, col.Name)
		}
	}
	if len(pk) > 1 && desc.PrimaryKey == "" {
		return desc, fmt.Errorf("model %s: composite primary key (%s) is not supported, set primary_key to a unique column",
			desc.Label, strings.Join(pk, ", "))
	}
	declared := desc.PrimaryKey
	if desc.PrimaryKey == "" && len(pk) == 1 {
		desc.PrimaryKey = pk[0]
	}

	desc.Fields = desc.Fields[:0]
	for _, col := range columns {
		key := (col.IsPrimary && len(pk) == 1) || col.Name == declared
		desc.Fields = append(desc.Fields, models.Field{
			Name:    col.Name,
			Unique:  (col.IsUnique || key) && !col.IsAutoIncrement,
			Primary: col.Name == desc.PK(),
		})
		if col.ForeignKeyTable != "" && col.ForeignKeyTable != desc.Table && !slices.Contains(desc.References, col.ForeignKeyTable) {
			desc.References = append(desc.References, col.ForeignKeyTable)
		}
	}
	return desc, nil
}

func restrictsDelete(col types.SchemaColumn) bool {
	if col.ForeignKeyTable == "" {
		return false
	}
	switch strings.ToUpper(col.OnDeleteAction) {
	case "", "RESTRICT", "NO ACTION":
		return true
	}
	return false
}
