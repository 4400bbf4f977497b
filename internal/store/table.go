// Package store implements model handles on top of a SQL database adapter.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Lumos-Labs-HQ/preload/internal/database"
	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/Masterminds/squirrel"
)

// maxGetResults bounds the rows fetched by Get to report how many matched.
const maxGetResults = 21

type Table struct {
	adapter database.DatabaseAdapter
	desc    models.Descriptor
}

func NewTable(adapter database.DatabaseAdapter, desc models.Descriptor) (*Table, error) {
	if desc.PrimaryKey == "" {
		desc.PrimaryKey = "id"
	}
	if err := common.ValidateIdentifiers("table", desc.Table); err != nil {
		return nil, fmt.Errorf("model %s: %w", desc.Label, err)
	}
	names := []string{desc.PrimaryKey}
	for _, f := range desc.Fields {
		names = append(names, f.Name)
	}
	if err := common.ValidateIdentifiers("column", names...); err != nil {
		return nil, fmt.Errorf("model %s: %w", desc.Label, err)
	}
	for _, ref := range desc.ProtectedBy {
		if err := common.ValidateIdentifiers("reference", ref.Table, ref.Column); err != nil {
			return nil, fmt.Errorf("model %s: %w", desc.Label, err)
		}
		if ref.Target != "" {
			if err := common.ValidateIdentifiers("reference", ref.Target); err != nil {
				return nil, fmt.Errorf("model %s: %w", desc.Label, err)
			}
		}
	}
	return &Table{adapter: adapter, desc: desc}, nil
}

func (t *Table) Descriptor() models.Descriptor { return t.desc }

func (t *Table) Get(ctx context.Context, filter models.Row) (models.Row, error) {
	where, err := t.eq(filter)
	if err != nil {
		return nil, err
	}
	query, args, err := t.adapter.Builder().
		Select("*").
		From(t.desc.Table).
		Where(where).
		OrderBy(t.desc.PK()).
		Limit(maxGetResults).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := t.adapter.DB().QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.desc.Table, err)
	}
	defer rows.Close()

	var found []models.Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.desc.Table, err)
		}
		found = append(found, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, models.NewDoesNotExist(t.desc.ModelName())
	case 1:
		return found[0], nil
	default:
		return nil, models.NewMultipleObjectsReturned(t.desc.ModelName(), len(found))
	}
}

func (t *Table) Create(ctx context.Context, fields models.Row) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to insert into %s", t.desc.Table)
	}
	columns := sortedColumns(fields)
	if err := common.ValidateIdentifiers("column", columns...); err != nil {
		return err
	}
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = fields[c]
	}

	query, args, err := t.adapter.Builder().
		Insert(t.desc.Table).
		Columns(columns...).
		Values(values...).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := t.adapter.DB().ExecContext(ctx, query, args...); err != nil {
		err = t.adapter.ClassifyError(err)
		if common.IsConstraint(err) {
			return fmt.Errorf("%w: %w", models.ErrIntegrity, err)
		}
		return fmt.Errorf("failed to insert into %s: %w", t.desc.Table, err)
	}
	return nil
}

func (t *Table) Save(ctx context.Context, row models.Row) error {
	pk := t.desc.PK()
	id, ok := row[pk]
	if !ok || id == nil {
		return fmt.Errorf("cannot save %s row without %s", t.desc.Table, pk)
	}

	set := make(map[string]any, len(row))
	for col, v := range row {
		if col != pk {
			set[col] = v
		}
	}
	if len(set) == 0 {
		return nil
	}
	if err := common.ValidateIdentifiers("column", sortedColumns(set)...); err != nil {
		return err
	}

	query, args, err := t.adapter.Builder().
		Update(t.desc.Table).
		SetMap(set).
		Where(squirrel.Eq{pk: id}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := t.adapter.DB().ExecContext(ctx, query, args...); err != nil {
		err = t.adapter.ClassifyError(err)
		if common.IsConstraint(err) {
			return fmt.Errorf("%w: %w", models.ErrIntegrity, err)
		}
		return fmt.Errorf("failed to update %s: %w", t.desc.Table, err)
	}
	return nil
}

func (t *Table) Delete(ctx context.Context, row models.Row) error {
	pk := t.desc.PK()
	id, ok := row[pk]
	if !ok || id == nil {
		return fmt.Errorf("cannot delete %s row without %s", t.desc.Table, pk)
	}

	if err := t.checkProtected(ctx, row); err != nil {
		return err
	}

	query, args, err := t.adapter.Builder().
		Delete(t.desc.Table).
		Where(squirrel.Eq{pk: id}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := t.adapter.DB().ExecContext(ctx, query, args...); err != nil {
		err = t.adapter.ClassifyError(err)
		if errors.Is(err, common.ErrForeignKeyViolation) {
			return fmt.Errorf("%w: %w", models.ErrProtected, err)
		}
		return fmt.Errorf("failed to delete from %s: %w", t.desc.Table, err)
	}
	return nil
}

// checkProtected counts rows that still point at row through a declared
// reference.
func (t *Table) checkProtected(ctx context.Context, row models.Row) error {
	for _, ref := range t.desc.ProtectedBy {
		target := ref.Target
		if target == "" {
			target = t.desc.PK()
		}
		value, ok := row[target]
		if !ok {
			return fmt.Errorf("reference %s.%s targets %s, which is not in the row", ref.Table, ref.Column, target)
		}

		query, args, err := t.adapter.Builder().
			Select("COUNT(*)").
			From(ref.Table).
			Where(squirrel.Eq{ref.Column: value}).
			ToSql()
		if err != nil {
			return err
		}

		var count int
		if err := t.adapter.DB().QueryRowxContext(ctx, query, args...).Scan(&count); err != nil {
			return fmt.Errorf("failed to count references in %s: %w", ref.Table, err)
		}
		if count > 0 {
			return &models.ProtectedError{Model: t.desc.ModelName(), Ref: ref, Count: count}
		}
	}
	return nil
}

func (t *Table) eq(filter models.Row) (squirrel.Eq, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("empty filter for %s", t.desc.Table)
	}
	where := make(squirrel.Eq, len(filter))
	for col, v := range filter {
		if err := common.ValidateIdentifiers("column", col); err != nil {
			return nil, err
		}
		where[col] = v
	}
	return where, nil
}

func sortedColumns(row map[string]any) []string {
	columns := make([]string, 0, len(row))
	for c := range row {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

// normalize turns driver byte slices into strings.
func normalize(row map[string]any) models.Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return models.Row(row)
}
