package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/Lumos-Labs-HQ/preload/internal/types"
)

func (s *Adapter) GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	// SECURITY: Validate table name before using in PRAGMA
	if err := common.ValidateIdentifiers("table", tableName); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(\"%s\")", tableName))
	if err != nil {
		return nil, err
	}

	var columns []types.SchemaColumn
	var integerPK []bool
	pkColumns := 0
	for rows.Next() {
		var cid int
		var column types.SchemaColumn
		var dataType string
		var notNull int
		var defaultValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &column.Name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			rows.Close()
			return nil, err
		}

		column.IsPrimary = pk > 0
		if column.IsPrimary {
			pkColumns++
		}
		columns = append(columns, column)
		integerPK = append(integerPK, column.IsPrimary && strings.ToUpper(dataType) == "INTEGER")
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}
	// Only a lone INTEGER PRIMARY KEY aliases the rowid.
	if pkColumns == 1 {
		for i := range columns {
			columns[i].IsAutoIncrement = integerPK[i]
		}
	}

	// Single connection pool: each PRAGMA result is closed before the next query.
	uniqueColumns, err := s.getUniqueColumnsForTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	for i := range columns {
		columns[i].IsUnique = uniqueColumns[columns[i].Name]
	}

	if err := s.applyForeignKeys(ctx, tableName, columns); err != nil {
		return nil, err
	}
	return columns, nil
}

func (s *Adapter) applyForeignKeys(ctx context.Context, tableName string, columns []types.SchemaColumn) error {
	fkRows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(\"%s\")", tableName))
	if err != nil {
		return err
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var id, seq int
		var table, from, onUpdate, onDelete, match string
		var to sql.NullString

		if err := fkRows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}

		for i := range columns {
			if columns[i].Name == from {
				columns[i].ForeignKeyTable = table
				columns[i].ForeignKeyColumn = to.String
				columns[i].OnDeleteAction = onDelete
				break
			}
		}
	}
	return fkRows.Err()
}

// getUniqueColumnsForTable returns the columns covered on their own by a
// unique index.
func (s *Adapter) getUniqueColumnsForTable(ctx context.Context, tableName string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(\"%s\")", tableName))
	if err != nil {
		return nil, err
	}

	var uniqueIndexes []string
	for rows.Next() {
		var seq int
		var indexName string
		var unique int
		var origin, partial string

		if err := rows.Scan(&seq, &indexName, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if unique == 1 {
			uniqueIndexes = append(uniqueIndexes, indexName)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	uniqueMap := make(map[string]bool)
	for _, indexName := range uniqueIndexes {
		columns, err := s.getIndexColumns(ctx, indexName)
		if err != nil {
			return nil, err
		}
		// Only mark as unique if it's a single-column unique index
		if len(columns) == 1 {
			uniqueMap[columns[0]] = true
		}
	}
	return uniqueMap, nil
}

func (s *Adapter) getIndexColumns(ctx context.Context, indexName string) ([]string, error) {
	colRows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(\"%s\")", indexName))
	if err != nil {
		return nil, err
	}
	defer colRows.Close()

	var columns []string
	for colRows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := colRows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		columns = append(columns, name.String)
	}
	return columns, colRows.Err()
}
