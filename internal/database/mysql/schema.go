package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/Lumos-Labs-HQ/preload/internal/types"
)

// COLUMN_KEY is PRI for primary key columns and UNI for the first column of
// a unique index, so multi-column indexes are excluded via STATISTICS.
const columnsQuery = `
	SELECT
		c.COLUMN_NAME,
		c.COLUMN_KEY,
		c.EXTRA,
		EXISTS (
			SELECT 1 FROM information_schema.STATISTICS s
			WHERE s.TABLE_SCHEMA = c.TABLE_SCHEMA
			  AND s.TABLE_NAME = c.TABLE_NAME
			  AND s.COLUMN_NAME = c.COLUMN_NAME
			  AND s.NON_UNIQUE = 0
			  AND s.INDEX_NAME <> 'PRIMARY'
			  AND (SELECT COUNT(*) FROM information_schema.STATISTICS s2
			       WHERE s2.TABLE_SCHEMA = s.TABLE_SCHEMA
			         AND s2.TABLE_NAME = s.TABLE_NAME
			         AND s2.INDEX_NAME = s.INDEX_NAME) = 1
		) AS is_unique
	FROM information_schema.COLUMNS c
	WHERE c.TABLE_SCHEMA = DATABASE() AND c.TABLE_NAME = ?
	ORDER BY c.ORDINAL_POSITION
`

const foreignKeysQuery = `
	SELECT
		k.COLUMN_NAME,
		k.REFERENCED_TABLE_NAME,
		k.REFERENCED_COLUMN_NAME,
		r.DELETE_RULE
	FROM information_schema.KEY_COLUMN_USAGE k
	LEFT JOIN information_schema.REFERENTIAL_CONSTRAINTS r
		ON k.CONSTRAINT_NAME = r.CONSTRAINT_NAME
		AND k.TABLE_SCHEMA = r.CONSTRAINT_SCHEMA
	WHERE k.TABLE_SCHEMA = DATABASE()
	  AND k.TABLE_NAME = ?
	  AND k.REFERENCED_TABLE_NAME IS NOT NULL
`

func (m *Adapter) GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	if err := common.ValidateIdentifiers("table", tableName); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, columnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var column types.SchemaColumn
		var columnKey, extra string
		var isUnique int

		if err := rows.Scan(&column.Name, &columnKey, &extra, &isUnique); err != nil {
			return nil, err
		}
		column.IsPrimary = columnKey == "PRI"
		column.IsUnique = isUnique == 1
		column.IsAutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}

	if err := m.applyForeignKeys(ctx, tableName, columns); err != nil {
		return nil, err
	}
	return columns, nil
}

func (m *Adapter) applyForeignKeys(ctx context.Context, tableName string, columns []types.SchemaColumn) error {
	rows, err := m.db.QueryContext(ctx, foreignKeysQuery, tableName)
	if err != nil {
		return fmt.Errorf("failed to get foreign keys for table %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var column, table, target string
		var onDelete sql.NullString
		if err := rows.Scan(&column, &table, &target, &onDelete); err != nil {
			return err
		}
		for i := range columns {
			if columns[i].Name == column {
				columns[i].ForeignKeyTable = table
				columns[i].ForeignKeyColumn = target
				columns[i].OnDeleteAction = onDelete.String
				break
			}
		}
	}
	return rows.Err()
}
