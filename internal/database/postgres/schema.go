package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/Lumos-Labs-HQ/preload/internal/types"
)

// Single-column unique indexes mark a column unique; the primary key index is
// reported separately.
const columnsQuery = `
	SELECT
		c.column_name,
		c.column_default,
		COALESCE(bool_or(i.indisprimary), false) AS is_primary,
		COALESCE(bool_or(i.indisunique AND NOT i.indisprimary AND i.indnatts = 1), false) AS is_unique
	FROM information_schema.columns c
	JOIN pg_namespace ns ON ns.nspname = c.table_schema
	JOIN pg_class t ON t.relname = c.table_name AND t.relnamespace = ns.oid
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attname = c.column_name
	LEFT JOIN pg_index i ON i.indrelid = t.oid AND a.attnum = ANY(i.indkey)
	WHERE c.table_name = $1
	  AND c.table_schema IN (current_schema(), 'public')
	GROUP BY c.column_name, c.column_default, c.ordinal_position
	ORDER BY c.ordinal_position
`

const foreignKeysQuery = `
	SELECT
		src_attr.attname AS column_name,
		tgt_table.relname AS foreign_table_name,
		tgt_attr.attname AS foreign_column_name,
		CASE con.confdeltype
			WHEN 'a' THEN 'NO ACTION'
			WHEN 'r' THEN 'RESTRICT'
			WHEN 'c' THEN 'CASCADE'
			WHEN 'n' THEN 'SET NULL'
			WHEN 'd' THEN 'SET DEFAULT'
		END AS on_delete_action
	FROM pg_constraint con
	JOIN pg_class src_table ON con.conrelid = src_table.oid
	JOIN pg_namespace ns ON src_table.relnamespace = ns.oid
	CROSS JOIN LATERAL UNNEST(con.conkey, con.confkey) AS cols(src_col, tgt_col)
	JOIN pg_attribute src_attr ON src_attr.attrelid = src_table.oid AND src_attr.attnum = cols.src_col
	JOIN pg_class tgt_table ON con.confrelid = tgt_table.oid
	JOIN pg_attribute tgt_attr ON tgt_attr.attrelid = tgt_table.oid AND tgt_attr.attnum = cols.tgt_col
	WHERE src_table.relname = $1
	  AND ns.nspname IN (current_schema(), 'public')
	  AND con.contype = 'f'
`

func (p *Adapter) GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	if err := common.ValidateIdentifiers("table", tableName); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, columnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var column types.SchemaColumn
		var columnDefault sql.NullString

		if err := rows.Scan(&column.Name, &columnDefault, &column.IsPrimary, &column.IsUnique); err != nil {
			return nil, err
		}
		column.IsAutoIncrement = strings.Contains(strings.ToLower(columnDefault.String), "nextval")
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}

	if err := p.applyForeignKeys(ctx, tableName, columns); err != nil {
		return nil, err
	}
	return columns, nil
}

func (p *Adapter) applyForeignKeys(ctx context.Context, tableName string, columns []types.SchemaColumn) error {
	rows, err := p.db.QueryContext(ctx, foreignKeysQuery, tableName)
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
