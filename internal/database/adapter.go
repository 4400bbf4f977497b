package database

import (
	"context"
	"fmt"

	"github.com/Lumos-Labs-HQ/preload/internal/database/mysql"
	"github.com/Lumos-Labs-HQ/preload/internal/database/postgres"
	"github.com/Lumos-Labs-HQ/preload/internal/database/sqlite"
	"github.com/Lumos-Labs-HQ/preload/internal/types"
	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type DatabaseAdapter interface {
	Connect(ctx context.Context, url string) error
	Close() error
	Ping(ctx context.Context) error

	DB() *sqlx.DB
	// Builder returns a statement builder using the provider's placeholders.
	Builder() squirrel.StatementBuilderType

	// ClassifyError maps driver constraint errors to a *common.ConstraintError.
	// Other errors are returned unchanged.
	ClassifyError(err error) error

	// GetTableColumns returns the columns of a table in declared order.
	GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error)
}

// NewAdapter picks an adapter for a provider. driver selects between the
// drivers a provider supports; empty means the provider default.
func NewAdapter(provider, driver string) (DatabaseAdapter, error) {
	switch provider {
	case "postgresql", "postgres":
		return postgres.New(driver)
	case "mysql":
		return mysql.New(), nil
	case "sqlite", "sqlite3":
		return sqlite.New(driver)
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", provider)
	}
}

// Open creates and connects an adapter.
func Open(ctx context.Context, provider, driver, url string) (DatabaseAdapter, error) {
	adapter, err := NewAdapter(provider, driver)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := adapter.Ping(ctx); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return adapter, nil
}
