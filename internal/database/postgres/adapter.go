package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	DriverPgx = "pgx"
	DriverPq  = "pq"
)

type Adapter struct {
	driver string
	pool   *pgxpool.Pool
	db     *sqlx.DB
	qb     squirrel.StatementBuilderType
}

func New(driver string) (*Adapter, error) {
	switch driver {
	case "", DriverPgx:
		driver = DriverPgx
	case DriverPq, "postgres":
		driver = DriverPq
	default:
		return nil, fmt.Errorf("unsupported postgres driver: %s", driver)
	}
	return &Adapter{
		driver: driver,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (p *Adapter) Connect(ctx context.Context, url string) error {
	if p.driver == DriverPq {
		db, err := sql.Open("postgres", url)
		if err != nil {
			return fmt.Errorf("failed to open postgres connection: %w", err)
		}
		db.SetMaxOpenConns(2)
		db.SetConnMaxLifetime(15 * time.Minute)
		db.SetConnMaxIdleTime(3 * time.Minute)
		p.db = sqlx.NewDb(db, "postgres")
		return nil
	}

	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	config.MaxConns = 2
	config.MinConns = 0
	config.MaxConnLifetime = 15 * time.Minute
	config.MaxConnIdleTime = 3 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	p.pool = pool
	p.db = sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	return nil
}

func (p *Adapter) Close() error {
	var err error
	if p.db != nil {
		err = p.db.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
	return err
}

func (p *Adapter) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Adapter) DB() *sqlx.DB { return p.db }

func (p *Adapter) Builder() squirrel.StatementBuilderType { return p.qb }
