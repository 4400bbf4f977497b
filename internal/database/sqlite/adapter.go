package sqlite

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

type Adapter struct {
	driver string
	db     *sqlx.DB
	qb     squirrel.StatementBuilderType
	path   string
}

func New(driver string) (*Adapter, error) {
	switch driver {
	case "", DriverMattn:
		driver = DriverMattn
	case DriverModernc, "modernc":
		driver = DriverModernc
	default:
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}
	return &Adapter{
		driver: driver,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

type dsnDefault struct {
	prefixes []string // any of these in the query means the caller chose a value
	param    string
}

var dsnDefaults = map[string][]dsnDefault{
	DriverMattn: {
		{[]string{"_foreign_keys=", "_fk="}, "_foreign_keys=on"},
		{[]string{"_journal_mode=", "_journal="}, "_journal_mode=WAL"},
		{[]string{"_busy_timeout=", "_timeout="}, "_busy_timeout=5000"},
	},
	DriverModernc: {
		{[]string{"_pragma=foreign_keys"}, "_pragma=foreign_keys(1)"},
		{[]string{"_pragma=journal_mode"}, "_pragma=journal_mode(WAL)"},
		{[]string{"_pragma=busy_timeout"}, "_pragma=busy_timeout(5000)"},
	},
}

// dsn adds foreign keys, WAL and a busy timeout to the URL's own parameters
// unless it already sets them.
func (s *Adapter) dsn(url string) string {
	dbPath, query, _ := strings.Cut(strings.TrimPrefix(url, "sqlite://"), "?")
	var params []string
	if query != "" {
		params = strings.Split(query, "&")
	}

	for _, d := range dsnDefaults[s.driver] {
		if !d.setIn(params) {
			params = append(params, d.param)
		}
	}
	return dbPath + "?" + strings.Join(params, "&")
}

func (d dsnDefault) setIn(params []string) bool {
	return slices.ContainsFunc(params, func(p string) bool {
		for _, prefix := range d.prefixes {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
		return false
	})
}

func (s *Adapter) Connect(ctx context.Context, url string) error {
	s.path = strings.TrimPrefix(url, "sqlite://")
	if idx := strings.Index(s.path, "?"); idx > 0 {
		s.path = s.path[:idx]
	}

	db, err := sqlx.Open(s.driver, s.dsn(url))
	if err != nil {
		return fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s.db = db
	return nil
}

func (s *Adapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Adapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Adapter) DB() *sqlx.DB { return s.db }

func (s *Adapter) Builder() squirrel.StatementBuilderType { return s.qb }
