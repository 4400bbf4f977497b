package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE app_status (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	display_index INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE app_visit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status_id INTEGER NOT NULL REFERENCES app_status(id) ON DELETE RESTRICT,
	code TEXT,
	UNIQUE (status_id, code)
);
CREATE TABLE app_membership (
	group_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
`

func openTestAdapter(t *testing.T, driver string) *Adapter {
	t.Helper()
	a, err := New(driver)
	require.NoError(t, err)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, a.Connect(ctx, "sqlite://"+path))
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Ping(ctx))

	_, err = a.DB().ExecContext(ctx, testSchema)
	require.NoError(t, err)
	return a
}

func TestNewDriver(t *testing.T) {
	for _, driver := range []string{"", "sqlite3", "sqlite", "modernc"} {
		_, err := New(driver)
		assert.NoError(t, err, driver)
	}
	_, err := New("duckdb")
	assert.Error(t, err)
}

func TestGetTableColumns(t *testing.T) {
	for _, driver := range []string{DriverMattn, DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			a := openTestAdapter(t, driver)
			ctx := context.Background()

			columns, err := a.GetTableColumns(ctx, "app_status")
			require.NoError(t, err)
			require.Len(t, columns, 4)

			assert.Equal(t, "id", columns[0].Name)
			assert.True(t, columns[0].IsPrimary)
			assert.True(t, columns[0].IsAutoIncrement)
			assert.Equal(t, "name", columns[1].Name)
			assert.True(t, columns[1].IsUnique)
			assert.False(t, columns[1].IsAutoIncrement)
			assert.False(t, columns[2].IsUnique)

			membership, err := a.GetTableColumns(ctx, "app_membership")
			require.NoError(t, err)
			assert.True(t, membership[0].IsPrimary)
			assert.True(t, membership[1].IsPrimary)
			assert.False(t, membership[0].IsAutoIncrement, "composite key does not alias the rowid")
			assert.False(t, membership[0].IsUnique)

			visit, err := a.GetTableColumns(ctx, "app_visit")
			require.NoError(t, err)
			assert.Equal(t, "app_status", visit[1].ForeignKeyTable)
			assert.Equal(t, "id", visit[1].ForeignKeyColumn)
			assert.Equal(t, "RESTRICT", visit[1].OnDeleteAction)
			assert.False(t, visit[2].IsUnique, "multi-column unique index")

			_, err = a.GetTableColumns(ctx, "missing")
			assert.Error(t, err)
			_, err = a.GetTableColumns(ctx, `x"; DROP TABLE app_status; --`)
			assert.Error(t, err)
		})
	}
}

func TestClassifyError(t *testing.T) {
	for _, driver := range []string{DriverMattn, DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			a := openTestAdapter(t, driver)
			ctx := context.Background()
			db := a.DB()

			_, err := db.ExecContext(ctx, `INSERT INTO app_status (name, display_name) VALUES ('new', 'New')`)
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, `INSERT INTO app_status (name, display_name) VALUES ('new', 'Again')`)
			require.Error(t, err)
			assert.ErrorIs(t, a.ClassifyError(err), common.ErrUniqueViolation)

			_, err = db.ExecContext(ctx, `INSERT INTO app_status (name) VALUES ('x')`)
			require.Error(t, err)
			assert.ErrorIs(t, a.ClassifyError(err), common.ErrNotNullViolation)

			_, err = db.ExecContext(ctx, `INSERT INTO app_visit (status_id) VALUES (1)`)
			require.NoError(t, err)
			_, err = db.ExecContext(ctx, `DELETE FROM app_status WHERE id = 1`)
			require.Error(t, err)
			assert.ErrorIs(t, a.ClassifyError(err), common.ErrForeignKeyViolation)

			_, err = db.ExecContext(ctx, `SELECT * FROM nowhere`)
			require.Error(t, err)
			assert.False(t, common.IsConstraint(a.ClassifyError(err)))
		})
	}
}

func TestDSNKeepsDefaultsWithQuery(t *testing.T) {
	mattn, err := New(DriverMattn)
	require.NoError(t, err)
	assert.Equal(t, "app.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", mattn.dsn("sqlite://app.db"))
	assert.Equal(t, "app.db?cache=shared&_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", mattn.dsn("sqlite://app.db?cache=shared"))
	assert.Equal(t, "app.db?_fk=0&_journal=DELETE&_foreign_keys=on&_busy_timeout=5000",
		mattn.dsn("sqlite://app.db?_fk=0&_journal=DELETE&_foreign_keys=on"))

	modernc, err := New(DriverModernc)
	require.NoError(t, err)
	assert.Equal(t,
		"app.db?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		modernc.dsn("sqlite://app.db?cache=shared"))
	assert.Equal(t,
		"app.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		modernc.dsn("sqlite://app.db?_pragma=busy_timeout(100)"))
}

func TestForeignKeysEnforcedWithQueryParams(t *testing.T) {
	for _, driver := range []string{DriverMattn, DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			a, err := New(driver)
			require.NoError(t, err)
			ctx := context.Background()
			require.NoError(t, a.Connect(ctx, "sqlite://"+filepath.Join(t.TempDir(), "fk.db")+"?cache=shared"))
			t.Cleanup(func() { _ = a.Close() })

			var enabled int
			require.NoError(t, a.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
			assert.Equal(t, 1, enabled)
		})
	}
}
