package sqlite

import (
	"errors"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

func (s *Adapter) ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		switch mattnErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return common.Constraint(common.ErrUniqueViolation, err)
		case sqlite3.ErrConstraintForeignKey:
			return common.Constraint(common.ErrForeignKeyViolation, err)
		case sqlite3.ErrConstraintNotNull:
			return common.Constraint(common.ErrNotNullViolation, err)
		}
		return err
	}

	var modErr *moderncsqlite.Error
	if errors.As(err, &modErr) {
		switch modErr.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return common.Constraint(common.ErrUniqueViolation, err)
		case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return common.Constraint(common.ErrForeignKeyViolation, err)
		case sqlitelib.SQLITE_CONSTRAINT_NOTNULL:
			return common.Constraint(common.ErrNotNullViolation, err)
		}
	}
	return err
}
