package mysql

import (
	"errors"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/go-sql-driver/mysql"
)

const (
	erBadNull          = 1048
	erDupEntry         = 1062
	erNoReferencedRow  = 1216
	erRowIsReferenced  = 1217
	erRowIsReferenced2 = 1451
	erNoReferencedRow2 = 1452
)

func (m *Adapter) ClassifyError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case erDupEntry:
		return common.Constraint(common.ErrUniqueViolation, err)
	case erNoReferencedRow, erRowIsReferenced, erRowIsReferenced2, erNoReferencedRow2:
		return common.Constraint(common.ErrForeignKeyViolation, err)
	case erBadNull:
		return common.Constraint(common.ErrNotNullViolation, err)
	}
	return err
}
