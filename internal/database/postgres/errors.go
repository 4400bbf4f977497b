package postgres

import (
	"errors"

	"github.com/Lumos-Labs-HQ/preload/internal/database/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE codes of class 23, integrity constraint violation.
const (
	codeNotNull    = "23502"
	codeForeignKey = "23503"
	codeUnique     = "23505"
)

func (p *Adapter) ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return err
	}

	switch code {
	case codeUnique:
		return common.Constraint(common.ErrUniqueViolation, err)
	case codeForeignKey:
		return common.Constraint(common.ErrForeignKeyViolation, err)
	case codeNotNull:
		return common.Constraint(common.ErrNotNullViolation, err)
	}
	return err
}
