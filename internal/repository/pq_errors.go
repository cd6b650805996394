package repository

import (
	"errors"
	"fmt"

	"github.com/hitoshi/awesome-events/internal/model"
	"github.com/lib/pq"
)

// translatePQError はPostgreSQLの制約違反エラーをドメインのエラーに変換する。
// 対象外のエラーはそのまま返す。
func translatePQError(err error, table string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code.Name() {
	case "not_null_violation":
		return &model.ConstraintViolationError{Table: table, Column: pqErr.Column}
	case "unique_violation":
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	default:
		return err
	}
}
