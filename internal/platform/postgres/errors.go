package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskcore/internal/task"
)

// ErrInvalidTask is returned when a row is rejected by a table constraint.
var ErrInvalidTask = errors.New("invalid task row")

// PostgreSQL error codes
const (
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
)

// MapError maps a database error to the connector's error vocabulary.
// The original error stays in the message for debugging.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", task.ErrTaskDoesNotExistAnymore, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				ErrInvalidTask,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				ErrInvalidTask,
				pgErr.ColumnName,
				err,
			)
		}
	}

	return err
}

// checkRowsAffected returns task.ErrTaskDoesNotExistAnymore when a command
// touched no rows.
func checkRowsAffected(tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, task.ErrTaskDoesNotExistAnymore)
	}
	return nil
}
