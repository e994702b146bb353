/**
 * @description
 * Error helpers for the ledger store. Callers match on ErrNotFound with
 * errors.Is; Postgres unique violations (the tx_hash idempotency guard) are
 * detected with IsUniqueViolation so concurrent replays degrade to a skip.
 *
 * @dependencies
 * - github.com/jackc/pgconn
 * - gorm.io/gorm
 */

package ledger

import (
	"errors"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("ledger: record not found")

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, e.g. a duplicate tx_hash insert racing with a replay.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
