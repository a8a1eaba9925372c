package repositories

import (
	"errors"

	"github.com/lib/pq"
)

// pq error class 23505, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation. Services use it to turn insert races on unique columns into
// conflicts instead of opaque server errors.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
