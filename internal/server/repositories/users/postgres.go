package users

import (
	"errors"

	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var postgresDialect = dialect{
	insertQuery: `INSERT INTO users (email, passhash, nickname, role, approved, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)
		 `,
	selectQuery: `SELECT email, passhash, nickname, role, approved, created_at FROM users
		 WHERE email = $1
		 `,
	uniqueViolation: isPgUniqueViolation,
}

// NewPostgresRepository returns a Repository for a pgx-backed handle.
func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return newSQLRepository(db, postgresDialect)
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
