package users

import (
	"errors"

	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteDialect = dialect{
	insertQuery: `INSERT INTO users (email, passhash, nickname, role, approved, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
		 `,
	selectQuery: `SELECT email, passhash, nickname, role, approved, created_at FROM users
		 WHERE email = ?
		 `,
	uniqueViolation: isSQLiteUniqueViolation,
}

// NewSQLiteRepository returns a Repository for a modernc.org/sqlite handle.
func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return newSQLRepository(db, sqliteDialect)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
