package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

// dialect carries what differs between SQL backends.
type dialect struct {
	insertQuery     string
	selectQuery     string
	uniqueViolation func(error) bool
}

// SQLRepository is a Repository over any database/sql handle.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dialect
	now     func() time.Time
}

func newSQLRepository(db dbx.DBTX, d dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d, now: time.Now}
}

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.dialect.insertQuery,
		user.Email, user.PasswordHash, user.Nickname, user.Role, user.Approved, user.CreatedAt)

	if err != nil {
		if r.dialect.uniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, r.dialect.selectQuery, email).
		Scan(&user.Email, &user.PasswordHash, &user.Nickname, &user.Role, &user.Approved, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
