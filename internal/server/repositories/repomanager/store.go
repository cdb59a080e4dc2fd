package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
)

// Store is an opened credential store backend.
type Store struct {
	users users.Repository
	db    *sql.DB
}

func (s *Store) Users() users.Repository {
	return s.users
}

// Close releases the database handle, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// sqlite keeps a single long-lived connection: writers would otherwise
// contend for the file lock, and ":memory:" databases live per connection.
var sqlitePoolOptions = dbx.PoolOptions{
	MaxOpenConns: 1,
	MaxIdleConns: 1,
	PingTimeout:  dbx.DefaultPoolOptions.PingTimeout,
}

var dbOpen = dbx.Open

// Open connects to the backend named by driver, migrates its schema and
// returns the resulting Store. The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		m          RepositoryManager
		driverName string
		opts       dbx.PoolOptions
	)

	switch driver {
	case config.StorageMemory:
		return &Store{users: users.NewMemoryRepository()}, nil
	case config.StoragePostgres:
		m, driverName, opts = NewPostgresRepositoryManager(), "pgx", dbx.DefaultPoolOptions
	case config.StorageSQLite:
		m, driverName, opts = NewSQLiteRepositoryManager(), "sqlite", sqlitePoolOptions
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}

	db, err := dbOpen(ctx, driverName, dsn, opts)
	if err != nil {
		return nil, err
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &Store{users: m.Users(db), db: db}, nil
}
