package storage

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"attendance-sync/internal/config"
)

type SQLiteProvider struct {
	SQLProvider
}

func NewSQLiteProvider(config *config.Storage) *SQLiteProvider {
	inner := NewSQLProvider(config, "sqlite3", config.SQLite.Path+"?_foreign_keys=on&_busy_timeout=5000")
	if inner == nil {
		return nil
	}
	inner.isUniqueViolation = isSQLiteUniqueViolation

	return &SQLiteProvider{
		SQLProvider: *inner,
	}
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
