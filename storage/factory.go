package storage

import (
	"errors"
	"strings"
)

// Open picks the engine from the database URL: postgres:// URLs go to
// Postgres, anything else is treated as a SQLite file path.
func Open(databaseURL string) (Store, error) {
	switch {
	case databaseURL == "":
		return nil, errors.New("database url is empty")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgres(databaseURL)
	default:
		return NewSqlite(databaseURL)
	}
}
