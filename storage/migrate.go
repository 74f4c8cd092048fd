package storage

import (
	"database/sql"
	"fmt"
)

// migrate brings the schema up to date by executing the statements from
// wanted that are not yet registered in the migration table. Statements
// are append-only: editing an already applied one is an error. The create
// and insert statements come from the engine, since placeholder syntax
// differs between Postgres and SQLite.
func migrate(db *sql.DB, createTable, insert string, wanted []string) error {
	if _, err := db.Exec(createTable); err != nil {
		return err
	}

	rows, err := db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}

	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	for _, query := range missing {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if _, err := db.Exec(insert, query); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return []string{}, fmt.Errorf("not enough migrations")
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// do nothing
		case want != existing[i]:
			return []string{}, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}
