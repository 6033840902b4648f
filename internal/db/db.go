package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names the SQL flavour behind a *sql.DB. Queries are written with
// ? placeholders and rebound for drivers that number them.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Open connects with the named driver: "sqlite" takes a file path,
// "postgres" a connection URL.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	switch Dialect(driver) {
	case SQLite:
		database, err := OpenSQLite(dsn)
		return database, SQLite, err
	case Postgres:
		database, err := OpenPostgres(dsn)
		return database, Postgres, err
	default:
		return nil, "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Rebind rewrites ? placeholders to $1, $2, ... for Postgres. Question
// marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
