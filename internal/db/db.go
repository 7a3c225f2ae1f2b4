// Package db owns the shared database handle used by every repository.
// It supports an embedded SQLite file (the default) and networked Postgres,
// hiding the placeholder-style difference behind Rebind.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavor behind a handle.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps database/sql with the dialect it was opened against.
// One DB is owned by exactly one facade instance; repositories borrow it
// and must never close it.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the database identified by uri. URIs starting with
// postgres:// or postgresql:// use the pgx driver; everything else is
// treated as a SQLite file path (an optional sqlite:// prefix is stripped).
func Open(uri string) (*DB, error) {
	if uri == "" {
		return nil, eris.New("db: empty connection target")
	}

	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		conn, err := sql.Open("pgx", uri)
		if err != nil {
			return nil, eris.Wrap(err, "db: open postgres")
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, eris.Wrap(err, "db: ping postgres")
		}
		return &DB{DB: conn, Dialect: DialectPostgres}, nil
	}

	path := uri
	switch {
	case strings.HasPrefix(uri, "sqlite:///"):
		path = strings.TrimPrefix(uri, "sqlite:///")
	case strings.HasPrefix(uri, "sqlite://"):
		path = strings.TrimPrefix(uri, "sqlite://")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "db: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "db: exec %s", pragma)
		}
	}
	return &DB{DB: conn, Dialect: DialectSQLite}, nil
}

// Rebind rewrites ? placeholders to the dialect's native form.
// SQLite queries pass through untouched; Postgres gets $1..$n.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
