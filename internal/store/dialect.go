package store

import "strconv"

// Dialect supplies the handful of things that differ between backing SQL
// engines: positional parameter syntax and DDL quirks. Everything else —
// the statement cache, the update/delete variants, predicate building —
// is one shared implementation in table.go, per SPEC_FULL.md §4.1.
type Dialect interface {
	Name() string
	// Placeholder returns the positional parameter marker for the n-th
	// (1-based) bound parameter.
	Placeholder(n int) string
	// AutoIncrementType returns the column type used for IDKindInt tables'
	// primary key.
	AutoIncrementType() string
}

type postgresDialect struct{}

func (postgresDialect) Name() string                 { return "postgres" }
func (postgresDialect) Placeholder(n int) string      { return "$" + strconv.Itoa(n) }
func (postgresDialect) AutoIncrementType() string     { return "BIGSERIAL" }

type sqliteDialect struct{}

func (sqliteDialect) Name() string             { return "sqlite" }
func (sqliteDialect) Placeholder(n int) string { return "?" }
func (sqliteDialect) AutoIncrementType() string { return "INTEGER" }

// Postgres is the jackc/pgx/v5/stdlib-backed dialect.
var Postgres Dialect = postgresDialect{}

// SQLite is the modernc.org/sqlite-backed dialect.
var SQLite Dialect = sqliteDialect{}
