package storage

import (
	"fmt"
	"strings"
)

// Dialect covers the SQL differences between SQLite and PostgreSQL that the
// snapshot store runs into.
type Dialect interface {
	Name() string

	// Placeholder returns the parameter marker for a 1-based index.
	Placeholder(index int) string

	// AutoIncrement returns the column definition of a surrogate key.
	AutoIncrement() string

	// BigInt returns the 64-bit integer column type.
	BigInt() string

	TextType() string

	// LimitClause returns "LIMIT n", or "" when limit is not positive.
	LimitClause(limit int) string
}

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string { return "?" }

func (d *SQLiteDialect) AutoIncrement() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (d *SQLiteDialect) BigInt() string { return "INTEGER" }

func (d *SQLiteDialect) TextType() string { return "TEXT" }

func (d *SQLiteDialect) LimitClause(limit int) string { return limitClause(limit) }

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index) }

func (d *PostgresDialect) AutoIncrement() string { return "BIGSERIAL PRIMARY KEY" }

func (d *PostgresDialect) BigInt() string { return "BIGINT" }

func (d *PostgresDialect) TextType() string { return "TEXT" }

func (d *PostgresDialect) LimitClause(limit int) string { return limitClause(limit) }

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

// ConvertPlaceholders rewrites ? markers as $1, $2, ... so queries can be
// written once in SQLite style.
func ConvertPlaceholders(query string) string {
	var result strings.Builder
	result.Grow(len(query) + 10)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&result, "$%d", n)
			n++
		} else {
			result.WriteByte(query[i])
		}
	}
	return result.String()
}

// expandSchema substitutes the dialect's column types into a schema template.
func expandSchema(tmpl string, d Dialect) string {
	return strings.NewReplacer(
		"{{autoinc}}", d.AutoIncrement(),
		"{{bigint}}", d.BigInt(),
		"{{text}}", d.TextType(),
	).Replace(tmpl)
}
