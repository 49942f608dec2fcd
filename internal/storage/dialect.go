package storage

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// lowerFunc is the Unicode-aware LOWER registered with the SQLite drivers.
// The built-in LOWER only folds ASCII.
const lowerFunc = "snipvault_lower"

// dialect captures the differences between the SQL backends. Queries are
// written with ? placeholders and rebound for backends that need $n.
type dialect struct {
	name           string
	driver         string
	numbered       bool
	lowerFmt       string
	containsFmt    string
	tableExistsSQL string
	migrations     []Migration
}

var sqliteDialect = dialect{
	name:           "sqlite",
	driver:         DriverName,
	tableExistsSQL: "SELECT name FROM sqlite_master WHERE type='table' AND name = ?",
	lowerFmt:       lowerFunc + "(%s)",
	containsFmt:    lowerFunc + `(%s) LIKE ? ESCAPE '\'`,
	migrations:     sqliteMigrations,
}

var postgresDialect = dialect{
	name:           "postgres",
	driver:         "postgres",
	numbered:       true,
	lowerFmt:       "LOWER(%s)",
	containsFmt:    `%s ILIKE ? ESCAPE '\'`,
	tableExistsSQL: "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
	migrations:     postgresMigrations,
}

// rebind rewrites ? placeholders as $1, $2, ... for numbered dialects.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// lower returns col folded to lowercase
func (d dialect) lower(col string) string {
	return fmt.Sprintf(d.lowerFmt, col)
}

// contains returns a case-insensitive match of col against a LIKE pattern
// whose text is already lowercased.
func (d dialect) contains(col string) string {
	return fmt.Sprintf(d.containsFmt, col)
}

// foldValue lowercases text and blob arguments; NULL stays NULL.
func foldValue(v driver.Value) driver.Value {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		return strings.ToLower(string(s))
	default:
		return v
	}
}
