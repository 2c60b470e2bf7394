package sqlutil

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Helper functions for converting between Go types and sql.Null* types

// ToNullString converts a Go string to sql.NullString, empty meaning NULL
func ToNullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

// FromSqlString converts sql.NullString to Go string with default
func FromSqlString(val sql.NullString, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}

// ToNullFloat64 converts a Go float to sql.NullFloat64, zero meaning NULL
func ToNullFloat64(val float64) sql.NullFloat64 {
	if val == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: val, Valid: true}
}

// FromSqlFloat64 converts sql.NullFloat64 to Go float, 0 when NULL
func FromSqlFloat64(val sql.NullFloat64) float64 {
	if !val.Valid {
		return 0
	}
	return val.Float64
}

// ToSqlTime converts a Go time pointer to sql.NullTime
func ToSqlTime(val *time.Time) sql.NullTime {
	if val == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *val, Valid: true}
}

// FromSqlTime converts sql.NullTime to Go time pointer
func FromSqlTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}

// Placeholder is the bind variable style of a driver.
type Placeholder int

const (
	Question Placeholder = iota // sqlite3
	Dollar                      // postgres, pgx
)

// Rebind rewrites the ? bind variables of query for the given style.
func Rebind(p Placeholder, query string) string {
	if p == Question {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
