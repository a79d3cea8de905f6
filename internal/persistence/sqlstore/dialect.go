package sqlstore

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Dialect selects the SQL flavour spoken by the backing database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect normalises a driver name from configuration.
func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", value)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) builder() sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// timestampLayout is lexically ordered so text columns compare chronologically.
const timestampLayout = "2006-01-02T15:04:05Z"

// encodeTime converts t into the column representation for the dialect.
func (d Dialect) encodeTime(t time.Time) any {
	if d == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(timestampLayout)
}

func (d Dialect) encodeOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.encodeTime(*t)
}

// timeColumn scans TEXT or TIMESTAMP columns into a time.Time.
type timeColumn struct {
	dest  *time.Time
	valid bool
}

func scanTime(dest *time.Time) *timeColumn {
	return &timeColumn{dest: dest}
}

func (c *timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dest = time.Time{}
		c.valid = false
		return nil
	case time.Time:
		*c.dest = v.UTC()
	case string:
		parsed, err := parseTimestamp(v)
		if err != nil {
			return err
		}
		*c.dest = parsed
	case []byte:
		parsed, err := parseTimestamp(string(v))
		if err != nil {
			return err
		}
		*c.dest = parsed
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
	c.valid = true
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("sqlstore: invalid timestamp %q", value)
}
