package store

import (
	"fmt"
	"strings"
	"time"

	"fleetnav/config"
)

// nowToken stands for the backend's current-timestamp expression in queries.
const nowToken = "{{now}}"

const sqliteTimeLayout = "2006-01-02 15:04:05"

// dialect is what differs between the SQLite and Postgres backends.
type dialect struct {
	driver       string
	schema       string
	now          string
	singleWriter bool
	dsn          func(cfg *config.DatabaseConfig) string
	placeholder  func(n int) string
	// timeArg converts t to the representation the schema's timestamp
	// columns compare against.
	timeArg func(t time.Time) any
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:       "sqlite",
		schema:       schemaSQLite,
		now:          "datetime('now','localtime')",
		singleWriter: true,
		dsn: func(cfg *config.DatabaseConfig) string {
			return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", cfg.SQLite.Path)
		},
		placeholder: func(int) string { return "?" },
		timeArg:     func(t time.Time) any { return t.Format(sqliteTimeLayout) },
	},
	"postgres": {
		driver: "pgx",
		schema: schemaPostgres,
		now:    "NOW()",
		dsn: func(cfg *config.DatabaseConfig) string {
			p := cfg.Postgres
			return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
				p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
		},
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		timeArg:     func(t time.Time) any { return t },
	},
}

// rewrite numbers ? placeholders and expands {{now}}.
func (d dialect) rewrite(query string) string {
	query = strings.ReplaceAll(query, nowToken, d.now)
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseTime converts a scanned timestamp. SQLite yields strings, Postgres
// time.Time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999-07:00"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func parseTimePtr(v any) *time.Time {
	if t := parseTime(v); !t.IsZero() {
		return &t
	}
	return nil
}
