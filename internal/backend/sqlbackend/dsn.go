package sqlbackend

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// sqlitePragmas are applied through DSN parameters so every connection the
// pool opens gets them, not just the first.
var sqlitePragmas = []struct{ key, value string }{
	{"_journal_mode", "WAL"},
	{"_synchronous", "NORMAL"},
	{"_busy_timeout", "5000"},
	{"_foreign_keys", "on"},
	{"_txlock", "immediate"},
}

// BuildDSN merges credentials and required driver parameters into the
// configured connection string.
func BuildDSN(d Dialect, raw, username, password string) (string, error) {
	switch d.Name {
	case SQLite.Name:
		return sqliteDSN(raw), nil
	case Postgres.Name:
		return postgresDSN(raw, username, password)
	case MySQL.Name:
		return mysqlDSN(raw, username, password)
	default:
		return "", fmt.Errorf("unknown sql dialect %q", d.Name)
	}
}

// sqliteDSN turns a file path (or file: URI) into a URI carrying the
// pragmas. Parameters already present in raw win.
func sqliteDSN(raw string) string {
	path, query, _ := strings.Cut(raw, "?")
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	params, _ := url.ParseQuery(query)
	if params == nil {
		params = url.Values{}
	}
	for _, p := range sqlitePragmas {
		if params.Get(p.key) == "" {
			params.Set(p.key, p.value)
		}
	}
	return path + "?" + params.Encode()
}

// postgresDSN accepts both URL and key=value connection strings.
func postgresDSN(raw, username, password string) (string, error) {
	if username == "" {
		return raw, nil
	}
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse postgres url: %w", err)
		}
		if u.User == nil {
			u.User = url.UserPassword(username, password)
		}
		return u.String(), nil
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(raw))
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	fmt.Fprintf(&sb, "user=%s password=%s", quotePGValue(username), quotePGValue(password))
	return sb.String(), nil
}

func quotePGValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func mysqlDSN(raw, username, password string) (string, error) {
	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if username != "" {
		cfg.User = username
		cfg.Passwd = password
	}
	return cfg.FormatDSN(), nil
}

// SQLitePath returns the file a SQLite connection string refers to. It
// reports false for in-memory databases.
func SQLitePath(raw string) (string, bool) {
	path, query, _ := strings.Cut(raw, "?")
	if params, err := url.ParseQuery(query); err == nil && params.Get("mode") == "memory" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(path, "file:"); ok {
		// file://host/path names the same file as file:/path.
		if after, ok := strings.CutPrefix(rest, "//"); ok {
			if i := strings.IndexByte(after, '/'); i >= 0 {
				rest = after[i:]
			}
		}
		if unescaped, err := url.PathUnescape(rest); err == nil {
			rest = unescaped
		}
		path = rest
	}
	if path == "" || path == ":memory:" {
		return "", false
	}
	return path, true
}
