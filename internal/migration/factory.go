package migration

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BaSui01/agentguard/config"
)

// ParseDialect parses a dialect string
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDialect, s)
	}
}

// ConfigFromDatabase derives a migrator config from the audit database settings
func ConfigFromDatabase(c config.DatabaseConfig) (Config, error) {
	dialect, err := ParseDialect(c.Driver)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Dialect:     dialect,
		DatabaseURL: BuildDatabaseURL(dialect, c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode),
	}, nil
}

// BuildDatabaseURL builds a database URL from components
func BuildDatabaseURL(d Dialect, host string, port int, database, username, password, sslMode string) string {
	switch d {
	case DialectPostgres:
		if sslMode == "" {
			sslMode = "require"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(username, password),
			Host:     fmt.Sprintf("%s:%d", host, port),
			Path:     "/" + database,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String()
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			username, password, host, port, database)
	default:
		return ""
	}
}
