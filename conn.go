package store

import (
	"context"
	"net"
	"net/url"
)

// PGConfig holds discrete Postgres connection settings, for callers that do not
// carry a connection URL.
type PGConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

// DSN renders the settings as a postgres:// URL. SSLMode defaults to "disable".
func (config PGConfig) DSN() string {
	port := config.Port
	if port == "" {
		port = "5432"
	}

	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(config.Host, port),
		Path:     "/" + config.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if config.User != "" {
		u.User = url.UserPassword(config.User, config.Password)
		if config.Password == "" {
			u.User = url.User(config.User)
		}
	}

	return u.String()
}

// ConnectPostgresql opens a client from discrete settings.
func ConnectPostgresql(ctx context.Context, config PGConfig, options ...Option) (*Client, error) {
	return Open(ctx, config.DSN(), options...)
}
