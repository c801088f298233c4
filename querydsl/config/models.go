package config

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

type Config struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
}

func (c Config) Validate() error {
	if c.Postgres.Host == "" {
		return errors.New("postgres.host is required")
	}
	if c.Postgres.User == "" || c.Postgres.DBName == "" {
		return errors.New("postgres credentials are required")
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		return errors.Errorf("postgres.port %d is out of range", c.Postgres.Port)
	}
	if c.Postgres.MaxConns <= 0 {
		return errors.New("postgres.max_conns must be positive")
	}
	if c.Session.IdentityMapSize <= 0 {
		return errors.New("session.identity_map_size must be positive")
	}
	return nil
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type SessionConfig struct {
	IdentityMapSize int `mapstructure:"identity_map_size"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN returns a pgx connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}
