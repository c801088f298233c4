// Package config loads connection and runtime settings from the environment.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"logging.level":             "LOG_LEVEL",
	"postgres.host":             "DB_HOST",
	"postgres.port":             "DB_PORT",
	"postgres.user":             "DB_USERNAME",
	"postgres.password":         "DB_PASSWORD",
	"postgres.db_name":          "DB_DATABASE",
	"postgres.ssl_mode":         "DB_SSLMODE",
	"postgres.max_conns":        "DB_MAX_CONNS",
	"session.identity_map_size": "IDENTITY_MAP_SIZE",
}

// NewConfig reads the optional env files (".env" when none given), applies
// environment overrides on top of defaults and validates the result.
func NewConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{defaultEnvFile}
	}
	for _, file := range envFiles {
		if err := loadEnvFile(file); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile never overrides variables already present in the process environment.
func loadEnvFile(file string) error {
	envMap, err := godotenv.Read(file)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return errors.Wrapf(err, "read env file %s", file)
	}
	for k, val := range envMap {
		if _, exists := os.LookupEnv(k); !exists {
			if err := os.Setenv(k, val); err != nil {
				return errors.Wrapf(err, "set %s", k)
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "devel")
	v.SetDefault("postgres.password", "devel")
	v.SetDefault("postgres.db_name", "devel_querydsl")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 4)

	v.SetDefault("session.identity_map_size", 100)
}

func bindEnvs(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return errors.Wrapf(err, "bind %s", env)
		}
	}
	return nil
}

// PostgresFromEnv reports whether the database location was given explicitly.
func PostgresFromEnv() bool {
	_, ok := os.LookupEnv("DB_HOST")
	return ok
}
