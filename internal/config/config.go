// Package config provides Viper-based configuration loading for the skirmish engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds tool-server transport settings.
type ServerConfig struct {
	// Transport is the MCP transport: "stdio" or "http".
	Transport string `mapstructure:"transport"`
	// Host is the bind address for the HTTP transport; ignored for stdio.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP transport; ignored for stdio.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" listen address for the HTTP transport.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings for the optional
// character store. When Enabled is false the engine runs with the in-memory
// character resolver only.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// DeathPolicy selects what happens to a non-player participant at 0 HP.
type DeathPolicy string

const (
	// DeathPolicyInstant kills non-player participants outright at 0 HP.
	// Player-controlled participants always enter the death-save sequence.
	DeathPolicyInstant DeathPolicy = "instant"
	// DeathPolicySaves gives every participant the death-save sequence.
	DeathPolicySaves DeathPolicy = "death_saves"
)

// RulesConfig holds tunable ruleset policy.
type RulesConfig struct {
	// DeathPolicy is "instant" or "death_saves"; see DeathPolicy.
	DeathPolicy DeathPolicy `mapstructure:"death_policy"`
	// CellSizeFeet is the width of one grid cell in feet.
	CellSizeFeet int `mapstructure:"cell_size_feet"`
	// DiagonalRule is the default grid distance mode: "stairstep" or "flat".
	DiagonalRule string `mapstructure:"diagonal_rule"`
	// MaxExhaustion is the exhaustion level at which a participant dies.
	MaxExhaustion int `mapstructure:"max_exhaustion"`
	// ConditionsDir is an optional directory of condition definition YAML
	// files layered over the compiled-in defaults. Empty = defaults only.
	ConditionsDir string `mapstructure:"conditions_dir"`
	// ConditionScriptsDir is an optional directory of Lua hook scripts for
	// custom condition definitions. Empty = scripted hooks disabled.
	ConditionScriptsDir string `mapstructure:"condition_scripts_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Rules    RulesConfig    `mapstructure:"rules"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRules(c.Rules); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	validTransports := map[string]bool{"stdio": true, "http": true}
	if !validTransports[s.Transport] {
		errs = append(errs, fmt.Sprintf("server.transport must be one of [stdio, http], got %q", s.Transport))
	}
	if s.Transport == "http" {
		if s.Host == "" {
			errs = append(errs, "server.host must not be empty for http transport")
		}
		if s.Port < 1 || s.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateRules(r RulesConfig) error {
	var errs []string
	if r.DeathPolicy != DeathPolicyInstant && r.DeathPolicy != DeathPolicySaves {
		errs = append(errs, fmt.Sprintf("rules.death_policy must be one of [instant, death_saves], got %q", r.DeathPolicy))
	}
	if r.CellSizeFeet < 1 {
		errs = append(errs, fmt.Sprintf("rules.cell_size_feet must be >= 1, got %d", r.CellSizeFeet))
	}
	validDiagonal := map[string]bool{"stairstep": true, "flat": true}
	if !validDiagonal[r.DiagonalRule] {
		errs = append(errs, fmt.Sprintf("rules.diagonal_rule must be one of [stairstep, flat], got %q", r.DiagonalRule))
	}
	if r.MaxExhaustion < 1 {
		errs = append(errs, fmt.Sprintf("rules.max_exhaustion must be >= 1, got %d", r.MaxExhaustion))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads, unmarshals, and validates the configuration file at path.
//
// Precondition: path must reference a readable YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SKIRMISH_ prefix
	v.SetEnvPrefix("SKIRMISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("viper instance must not be nil")
	}
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8741)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "skirmish")
	v.SetDefault("database.password", "skirmish")
	v.SetDefault("database.name", "skirmish")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("rules.death_policy", "instant")
	v.SetDefault("rules.cell_size_feet", 5)
	v.SetDefault("rules.diagonal_rule", "stairstep")
	v.SetDefault("rules.max_exhaustion", 6)
	v.SetDefault("rules.conditions_dir", "")
	v.SetDefault("rules.condition_scripts_dir", "")
}
