// Package config provides Viper-based configuration loading for the battle runner.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers accepted by StorageConfig.Driver.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
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
	// Service tags every entry. Empty uses "skirmish".
	Service string `mapstructure:"service"`
}

// BattleConfig holds presentation timings and combat tuning.
type BattleConfig struct {
	PlayerAttackMs  int `mapstructure:"player_attack_ms"`
	EnemyAttackMs   int `mapstructure:"enemy_attack_ms"`
	DrinkItemMs     int `mapstructure:"drink_item_ms"`
	ThrownItemMs    int `mapstructure:"thrown_item_ms"`
	OneShotEffectMs int `mapstructure:"one_shot_effect_ms"`
	GuardMs         int `mapstructure:"guard_ms"`
	// CritChance is the probability of a critical basic attack.
	CritChance float64 `mapstructure:"crit_chance"`
	// Seed makes every random draw reproducible. 0 uses the crypto source.
	Seed uint64 `mapstructure:"seed"`
	// MailboxSize is the engine's command and timer queue capacity.
	MailboxSize int `mapstructure:"mailbox_size"`
}

// ContentConfig points at the YAML and Lua content directories.
type ContentConfig struct {
	EnemiesDir   string `mapstructure:"enemies_dir"`
	ItemsDir     string `mapstructure:"items_dir"`
	LocationsDir string `mapstructure:"locations_dir"`
	// ScriptsDir holds shared Lua hooks used when a location has none. Optional.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// ScriptingConfig holds Lua sandbox settings.
type ScriptingConfig struct {
	// InstructionLimit is the opcode budget per hook call.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// StorageConfig selects where battle reports are written.
type StorageConfig struct {
	// Driver is one of "none", "sqlite", "postgres".
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Battle    BattleConfig    `mapstructure:"battle"`
	Content   ContentConfig   `mapstructure:"content"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// Validate checks all configuration invariants. The database section is
// only checked when the postgres driver is selected.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBattle(c.Battle); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Storage.Driver == DriverPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
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

func validateBattle(b BattleConfig) error {
	var errs []string
	durations := []struct {
		name string
		ms   int
	}{
		{"player_attack_ms", b.PlayerAttackMs},
		{"enemy_attack_ms", b.EnemyAttackMs},
		{"drink_item_ms", b.DrinkItemMs},
		{"thrown_item_ms", b.ThrownItemMs},
		{"one_shot_effect_ms", b.OneShotEffectMs},
		{"guard_ms", b.GuardMs},
	}
	for _, d := range durations {
		if d.ms < 0 {
			errs = append(errs, fmt.Sprintf("battle.%s must be >= 0, got %d", d.name, d.ms))
		}
	}
	if b.CritChance < 0 || b.CritChance > 1 {
		errs = append(errs, fmt.Sprintf("battle.crit_chance must be in [0, 1], got %v", b.CritChance))
	}
	if b.MailboxSize < 1 {
		errs = append(errs, fmt.Sprintf("battle.mailbox_size must be >= 1, got %d", b.MailboxSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.EnemiesDir == "" {
		errs = append(errs, "content.enemies_dir must not be empty")
	}
	if c.ItemsDir == "" {
		errs = append(errs, "content.items_dir must not be empty")
	}
	if c.LocationsDir == "" {
		errs = append(errs, "content.locations_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Driver {
	case DriverNone, DriverPostgres:
		return nil
	case DriverSQLite:
		if s.SQLitePath == "" {
			return errors.New("storage.sqlite_path must not be empty for the sqlite driver")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver must be one of [none, sqlite, postgres], got %q", s.Driver)
	}
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

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SKIRMISH_ prefix
	v.SetEnvPrefix("SKIRMISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "skirmish")

	v.SetDefault("battle.player_attack_ms", 700)
	v.SetDefault("battle.enemy_attack_ms", 650)
	v.SetDefault("battle.drink_item_ms", 200)
	v.SetDefault("battle.thrown_item_ms", 600)
	v.SetDefault("battle.one_shot_effect_ms", 2000)
	v.SetDefault("battle.guard_ms", 200)
	v.SetDefault("battle.crit_chance", 0.10)
	v.SetDefault("battle.seed", 0)
	v.SetDefault("battle.mailbox_size", 32)

	v.SetDefault("content.enemies_dir", "content/enemies")
	v.SetDefault("content.items_dir", "content/items")
	v.SetDefault("content.locations_dir", "content/locations")
	v.SetDefault("content.scripts_dir", "")

	v.SetDefault("scripting.instruction_limit", 100000)

	v.SetDefault("storage.driver", DriverNone)
	v.SetDefault("storage.sqlite_path", "skirmish.db")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "skirmish")
	v.SetDefault("database.password", "skirmish")
	v.SetDefault("database.name", "skirmish")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
}
