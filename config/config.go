// Package config loads server settings from a YAML file, an optional .env
// file and PAYROLL_* environment variables, in that order of precedence
// (later wins). Command-line flags are applied on top by cmd/server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve without a system zoneinfo
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/locale"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Payroll  PayrollConfig  `yaml:"payroll"`
	Locale   LocaleConfig   `yaml:"locale"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

// PayrollConfig tunes the accrual calculator and lateness detection.
// Factors are strings so "1.5" survives without float rounding.
type PayrollConfig struct {
	HolidayFactorRaw  string `yaml:"holiday_factor"`
	OvertimeFactorRaw string `yaml:"overtime_factor"`
	LateGraceMinutes  int    `yaml:"late_grace_minutes"`
	LateCapMinutes    int    `yaml:"late_cap_minutes"`
	Timezone          string `yaml:"timezone"`

	HolidayFactor  decimal.Decimal `yaml:"-"`
	OvertimeFactor decimal.Decimal `yaml:"-"`
	Location       *time.Location  `yaml:"-"`
}

type LocaleConfig struct {
	Thousands string `yaml:"thousands"`
	Decimal   string `yaml:"decimal"`
	Symbol    string `yaml:"symbol"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, CORSOrigins: []string{"*"}, LogLevel: "info"},
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "payroll.db"},
		Payroll: PayrollConfig{
			LateGraceMinutes: accrual.DefaultLateness.GraceMinutes,
			LateCapMinutes:   accrual.DefaultLateness.CapMinutes,
			Timezone:         "America/Argentina/Buenos_Aires",
		},
		Locale: LocaleConfig{
			Thousands: string(locale.AR.Thousands),
			Decimal:   string(locale.AR.Decimal),
			Symbol:    locale.AR.Symbol,
		},
	}
}

// Load reads path (skipped when empty), then .env and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from PAYROLL_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if err := num("PAYROLL_PORT", &c.Server.Port); err != nil {
		return err
	}
	if v, ok := lookup("PAYROLL_CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	str("PAYROLL_LOG_LEVEL", &c.Server.LogLevel)
	str("PAYROLL_DB_DRIVER", &c.Database.Driver)
	str("PAYROLL_DB_PATH", &c.Database.Path)
	str("DATABASE_URL", &c.Database.DSN)
	str("PAYROLL_DB_DSN", &c.Database.DSN)
	str("PAYROLL_HOLIDAY_FACTOR", &c.Payroll.HolidayFactorRaw)
	str("PAYROLL_OVERTIME_FACTOR", &c.Payroll.OvertimeFactorRaw)
	str("PAYROLL_TIMEZONE", &c.Payroll.Timezone)
	if err := num("PAYROLL_LATE_GRACE_MINUTES", &c.Payroll.LateGraceMinutes); err != nil {
		return err
	}
	return num("PAYROLL_LATE_CAP_MINUTES", &c.Payroll.LateCapMinutes)
}

func (c *Config) validateAndNormalize() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "", "debug", "info", "warn", "error":
		c.Server.LogLevel = strings.ToLower(c.Server.LogLevel)
	default:
		return fmt.Errorf("config: server.log_level %q unknown", c.Server.LogLevel)
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Payroll.validateAndNormalize(); err != nil {
		return err
	}
	return c.Locale.validate()
}

func (d *DatabaseConfig) validateAndNormalize() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case "":
		d.Driver = DriverSQLite
		fallthrough
	case DriverSQLite:
		if d.Path == "" {
			return fmt.Errorf("config: database.path must be set for sqlite")
		}
	case DriverPostgres:
		if d.DSN == "" {
			return fmt.Errorf("config: database.dsn must be set for postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: database.driver %q unknown", d.Driver)
	}
	if d.MaxConns < 0 {
		return fmt.Errorf("config: database.max_conns must not be negative")
	}
	return nil
}

func (p *PayrollConfig) validateAndNormalize() error {
	var err error
	if p.HolidayFactor, err = parseFactor(p.HolidayFactorRaw, accrual.DefaultHolidayFactor); err != nil {
		return fmt.Errorf("config: payroll.holiday_factor: %w", err)
	}
	if p.OvertimeFactor, err = parseFactor(p.OvertimeFactorRaw, accrual.DefaultOvertimeFactor); err != nil {
		return fmt.Errorf("config: payroll.overtime_factor: %w", err)
	}
	if p.LateGraceMinutes < 0 || p.LateCapMinutes < 0 {
		return fmt.Errorf("config: payroll lateness minutes must not be negative")
	}
	if p.LateCapMinutes <= p.LateGraceMinutes {
		return fmt.Errorf("config: payroll.late_cap_minutes must exceed late_grace_minutes")
	}

	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.Location, err = time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("config: payroll.timezone: %w", err)
	}
	return nil
}

func parseFactor(raw string, def decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return def, nil
	}
	f, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if !f.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive", raw)
	}
	return f, nil
}

func (l LocaleConfig) validate() error {
	if utf8.RuneCountInString(l.Thousands) != 1 || utf8.RuneCountInString(l.Decimal) != 1 {
		return fmt.Errorf("config: locale separators must be single characters")
	}
	if l.Thousands == l.Decimal {
		return fmt.Errorf("config: locale.thousands and locale.decimal must differ")
	}
	return nil
}

// Lateness returns the late-arrival thresholds.
func (p PayrollConfig) Lateness() accrual.Lateness {
	return accrual.Lateness{GraceMinutes: p.LateGraceMinutes, CapMinutes: p.LateCapMinutes}
}

// Calculator returns an accrual calculator with the configured factors
// and locale.
func (c *Config) Calculator() *accrual.Calculator {
	calc := accrual.NewCalculator()
	calc.Locale = c.Locale.Format()
	calc.HolidayFactor = c.Payroll.HolidayFactor
	calc.OvertimeFactor = c.Payroll.OvertimeFactor
	return calc
}

// Format converts the validated separators into a locale.Format.
func (l LocaleConfig) Format() locale.Format {
	th, _ := utf8.DecodeRuneInString(l.Thousands)
	dec, _ := utf8.DecodeRuneInString(l.Decimal)
	return locale.Format{Thousands: th, Decimal: dec, Symbol: l.Symbol}
}
