package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Claims     ClaimsConfig     `mapstructure:"claims"`
	Accounting AccountingConfig `mapstructure:"accounting"`
	Cession    CessionConfig    `mapstructure:"cession"`
	Workers    WorkersConfig    `mapstructure:"workers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ClaimsConfig holds claim workflow configuration
type ClaimsConfig struct {
	CommitteeQuorum int `mapstructure:"committee_quorum"`
}

// AccountingConfig holds the ledger accounts and journals claims post
// against. Posting fails with remediation text when any required entry
// is missing.
type AccountingConfig struct {
	ExpenseAccount    string `mapstructure:"expense_account"`
	PayableAccount    string `mapstructure:"payable_account"`
	ReceivableAccount string `mapstructure:"receivable_account"`
	PurchaseJournal   string `mapstructure:"purchase_journal"`
	BankJournal       string `mapstructure:"bank_journal"`
}

// CessionConfig holds reinsurance reporting configuration
type CessionConfig struct {
	CompanyName string `mapstructure:"company_name"`
	ExportDir   string `mapstructure:"export_dir"`
}

// WorkersConfig holds the periodic sweep intervals
type WorkersConfig struct {
	SLAInterval           time.Duration `mapstructure:"sla_interval"`
	PolicyInterval        time.Duration `mapstructure:"policy_interval"`
	CoverageResetInterval time.Duration `mapstructure:"coverage_reset_interval"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/insurance.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Claims defaults
	viper.SetDefault("claims.committee_quorum", 2)

	// Cession defaults
	viper.SetDefault("cession.export_dir", "bordereaux")

	// Worker defaults
	viper.SetDefault("workers.sla_interval", 15*time.Minute)
	viper.SetDefault("workers.policy_interval", time.Hour)
	viper.SetDefault("workers.coverage_reset_interval", 6*time.Hour)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("accounting.expense_account", "INSURANCE_EXPENSE_ACCOUNT")
	viper.BindEnv("accounting.payable_account", "INSURANCE_PAYABLE_ACCOUNT")
	viper.BindEnv("accounting.receivable_account", "INSURANCE_RECEIVABLE_ACCOUNT")
	viper.BindEnv("cession.company_name", "COMPANY_NAME")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Claims.CommitteeQuorum < 1 {
		return fmt.Errorf("claims.committee_quorum must be at least 1")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Cession.CompanyName == "" {
		return fmt.Errorf("cession.company_name is required")
	}
	return nil
}
