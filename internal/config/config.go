package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"arbscanner/internal/model"
)

// ErrInvalidConfig wraps every validation failure. It is fatal at startup.
var ErrInvalidConfig = errors.New("invalid config")

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel  string                    `mapstructure:"log_level"`
	Scanner   ScannerConfig             `mapstructure:"scanner"`
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	Ledger    LedgerConfig              `mapstructure:"ledger"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Redis     RedisConfig               `mapstructure:"redis"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
}

// ScannerConfig defines thresholds and timing of the scan loop.
type ScannerConfig struct {
	Symbols          []string      `mapstructure:"symbols"`
	MinProfitPct     float64       `mapstructure:"min_profit_pct"`
	PositionSize     float64       `mapstructure:"position_size"`
	CooldownSeconds  int           `mapstructure:"cooldown_seconds"`
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MinVolume24h     float64       `mapstructure:"min_volume_24h"`
	StalenessWindow  time.Duration `mapstructure:"staleness_window"`
	UseMakerFees     bool          `mapstructure:"use_maker_fees"`
	MaxOpportunities int           `mapstructure:"max_opportunities"`
	ExecuteTopN      int           `mapstructure:"execute_top_n"`
	TradingMode      string        `mapstructure:"trading_mode"`
	StatusInterval   time.Duration `mapstructure:"status_interval"`
}

// ExchangeConfig defines fees and capabilities for a specific exchange.
type ExchangeConfig struct {
	MakerFee       float64 `mapstructure:"maker_fee"`
	TakerFee       float64 `mapstructure:"taker_fee"`
	TradingEnabled bool    `mapstructure:"trading_enabled"`
	InitialBalance float64 `mapstructure:"initial_balance"`
	WSURL          string  `mapstructure:"ws_url"`
}

// LedgerConfig locates the append-only trade ledger file.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

// RedisConfig defines the optional quote mirror.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	QuoteTTL time.Duration `mapstructure:"quote_ttl"`
}

// ArchiveConfig defines the optional S3 upload of the ledger on shutdown.
type ArchiveConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Prefix         string `mapstructure:"prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("scanner.symbols", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("scanner.min_profit_pct", 0.05)
	v.SetDefault("scanner.position_size", 100.0)
	v.SetDefault("scanner.cooldown_seconds", 30)
	v.SetDefault("scanner.scan_interval", time.Second)
	v.SetDefault("scanner.fetch_timeout", 800*time.Millisecond)
	v.SetDefault("scanner.min_volume_24h", 10000.0)
	v.SetDefault("scanner.staleness_window", 5*time.Second)
	v.SetDefault("scanner.use_maker_fees", false)
	v.SetDefault("scanner.max_opportunities", 14)
	v.SetDefault("scanner.execute_top_n", 3)
	v.SetDefault("scanner.trading_mode", string(model.ModeSimulated))
	v.SetDefault("scanner.status_interval", 30*time.Second)
	v.SetDefault("ledger.path", "trades.json")
	v.SetDefault("database.port", 5432)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.quote_ttl", 10*time.Second)
	v.SetDefault("archive.prefix", "ledger")
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ARBSCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

// Validate checks every value the scanner depends on.
func (c Config) Validate() error {
	s := c.Scanner
	if len(s.Symbols) == 0 {
		return fmt.Errorf("%w: scanner.symbols is empty", ErrInvalidConfig)
	}
	if s.PositionSize <= 0 {
		return fmt.Errorf("%w: scanner.position_size must be > 0", ErrInvalidConfig)
	}
	if s.CooldownSeconds < 0 {
		return fmt.Errorf("%w: scanner.cooldown_seconds must be >= 0", ErrInvalidConfig)
	}
	if s.ScanInterval <= 0 {
		return fmt.Errorf("%w: scanner.scan_interval must be > 0", ErrInvalidConfig)
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("%w: scanner.fetch_timeout must be > 0", ErrInvalidConfig)
	}
	if s.StalenessWindow <= 0 {
		return fmt.Errorf("%w: scanner.staleness_window must be > 0", ErrInvalidConfig)
	}
	if s.MinVolume24h < 0 {
		return fmt.Errorf("%w: scanner.min_volume_24h must be >= 0", ErrInvalidConfig)
	}
	if s.MaxOpportunities < 0 || s.ExecuteTopN < 0 {
		return fmt.Errorf("%w: scanner.max_opportunities and scanner.execute_top_n must be >= 0", ErrInvalidConfig)
	}
	switch model.TradingMode(s.TradingMode) {
	case model.ModeSimulated, model.ModeReal:
	default:
		return fmt.Errorf("%w: scanner.trading_mode %q must be simulated or real", ErrInvalidConfig, s.TradingMode)
	}
	if err := c.Profiles().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("%w: ledger.path is empty", ErrInvalidConfig)
	}
	if c.Database.Enabled && (c.Database.Host == "" || c.Database.DBName == "") {
		return fmt.Errorf("%w: database.host and database.dbname are required", ErrInvalidConfig)
	}
	if c.Archive.Enabled && (c.Archive.Bucket == "" || c.Archive.Region == "") {
		return fmt.Errorf("%w: archive.bucket and archive.region are required", ErrInvalidConfig)
	}
	return nil
}

// Profiles converts the exchange table into the immutable profile table.
func (c Config) Profiles() model.ProfileTable {
	profiles := make([]model.ExchangeProfile, 0, len(c.Exchanges))
	for id, ex := range c.Exchanges {
		profiles = append(profiles, model.ExchangeProfile{
			ID:             id,
			MakerFee:       decimal.NewFromFloat(ex.MakerFee),
			TakerFee:       decimal.NewFromFloat(ex.TakerFee),
			TradingEnabled: ex.TradingEnabled,
			InitialBalance: decimal.NewFromFloat(ex.InitialBalance),
		})
	}
	return model.NewProfileTable(profiles...)
}

// Cooldown returns the per-route silence period.
func (s ScannerConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}
