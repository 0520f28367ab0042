// Package config handles configuration loading for buywrite.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quantfray/buywrite/internal/backtest"
	"github.com/quantfray/buywrite/internal/datasource"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"   json:"server"`
	Data     DataConfig     `mapstructure:"data"     yaml:"data"     json:"data"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest" json:"backtest"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DataConfig holds market data fetching settings.
type DataConfig struct {
	CacheTTL      int    `mapstructure:"cache_ttl"       yaml:"cache_ttl"       json:"cache_ttl"` // seconds
	RatePerMinute int    `mapstructure:"rate_per_minute" yaml:"rate_per_minute" json:"rate_per_minute"`
	UserAgent     string `mapstructure:"user_agent"      yaml:"user_agent"      json:"user_agent"` // empty uses the built-in default
	YahooBaseURL  string `mapstructure:"yahoo_base_url"  yaml:"yahoo_base_url"  json:"yahoo_base_url"`
	EarningsURL   string `mapstructure:"earnings_url"    yaml:"earnings_url"    json:"earnings_url"`
	RSSURL        string `mapstructure:"rss_url"         yaml:"rss_url"         json:"rss_url"`
}

// Options converts the data section into fetch-layer options.
func (c DataConfig) Options() datasource.DataOptions {
	return datasource.DataOptions{
		CacheTTL:      time.Duration(c.CacheTTL) * time.Second,
		RatePerMinute: c.RatePerMinute,
		UserAgent:     c.UserAgent,
		YahooBaseURL:  c.YahooBaseURL,
		EarningsURL:   c.EarningsURL,
		RSSURL:        c.RSSURL,
	}
}

// BacktestConfig holds default backtest parameters, overridable per run by
// CLI flags or request bodies.
type BacktestConfig struct {
	InitialCash             float64 `mapstructure:"initial_cash"                yaml:"initial_cash"                json:"initial_cash"`
	InitialShares           int     `mapstructure:"initial_shares"              yaml:"initial_shares"              json:"initial_shares"`
	RiskFreeRate            float64 `mapstructure:"risk_free_rate"              yaml:"risk_free_rate"              json:"risk_free_rate"`
	DividendYield           float64 `mapstructure:"dividend_yield"              yaml:"dividend_yield"              json:"dividend_yield"`
	TargetDelta             float64 `mapstructure:"target_delta"                yaml:"target_delta"                json:"target_delta"`
	Frequency               string  `mapstructure:"frequency"                   yaml:"frequency"                   json:"frequency"` // "weekly" or "monthly"
	IVOverride              float64 `mapstructure:"iv_override"                 yaml:"iv_override"                 json:"iv_override"`
	ReinvestPremium         bool    `mapstructure:"reinvest_premium"            yaml:"reinvest_premium"            json:"reinvest_premium"`
	ReinvestThreshold       int     `mapstructure:"reinvest_threshold"          yaml:"reinvest_threshold"          json:"reinvest_threshold"`
	RoundStrikes            bool    `mapstructure:"round_strikes"               yaml:"round_strikes"               json:"round_strikes"`
	SkipEarnings            bool    `mapstructure:"skip_earnings"               yaml:"skip_earnings"               json:"skip_earnings"`
	DynamicQty              bool    `mapstructure:"dynamic_qty"                 yaml:"dynamic_qty"                 json:"dynamic_qty"`
	EnableRolling           bool    `mapstructure:"enable_rolling"              yaml:"enable_rolling"              json:"enable_rolling"`
	RollDeltaTrigger        float64 `mapstructure:"roll_delta_trigger"          yaml:"roll_delta_trigger"          json:"roll_delta_trigger"`
	RollDaysBeforeExpiry    int     `mapstructure:"roll_days_before_expiry"     yaml:"roll_days_before_expiry"     json:"roll_days_before_expiry"`
	EntryDaysBeforeCycleEnd int     `mapstructure:"entry_days_before_cycle_end" yaml:"entry_days_before_cycle_end" json:"entry_days_before_cycle_end"`
}

// Params converts the config section into engine parameters. Out-of-range
// values are left for the engine to normalize.
func (c BacktestConfig) Params() backtest.Params {
	return backtest.Params{
		InitialCash:             c.InitialCash,
		InitialShares:           c.InitialShares,
		RiskFreeRate:            c.RiskFreeRate,
		DividendYield:           c.DividendYield,
		TargetDelta:             c.TargetDelta,
		Frequency:               backtest.Frequency(c.Frequency),
		IVOverride:              c.IVOverride,
		ReinvestPremium:         c.ReinvestPremium,
		ReinvestThreshold:       c.ReinvestThreshold,
		RoundStrikes:            c.RoundStrikes,
		SkipEarnings:            c.SkipEarnings,
		DynamicQty:              c.DynamicQty,
		EnableRolling:           c.EnableRolling,
		RollDeltaTrigger:        c.RollDeltaTrigger,
		RollDaysBeforeExpiry:    c.RollDaysBeforeExpiry,
		EntryDaysBeforeCycleEnd: c.EntryDaysBeforeCycleEnd,
	}
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.buywrite/config.yaml (home directory)
//  3. /etc/buywrite/config.yaml (system)
//
// Environment variables override config file values.
// Format: BUYWRITE_<SECTION>_<KEY>, e.g., BUYWRITE_SERVER_PORT
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".buywrite"))
	v.AddConfigPath("/etc/buywrite")

	// Environment variable settings
	v.SetEnvPrefix("BUYWRITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("BUYWRITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	// Data source defaults
	v.SetDefault("data.cache_ttl", 300) // 5 minutes
	v.SetDefault("data.rate_per_minute", 30)
	v.SetDefault("data.user_agent", "")
	v.SetDefault("data.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("data.earnings_url", "https://finance.yahoo.com/calendar/earnings")
	v.SetDefault("data.rss_url", "https://feeds.finance.yahoo.com/rss/2.0/headline")

	// Backtest defaults, mirroring backtest.DefaultParams
	v.SetDefault("backtest.initial_cash", 0.0)
	v.SetDefault("backtest.initial_shares", 100)
	v.SetDefault("backtest.risk_free_rate", 0.04)
	v.SetDefault("backtest.dividend_yield", 0.0)
	v.SetDefault("backtest.target_delta", 0.30)
	v.SetDefault("backtest.frequency", "weekly")
	v.SetDefault("backtest.iv_override", 0.0)
	v.SetDefault("backtest.reinvest_premium", false)
	v.SetDefault("backtest.reinvest_threshold", 1)
	v.SetDefault("backtest.round_strikes", false)
	v.SetDefault("backtest.skip_earnings", false)
	v.SetDefault("backtest.dynamic_qty", false)
	v.SetDefault("backtest.enable_rolling", true)
	v.SetDefault("backtest.roll_delta_trigger", 0.70)
	v.SetDefault("backtest.roll_days_before_expiry", 0)
	v.SetDefault("backtest.entry_days_before_cycle_end", -1)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
