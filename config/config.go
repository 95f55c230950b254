package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bybit    BybitConfig    `mapstructure:"bybit"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type BybitConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}
type WSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// FetchConfig drives the historical backfill command: which market to
// pull, how far back, and whether to keep following live candles over
// the websocket stream afterwards.
type FetchConfig struct {
	Category string        `mapstructure:"category"` // e.g. "linear", "spot"
	Symbols  []string      `mapstructure:"symbols"`  // empty = discover USDT pairs
	Interval string        `mapstructure:"interval"` // Bybit interval code, e.g. "1", "60", "D"
	Lookback time.Duration `mapstructure:"lookback"` // how much history to backfill
	Follow   bool          `mapstructure:"follow"`   // keep streaming after backfill
}

// ReplayConfig tunes the replay engine defaults.
type ReplayConfig struct {
	TickCount        int           `mapstructure:"tick_count"`        // interpolated ticks per candle
	AutoplayInterval time.Duration `mapstructure:"autoplay_interval"` // cadence of server-driven stepping
	CandleLimit      int           `mapstructure:"candle_limit"`      // max candles loaded into one session
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	// TODO: env path
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	// Support environment variables with dot notation (e.g., BYBIT_REST_BASE_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("replay.tick_count", 100)
	v.SetDefault("replay.autoplay_interval", 500*time.Millisecond)
	v.SetDefault("replay.candle_limit", 5000)
	v.SetDefault("server.addr", ":8080")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
