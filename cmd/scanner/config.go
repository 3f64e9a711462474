package main

import (
	"fmt"
	"os"
	"slices"

	configtypes "github.com/daszybak/market_scanner/internal/config"
	"github.com/daszybak/market_scanner/internal/filter"
	"go.yaml.in/yaml/v4"
)

var venues = []string{"kalshi", "opinion", "polymarket"}

type config struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
	Venue     string `yaml:"venue"`
	User      int64  `yaml:"user"`
	// ScanInterval repeats the search until interrupted. Zero runs it once.
	ScanInterval configtypes.Duration `yaml:"scan_interval"`
	ReportLimit  int                  `yaml:"report_limit"`
	Filters      filter.Spec          `yaml:"filters"`
	HTTP         struct {
		Timeout      configtypes.Duration `yaml:"timeout"`
		Retries      int                  `yaml:"retries"`
		RetryBackoff configtypes.Duration `yaml:"retry_backoff"`
	} `yaml:"http"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	// Database is optional; without a host no run history is kept.
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		PoolSize int    `yaml:"pool_size"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`
	Platforms struct {
		Kalshi struct {
			APIURL        string                    `yaml:"api_url"`
			PageLimit     int                       `yaml:"page_limit"`
			APIKeyID      string                    `yaml:"api_key_id"`
			APIPrivateKey configtypes.RSAPrivateKey `yaml:"api_private_key"`
		} `yaml:"kalshi"`
		Opinion struct {
			APIURL    string               `yaml:"api_url"`
			PageLimit int                  `yaml:"page_limit"`
			PageDelay configtypes.Duration `yaml:"page_delay"`
		} `yaml:"opinion"`
		PolyMarket struct {
			GammaURL        string `yaml:"gamma_url"`
			ClobURL         string `yaml:"clob_url"`
			PageLimit       int    `yaml:"page_limit"`
			BookConcurrency int    `yaml:"book_concurrency"`
		} `yaml:"polymarket"`
	} `yaml:"platforms"`
}

// readConfig reads the YAML file at configPath, expanding ${VAR} references
// from the environment first.
func readConfig(configPath string) (*config, error) {
	rawConfig, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file %s: %w", configPath, err)
	}

	cfg := &config{}
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(rawConfig))), cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse config: %w", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *config) error {
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json")
	}

	if cfg.Venue != "" && !slices.Contains(venues, cfg.Venue) {
		return fmt.Errorf("venue must be one of %v", venues)
	}
	if cfg.ReportLimit < 0 {
		return fmt.Errorf("report_limit must not be negative")
	}

	// Filters are optional here, but what is set has to parse.
	for _, axis := range slices.Concat(filter.RequiredAxes, []filter.Axis{filter.AxisLiquidity}) {
		if raw := cfg.Filters.Get(axis); raw != "" {
			if _, err := filter.ParseAxis(axis, raw); err != nil {
				return fmt.Errorf("filters.%s: %w", axis, err)
			}
		}
	}

	// HTTP
	if cfg.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must not be negative")
	}

	// Database
	if cfg.Database.Host != "" {
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
	}

	// Kalshi
	if cfg.Platforms.Kalshi.APIPrivateKey.IsSet() && cfg.Platforms.Kalshi.APIKeyID == "" {
		return fmt.Errorf("platforms.kalshi.api_key_id is required with api_private_key")
	}

	// Polymarket
	if cfg.Platforms.PolyMarket.BookConcurrency < 0 {
		return fmt.Errorf("platforms.polymarket.book_concurrency must not be negative")
	}

	return nil
}
