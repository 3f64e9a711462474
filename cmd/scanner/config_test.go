package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/daszybak/market_scanner/internal/filter"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestReadConfig(t *testing.T) {
	t.Setenv("SCANNER_TEST_DB_PASSWORD", "s3cret")

	path := writeConfig(t, `
log_level: debug
venue: kalshi
user: 7
scan_interval: 5m
filters:
  time: "1-6"
  price: "80-95"
http:
  retries: 3
  retry_backoff: 250ms
database:
  host: localhost
  port: 5432
  user: scanner
  password: ${SCANNER_TEST_DB_PASSWORD}
  database: market_scanner
platforms:
  opinion:
    page_delay: 1s
`)

	cfg, err := readConfig(path)
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}

	if cfg.Venue != "kalshi" || cfg.User != 7 {
		t.Errorf("venue/user = %q/%d", cfg.Venue, cfg.User)
	}
	if cfg.ScanInterval.Duration() != 5*time.Minute {
		t.Errorf("scan_interval = %v", cfg.ScanInterval.Duration())
	}
	if cfg.Filters.Time != "1-6" || cfg.Filters.Price != "80-95" || cfg.Filters.Spread != "" {
		t.Errorf("filters = %+v", cfg.Filters)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("password = %q, want expanded env value", cfg.Database.Password)
	}
	if cfg.HTTP.RetryBackoff.Duration() != 250*time.Millisecond {
		t.Errorf("retry_backoff = %v", cfg.HTTP.RetryBackoff.Duration())
	}
	if cfg.Platforms.Opinion.PageDelay.Duration() != time.Second {
		t.Errorf("page_delay = %v", cfg.Platforms.Opinion.PageDelay.Duration())
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty is valid", ``, ""},
		{"bad log level", `log_level: loud`, "log_level"},
		{"bad log format", `log_format: xml`, "log_format"},
		{"unknown venue", `venue: betfair`, "venue"},
		{"negative report limit", `report_limit: -1`, "report_limit"},
		{"bad filter", "filters:\n  spread: wide", "filters.spread"},
		{"price above a dollar", "filters:\n  price: 90-120", "filters.price"},
		{"negative retries", "http:\n  retries: -1", "http.retries"},
		{"negative duration", "http:\n  timeout: -5s", "negative"},
		{"database without user", "database:\n  host: db\n  port: 5432\n  database: x", "database.user"},
		{"database bad port", "database:\n  host: db\n  user: u\n  database: x", "database.port"},
		{"negative book concurrency", "platforms:\n  polymarket:\n    book_concurrency: -2", "book_concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readConfig(writeConfig(t, tt.body))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFilters(t *testing.T) {
	ctx := t.Context()
	const user filter.UserID = 3

	price := "5-20"
	empty := ""
	overrides := map[filter.Axis]*string{
		filter.AxisPrice:  &price,
		filter.AxisSpread: &empty,
	}
	spec := filter.Spec{Time: "1-6", Price: "80-95", Spread: "<5"}

	s := filter.NewMemoryStore()
	if err := loadFilters(ctx, s, user, spec, overrides); err != nil {
		t.Fatalf("loadFilters: %v", err)
	}

	got, ok := s.Get(ctx, user)
	if !ok {
		t.Fatal("nothing stored")
	}
	want := filter.Spec{Time: "1-6", Price: "5-20", Spread: "<5"}
	if got != want {
		t.Errorf("stored %+v, want %+v", got, want)
	}

	bad := "cheap"
	err := loadFilters(ctx, filter.NewMemoryStore(), user, spec, map[filter.Axis]*string{filter.AxisTime: &bad})
	if !errors.Is(err, filter.ErrUnrecognized) {
		t.Errorf("err = %v, want ErrUnrecognized", err)
	}
}

func TestNewLogger(t *testing.T) {
	ctx := t.Context()
	if !newLogger("debug", "json").Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger does not log debug")
	}
	if newLogger("warn", "text").Enabled(ctx, slog.LevelInfo) {
		t.Error("warn logger logs info")
	}
}
