package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/daszybak/market_scanner/internal/filter"
	kalshi "github.com/daszybak/market_scanner/internal/kalshi/api"
	"github.com/daszybak/market_scanner/internal/metrics"
	opinion "github.com/daszybak/market_scanner/internal/opinion/api"
	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/internal/polymarket"
	"github.com/daszybak/market_scanner/internal/search"
	"github.com/daszybak/market_scanner/internal/store"
	"github.com/daszybak/market_scanner/pkg/httpclient"
)

const defaultReportLimit = 50

func main() {
	configPath := flag.String("config", "configs/scanner/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "dotenv file loaded before the config is read")
	venue := flag.String("venue", "", "venue to scan, overrides the config")
	history := flag.Int("history", 0, "print the last N recorded runs for the venue instead of scanning")
	overrides := map[filter.Axis]*string{}
	for _, axis := range []filter.Axis{
		filter.AxisTime, filter.AxisLiquidityOrVolume, filter.AxisPrice, filter.AxisSpread, filter.AxisLiquidity,
	} {
		overrides[axis] = flag.String(string(axis), "", fmt.Sprintf("%s filter, overrides the config", axis))
	}
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Couldn't load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := readConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't read config: %v\n", err)
		os.Exit(1)
	}
	if *venue != "" {
		cfg.Venue = *venue
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, overrides, *history, logger); err != nil {
		logger.Error("scanner stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config, overrides map[filter.Axis]*string, history int, logger *slog.Logger) error {
	if cfg.Venue == "" {
		return fmt.Errorf("no venue given, use -venue or the venue config key")
	}

	if history > 0 && cfg.Database.Host == "" {
		return fmt.Errorf("-history needs a database")
	}

	user := filter.UserID(cfg.User)
	filters := filter.NewMemoryStore()
	if err := loadFilters(ctx, filters, user, cfg.Filters, overrides); err != nil {
		return err
	}

	m := metrics.New()
	opts := []search.Option{search.WithMetrics(m)}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Database.Host != "" {
		pool, err := store.NewPool(ctx, store.PoolConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			PoolSize: cfg.Database.PoolSize,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return fmt.Errorf("couldn't connect to database: %w", err)
		}
		st := store.New(pool)
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("couldn't migrate database: %w", err)
		}
		logger.Info("connected to database", "host", cfg.Database.Host)

		if history > 0 {
			runs, err := st.ListRecentSearchRuns(ctx, cfg.Venue, int32(history))
			if err != nil {
				return err
			}
			writeHistory(os.Stdout, runs)
			return nil
		}
		opts = append(opts, search.WithHistory(st))
	}

	sources, err := newSources(cfg, logger)
	if err != nil {
		return err
	}
	svc := search.New(sources, filters, logger, opts...)

	limit := cfg.ReportLimit
	if limit == 0 {
		limit = defaultReportLimit
	}

	scan := func() {
		res, err := svc.RunForUser(ctx, user, cfg.Venue)
		if err != nil {
			writeError(os.Stderr, err)
			return
		}
		writeReport(os.Stdout, res, time.Now(), limit)
	}

	scan()
	interval := cfg.ScanInterval.Duration()
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			scan()
		case <-ctx.Done():
			logger.Info("scanner stopped", "reason", ctx.Err())
			return nil
		}
	}
}

// loadFilters stores the configured filters for user, with flag values taking precedence.
func loadFilters(ctx context.Context, filters filter.Store, user filter.UserID, spec filter.Spec, overrides map[filter.Axis]*string) error {
	for axis, raw := range overrides {
		if raw != nil && *raw != "" {
			var err error
			if spec, err = spec.With(axis, *raw); err != nil {
				return err
			}
		}
	}

	for _, axis := range []filter.Axis{
		filter.AxisTime, filter.AxisLiquidityOrVolume, filter.AxisPrice, filter.AxisSpread, filter.AxisLiquidity,
	} {
		raw := spec.Get(axis)
		if raw == "" {
			continue
		}
		if err := filters.Set(ctx, user, axis, raw); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}
	return nil
}

func newSources(cfg *config, logger *slog.Logger) ([]platform.Source, error) {
	httpOpts := []httpclient.Option{
		httpclient.WithTimeout(cfg.HTTP.Timeout.Or(30 * time.Second)),
		httpclient.WithRetries(cfg.HTTP.Retries, cfg.HTTP.RetryBackoff.Or(time.Second)),
	}

	k := cfg.Platforms.Kalshi
	var signer *kalshi.Signer
	if k.APIPrivateKey.IsSet() {
		var err error
		if signer, err = kalshi.NewSigner(k.APIKeyID, k.APIPrivateKey.PrivateKey); err != nil {
			return nil, fmt.Errorf("couldn't set up kalshi signing: %w", err)
		}
	}

	o := cfg.Platforms.Opinion
	p := cfg.Platforms.PolyMarket

	return []platform.Source{
		kalshi.New(kalshi.Config{BaseURL: k.APIURL, PageLimit: k.PageLimit, Signer: signer}, logger, httpOpts...),
		opinion.New(opinion.Config{
			BaseURL:   o.APIURL,
			PageLimit: o.PageLimit,
			PageDelay: o.PageDelay.Or(opinion.DefaultPageDelay),
		}, logger, httpOpts...),
		polymarket.New(polymarket.Config{
			GammaURL:        p.GammaURL,
			ClobURL:         p.ClobURL,
			PageLimit:       p.PageLimit,
			BookConcurrency: p.BookConcurrency,
		}, logger, httpOpts...),
	}, nil
}

func metricsMux(m *metrics.Manager) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
