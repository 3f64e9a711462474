// Package api is used to call Kalshi's API endpoints and to turn its market
// listings into scanner markets.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/pkg/httpclient"
)

const (
	platformName = "kalshi"

	DefaultBaseURL   = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultPageLimit = 1000
)

type Config struct {
	BaseURL   string
	PageLimit int
	// Signer is optional; public market data does not need it.
	Signer *Signer
}

type Client struct {
	http      *httpclient.Client
	pageLimit int
	log       *slog.Logger
}

var _ platform.Source = (*Client)(nil)

func New(cfg Config, log *slog.Logger, opts ...httpclient.Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	log = log.With("component", platformName)

	opts = append([]httpclient.Option{httpclient.WithLogger(log)}, opts...)
	if cfg.Signer != nil {
		opts = append(opts, httpclient.WithRequestHook(cfg.Signer.Sign))
	}

	return &Client{
		http:      httpclient.New(cfg.BaseURL, opts...),
		pageLimit: cfg.PageLimit,
		log:       log,
	}
}

func (c *Client) Name() string {
	return platformName
}

func (c *Client) LiquidityRefinement() bool {
	return false
}

// MarketPage keeps markets raw so one malformed listing cannot fail the page.
type MarketPage struct {
	Markets []json.RawMessage `json:"markets"`
	Cursor  string            `json:"cursor"`
}

// GetMarkets fetches one page of open markets starting at cursor.
func (c *Client) GetMarkets(ctx context.Context, cursor string) (*MarketPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageLimit))
	query.Set("status", "open")
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	page, err := httpclient.GetResource[*MarketPage](ctx, c.http, "/markets", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets from cursor %q: %w", cursor, err)
	}
	return page, nil
}

// FetchAll follows the cursor until it runs out or a page comes back short.
// A failing page ends the walk and marks the batch truncated.
func (c *Client) FetchAll(ctx context.Context) *platform.Batch {
	batch := &platform.Batch{}
	cursor := ""

	for page := 1; ; page++ {
		res, err := c.GetMarkets(ctx, cursor)
		if err != nil {
			c.log.Error("fetching markets", "error", err, "page", page, "fetched", len(batch.Records))
			batch.Truncated = true
			break
		}
		batch.Records = append(batch.Records, res.Markets...)
		c.log.Debug("received a market page", "page", page, "count", len(res.Markets))

		if res.Cursor == "" || len(res.Markets) < c.pageLimit {
			break
		}
		cursor = res.Cursor
	}

	c.log.Info("fetched markets", "count", len(batch.Records), "truncated", batch.Truncated)
	return batch
}
