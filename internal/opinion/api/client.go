// Package api is used to call Opinion's topic endpoint and to turn its
// event tree into scanner markets.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/pkg/httpclient"
)

const (
	platformName = "opinion"

	DefaultBaseURL   = "https://proxy.opinion.trade:8443/api/bsc/api/v2"
	DefaultPageLimit = 12
	DefaultPageDelay = 500 * time.Millisecond
)

type Config struct {
	BaseURL   string
	PageLimit int
	// PageDelay is slept between page requests to stay under the venue's rate limits.
	PageDelay time.Duration
}

type Client struct {
	http      *httpclient.Client
	pageLimit int
	pageDelay time.Duration
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
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	log = log.With("component", platformName)

	opts = append([]httpclient.Option{httpclient.WithLogger(log)}, opts...)
	return &Client{
		http:      httpclient.New(cfg.BaseURL, opts...),
		pageLimit: cfg.PageLimit,
		pageDelay: cfg.PageDelay,
		log:       log,
	}
}

func (c *Client) Name() string {
	return platformName
}

func (c *Client) LiquidityRefinement() bool {
	return false
}

// TopicPage is one page of events. The venue has served the list both
// under "result" and at the top level.
type TopicPage struct {
	Result *struct {
		List []json.RawMessage `json:"list"`
	} `json:"result"`
	List []json.RawMessage `json:"list"`
}

// Events returns the page's events wherever they were sent.
func (p *TopicPage) Events() []json.RawMessage {
	if p.Result != nil && p.Result.List != nil {
		return p.Result.List
	}
	return p.List
}

// GetTopics fetches one page of active binary events. Pages start at 1.
func (c *Client) GetTopics(ctx context.Context, page int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("labelId", "")
	query.Set("keywords", "")
	query.Set("sortBy", "5")
	query.Set("chainId", "56")
	query.Set("limit", strconv.Itoa(c.pageLimit))
	query.Set("status", "2")
	query.Set("isShow", "1")
	query.Set("topicType", "2")
	query.Set("page", strconv.Itoa(page))
	query.Set("indicatorType", "0")
	query.Set("excludePin", "1")

	res, err := httpclient.GetResource[*TopicPage](ctx, c.http, "/topic", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get topics page %d: %w", page, err)
	}
	return res.Events(), nil
}

// FetchAll walks pages until one is empty or short, flattening every event
// into one record per child market.
func (c *Client) FetchAll(ctx context.Context) *platform.Batch {
	batch := &platform.Batch{}

	for page := 1; ; page++ {
		events, err := c.GetTopics(ctx, page)
		if err != nil {
			c.log.Error("fetching topics", "error", err, "page", page, "fetched", len(batch.Records))
			batch.Truncated = true
			break
		}
		if len(events) == 0 {
			c.log.Debug("no events on page", "page", page)
			break
		}

		for _, ev := range events {
			records, err := Flatten(ev)
			if err != nil {
				c.log.Warn("skipping malformed event", "error", err, "page", page)
				continue
			}
			batch.Records = append(batch.Records, records...)
		}
		c.log.Debug("received a topics page", "page", page, "events", len(events), "records", len(batch.Records))

		if len(events) < c.pageLimit {
			break
		}
		if err := c.wait(ctx); err != nil {
			c.log.Error("fetching topics", "error", err, "page", page+1)
			batch.Truncated = true
			break
		}
	}

	c.log.Info("fetched markets", "count", len(batch.Records), "truncated", batch.Truncated)
	return batch
}

func (c *Client) wait(ctx context.Context) error {
	if c.pageDelay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.pageDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
