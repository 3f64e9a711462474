// Package gamma consumes Polymarket's gamma market listing endpoints.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/daszybak/market_scanner/internal/price"
	"github.com/daszybak/market_scanner/pkg/httpclient"
)

const DefaultBaseURL = "https://gamma-api.polymarket.com"

type Client struct {
	http *httpclient.Client
}

func New(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpclient.New(baseURL, opts...)}
}

// StringList handles the double-encoded JSON arrays gamma sends
// ("[\"a\",\"b\"]"). A plain array is accepted too.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]string)(l))
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), (*[]string)(l)); err != nil {
		return fmt.Errorf("couldn't decode embedded list %q: %w", s, err)
	}
	return nil
}

// At returns element i, or "" when the list is shorter.
func (l StringList) At(i int) string {
	if i < 0 || i >= len(l) {
		return ""
	}
	return l[i]
}

type EventRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

type Market struct {
	ID                string       `json:"id"`
	ConditionID       string       `json:"conditionId"`
	Question          string       `json:"question"`
	Slug              string       `json:"slug"`
	Description       string       `json:"description"`
	Category          string       `json:"category"`
	EndDate           string       `json:"endDate"`
	CreatedAt         string       `json:"createdAt"`
	Outcomes          StringList   `json:"outcomes"`
	OutcomePrices     StringList   `json:"outcomePrices"`
	ClobTokenIDs      StringList   `json:"clobTokenIds"`
	Liquidity         price.Number `json:"liquidity"`
	Volume24hr        price.Number `json:"volume24hr"`
	LastTradePrice    price.Number `json:"lastTradePrice"`
	OneDayPriceChange price.Number `json:"oneDayPriceChange"`
	Events            []EventRef   `json:"events"`
}

// EventSlug prefers the parent event's slug, which is what market URLs use.
func (m *Market) EventSlug() string {
	if len(m.Events) > 0 && m.Events[0].Slug != "" {
		return m.Events[0].Slug
	}
	return m.Slug
}

// GetMarkets returns one page of open markets, kept raw.
func (c *Client) GetMarkets(ctx context.Context, limit, offset int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("closed", "false")

	markets, err := httpclient.GetResource[[]json.RawMessage](ctx, c.http, "/markets", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets at offset %d: %w", offset, err)
	}
	return markets, nil
}
