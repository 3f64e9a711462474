// Package clob is used to call Polymarket's order book endpoints.
package clob

import (
	"context"
	"fmt"

	"github.com/daszybak/market_scanner/internal/orderbook"
	"github.com/daszybak/market_scanner/pkg/httpclient"
)

const (
	DefaultBaseURL = "https://clob.polymarket.com"

	// MaxBooksPerRequest is the largest token batch /books accepts.
	MaxBooksPerRequest = 100
)

type Client struct {
	http *httpclient.Client
}

func New(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpclient.New(baseURL, opts...)}
}

type BookRequest struct {
	TokenID string `json:"token_id"`
}

// Book is a full order book snapshot for one token.
type Book struct {
	AssetID string            `json:"asset_id"`
	Market  string            `json:"market"`
	Bids    []orderbook.Level `json:"bids"`
	Asks    []orderbook.Level `json:"asks"`
}

// GetBooks fetches the books of up to MaxBooksPerRequest tokens in one call.
func (c *Client) GetBooks(ctx context.Context, tokenIDs []string) ([]Book, error) {
	if len(tokenIDs) > MaxBooksPerRequest {
		return nil, fmt.Errorf("too many tokens in one request: %d > %d", len(tokenIDs), MaxBooksPerRequest)
	}

	payload := make([]BookRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		payload[i] = BookRequest{TokenID: id}
	}

	books, err := httpclient.PostResource[[]Book](ctx, c.http, "/books", payload, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get books for %d tokens: %w", len(tokenIDs), err)
	}
	return books, nil
}
