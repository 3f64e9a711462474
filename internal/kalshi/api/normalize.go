package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daszybak/market_scanner/internal/market"
	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/internal/price"
)

// Market is the subset of a Kalshi listing the scanner reads. Prices are in cents.
type Market struct {
	Ticker       string       `json:"ticker"`
	EventTicker  string       `json:"event_ticker"`
	Title        string       `json:"title"`
	Category     string       `json:"category"`
	CloseTime    string       `json:"close_time"`
	OpenTime     string       `json:"open_time"`
	YesBid       price.Number `json:"yes_bid"`
	YesAsk       price.Number `json:"yes_ask"`
	NoBid        price.Number `json:"no_bid"`
	NoAsk        price.Number `json:"no_ask"`
	LastPrice    price.Number `json:"last_price"`
	Liquidity    price.Number `json:"liquidity"`
	Volume24h    price.Number `json:"volume_24h"`
	YesSubTitle  string       `json:"yes_sub_title"`
	NoSubTitle   string       `json:"no_sub_title"`
	RulesPrimary string       `json:"rules_primary"`
}

// Normalize drops listings that do not decode or have no usable close time.
func (c *Client) Normalize(_ *platform.Batch, record json.RawMessage, now time.Time) (market.Market, bool) {
	var km Market
	if err := json.Unmarshal(record, &km); err != nil {
		c.log.Warn("dropping undecodable market", "error", err)
		return market.Market{}, false
	}

	closeTime, err := parseTime(km.CloseTime)
	if err != nil {
		c.log.Debug("dropping market without close time", "ticker", km.Ticker, "error", err)
		return market.Market{}, false
	}

	quotes := market.Quotes{
		YesBid: km.YesBid.Float(),
		YesAsk: km.YesAsk.Float(),
		NoBid:  km.NoBid.Float(),
		NoAsk:  km.NoAsk.Float(),
	}
	best := quotes.Max()

	m := market.Market{
		Venue:             platformName,
		ID:                market.IDOr(km.Ticker),
		Title:             market.TitleOr(km.Title),
		BestPrice:         best,
		Prices:            []float64{best},
		Spread:            market.QuoteSpread(quotes),
		LiquidityOrVolume: max(km.Liquidity.Float(), 0),
		Quotes:            quotes,
		Details: market.Details{
			Category:  km.Category,
			Slug:      km.EventTicker,
			Volume24h: km.Volume24h.Float(),
			LastPrice: km.LastPrice.Float(),
			YesLabel:  km.YesSubTitle,
			NoLabel:   km.NoSubTitle,
			Rules:     km.RulesPrimary,
		},
		Raw: record,
	}
	if created, err := parseTime(km.OpenTime); err == nil {
		m.Details.CreatedAt = created
	}
	m.SetCloseTime(closeTime, now)
	return m, true
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("couldn't parse timestamp: %w", err)
	}
	return t.UTC(), nil
}
