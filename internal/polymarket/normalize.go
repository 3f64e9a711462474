package polymarket

import (
	"encoding/json"
	"time"

	"github.com/daszybak/market_scanner/internal/market"
	"github.com/daszybak/market_scanner/internal/orderbook"
	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/internal/polymarket/gamma"
)

// Normalize never drops a listing. Listings that do not decode become a
// minimal record, and listings without an end date are left for the time
// stage to reject.
func (p *Polymarket) Normalize(batch *platform.Batch, record json.RawMessage, now time.Time) (market.Market, bool) {
	var gm gamma.Market
	if err := json.Unmarshal(record, &gm); err != nil {
		p.log.Warn("couldn't extract market data", "error", err)
		return fallback(record, now), true
	}

	var books map[string]orderbook.Top
	if batch != nil {
		books = batch.Books
	}
	quotes := market.Quotes{}
	if top, ok := books[gm.ClobTokenIDs.At(0)]; ok {
		quotes.YesBid, quotes.YesAsk = top.Bid.Cents(), top.Ask.Cents()
	}
	if top, ok := books[gm.ClobTokenIDs.At(1)]; ok {
		quotes.NoBid, quotes.NoAsk = top.Bid.Cents(), top.Ask.Cents()
	}
	best := quotes.Max()

	m := market.Market{
		Venue:             platformName,
		ID:                market.IDOr(gm.ID),
		Title:             market.TitleOr(gm.Question),
		BestPrice:         best,
		Prices:            []float64{best},
		Spread:            market.QuoteSpread(quotes),
		LiquidityOrVolume: max(gm.Liquidity.Float(), 0),
		Quotes:            quotes,
		Details: market.Details{
			Category:    gm.Category,
			Slug:        gm.EventSlug(),
			Volume24h:   gm.Volume24hr.Float(),
			LastPrice:   gm.LastTradePrice.Float() * 100,
			PriceChange: gm.OneDayPriceChange.Float() * 100,
			YesLabel:    gm.Outcomes.At(0),
			NoLabel:     gm.Outcomes.At(1),
			Rules:       gm.Description,
		},
		Raw: record,
	}
	if t, err := parseTime(gm.CreatedAt); err == nil {
		m.Details.CreatedAt = t
	}
	if t, err := parseTime(gm.EndDate); err == nil {
		m.SetCloseTime(t, now)
	} else {
		p.log.Debug("market without end date", "id", m.ID, "end_date", gm.EndDate)
	}
	return m, true
}

func fallback(record json.RawMessage, now time.Time) market.Market {
	var ident struct {
		ID       string `json:"id"`
		Question string `json:"question"`
		EndDate  string `json:"endDate"`
	}
	_ = json.Unmarshal(record, &ident)

	m := market.Market{
		Venue:  platformName,
		ID:     market.IDOr(ident.ID),
		Title:  market.TitleOr(ident.Question),
		Prices: []float64{0},
		Spread: market.UnknownSpread,
		Raw:    record,
	}
	if t, err := parseTime(ident.EndDate); err == nil {
		m.SetCloseTime(t, now)
	}
	return m
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
