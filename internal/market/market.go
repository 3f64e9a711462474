// Package market defines the venue-neutral market record every normalizer
// produces and the funnel consumes.
package market

import (
	"encoding/json"
	"math"
	"time"
)

// Fallback values for records a venue sent without identity fields.
const (
	UnknownID    = "N/A"
	UnknownTitle = "Untitled"
)

// UnknownSpread marks a spread that could not be computed from quotes.
const UnknownSpread = 100.0

// Quotes are top-of-book prices in cents. Venues that only publish buy
// prices fill the ask side.
type Quotes struct {
	YesBid float64
	YesAsk float64
	NoBid  float64
	NoAsk  float64
}

// Max returns the highest of the four quotes.
func (q Quotes) Max() float64 {
	return max(q.YesBid, q.YesAsk, q.NoBid, q.NoAsk)
}

// Details carries presentation-only fields; no stage reads them.
type Details struct {
	Category    string
	Slug        string
	CreatedAt   time.Time
	Volume24h   float64
	LastPrice   float64
	PriceChange float64
	YesLabel    string
	NoLabel     string
	Rules       string
}

// Market is one normalized listing, built per search and discarded after.
type Market struct {
	Venue string
	ID    string
	Title string

	// CloseTime is zero and HoursToClose nil when the venue gave no usable close time.
	CloseTime    time.Time
	HoursToClose *float64

	// BestPrice is in cents. Prices holds every candidate the price stage
	// checks; the stage passes if any of them matches.
	BestPrice float64
	Prices    []float64

	Spread            float64
	LiquidityOrVolume float64

	Quotes  Quotes
	Details Details
	Raw     json.RawMessage
}

// HasCloseTime reports whether the market carries a known close time.
func (m *Market) HasCloseTime() bool {
	return m.HoursToClose != nil
}

// SetCloseTime records close and the signed hours between now and close.
func (m *Market) SetCloseTime(close, now time.Time) {
	h := HoursUntil(close, now)
	m.CloseTime = close
	m.HoursToClose = &h
}

// HoursUntil returns the signed number of hours from now to t.
func HoursUntil(t, now time.Time) float64 {
	return t.Sub(now).Hours()
}

// SideSpread is the relative bid/ask gap of one outcome in percent of the ask.
// A missing or non-positive quote on either side yields UnknownSpread.
func SideSpread(bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 {
		return UnknownSpread
	}
	return (ask - bid) / ask * 100
}

// QuoteSpread is the tighter of the yes and no side spreads.
func QuoteSpread(q Quotes) float64 {
	return math.Min(SideSpread(q.YesBid, q.YesAsk), SideSpread(q.NoBid, q.NoAsk))
}

// IDOr returns id, or UnknownID when it is empty.
func IDOr(id string) string {
	if id == "" {
		return UnknownID
	}
	return id
}

// TitleOr returns title, or UnknownTitle when it is empty.
func TitleOr(title string) string {
	if title == "" {
		return UnknownTitle
	}
	return title
}
