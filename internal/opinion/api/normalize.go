package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/daszybak/market_scanner/internal/market"
	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/internal/price"
)

const uncategorized = "Uncategorized"

// ID accepts identifiers sent either as JSON strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

type ParentEvent struct {
	TopicID    ID           `json:"topicId"`
	Title      string       `json:"title"`
	Rules      string       `json:"rules"`
	CutoffTime price.Number `json:"cutoffTime"`
	LabelName  []string     `json:"labelName"`
	TotalPrice price.Number `json:"totalPrice"`
	Volume     price.Number `json:"volume"`
	Volume24h  price.Number `json:"volume24h"`
}

// Market is a flattened child market. Prices are fractions of a dollar.
type Market struct {
	TopicID     ID           `json:"topicId"`
	QuestionID  string       `json:"questionId"`
	Title       string       `json:"title"`
	YesBuyPrice price.Number `json:"yesBuyPrice"`
	NoBuyPrice  price.Number `json:"noBuyPrice"`
	Volume      price.Number `json:"volume"`
	Volume24h   price.Number `json:"volume24h"`
	IncRate     price.Number `json:"incRate"`
	CreateTime  price.Number `json:"createTime"`
	YesLabel    string       `json:"yesLabel"`
	NoLabel     string       `json:"noLabel"`
	Parent      ParentEvent  `json:"parentEvent"`
}

// Normalize drops every market without a cutoff time, including the
// fallback records built for children that did not decode.
func (c *Client) Normalize(_ *platform.Batch, record json.RawMessage, now time.Time) (market.Market, bool) {
	var om Market
	if err := json.Unmarshal(record, &om); err != nil {
		c.log.Warn("couldn't extract market data", "error", err)
		m := fallback(record)
		return m, m.HasCloseTime()
	}

	m := toMarket(om, record, now)
	if !m.HasCloseTime() {
		c.log.Debug("dropping market without cutoff time", "id", m.ID)
		return m, false
	}
	return m, true
}

func toMarket(om Market, record json.RawMessage, now time.Time) market.Market {
	yes := om.YesBuyPrice.Float() * 100
	no := om.NoBuyPrice.Float() * 100

	m := market.Market{
		Venue:             platformName,
		ID:                market.IDOr(string(om.TopicID)),
		Title:             market.TitleOr(joinTitle(om.Parent.Title, om.Title)),
		BestPrice:         yes,
		Prices:            []float64{yes, no},
		Spread:            pairSpread(yes, no),
		LiquidityOrVolume: max(om.Volume.Float(), 0),
		Quotes:            market.Quotes{YesAsk: yes, NoAsk: no},
		Details: market.Details{
			Category:    category(om.Parent.LabelName),
			Slug:        om.QuestionID,
			Volume24h:   om.Volume24h.Float(),
			PriceChange: om.IncRate.Float() * 100,
			YesLabel:    labelOr(om.YesLabel, "YES"),
			NoLabel:     labelOr(om.NoLabel, "NO"),
			Rules:       om.Parent.Rules,
		},
		Raw: record,
	}
	if ts := om.CreateTime.Float(); ts > 0 {
		m.Details.CreatedAt = unixTime(ts)
	}
	if cutoff := om.Parent.CutoffTime.Float(); cutoff > 0 {
		m.SetCloseTime(time.Unix(int64(cutoff), 0).UTC(), now)
	}
	return m
}

// pairSpread is how far the yes and no buy prices sum past a dollar. It
// goes negative when the pair sums below 100 and is left that way.
func pairSpread(yes, no float64) float64 {
	if yes <= 0 || no <= 0 {
		return market.UnknownSpread
	}
	return no + yes - 100
}

// fallback salvages what identity it can from a record that did not decode.
func fallback(record json.RawMessage) market.Market {
	var ident struct {
		TopicID json.RawMessage `json:"topicId"`
		Title   json.RawMessage `json:"title"`
	}
	_ = json.Unmarshal(record, &ident)

	var id ID
	_ = id.UnmarshalJSON(ident.TopicID)
	var title string
	_ = json.Unmarshal(ident.Title, &title)

	return market.Market{
		Venue:   platformName,
		ID:      market.IDOr(string(id)),
		Title:   market.TitleOr(title),
		Prices:  []float64{0, 0},
		Spread:  market.UnknownSpread,
		Details: market.Details{Category: "Error"},
		Raw:     record,
	}
}

func joinTitle(parent, child string) string {
	switch {
	case parent != "" && child != "":
		return parent + ": " + child
	case child != "":
		return child
	default:
		return parent
	}
}

func category(labels []string) string {
	if c := strings.Join(labels, ", "); c != "" {
		return c
	}
	return uncategorized
}

func labelOr(label, def string) string {
	if label == "" {
		return def
	}
	return label
}

// unixTime accepts seconds or milliseconds.
func unixTime(ts float64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(int64(ts)).UTC()
	}
	return time.Unix(int64(ts), 0).UTC()
}

func (id ID) String() string {
	return string(id)
}

