// Package platform defines what a prediction market venue has to provide
// to be scanned.
package platform

import (
	"context"
	"encoding/json"
	"time"

	"github.com/daszybak/market_scanner/internal/market"
	"github.com/daszybak/market_scanner/internal/orderbook"
)

// Batch is everything one FetchAll call gathered.
type Batch struct {
	// Records are raw venue listings, one per market.
	Records []json.RawMessage
	// Books maps instrument id to top of book, for venues that quote separately.
	Books map[string]orderbook.Top
	// Truncated is set when fetching stopped early on an error. Records
	// then hold everything gathered before the failure.
	Truncated bool
}

// Len returns the number of raw records.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// Source is one venue adapter. Implementations log their own failures and
// never return an error from FetchAll.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) *Batch
	// Normalize turns one record into a market. ok is false when the record
	// has to be dropped.
	Normalize(batch *Batch, record json.RawMessage, now time.Time) (m market.Market, ok bool)
	// LiquidityRefinement reports whether the venue supports the optional
	// liquidity stage.
	LiquidityRefinement() bool
}

// NormalizeAll runs src.Normalize over every record of batch.
func NormalizeAll(src Source, batch *Batch, now time.Time) []market.Market {
	markets := make([]market.Market, 0, batch.Len())
	for _, rec := range batch.Records {
		if m, ok := src.Normalize(batch, rec, now); ok {
			markets = append(markets, m)
		}
	}
	return markets
}
