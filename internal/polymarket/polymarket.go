// Package polymarket adapts Polymarket's gamma listings and CLOB order books
// to the platform.Source interface.
package polymarket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/daszybak/market_scanner/internal/orderbook"
	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/internal/polymarket/clob"
	"github.com/daszybak/market_scanner/internal/polymarket/gamma"
	"github.com/daszybak/market_scanner/pkg/hashset"
	"github.com/daszybak/market_scanner/pkg/httpclient"
)

const (
	platformName = "polymarket"

	DefaultPageLimit       = 100
	DefaultBookConcurrency = 4
)

type Config struct {
	GammaURL  string
	ClobURL   string
	PageLimit int
	// BookConcurrency bounds the number of /books requests in flight.
	BookConcurrency int
}

type Polymarket struct {
	config Config
	log    *slog.Logger

	clob  *clob.Client
	gamma *gamma.Client
}

var _ platform.Source = (*Polymarket)(nil)

func New(cfg Config, log *slog.Logger, opts ...httpclient.Option) *Polymarket {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.BookConcurrency <= 0 {
		cfg.BookConcurrency = DefaultBookConcurrency
	}
	log = log.With("component", platformName)
	opts = append([]httpclient.Option{httpclient.WithLogger(log)}, opts...)

	return &Polymarket{
		config: cfg,
		log:    log,
		clob:   clob.New(cfg.ClobURL, opts...),
		gamma:  gamma.New(cfg.GammaURL, opts...),
	}
}

func (p *Polymarket) Name() string {
	return platformName
}

func (p *Polymarket) LiquidityRefinement() bool {
	return true
}

// FetchAll pages through gamma listings, then loads the order books of every
// listed token.
func (p *Polymarket) FetchAll(ctx context.Context) *platform.Batch {
	batch := &platform.Batch{}

	for offset := 0; ; {
		page, err := p.gamma.GetMarkets(ctx, p.config.PageLimit, offset)
		if err != nil {
			p.log.Error("fetching markets", "error", err, "offset", offset, "fetched", len(batch.Records))
			batch.Truncated = true
			break
		}
		if len(page) == 0 {
			break
		}
		batch.Records = append(batch.Records, page...)
		offset += len(page)
		p.log.Debug("received a market page", "offset", offset, "count", len(page))

		if len(page) < p.config.PageLimit {
			break
		}
	}

	tokenIDs := p.tokenIDs(batch.Records)
	books, ok := p.fetchBooks(ctx, tokenIDs)
	batch.Books = books
	if !ok {
		batch.Truncated = true
	}

	p.log.Info("fetched markets", "count", len(batch.Records), "tokens", len(tokenIDs),
		"books", len(books), "truncated", batch.Truncated)
	return batch
}

// tokenIDs returns the distinct CLOB token ids of records in first-seen order.
func (p *Polymarket) tokenIDs(records []json.RawMessage) []string {
	seen := hashset.NewSet[string]()
	var ids []string

	for _, rec := range records {
		var m struct {
			ClobTokenIDs gamma.StringList `json:"clobTokenIds"`
		}
		if err := json.Unmarshal(rec, &m); err != nil {
			continue
		}
		for _, id := range m.ClobTokenIDs {
			if id != "" {
				ids = seen.AppendNew(ids, id)
			}
		}
	}
	return ids
}

// fetchBooks requests books in chunks, a few chunks at a time. A failed chunk
// is skipped; ok is false if any chunk failed.
func (p *Polymarket) fetchBooks(ctx context.Context, tokenIDs []string) (books map[string]orderbook.Top, ok bool) {
	books = make(map[string]orderbook.Top, len(tokenIDs))
	ok = true

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.config.BookConcurrency)

	for start := 0; start < len(tokenIDs); start += clob.MaxBooksPerRequest {
		chunk := tokenIDs[start:min(start+clob.MaxBooksPerRequest, len(tokenIDs))]

		g.Go(func() error {
			res, err := p.clob.GetBooks(ctx, chunk)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Warn("skipping book chunk", "error", err, "first_token", chunk[0], "size", len(chunk))
				ok = false
				return nil
			}
			for _, b := range res {
				if b.AssetID == "" {
					continue
				}
				books[b.AssetID] = orderbook.FromSnapshot(b.Bids, b.Asks).Top()
			}
			return nil
		})
	}
	_ = g.Wait()

	return books, ok
}
