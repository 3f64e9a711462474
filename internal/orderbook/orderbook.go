// Package orderbook keeps the sorted bid and ask levels of one instrument.
package orderbook

import (
	"fmt"

	"github.com/google/btree"

	"github.com/daszybak/market_scanner/internal/price"
)

type Side string

const (
	Bids Side = "bids"
	Asks Side = "asks"
)

// Level is one price level of a book.
type Level struct {
	Price price.Price `json:"price"`
	Size  price.Size  `json:"size"`
}

// lessAsc orders asks lowest first.
func lessAsc(a, b Level) bool {
	return a.Price < b.Price
}

// lessDesc orders bids highest first.
func lessDesc(a, b Level) bool {
	return a.Price > b.Price
}

// Orderbook holds bids descending and asks ascending, so the best level of
// either side is the first one.
type Orderbook struct {
	bids *btree.BTreeG[Level]
	asks *btree.BTreeG[Level]
}

func New() *Orderbook {
	return &Orderbook{
		bids: btree.NewG(32, lessDesc),
		asks: btree.NewG(32, lessAsc),
	}
}

// FromSnapshot builds a book from full bid and ask lists in any order.
// Empty levels are skipped.
func FromSnapshot(bids, asks []Level) *Orderbook {
	ob := New()
	for _, l := range bids {
		_ = ob.Set(Bids, l.Price, l.Size)
	}
	for _, l := range asks {
		_ = ob.Set(Asks, l.Price, l.Size)
	}
	return ob
}

// Set stores an absolute size at a price level; size <= 0 removes the level.
func (ob *Orderbook) Set(side Side, p price.Price, size price.Size) error {
	tree, err := ob.tree(side)
	if err != nil {
		return err
	}

	if size <= 0 {
		tree.Delete(Level{Price: p})
		return nil
	}

	tree.ReplaceOrInsert(Level{Price: p, Size: size})
	return nil
}

// Best returns the top level of side, if any.
func (ob *Orderbook) Best(side Side) (Level, bool) {
	tree, err := ob.tree(side)
	if err != nil {
		return Level{}, false
	}
	return tree.Min()
}

// Len returns the number of levels on side.
func (ob *Orderbook) Len(side Side) int {
	tree, err := ob.tree(side)
	if err != nil {
		return 0
	}
	return tree.Len()
}

// Top is the best bid and ask of a book. A zero price means the side is empty.
type Top struct {
	Bid price.Price
	Ask price.Price
}

func (ob *Orderbook) Top() Top {
	var t Top
	if l, ok := ob.Best(Bids); ok {
		t.Bid = l.Price
	}
	if l, ok := ob.Best(Asks); ok {
		t.Ask = l.Price
	}
	return t
}

func (ob *Orderbook) tree(side Side) (*btree.BTreeG[Level], error) {
	switch side {
	case Bids:
		return ob.bids, nil
	case Asks:
		return ob.asks, nil
	default:
		return nil, fmt.Errorf("invalid side: %s", side)
	}
}
