package orderbook

import (
	"testing"

	"github.com/daszybak/market_scanner/internal/price"
)

func p(cents int64) price.Price {
	return price.Price(cents * price.PriceScale / 100)
}

func TestFromSnapshotTop(t *testing.T) {
	// Venues list bids ascending and asks descending; order must not matter.
	bids := []Level{{p(10), 5}, {p(40), 1}, {p(25), 3}}
	asks := []Level{{p(90), 2}, {p(45), 7}, {p(60), 0}}

	ob := FromSnapshot(bids, asks)

	top := ob.Top()
	if top.Bid != p(40) {
		t.Errorf("best bid = %d, want %d", top.Bid, p(40))
	}
	if top.Ask != p(45) {
		t.Errorf("best ask = %d, want %d", top.Ask, p(45))
	}
	if got := ob.Len(Asks); got != 2 {
		t.Errorf("ask levels = %d, want 2 (empty level skipped)", got)
	}
}

func TestEmptySide(t *testing.T) {
	ob := FromSnapshot(nil, []Level{{p(55), 1}})

	if _, ok := ob.Best(Bids); ok {
		t.Error("Best(Bids) on empty side reported a level")
	}
	if top := ob.Top(); top.Bid != 0 || top.Ask != p(55) {
		t.Errorf("Top() = %+v", top)
	}
}

func TestSet(t *testing.T) {
	ob := New()

	if err := ob.Set(Side("mid"), p(1), 1); err == nil {
		t.Error("Set accepted an unknown side")
	}

	_ = ob.Set(Bids, p(30), 4)
	_ = ob.Set(Bids, p(30), 9)
	if l, _ := ob.Best(Bids); l.Size != 9 {
		t.Errorf("size = %d, want replaced size 9", l.Size)
	}

	_ = ob.Set(Bids, p(30), 0)
	if ob.Len(Bids) != 0 {
		t.Error("zero size did not remove the level")
	}
}
