// Package funnel narrows a market list through the ordered filter stages,
// recording how many markets survive each one.
package funnel

import (
	"slices"

	"github.com/daszybak/market_scanner/internal/filter"
	"github.com/daszybak/market_scanner/internal/market"
)

// Stage is the survivor count after one filter step.
type Stage struct {
	Name  filter.Axis
	Count int
}

type Result struct {
	Initial int
	// Stages holds one entry per stage that ran, in order.
	Stages []Stage
	// Empty is set when a stage left nothing; later stages did not run.
	Empty   bool
	Markets []market.Market
}

// Last returns the final stage that ran.
func (r *Result) Last() (Stage, bool) {
	if len(r.Stages) == 0 {
		return Stage{}, false
	}
	return r.Stages[len(r.Stages)-1], true
}

type options struct {
	refine   bool
	observer func(Stage)
}

type Option func(*options)

// WithLiquidityRefinement enables the liquidity stage for venues that support it.
// It only runs when the criteria carry a liquidity range.
func WithLiquidityRefinement() Option {
	return func(o *options) {
		o.refine = true
	}
}

// WithObserver calls fn after each stage completes.
func WithObserver(fn func(Stage)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

type stage struct {
	name filter.Axis
	keep func(*market.Market) bool
}

func stages(c filter.Criteria, o options) []stage {
	s := []stage{
		{filter.AxisTime, func(m *market.Market) bool {
			return m.HoursToClose != nil && c.Time.Matches(*m.HoursToClose)
		}},
		{filter.AxisLiquidityOrVolume, func(m *market.Market) bool {
			return c.LiquidityOrVolume.Matches(m.LiquidityOrVolume)
		}},
		{filter.AxisPrice, func(m *market.Market) bool {
			if len(m.Prices) == 0 {
				return c.Price.Matches(m.BestPrice)
			}
			return slices.ContainsFunc(m.Prices, c.Price.Matches)
		}},
		{filter.AxisSpread, func(m *market.Market) bool {
			return c.Spread.Matches(m.Spread)
		}},
	}
	if o.refine && c.Liquidity != nil {
		liq := *c.Liquidity
		s = append(s, stage{filter.AxisLiquidity, func(m *market.Market) bool {
			return liq.Matches(m.LiquidityOrVolume)
		}})
	}
	return s
}

// Run applies the stages in order and stops at the first one that leaves no
// markets. Survivors are sorted by hours to close, soonest first, keeping
// input order among ties. markets is not modified.
func Run(markets []market.Market, c filter.Criteria, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := Result{Initial: len(markets)}
	current := markets

	for _, st := range stages(c, o) {
		next := make([]market.Market, 0, len(current))
		for i := range current {
			if st.keep(&current[i]) {
				next = append(next, current[i])
			}
		}
		current = next

		s := Stage{Name: st.name, Count: len(current)}
		res.Stages = append(res.Stages, s)
		if o.observer != nil {
			o.observer(s)
		}
		if len(current) == 0 {
			res.Empty = true
			return res
		}
	}

	// Every survivor passed the time stage, so HoursToClose is set.
	slices.SortStableFunc(current, func(a, b market.Market) int {
		switch {
		case *a.HoursToClose < *b.HoursToClose:
			return -1
		case *a.HoursToClose > *b.HoursToClose:
			return 1
		}
		return 0
	})
	res.Markets = current
	return res
}
