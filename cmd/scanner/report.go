package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/daszybak/market_scanner/internal/filter"
	"github.com/daszybak/market_scanner/internal/market"
	"github.com/daszybak/market_scanner/internal/search"
	"github.com/daszybak/market_scanner/internal/store"
)

func writeReport(w io.Writer, res *search.Result, now time.Time, limit int) {
	fmt.Fprintf(w, "Search %s on %s (%s)\n", res.RunID, res.Venue, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Fetched %d records, %d markets after normalization\n", res.Fetched, res.Initial)
	if res.Truncated {
		fmt.Fprintln(w, "Warning: the venue returned partial results")
	}

	for _, st := range res.Stages {
		fmt.Fprintf(w, "  %-20s %d\n", st.Name, st.Count)
	}

	if res.Empty {
		if last, ok := res.Last(); ok {
			fmt.Fprintf(w, "No markets passed the %s filter\n", last.Name)
		} else {
			fmt.Fprintln(w, "No markets found")
		}
		return
	}
	if len(res.Markets) == 0 {
		fmt.Fprintln(w, "No markets found")
		return
	}

	fmt.Fprintf(w, "\n%d markets:\n", len(res.Markets))
	shown := res.Markets
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for i, m := range shown {
		writeMarket(w, i+1, m, now)
	}
	if rest := len(res.Markets) - len(shown); rest > 0 {
		fmt.Fprintf(w, "... and %d more\n", rest)
	}
}

func writeMarket(w io.Writer, n int, m market.Market, now time.Time) {
	closes := "no close time"
	if m.HasCloseTime() {
		closes = "closes in " + formatHours(market.HoursUntil(m.CloseTime, now))
	}

	fmt.Fprintf(w, "%d. %s [%s]\n", n, m.Title, m.ID)
	fmt.Fprintf(w, "   price %.1f¢  spread %.2f%%  liquidity/volume %.0f  %s\n",
		m.BestPrice, m.Spread, m.LiquidityOrVolume, closes)
}

func writeHistory(w io.Writer, runs []store.SearchRunRow) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs")
		return
	}
	for _, r := range runs {
		status := fmt.Sprintf("%d survivors", r.Survivors)
		if r.Empty {
			status = "empty"
		}
		if r.Truncated {
			status += ", partial"
		}
		fmt.Fprintf(w, "%s  %s  fetched %d, normalized %d, %s (%dms)\n",
			r.StartedAt.Time.Format(time.RFC3339), r.Venue, r.Fetched, r.Initial, status, r.DurationMs)
	}
}

// formatHours renders a duration in hours as "2d 5h", "5h" or "closed".
func formatHours(hours float64) string {
	if hours <= 0 {
		return "closed"
	}
	h := int(math.Round(hours))
	if h < 24 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd %dh", h/24, h%24)
}

// writeError prints err with a hint for the filter mistakes users make.
func writeError(w io.Writer, err error) {
	fmt.Fprintf(w, "Search failed: %v\n", err)

	var (
		incomplete *filter.IncompleteError
		parseErr   *filter.ParseError
	)
	switch {
	case errors.As(err, &incomplete):
		axes := make([]string, len(incomplete.Missing))
		for i, a := range incomplete.Missing {
			axes[i] = "-" + strings.ReplaceAll(string(a), "_", "-")
		}
		fmt.Fprintf(w, "Set the missing filters with %s or in the config file\n", strings.Join(axes, ", "))
	case errors.Is(err, filter.ErrPriceAboveMax):
		fmt.Fprintln(w, "Prices and spreads are in cents, e.g. 80-95")
	case errors.Is(err, filter.ErrInvertedRange):
		fmt.Fprintln(w, "Write ranges low to high, e.g. 1-6")
	case errors.As(err, &parseErr):
		fmt.Fprintln(w, "Accepted forms: 6-12, >10, 10000+, <5, 5000-, 85")
	case errors.Is(err, search.ErrUnknownVenue):
		fmt.Fprintf(w, "Known venues: %s\n", strings.Join(venues, ", "))
	}
}
