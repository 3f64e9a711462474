package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/daszybak/market_scanner/internal/filter"
	"github.com/daszybak/market_scanner/internal/funnel"
	"github.com/daszybak/market_scanner/internal/market"
	"github.com/daszybak/market_scanner/internal/search"
	"github.com/daszybak/market_scanner/internal/store"
)

func TestFormatHours(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{-2, "closed"},
		{0, "closed"},
		{0.6, "1h"},
		{5, "5h"},
		{23.4, "23h"},
		{24, "1d 0h"},
		{53, "2d 5h"},
	}

	for _, tt := range tests {
		if got := formatHours(tt.hours); got != tt.want {
			t.Errorf("formatHours(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}

func reportResult(n int, now time.Time) *search.Result {
	markets := make([]market.Market, n)
	for i := range markets {
		markets[i] = market.Market{
			Venue:             "kalshi",
			ID:                fmt.Sprintf("M-%d", i),
			Title:             fmt.Sprintf("Market %d", i),
			BestPrice:         90,
			Spread:            0.5,
			LiquidityOrVolume: 6000,
		}
		markets[i].SetCloseTime(now.Add(time.Duration(i+5)*time.Hour), now)
	}
	return &search.Result{
		Result: funnel.Result{
			Initial: n,
			Stages:  []funnel.Stage{{Name: filter.AxisTime, Count: n}, {Name: filter.AxisSpread, Count: n}},
			Markets: markets,
		},
		RunID:   uuid.New(),
		Venue:   "kalshi",
		Fetched: n + 2,
	}
}

func TestWriteReport(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("lists markets", func(t *testing.T) {
		var buf bytes.Buffer
		writeReport(&buf, reportResult(2, now), now, 50)
		out := buf.String()

		for _, want := range []string{
			"Fetched 4 records, 2 markets",
			"time",
			"1. Market 0 [M-0]",
			"closes in 5h",
			"price 90.0¢",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "more") {
			t.Errorf("unexpected overflow line:\n%s", out)
		}
	})

	t.Run("limit", func(t *testing.T) {
		var buf bytes.Buffer
		writeReport(&buf, reportResult(5, now), now, 2)
		out := buf.String()
		if !strings.Contains(out, "... and 3 more") || strings.Contains(out, "3. Market") {
			t.Errorf("limit not applied:\n%s", out)
		}
	})

	t.Run("empty stage", func(t *testing.T) {
		res := reportResult(0, now)
		res.Stages = []funnel.Stage{{Name: filter.AxisTime, Count: 3}, {Name: filter.AxisLiquidityOrVolume, Count: 0}}
		res.Empty = true

		var buf bytes.Buffer
		writeReport(&buf, res, now, 50)
		if !strings.Contains(buf.String(), "No markets passed the liquidity_or_volume filter") {
			t.Errorf("got:\n%s", buf.String())
		}
	})

	t.Run("truncated", func(t *testing.T) {
		res := reportResult(1, now)
		res.Truncated = true

		var buf bytes.Buffer
		writeReport(&buf, res, now, 50)
		if !strings.Contains(buf.String(), "partial results") {
			t.Errorf("got:\n%s", buf.String())
		}
	})
}

func TestWriteError(t *testing.T) {
	_, parseErr := filter.ParseAxis(filter.AxisTime, "soon")
	_, aboveMax := filter.ParseAxis(filter.AxisPrice, "50-150")
	_, compileErr := filter.Compile(filter.Spec{Time: "1-6"})

	tests := []struct {
		name string
		err  error
		hint string
	}{
		{"incomplete", compileErr, "-liquidity-or-volume, -price, -spread"},
		{"above max", aboveMax, "in cents"},
		{"unrecognized", parseErr, "Accepted forms"},
		{"unknown venue", &search.Error{Venue: "x", Err: search.ErrUnknownVenue}, "Known venues: kalshi, opinion, polymarket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeError(&buf, tt.err)
			if !strings.Contains(buf.String(), tt.hint) {
				t.Errorf("got:\n%s\nwant hint %q", buf.String(), tt.hint)
			}
		})
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	writeHistory(&buf, nil)
	if !strings.Contains(buf.String(), "No recorded runs") {
		t.Errorf("got:\n%s", buf.String())
	}

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buf.Reset()
	writeHistory(&buf, []store.SearchRunRow{
		{Venue: "opinion", Fetched: 40, Initial: 30, Survivors: 2, Truncated: true, DurationMs: 1200,
			StartedAt: pgtype.Timestamptz{Time: started, Valid: true}},
		{Venue: "opinion", Fetched: 40, Initial: 30, Empty: true, DurationMs: 900,
			StartedAt: pgtype.Timestamptz{Time: started.Add(-time.Hour), Valid: true}},
	})
	out := buf.String()
	for _, want := range []string{
		"2024-06-01T12:00:00Z  opinion  fetched 40, normalized 30, 2 survivors, partial (1200ms)",
		"empty (900ms)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}
}
