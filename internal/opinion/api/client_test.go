package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func events(page, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(`{"topicId":%d,"title":"event %d","cutoffTime":1900000000,
			"childList":[{"topicId":%d1,"title":"a"},{"topicId":%d2,"title":"b"}]}`, page*100+i, i, page*100+i, page*100+i)
	}
	return out
}

func TestFetchAllPaginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if r.URL.Path != "/topic" || q.Get("chainId") != "56" || q.Get("status") != "2" || q.Get("limit") != "3" {
			t.Errorf("request = %s", r.URL)
		}
		page, _ := strconv.Atoi(q.Get("page"))
		switch page {
		case 1:
			fmt.Fprintf(w, `{"result":{"list":[%s]}}`, strings.Join(events(page, 3), ","))
		case 2:
			// Top-level list, short page ends the walk.
			fmt.Fprintf(w, `{"list":[%s]}`, strings.Join(events(page, 1), ","))
		default:
			t.Errorf("unexpected page %d", page)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, PageLimit: 3}, discardLogger())
	batch := c.FetchAll(context.Background())

	if batch.Truncated {
		t.Error("batch marked truncated")
	}
	if batch.Len() != 8 {
		t.Errorf("records = %d, want 8 children", batch.Len())
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchAllStopsOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, `{"result":{"list":[%s]}}`, strings.Join(events(1, 2), ","))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"list":[]}}`))
	}))
	defer srv.Close()

	batch := New(Config{BaseURL: srv.URL, PageLimit: 2}, discardLogger()).FetchAll(context.Background())
	if batch.Len() != 4 || batch.Truncated {
		t.Errorf("records = %d truncated = %v", batch.Len(), batch.Truncated)
	}
}

func TestFetchAllWaitsBetweenPages(t *testing.T) {
	var (
		mu   sync.Mutex
		last time.Time
		gaps []time.Duration
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if !last.IsZero() {
			gaps = append(gaps, time.Since(last))
		}
		last = time.Now()
		if r.URL.Query().Get("page") == "3" {
			_, _ = w.Write([]byte(`{"list":[]}`))
			return
		}
		fmt.Fprintf(w, `{"list":[%s]}`, events(1, 1)[0])
	}))
	defer srv.Close()

	delay := 20 * time.Millisecond
	New(Config{BaseURL: srv.URL, PageLimit: 1, PageDelay: delay}, discardLogger()).FetchAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(gaps) != 2 {
		t.Fatalf("gaps = %v, want 2", gaps)
	}
	for _, g := range gaps {
		if g < delay {
			t.Errorf("gap %v shorter than delay %v", g, delay)
		}
	}
}

func TestFetchAllCancelledDuringDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"list":[%s]}`, events(1, 1)[0])
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	batch := New(Config{BaseURL: srv.URL, PageLimit: 1, PageDelay: time.Hour}, discardLogger()).FetchAll(ctx)
	if !batch.Truncated || batch.Len() != 2 {
		t.Errorf("records = %d truncated = %v", batch.Len(), batch.Truncated)
	}
}

func TestFetchAllKeepsPartialResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"list":[%s]}`, events(1, 1)[0])
	}))
	defer srv.Close()

	batch := New(Config{BaseURL: srv.URL, PageLimit: 1}, discardLogger()).FetchAll(context.Background())
	if !batch.Truncated || batch.Len() != 2 {
		t.Errorf("records = %d truncated = %v", batch.Len(), batch.Truncated)
	}
}

func TestFlatten(t *testing.T) {
	t.Run("children carry parent", func(t *testing.T) {
		recs, err := Flatten(json.RawMessage(`{"topicId":7,"title":"Election","cutoffTime":1900000000,
			"labelName":["Politics"],"volume":"10","childList":[{"topicId":71,"title":"Alice"}]}`))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("records = %d, want 1", len(recs))
		}

		var got Market
		if err := json.Unmarshal(recs[0], &got); err != nil {
			t.Fatal(err)
		}
		if got.TopicID != "71" || got.Parent.TopicID != "7" || got.Parent.Title != "Election" {
			t.Errorf("got %+v", got)
		}
		if got.Parent.CutoffTime != 1900000000 || len(got.Parent.LabelName) != 1 {
			t.Errorf("parent = %+v", got.Parent)
		}
		if strings.Contains(string(recs[0]), "childList") {
			t.Error("child record still carries childList")
		}
	})

	t.Run("event without children is one record", func(t *testing.T) {
		recs, err := Flatten(json.RawMessage(`{"topicId":9,"title":"Solo","childList":null}`))
		if err != nil || len(recs) != 1 {
			t.Fatalf("records = %d, err = %v", len(recs), err)
		}
		var got Market
		_ = json.Unmarshal(recs[0], &got)
		if got.TopicID != "9" || got.Parent.Title != "Solo" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("empty childList yields nothing", func(t *testing.T) {
		recs, err := Flatten(json.RawMessage(`{"topicId":9,"childList":[]}`))
		if err != nil || len(recs) != 0 {
			t.Errorf("records = %d, err = %v", len(recs), err)
		}
	})

	t.Run("not an object", func(t *testing.T) {
		if _, err := Flatten(json.RawMessage(`"nope"`)); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNormalize(t *testing.T) {
	now := time.Unix(1_750_000_000, 0).UTC()
	cutoff := now.Add(5 * time.Hour).Unix()
	c := New(Config{}, discardLogger())

	record := func(child string) json.RawMessage {
		return json.RawMessage(fmt.Sprintf(`{%s,"parentEvent":{"topicId":1,"title":"Fed decision",
			"cutoffTime":%d,"labelName":["Macro","Rates"],"rules":"r"}}`, child, cutoff))
	}

	tests := []struct {
		name       string
		record     json.RawMessage
		wantOK     bool
		wantTitle  string
		wantPrices []float64
		wantSpread float64
		wantVolume float64
	}{
		{
			name:       "negative spread is kept",
			record:     record(`"topicId":11,"title":"Cut","yesBuyPrice":"0.45","noBuyPrice":"0.50","volume":"6000"`),
			wantOK:     true,
			wantTitle:  "Fed decision: Cut",
			wantPrices: []float64{45, 50},
			wantSpread: -5,
			wantVolume: 6000,
		},
		{
			name:       "unparsable price is zero",
			record:     record(`"topicId":12,"title":"Hold","yesBuyPrice":"n/a","noBuyPrice":"0.6"`),
			wantOK:     true,
			wantTitle:  "Fed decision: Hold",
			wantPrices: []float64{0, 60},
			wantSpread: 100,
		},
		{
			name:       "numeric prices",
			record:     record(`"topicId":"13","yesBuyPrice":0.9,"noBuyPrice":0.12,"volume":12.5`),
			wantOK:     true,
			wantTitle:  "Fed decision",
			wantPrices: []float64{90, 12},
			wantSpread: 2,
			wantVolume: 12.5,
		},
		{
			name:   "no cutoff time",
			record: json.RawMessage(`{"topicId":14,"yesBuyPrice":"0.5","noBuyPrice":"0.5","parentEvent":{"cutoffTime":0}}`),
		},
		{
			name:   "price is an object",
			record: record(`"topicId":15,"yesBuyPrice":{"v":1}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := c.Normalize(nil, tt.record, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", m.Title, tt.wantTitle)
			}
			if len(m.Prices) != 2 || !near(m.Prices[0], tt.wantPrices[0]) || !near(m.Prices[1], tt.wantPrices[1]) {
				t.Errorf("prices = %v, want %v", m.Prices, tt.wantPrices)
			}
			if !near(m.BestPrice, tt.wantPrices[0]) {
				t.Errorf("best price = %v, want yes price", m.BestPrice)
			}
			if !near(m.Spread, tt.wantSpread) {
				t.Errorf("spread = %v, want %v", m.Spread, tt.wantSpread)
			}
			if m.LiquidityOrVolume != tt.wantVolume {
				t.Errorf("volume = %v, want %v", m.LiquidityOrVolume, tt.wantVolume)
			}
			if *m.HoursToClose != 5 {
				t.Errorf("hours = %v, want 5", *m.HoursToClose)
			}
			if m.Details.Category != "Macro, Rates" {
				t.Errorf("category = %q", m.Details.Category)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	m := fallback(json.RawMessage(`{"topicId":99,"title":"Broken","yesBuyPrice":[1]}`))
	if m.ID != "99" || m.Title != "Broken" || m.Spread != 100 || m.HasCloseTime() {
		t.Errorf("fallback = %+v", m)
	}

	m = fallback(json.RawMessage(`garbage`))
	if m.ID != "N/A" || m.Title != "Untitled" {
		t.Errorf("fallback = %+v", m)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
