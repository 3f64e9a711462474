// Package search runs one scan of a venue: fetch, normalize, funnel.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/daszybak/market_scanner/internal/filter"
	"github.com/daszybak/market_scanner/internal/funnel"
	"github.com/daszybak/market_scanner/internal/metrics"
	"github.com/daszybak/market_scanner/internal/platform"
	"github.com/daszybak/market_scanner/internal/store"
)

// Metrics receives fetch, stage and search observations.
type Metrics interface {
	ObserveFetch(venue string, records int, truncated bool, d time.Duration)
	ObserveStage(venue, stage string, count int)
	ObserveSearch(venue, outcome string, d time.Duration)
}

// History stores a summary of each completed run.
type History interface {
	RecordSearchRun(ctx context.Context, run store.SearchRun) error
}

var (
	_ Metrics = (*metrics.Manager)(nil)
	_ History = (*store.Store)(nil)
)

type Result struct {
	funnel.Result

	RunID uuid.UUID
	Venue string
	// Fetched counts raw records, before normalization dropped any.
	Fetched   int
	Truncated bool
	StartedAt time.Time
	Duration  time.Duration
}

type Service struct {
	sources map[string]platform.Source
	filters filter.Store
	metrics Metrics
	history History
	log     *slog.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

type Option func(*Service)

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithHistory(h History) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithClock replaces time.Now, which hours to close are measured from.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(sources []platform.Source, filters filter.Store, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		sources: make(map[string]platform.Source, len(sources)),
		filters: filters,
		log:     log.With("component", "search"),
		now:     time.Now,
		newID:   uuid.New,
	}
	for _, src := range sources {
		s.sources[src.Name()] = src
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Venues lists the configured venue names, sorted.
func (s *Service) Venues() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RunForUser runs a search with the filters stored for user.
func (s *Service) RunForUser(ctx context.Context, user filter.UserID, venue string) (*Result, error) {
	spec, _ := s.filters.Get(ctx, user)
	if missing := spec.Missing(); len(missing) > 0 {
		return nil, &Error{RunID: s.newID(), Venue: venue, Err: &filter.IncompleteError{Missing: missing}}
	}
	return s.Run(ctx, venue, spec)
}

// Run fetches every listing of venue and narrows it with spec. Partial
// fetches are used as they are and flagged in Result.Truncated. Every
// error, including a recovered panic, is an *Error.
func (s *Service) Run(ctx context.Context, venue string, spec filter.Spec) (res *Result, err error) {
	id := s.newID()
	started := s.now()
	log := s.log.With("run_id", id, "venue", venue)

	defer func() {
		if r := recover(); r != nil {
			log.Error("search panicked", "panic", r)
			res, err = nil, &PanicError{Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			var se *Error
			if !errors.As(err, &se) {
				err = &Error{RunID: id, Venue: venue, Err: err}
			}
			s.observeSearch(venue, metrics.OutcomeError, s.now().Sub(started))
		}
	}()

	criteria, err := filter.Compile(spec)
	if err != nil {
		return nil, err
	}

	src, ok := s.sources[venue]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownVenue, venue)
	}

	log.Info("search started")
	batch := src.FetchAll(ctx)
	fetched := s.now()
	if s.metrics != nil {
		s.metrics.ObserveFetch(venue, batch.Len(), batch.Truncated, fetched.Sub(started))
	}

	markets := platform.NormalizeAll(src, batch, fetched)
	log.Info("markets normalized", "fetched", batch.Len(), "normalized", len(markets), "truncated", batch.Truncated)

	opts := []funnel.Option{funnel.WithObserver(func(st funnel.Stage) {
		log.Info("stage complete", "stage", st.Name, "count", st.Count)
		if s.metrics != nil {
			s.metrics.ObserveStage(venue, string(st.Name), st.Count)
		}
	})}
	if src.LiquidityRefinement() {
		opts = append(opts, funnel.WithLiquidityRefinement())
	}

	res = &Result{
		Result:    funnel.Run(markets, criteria, opts...),
		RunID:     id,
		Venue:     venue,
		Fetched:   batch.Len(),
		Truncated: batch.Truncated,
		StartedAt: started,
	}
	res.Duration = s.now().Sub(started)

	outcome := metrics.OutcomeMatched
	if res.Empty {
		outcome = metrics.OutcomeEmpty
	}
	s.observeSearch(venue, outcome, res.Duration)
	log.Info("search finished", "matched", len(res.Markets), "empty", res.Empty, "duration", res.Duration)

	s.record(ctx, log, res)
	return res, nil
}

func (s *Service) observeSearch(venue, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSearch(venue, outcome, d)
	}
}

// record stores the run summary. A history failure does not fail the search.
func (s *Service) record(ctx context.Context, log *slog.Logger, res *Result) {
	if s.history == nil {
		return
	}

	run := store.SearchRun{
		ID:        res.RunID,
		Venue:     res.Venue,
		Fetched:   res.Fetched,
		Initial:   res.Initial,
		Survivors: len(res.Markets),
		Truncated: res.Truncated,
		Empty:     res.Empty,
		Duration:  res.Duration,
		StartedAt: res.StartedAt,
	}
	for _, st := range res.Stages {
		run.Stages = append(run.Stages, store.StageCount{Name: string(st.Name), Count: st.Count})
	}

	if err := s.history.RecordSearchRun(ctx, run); err != nil {
		log.Warn("couldn't record search run", "error", err)
	}
}
