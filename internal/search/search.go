package search

import (
	"context"
	"fmt"
	"time"

	"booktracker/internal/metrics"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

const (
	breakerMaxFailures = 5
	breakerTimeout     = 10 * time.Minute
)

type SearchFunc func(ctx context.Context, query string) ([]model.SearchResult, error)

// Connector is one listing source. Connectors are queried in registration order.
type Connector struct {
	Name   string
	Search SearchFunc
}

type Aggregator struct {
	sources []source
	logger  logger
}

type source struct {
	name    string
	search  SearchFunc
	breaker *gobreaker.CircuitBreaker[[]model.SearchResult]
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

func NewAggregator(l logger, connectors ...Connector) *Aggregator {
	a := &Aggregator{logger: l}
	for _, c := range connectors {
		metrics.CircuitBreakerState.WithLabelValues(c.Name).Set(0)
		a.sources = append(a.sources, source{
			name:   c.Name,
			search: c.Search,
			breaker: gobreaker.NewCircuitBreaker[[]model.SearchResult](gobreaker.Settings{
				Name:        c.Name,
				MaxRequests: 1,
				Timeout:     breakerTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= breakerMaxFailures
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					l.Warnf("NewAggregator: source %s circuit breaker %s -> %s", name, from, to)
					metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
				},
			}),
		})
	}
	return a
}

// SearchBook searches every source for the book's title and author.
func (a *Aggregator) SearchBook(ctx context.Context, title string, author *string) []model.SearchResult {
	return a.Search(ctx, model.Book{Title: title, Author: author}.Query())
}

// Search queries every source concurrently. A failing or panicking source contributes nothing.
// Results keep source registration order and are deduplicated by link, first occurrence wins.
func (a *Aggregator) Search(ctx context.Context, query string) []model.SearchResult {
	perSource := make([][]model.SearchResult, len(a.sources))
	g := errgroup.Group{}
	for i, s := range a.sources {
		i, s := i, s
		g.Go(func() error {
			perSource[i] = a.searchSource(ctx, s, query)
			return nil
		})
	}
	_ = g.Wait()

	return Dedupe(perSource...)
}

func (a *Aggregator) searchSource(ctx context.Context, s source, query string) (rs []model.SearchResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Errorf("searchSource: source %s panicked, query: %s, panic: %v", s.name, query, r)
			metrics.RecordSourceSearch(s.name, time.Since(start), 0, fmt.Errorf("panic: %v", r))
			rs = nil
		}
	}()

	rs, err := s.breaker.Execute(func() ([]model.SearchResult, error) {
		return s.search(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			a.logger.Debugf("searchSource: source %s skipped, err: %v", s.name, err)
			metrics.RecordSourceRejected(s.name)
			return nil
		}
		a.logger.Warnf("searchSource: source %s failed, query: %s, err: %v", s.name, query, err)
		metrics.RecordSourceSearch(s.name, time.Since(start), 0, err)
		return nil
	}
	metrics.RecordSourceSearch(s.name, time.Since(start), len(rs), nil)
	a.logger.Debugf("searchSource: source %s returned %d results, query: %s", s.name, len(rs), query)
	return rs
}

// Dedupe concatenates lists and drops every result whose link was already seen.
func Dedupe(lists ...[]model.SearchResult) []model.SearchResult {
	seen := make(map[string]struct{})
	out := []model.SearchResult{}
	for _, l := range lists {
		for _, r := range l {
			if _, ok := seen[r.Link]; ok {
				continue
			}
			seen[r.Link] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
