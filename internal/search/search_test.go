package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"booktracker/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func result(source, link string) model.SearchResult {
	return model.SearchResult{Title: link, Price: "$1", Source: source, Link: link}
}

func fixed(rs ...model.SearchResult) SearchFunc {
	return func(context.Context, string) ([]model.SearchResult, error) { return rs, nil }
}

func TestDedupeFirstOccurrenceWins(t *testing.T) {
	got := Dedupe(
		[]model.SearchResult{result("a", "l1"), result("a", "l2"), result("a", "l1")},
		[]model.SearchResult{result("b", "l2"), result("b", "l3")},
	)
	require.Len(t, got, 3)
	assert.Equal(t, result("a", "l1"), got[0])
	assert.Equal(t, result("a", "l2"), got[1])
	assert.Equal(t, result("b", "l3"), got[2])
}

func TestSearchOrderAndDedupe(t *testing.T) {
	a := NewAggregator(nopLogger{},
		Connector{Name: "order-first", Search: fixed(result("first", "x"), result("first", "y"))},
		Connector{Name: "order-second", Search: fixed(result("second", "y"), result("second", "z"))},
	)
	got := a.Search(context.Background(), "Dune")
	assert.Equal(t, []model.SearchResult{result("first", "x"), result("first", "y"), result("second", "z")}, got)
}

func TestSearchFaultIsolation(t *testing.T) {
	a := NewAggregator(nopLogger{},
		Connector{Name: "iso-panics", Search: func(context.Context, string) ([]model.SearchResult, error) {
			panic("selector exploded")
		}},
		Connector{Name: "iso-fails", Search: func(context.Context, string) ([]model.SearchResult, error) {
			return nil, errors.New("503")
		}},
		Connector{Name: "iso-works", Search: fixed(result("works", "ok"))},
	)
	got := a.Search(context.Background(), "Dune")
	assert.Equal(t, []model.SearchResult{result("works", "ok")}, got)
}

func TestSearchAllFailReturnsEmpty(t *testing.T) {
	a := NewAggregator(nopLogger{},
		Connector{Name: "empty-fails", Search: func(context.Context, string) ([]model.SearchResult, error) {
			return nil, errors.New("down")
		}},
	)
	got := a.Search(context.Background(), "Dune")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchBookJoinsAuthor(t *testing.T) {
	var got string
	a := NewAggregator(nopLogger{}, Connector{Name: "join", Search: func(_ context.Context, q string) ([]model.SearchResult, error) {
		got = q
		return nil, nil
	}})

	author := " Frank Herbert "
	a.SearchBook(context.Background(), "Dune", &author)
	assert.Equal(t, "Dune Frank Herbert", got)

	a.SearchBook(context.Background(), "Dune", nil)
	assert.Equal(t, "Dune", got)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	a := NewAggregator(nopLogger{}, Connector{Name: "breaker", Search: func(context.Context, string) ([]model.SearchResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("blocked")
	}})

	for i := 0; i < breakerMaxFailures+3; i++ {
		assert.Empty(t, a.Search(context.Background(), "Dune"))
	}
	assert.EqualValues(t, breakerMaxFailures, atomic.LoadInt32(&calls))
}
