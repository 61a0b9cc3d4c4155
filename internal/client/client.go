package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"booktracker/internal/model"

	"github.com/go-redis/redis/v9"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const maxRedirects = 3

type Client struct {
	*http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
	FCMKey   string
	FCMURL   string
	Logger   logger

	TextSearchURL      string
	TextSearchLimiter  *rate.Limiter
	ForumSearchURL     string
	ForumSearchLimiter *rate.Limiter
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// NewHTTPClient returns the HTTP client shared by every source. Per-source timeouts are applied
// through the request context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return errors.Errorf("stopped after %d redirects, url: %s", maxRedirects, req.URL)
			}
			return nil
		},
	}
}

// NewLimiter returns a token bucket releasing one request per interval. A zero interval disables pacing.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	setDefaultRequestHeader(r)
	return r, nil
}

func setDefaultRequestHeader(r *http.Request) {
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept", "application/json")
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

func (c Client) cachedResults(ctx context.Context, key string) ([]model.SearchResult, bool) {
	if c.Redis == nil {
		return nil, false
	}
	cached, err := c.Redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Errorf("cachedResults: Error getting Redis cache with key: %s, err: %v", key, err)
		}
		return nil, false
	}
	var rs []model.SearchResult
	if err = json.Unmarshal([]byte(cached), &rs); err != nil {
		c.Logger.Errorf("cachedResults: Error unmarshalling cache, key: %s, err: %v", key, err)
		return nil, false
	}
	c.Logger.Debugf("cachedResults: Cache found, key: %s", key)
	return rs, true
}

func (c Client) cacheResults(ctx context.Context, key string, rs []model.SearchResult) {
	if c.Redis == nil || c.CacheTTL <= 0 {
		return
	}
	rsJSON, err := json.Marshal(rs)
	if err != nil {
		c.Logger.Errorf("cacheResults: Error marshalling SearchResults to cache, key: %s, err: %v", key, err)
		return
	}
	if err = c.Redis.Set(ctx, key, rsJSON, c.CacheTTL).Err(); err != nil {
		c.Logger.Errorf("cacheResults: Error caching SearchResults, key: %s, err: %v", key, err)
	}
}
