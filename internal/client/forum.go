package client

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"booktracker/internal/misc"
	"booktracker/internal/model"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	ForumSearchSource  = "Reddit"
	PriceSeePost       = "See post for price"
	ForumLinkBase      = "https://www.reddit.com"
	forumSearchTimeout = 10 * time.Second
	forumBodyLimit     = 300000
	forumMaxResults    = 5
	forumUserAgent     = "BookTracker/1.0"
)

var ErrForumSearch = errors.New("forum search error")

var (
	saleIndicatorRegex = regexp.MustCompile(`(?i)\b(for sale|selling|wts|fs|price|obo)\b|\$\s?\d`)
	priceRegex         = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)
)

type forumSearchResponse struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type forumPost struct {
	Title         string `json:"title"`
	Selftext      string `json:"selftext"`
	Permalink     string `json:"permalink"`
	Author        string `json:"author"`
	Over18        bool   `json:"over_18"`
	SubredditType string `json:"subreddit_type"`
}

func forumQueryVariants(query string) []string {
	return []string{query + " for sale", query + " book", "selling " + query}
}

// ForumSearch queries the forum search API with each sale-oriented variant of query.
// It only fails when every variant failed.
func (c Client) ForumSearch(ctx context.Context, query string) ([]model.SearchResult, error) {
	cacheKey := "FS-" + query
	if rs, ok := c.cachedResults(ctx, cacheKey); ok {
		return rs, nil
	}

	variants := forumQueryVariants(query)
	rs := []model.SearchResult{}
	seen := make(map[string]struct{})
	var lastErr error
	failed := 0
	for _, v := range variants {
		if len(rs) >= forumMaxResults {
			break
		}
		if err := wait(ctx, c.ForumSearchLimiter); err != nil {
			return nil, errors.Wrapf(err, "ForumSearch: rate limiter wait error, query: %s", query)
		}
		posts, err := c.forumFetch(ctx, v)
		if err != nil {
			c.Logger.Debugf("ForumSearch: variant failed, variant: %s, err: %v", v, err)
			lastErr = err
			failed++
			continue
		}
		for _, p := range posts {
			r, ok := forumPostToResult(p)
			if !ok {
				continue
			}
			if _, dup := seen[r.Link]; dup {
				continue
			}
			seen[r.Link] = struct{}{}
			rs = append(rs, r)
			if len(rs) >= forumMaxResults {
				break
			}
		}
	}
	if failed == len(variants) {
		return nil, errors.WithMessagef(lastErr, "ForumSearch: all %d variants failed, query: %s", failed, query)
	}

	c.cacheResults(ctx, cacheKey, rs)
	return rs, nil
}

func (c Client) forumFetch(ctx context.Context, q string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, forumSearchTimeout)
	defer cancel()

	req, err := newRequest(ctx, http.MethodGet, c.ForumSearchURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "forumFetch: error creating HTTP request, url: %s", c.ForumSearchURL)
	}
	qv := req.URL.Query()
	qv.Set("q", q)
	qv.Set("sort", "new")
	qv.Set("limit", "25")
	qv.Set("type", "link")
	req.URL.RawQuery = qv.Encode()
	req.Header.Set("User-Agent", forumUserAgent)

	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "forumFetch: error doing request, url: %s", req.URL)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("forumFetch: error closing response body, url: %s, err: %v", req.URL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, forumBodyLimit))
	if err != nil {
		return nil, errors.Wrapf(err, "forumFetch: error reading response body, url: %s", req.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrForumSearch, "forumFetch: status code %d, url: %s, body: %s",
			resp.StatusCode, req.URL, misc.BytesLimit(body, 300))
	}

	sr := forumSearchResponse{}
	if err = json.Unmarshal(body, &sr); err != nil {
		return nil, errors.Wrapf(err, "forumFetch: error unmarshalling response body, url: %s, body: %s",
			req.URL, misc.BytesLimit(body, 300))
	}
	posts := make([]json.RawMessage, 0, len(sr.Data.Children))
	for _, ch := range sr.Data.Children {
		posts = append(posts, ch.Data)
	}
	return posts, nil
}

// forumPostToResult decodes one post on its own so a malformed post only drops itself.
func forumPostToResult(raw json.RawMessage) (model.SearchResult, bool) {
	p := forumPost{}
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.SearchResult{}, false
	}
	if p.Over18 || p.SubredditType != "public" {
		return model.SearchResult{}, false
	}
	title := misc.CleanString(p.Title)
	if title == "" || !strings.HasPrefix(p.Permalink, "/") {
		return model.SearchResult{}, false
	}
	text := p.Title + " " + p.Selftext
	if !saleIndicatorRegex.MatchString(text) {
		return model.SearchResult{}, false
	}

	price := PriceSeePost
	if m := priceRegex.FindStringSubmatch(text); m != nil {
		price = "$" + m[1]
	}
	var seller *string
	if p.Author != "" {
		s := "u/" + p.Author
		seller = &s
	}
	return model.SearchResult{
		Title:  title,
		Price:  price,
		Source: ForumSearchSource,
		Link:   ForumLinkBase + p.Permalink,
		Seller: seller,
	}, true
}
