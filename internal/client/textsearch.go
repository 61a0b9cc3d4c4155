package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"booktracker/internal/misc"
	"booktracker/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	TextSearchSource = "eBay"
	PriceUnavailable = "Price not available"

	textSearchTimeout   = 15 * time.Second
	textSearchMaxRows   = 8
	textSearchBodyLimit = 1 << 20
	textSearchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultCondition    = "Used"
)

var ErrTextSearch = errors.New("text search error")

var bookKeywords = []string{"book", "novel", "textbook"}

// TextSearch scrapes the listing page of the HTML marketplace for query.
func (c Client) TextSearch(ctx context.Context, query string) ([]model.SearchResult, error) {
	cacheKey := "TS-" + query
	if rs, ok := c.cachedResults(ctx, cacheKey); ok {
		return rs, nil
	}

	if err := wait(ctx, c.TextSearchLimiter); err != nil {
		return nil, errors.Wrapf(err, "TextSearch: rate limiter wait error, query: %s", query)
	}

	ctx, cancel := context.WithTimeout(ctx, textSearchTimeout)
	defer cancel()

	req, err := newRequest(ctx, http.MethodGet, c.TextSearchURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "TextSearch: error creating HTTP request, url: %s", c.TextSearchURL)
	}
	q := req.URL.Query()
	q.Set("_nkw", query)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", textSearchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "TextSearch: error doing request, url: %s", req.URL)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("TextSearch: error closing response body, url: %s, err: %v", req.URL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, textSearchBodyLimit))
	if err != nil {
		return nil, errors.Wrapf(err, "TextSearch: error reading response body, url: %s", req.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrTextSearch, "TextSearch: status code %d, url: %s, body: %s",
			resp.StatusCode, req.URL, misc.BytesLimit(body, 300))
	}

	rs, err := parseTextSearchPage(body, resp.Request.URL, query)
	if err != nil {
		return nil, errors.WithMessagef(err, "TextSearch: url: %s", req.URL)
	}
	c.cacheResults(ctx, cacheKey, rs)
	return rs, nil
}

func parseTextSearchPage(body []byte, base *url.URL, query string) ([]model.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parseTextSearchPage: error parsing HTML")
	}

	tokens := strings.Fields(strings.ToLower(query))
	rs := []model.SearchResult{}
	doc.Find("li.s-item").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= textSearchMaxRows {
			return false
		}
		r, ok := parseTextSearchRow(row, base)
		if ok && relevantTitle(r.Title, tokens) {
			rs = append(rs, r)
		}
		return true
	})
	return rs, nil
}

func parseTextSearchRow(row *goquery.Selection, base *url.URL) (model.SearchResult, bool) {
	title := visibleText(row.Find(".s-item__title").First())
	href, _ := row.Find("a.s-item__link").First().Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return model.SearchResult{}, false
	}
	link, err := base.Parse(href)
	if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
		return model.SearchResult{}, false
	}

	price := visibleText(row.Find(".s-item__price").First())
	if price == "" {
		price = PriceUnavailable
	}
	condition := visibleText(row.Find(".SECONDARY_INFO").First())
	if condition == "" {
		condition = defaultCondition
	}

	return model.SearchResult{
		Title:     title,
		Price:     price,
		Source:    TextSearchSource,
		Link:      link.String(),
		Condition: &condition,
		Seller:    misc.NilIfEmpty(visibleText(row.Find(".s-item__seller-info-text").First())),
	}, true
}

func relevantTitle(title string, queryTokens []string) bool {
	t := strings.ToLower(title)
	for _, k := range bookKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	for _, k := range queryTokens {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// visibleText is goquery's Text without scripts, styles and the marketplace's
// screen-reader only and highlight badges.
func visibleText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style ||
				hasClass(n, "clipped") || hasClass(n, "LIGHT_HIGHLIGHT") {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return misc.CleanString(sb.String())
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}
