// Package news fetches instrument news from the upstream finance
// portal's paginated HTML listing.
package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/httputil"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// maxPages bounds pagination so a misbehaving listing cannot spin the
// fetcher forever.
const maxPages = 20

// Client implements contracts.NewsSource by scraping the portal's news
// listing. Each row is a dated headline linking to the article.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	source     string
}

// NewClient creates a news client.
func NewClient(cfg config.NewsConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("component", "news_client"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		source:     cfg.Source,
	}
}

// FetchNews returns items published at or after since, newest first.
// Pagination stops at the first row older than the window.
func (c *Client) FetchNews(ctx context.Context, inst contracts.Instrument, since time.Time) ([]contracts.NewsItem, error) {
	var all []contracts.NewsItem

	for page := 1; page <= maxPages; page++ {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		params := url.Values{}
		params.Set("symbol", inst.Symbol)
		params.Set("page", fmt.Sprint(page))
		listURL := fmt.Sprintf("%s/news?%s", c.baseURL, params.Encode())

		body, err := c.fetchHTML(ctx, listURL)
		if err != nil {
			return nil, err
		}

		items, reachedEnd, err := c.parseListing(body, inst, since)
		if err != nil {
			return nil, contracts.Permanent("fetch news", err)
		}
		all = append(all, items...)

		if reachedEnd || len(items) == 0 {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument": inst.Key(),
		"count":      len(all),
	}).Debug("Fetched news")

	return all, nil
}

func (c *Client) fetchHTML(ctx context.Context, fullURL string) (string, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return "", contracts.Transient("fetch news", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if httputil.IsRetryableStatus(resp.StatusCode) {
			return "", contracts.Transient("fetch news", err)
		}
		return "", contracts.Permanent("fetch news", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", contracts.Transient("fetch news", err)
	}

	return string(body), nil
}

// parseListing extracts news rows from one listing page. reachedEnd is
// true once a row falls before the since cutoff; rows are newest first
// so everything after it is older still.
func (c *Client) parseListing(html string, inst contracts.Instrument, since time.Time) ([]contracts.NewsItem, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, fmt.Errorf("malformed listing HTML: %w", err)
	}

	var items []contracts.NewsItem
	reachedEnd := false

	doc.Find("ul.news-list li").EachWithBreak(func(i int, row *goquery.Selection) bool {
		link := row.Find("a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		dateText := strings.TrimSpace(row.Find(".date").First().Text())

		if title == "" || href == "" || dateText == "" {
			return true // annotation row
		}

		publishedAt, err := parseListingDate(dateText)
		if err != nil {
			return true
		}

		if publishedAt.Before(since) {
			reachedEnd = true
			return false
		}

		items = append(items, contracts.NewsItem{
			InstrumentID: inst.ID,
			Title:        title,
			Source:       c.source,
			URL:          c.absoluteURL(href),
			PublishedAt:  publishedAt,
		})
		return true
	})

	return items, reachedEnd, nil
}

// absoluteURL resolves listing hrefs that are site-relative.
func (c *Client) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return c.baseURL + "/" + strings.TrimLeft(href, "/")
}

// parseListingDate accepts the portal's two timestamp shapes.
func parseListingDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
