// Package market fetches daily price bars from the upstream quote
// service's chart endpoint.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/httputil"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// Client implements contracts.MarketDataSource against a chart API that
// answers with a JSON array of rows: a header row followed by
// [date, open, high, low, close, volume] entries, oldest first.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a market data client.
func NewClient(cfg config.MarketConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("component", "market_client"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// FetchPriceBars fetches daily bars for [from, to], ascending by date.
// Upstream 5xx and 429 responses surviving the HTTP client's retries are
// transient; 4xx and malformed payloads are permanent.
func (c *Client) FetchPriceBars(ctx context.Context, inst contracts.Instrument, from, to time.Time) ([]contracts.PriceBar, error) {
	params := url.Values{}
	params.Set("symbol", inst.Symbol)
	params.Set("exchange", inst.Exchange)
	params.Set("start", from.Format("20060102"))
	params.Set("end", to.Format("20060102"))
	params.Set("period", "day")

	fullURL := fmt.Sprintf("%s/chart?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, contracts.Transient("fetch price bars", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if httputil.IsRetryableStatus(resp.StatusCode) {
			return nil, contracts.Transient("fetch price bars", err)
		}
		return nil, contracts.Permanent("fetch price bars", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contracts.Transient("fetch price bars", err)
	}

	bars, err := parseChartResponse(body, inst.ID)
	if err != nil {
		return nil, contracts.Permanent("fetch price bars", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument": inst.Key(),
		"count":      len(bars),
	}).Debug("Fetched price bars")

	return bars, nil
}

// parseChartResponse decodes the chart payload. Some deployments quote
// rows with single quotes; normalize before decoding. Rows that do not
// parse as a bar are skipped, matching how the upstream pads responses
// with annotation rows.
func parseChartResponse(body []byte, instrumentID int64) ([]contracts.PriceBar, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(string(body)), "'", "\"")

	var rawRows [][]json.RawMessage
	if err := json.Unmarshal([]byte(normalized), &rawRows); err != nil {
		return nil, fmt.Errorf("malformed chart payload: %w", err)
	}

	var bars []contracts.PriceBar
	for _, row := range rawRows {
		if len(row) < 6 {
			continue
		}

		var dateStr string
		if err := json.Unmarshal(row[0], &dateStr); err != nil {
			continue // header or annotation row
		}
		date, err := parseChartDate(dateStr)
		if err != nil {
			continue
		}

		bar := contracts.PriceBar{InstrumentID: instrumentID, Date: date}
		if bar.Open, err = parseChartPrice(row[1]); err != nil {
			return nil, fmt.Errorf("bad open on %s: %w", dateStr, err)
		}
		if bar.High, err = parseChartPrice(row[2]); err != nil {
			return nil, fmt.Errorf("bad high on %s: %w", dateStr, err)
		}
		if bar.Low, err = parseChartPrice(row[3]); err != nil {
			return nil, fmt.Errorf("bad low on %s: %w", dateStr, err)
		}
		if bar.Close, err = parseChartPrice(row[4]); err != nil {
			return nil, fmt.Errorf("bad close on %s: %w", dateStr, err)
		}
		if err := json.Unmarshal(row[5], &bar.Volume); err != nil {
			var f float64
			if err := json.Unmarshal(row[5], &f); err != nil {
				return nil, fmt.Errorf("bad volume on %s: %w", dateStr, err)
			}
			bar.Volume = int64(f)
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func parseChartDate(s string) (time.Time, error) {
	s = strings.Trim(s, "\" ")
	if len(s) == 8 {
		return time.Parse("20060102", s)
	}
	return time.Parse("2006-01-02", s)
}

// parseChartPrice keeps decimal precision: numbers are decoded from
// their literal text, never through float64.
func parseChartPrice(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), "\"")
	return decimal.NewFromString(text)
}
