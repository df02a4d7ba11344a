package market

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/httputil"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

var chartInstrument = contracts.Instrument{ID: 3, Exchange: "SSE", Symbol: "600519"}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	log := logger.NewWriter(io.Discard, "error")
	return NewClient(config.MarketConfig{BaseURL: baseURL}, httputil.New(log).DisableRetry(), log)
}

func TestFetchPriceBars(t *testing.T) {
	payload := `[
		["date", "open", "high", "low", "close", "volume"],
		["20260817", 1700.00, 1725.50, 1695.00, 1720.25, 31200],
		["20260818", 1721.00, 1730.00, 1710.10, 1715.80, 28400]
	]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "600519", r.URL.Query().Get("symbol"))
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	bars, err := client.FetchPriceBars(context.Background(),
		chartInstrument,
		time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, chartInstrument.ID, bars[0].InstrumentID)
	assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, "1720.25", bars[0].Close.String())
	assert.Equal(t, int64(31200), bars[0].Volume)
	assert.Equal(t, "1715.8", bars[1].Close.String())
}

// Some deployments answer with single-quoted rows.
func TestParseChartResponseSingleQuotes(t *testing.T) {
	body := `[['date','open','high','low','close','volume'],['2026-08-18', 10.5, 11, 10, 10.8, 900]]`

	bars, err := parseChartResponse([]byte(body), 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "10.8", bars[0].Close.String())
}

func TestParseChartResponseSkipsHeaderOnly(t *testing.T) {
	bars, err := parseChartResponse([]byte(`[["date","open","high","low","close","volume"]]`), 1)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchPriceBarsServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchPriceBars(context.Background(), chartInstrument, time.Now(), time.Now())

	require.Error(t, err)
	assert.True(t, contracts.IsTransient(err))
}

func TestFetchPriceBarsClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchPriceBars(context.Background(), chartInstrument, time.Now(), time.Now())

	require.Error(t, err)
	assert.True(t, contracts.IsPermanent(err))
}

func TestFetchPriceBarsMalformedPayloadIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchPriceBars(context.Background(), chartInstrument, time.Now(), time.Now())

	require.Error(t, err)
	assert.True(t, contracts.IsPermanent(err))
}
