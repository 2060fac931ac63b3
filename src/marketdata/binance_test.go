package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockBinance(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBinanceFeed_GetTick(t *testing.T) {
	srv := mockBinance(t, `[
		[1499040000000, "0.01634790", "0.80000000", "0.01575800", "0.01577100", "148976.11427815", 1499644799999, "2434.19055334", 308, "1756.87402397", "28.46694368", "17928899.62484339"]
	]`)
	feed, err := NewBinanceFeed(srv.URL, 5*time.Second, time.Minute)
	require.NoError(t, err)

	bar, err := feed.GetTick(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC_USDT", bar.Symbol)
	assert.InDelta(t, 0.01634790, bar.Open, 1e-12)
	assert.InDelta(t, 0.01577100, bar.Close, 1e-12)
	assert.Equal(t, time.Unix(1499040000, 0).UTC(), bar.Timestamp)
}

func TestBinanceFeed_EmptyIsNoData(t *testing.T) {
	srv := mockBinance(t, `[]`)
	feed, err := NewBinanceFeed(srv.URL, 5*time.Second, time.Hour)
	require.NoError(t, err)

	to := time.Now()
	_, err = feed.GetHistory(context.Background(), "BTC_USDT", time.Hour, to.Add(-24*time.Hour), to)
	require.ErrorIs(t, err, ErrNoData)
}

func TestBinanceFeed_BadSymbol(t *testing.T) {
	feed, err := NewBinanceFeed("http://127.0.0.1:0", time.Second, time.Minute)
	require.NoError(t, err)
	_, err = feed.GetTick(context.Background(), "NIFTY")
	require.Error(t, err)
}

func TestGoexPeriod(t *testing.T) {
	p, err := GoexPeriod(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, goex.KLINE_PERIOD_1MIN, p)

	p, err = GoexPeriod(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, goex.KLINE_PERIOD_1H, p)

	_, err = GoexPeriod(7 * time.Minute)
	require.Error(t, err)
}

func TestNew_UnknownSource(t *testing.T) {
	_, err := New(Config{Source: "carrier-pigeon", Interval: "1m"}, nil)
	require.ErrorIs(t, err, ErrUnknownSource)

	_, err = New(Config{Source: SourceReplay, Interval: "1m"}, nil)
	require.ErrorIs(t, err, ErrUnknownSource)

	port, err := New(Config{Source: SourceRandom, Interval: "1m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RandomFeed{}, port)
}
