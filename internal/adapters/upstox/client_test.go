package upstox

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

func testClient(baseURL string) *Client {
	return NewClient(config.UpstoxConfig{
		BaseURL:     baseURL,
		AccessToken: "test-token",
		Timeout:     2 * time.Second,
		MaxRetries:  2,
		RateLimit:   100,
	}, logger.Get())
}

func TestLastPrice_KeyFallback(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"exact key", "NSE_INDEX|Nifty 50"},
		{"colon variant", "NSE_INDEX:Nifty 50"},
		{"segment prefix", "NSE_INDEX:Nifty 50 something"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				fmt.Fprintf(w, `{"status":"success","data":{%q:{"last_price":24123.45}}}`, tc.key)
			}))
			defer srv.Close()

			price, err := testClient(srv.URL).LastPrice(context.Background(), "NSE_INDEX|Nifty 50")
			require.NoError(t, err)
			assert.Equal(t, 24123.45, price)
		})
	}
}

func TestLastPrice_MissingInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"BSE_EQ|other":{"last_price":1}}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LastPrice(context.Background(), "NSE_INDEX|Nifty 50")
	assert.ErrorIs(t, err, errors.ErrInstrumentNotFound)
}

func TestGet_RetriesRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"status":"success","data":{"NSE_FO|123":{"last_price":24200}}}`)
	}))
	defer srv.Close()

	price, err := testClient(srv.URL).LastPrice(context.Background(), "NSE_FO|123")
	require.NoError(t, err)
	assert.Equal(t, 24200.0, price)
	assert.Equal(t, 2, calls)
}

func TestGet_NoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LastPrice(context.Background(), "NSE_FO|123")
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "auth failures are not retryable")
}

func TestIntradayCandles_OldestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Newest first, as the API delivers
		fmt.Fprint(w, `{"status":"success","data":{"candles":[
			["2026-03-10T09:18:00+05:30",24010,24020,24005,24015,1200,0],
			["2026-03-10T09:17:00+05:30",24000,24012,23995,24010,1100,0],
			["2026-03-10T09:16:00+05:30",23990,24001,23985,24000,1000,0]
		]}}`)
	}))
	defer srv.Close()

	candles, err := testClient(srv.URL).IntradayCandles(context.Background(), "NSE_FO|123")
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
	assert.Equal(t, 23990.0, candles[0].Open)
	assert.Equal(t, 24015.0, candles[2].Close)
	assert.Equal(t, 1200.0, candles[2].Volume)
}

func TestProvider_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/market-quote/quotes", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("symbol")
		price := 24123.0 // spot
		if key == "NSE_FO|FUT" {
			price = 24180.0
		}
		fmt.Fprintf(w, `{"status":"success","data":{%q:{"last_price":%f}}}`, key, price)
	})
	mux.HandleFunc("/v2/historical-candle/intraday/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"candles":[`)
		for i := 0; i < 12; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `["2026-03-10T09:%02d:00+05:30",24000,24010,23990,24005,1000,0]`, 16+i)
		}
		fmt.Fprint(w, `]}}`)
	})
	mux.HandleFunc("/v2/option/chain", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":[`)
		for i := 0; i < 15; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			strike := 23800 + i*50
			fmt.Fprintf(w, `{"strike_price":%d,
				"call_options":{"market_data":{"oi":50000,"volume":1200,"ltp":140}},
				"put_options":{"market_data":{"oi":60000,"volume":1500,"ltp":130}}}`, strike)
		}
		fmt.Fprint(w, `]`)
		fmt.Fprint(w, `}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(srv.URL)
	client.spotKey = "NSE_INDEX|Nifty 50"
	client.futuresKey = "NSE_FO|FUT"

	marketCfg := config.MarketConfig{
		StrikeGap:    50,
		FetchStrikes: 5,
		DeepStrikes:  2,
		MinStrikes:   7,
		MinCandles:   10,
		MaxPrice:     100000,
	}
	p := NewProvider(client, market.NewSession("Asia/Kolkata"), marketCfg, logger.Get())

	data, err := p.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 24123.0, data.Spot)
	assert.Equal(t, 24180.0, data.FuturesPrice)
	assert.Len(t, data.Candles, 12)

	// ATM 24100, window 23850..24350; the server offers 23800..24500
	assert.Equal(t, 24100.0, data.Chain.ATMStrike)
	assert.Len(t, data.Chain.Strikes, 11)
	_, ok := data.Chain.Get(23800)
	assert.False(t, ok, "strikes outside the fetch window are dropped")
}

func TestProvider_AbortsOnBadSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("symbol")
		fmt.Fprintf(w, `{"status":"success","data":{%q:{"last_price":0}}}`, key)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	client.spotKey = "NSE_INDEX|Nifty 50"
	client.futuresKey = "NSE_FO|FUT"

	p := NewProvider(client, market.NewSession("Asia/Kolkata"),
		config.MarketConfig{MaxPrice: 100000, MinCandles: 10, MinStrikes: 7, StrikeGap: 50, FetchStrikes: 5},
		logger.Get())

	_, err := p.Fetch(context.Background())
	assert.ErrorIs(t, err, errors.ErrDataValidation)
}
