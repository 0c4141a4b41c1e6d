package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// Client is a thin Upstox API V2 client: bearer auth, client-side rate
// limiting and bounded retry with exponential backoff. Instrument keys are
// resolved once at startup by DetectInstruments.
type Client struct {
	cfg     config.UpstoxConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger

	spotKey       string
	futuresKey    string
	futuresSymbol string
	futuresExpiry time.Time
}

func NewClient(cfg config.UpstoxConfig, log *logger.Logger) *Client {
	burst := cfg.RateLimit / 2
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		log:     log,
	}
}

// FuturesContract describes the auto-detected futures instrument
func (c *Client) FuturesContract() (symbol string, expiry time.Time) {
	return c.futuresSymbol, c.futuresExpiry
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "request cancelled")
			case <-time.After(delay):
			}
		}

		lastErr = c.getOnce(ctx, rawURL, out)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, errors.ErrRateLimitExceeded) && !errors.Is(lastErr, errors.ErrUnavailable) {
			return lastErr
		}
		c.log.Warnw("Upstox request retrying", "attempt", attempt+1, "error", lastErr)
	}
	return errors.Wrapf(lastErr, "max retries (%d) exceeded", c.cfg.MaxRetries)
}

func (c *Client) getOnce(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrRateLimitExceeded, "upstox 429")
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrUnavailable, "upstox %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return errors.Wrapf(errors.ErrInternal, "upstox %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

type quoteData struct {
	LastPrice float64 `json:"last_price"`
}

type quoteResponse struct {
	Status string               `json:"status"`
	Data   map[string]quoteData `json:"data"`
}

// LastPrice fetches the live traded price for an instrument
func (c *Client) LastPrice(ctx context.Context, instrumentKey string) (float64, error) {
	if instrumentKey == "" {
		return 0, errors.Wrap(errors.ErrInvalidInput, "empty instrument key")
	}

	u := fmt.Sprintf("%s/v2/market-quote/quotes?symbol=%s", c.cfg.BaseURL, url.QueryEscape(instrumentKey))
	var resp quoteResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return 0, errors.Wrapf(err, "quote %s", instrumentKey)
	}

	q, ok := lookupQuote(resp.Data, instrumentKey)
	if !ok {
		return 0, errors.Wrapf(errors.ErrInstrumentNotFound, "quote for %s missing in response", instrumentKey)
	}
	return q.LastPrice, nil
}

// lookupQuote resolves the response key in a fixed order: exact key, the
// colon-delimited variant, then any key sharing the segment prefix. The
// API is not consistent about which form it echoes back.
func lookupQuote(data map[string]quoteData, instrumentKey string) (quoteData, bool) {
	if q, ok := data[instrumentKey]; ok {
		return q, true
	}
	if q, ok := data[strings.ReplaceAll(instrumentKey, "|", ":")]; ok {
		return q, true
	}
	segment := instrumentKey
	if i := strings.IndexAny(instrumentKey, "|:"); i > 0 {
		segment = instrumentKey[:i]
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, segment) {
			return data[k], true
		}
	}
	return quoteData{}, false
}

type candleResponse struct {
	Status string `json:"status"`
	Data   struct {
		Candles [][]interface{} `json:"candles"`
	} `json:"data"`
}

// IntradayCandles fetches the 1-minute futures series, oldest bar first
func (c *Client) IntradayCandles(ctx context.Context, instrumentKey string) ([]market.Candle, error) {
	if instrumentKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty instrument key")
	}

	u := fmt.Sprintf("%s/v2/historical-candle/intraday/%s/1minute",
		c.cfg.BaseURL, url.PathEscape(instrumentKey))
	var resp candleResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, errors.Wrapf(err, "candles %s", instrumentKey)
	}

	candles := make([]market.Candle, 0, len(resp.Data.Candles))
	for _, row := range resp.Data.Candles {
		// [timestamp, open, high, low, close, volume, oi]
		if len(row) < 6 {
			continue
		}
		ts, ok := row[0].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		candles = append(candles, market.Candle{
			Timestamp: t,
			Open:      asFloat(row[1]),
			High:      asFloat(row[2]),
			Low:       asFloat(row[3]),
			Close:     asFloat(row[4]),
			Volume:    asFloat(row[5]),
		})
	}

	// API delivers newest first
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

type chainLegMarket struct {
	OI     float64 `json:"oi"`
	Volume float64 `json:"volume"`
	LTP    float64 `json:"ltp"`
}

type chainLeg struct {
	MarketData chainLegMarket `json:"market_data"`
}

type chainRow struct {
	StrikePrice float64  `json:"strike_price"`
	CallOptions chainLeg `json:"call_options"`
	PutOptions  chainLeg `json:"put_options"`
}

type chainResponse struct {
	Status string     `json:"status"`
	Data   []chainRow `json:"data"`
}

// OptionChain fetches the chain for one expiry date (YYYY-MM-DD)
func (c *Client) OptionChain(ctx context.Context, instrumentKey, expiryDate string) ([]chainRow, error) {
	if instrumentKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty instrument key")
	}

	u := fmt.Sprintf("%s/v2/option/chain?instrument_key=%s&expiry_date=%s",
		c.cfg.BaseURL, url.QueryEscape(instrumentKey), expiryDate)
	var resp chainResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, errors.Wrapf(err, "option chain %s", expiryDate)
	}
	return resp.Data, nil
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
