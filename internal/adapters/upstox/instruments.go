package upstox

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"vega/pkg/errors"
)

// monthlyCutoffDays separates a monthly futures contract from a weekly one.
// The nearest contract more than this many days out is the monthly.
const monthlyCutoffDays = 10

type instrumentRecord struct {
	Segment        string `json:"segment"`
	Name           string `json:"name"`
	TradingSymbol  string `json:"trading_symbol"`
	InstrumentKey  string `json:"instrument_key"`
	InstrumentType string `json:"instrument_type"`
	ExpiryMS       int64  `json:"expiry"`
}

// DetectInstruments downloads the full instrument dump and resolves the
// index spot key and the monthly futures contract. Weekly futures are
// skipped: their expiry sits too close and their candles carry gamma noise
// the technical indicators should not see.
func (c *Client) DetectInstruments(ctx context.Context, now time.Time) error {
	instruments, err := c.fetchInstruments(ctx)
	if err != nil {
		return err
	}

	for _, in := range instruments {
		if in.Segment != "NSE_INDEX" {
			continue
		}
		name := strings.ToUpper(in.Name)
		symbol := strings.ToUpper(in.TradingSymbol)
		if strings.Contains(name, "NIFTY 50") || strings.Contains(symbol, "NIFTY 50") || symbol == "NIFTY" {
			c.spotKey = in.InstrumentKey
			break
		}
	}
	if c.spotKey == "" {
		return errors.Wrap(errors.ErrInstrumentNotFound, "index spot instrument")
	}

	type futures struct {
		key    string
		symbol string
		expiry time.Time
		days   int
	}
	var candidates []futures
	for _, in := range instruments {
		if in.Segment != "NSE_FO" || in.InstrumentType != "FUT" || in.Name != "NIFTY" || in.ExpiryMS == 0 {
			continue
		}
		expiry := time.UnixMilli(in.ExpiryMS)
		if !expiry.After(now) {
			continue
		}
		candidates = append(candidates, futures{
			key:    in.InstrumentKey,
			symbol: in.TradingSymbol,
			expiry: expiry,
			days:   int(expiry.Sub(now).Hours() / 24),
		})
	}
	if len(candidates) == 0 {
		return errors.Wrap(errors.ErrInstrumentNotFound, "no live futures contracts")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].expiry.Before(candidates[j].expiry)
	})

	chosen := candidates[0]
	found := false
	for _, f := range candidates {
		if f.days > monthlyCutoffDays {
			chosen = f
			found = true
			break
		}
	}
	if !found {
		c.log.Warnw("No futures contract beyond the monthly cutoff, using nearest",
			"symbol", chosen.symbol, "days", chosen.days)
	}

	c.futuresKey = chosen.key
	c.futuresSymbol = chosen.symbol
	c.futuresExpiry = chosen.expiry

	c.log.Infow("Instruments detected",
		"spot", c.spotKey,
		"futures", chosen.symbol,
		"futures_expiry", chosen.expiry.Format("2006-01-02"),
		"days_to_expiry", chosen.days)
	return nil
}

func (c *Client) fetchInstruments(ctx context.Context) ([]instrumentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.InstrumentsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build instruments request")
	}

	// The dump is tens of megabytes; give it room beyond the API timeout
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrUnavailable, "instruments fetch %d", resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "gunzip instruments")
	}
	defer gz.Close()

	var instruments []instrumentRecord
	if err := json.NewDecoder(gz).Decode(&instruments); err != nil {
		return nil, errors.Wrap(err, "decode instruments")
	}
	return instruments, nil
}
