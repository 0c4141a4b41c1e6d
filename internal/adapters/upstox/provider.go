package upstox

import (
	"context"
	"time"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// Provider assembles one validated MarketData per scan cycle. Any
// validation failure aborts before partial data reaches the core.
type Provider struct {
	client  *Client
	session *market.Session
	cfg     config.MarketConfig
	log     *logger.Logger
}

func NewProvider(client *Client, session *market.Session, cfg config.MarketConfig, log *logger.Logger) *Provider {
	return &Provider{client: client, session: session, cfg: cfg, log: log}
}

// Fetch pulls spot, futures candles, the live futures price and the weekly
// option chain, validates each, and returns them as one immutable view
func (p *Provider) Fetch(ctx context.Context) (*market.MarketData, error) {
	spot, err := p.client.LastPrice(ctx, p.client.spotKey)
	if err != nil {
		return nil, errors.Wrap(err, "fetch spot")
	}
	if err := market.ValidatePrice(spot, p.cfg.MaxPrice); err != nil {
		return nil, errors.Wrap(err, "spot")
	}

	candles, err := p.client.IntradayCandles(ctx, p.client.futuresKey)
	if err != nil {
		return nil, errors.Wrap(err, "fetch futures candles")
	}
	if err := market.ValidateCandles(candles, p.cfg.MinCandles); err != nil {
		return nil, err
	}

	futuresPrice, err := p.client.LastPrice(ctx, p.client.futuresKey)
	if err != nil {
		return nil, errors.Wrap(err, "fetch futures price")
	}
	if err := market.ValidatePrice(futuresPrice, p.cfg.MaxPrice); err != nil {
		return nil, errors.Wrap(err, "futures price")
	}

	chain, err := p.fetchChain(ctx, spot)
	if err != nil {
		return nil, err
	}

	return &market.MarketData{
		Spot:         spot,
		FuturesPrice: futuresPrice,
		Candles:      candles,
		Chain:        chain,
		FetchedAt:    time.Now(),
	}, nil
}

// fetchChain pulls the weekly chain and trims it to the fetch window
// around the ATM strike
func (p *Provider) fetchChain(ctx context.Context, spot float64) (*market.OptionChain, error) {
	atm := market.ATMStrike(spot, p.cfg.StrikeGap)
	window := market.StrikeWindow(atm, p.cfg.StrikeGap, p.cfg.FetchStrikes)
	minStrike, maxStrike := window[0], window[len(window)-1]

	expiry := p.session.NextWeeklyExpiry(p.session.Now()).Format("2006-01-02")
	rows, err := p.client.OptionChain(ctx, p.client.spotKey, expiry)
	if err != nil {
		return nil, errors.Wrap(err, "fetch option chain")
	}

	chain := &market.OptionChain{
		ATMStrike: atm,
		Strikes:   make(map[float64]market.StrikeData, len(window)),
	}
	for _, row := range rows {
		if row.StrikePrice < minStrike || row.StrikePrice > maxStrike {
			continue
		}
		chain.Strikes[row.StrikePrice] = market.StrikeData{
			Strike:         row.StrikePrice,
			CEOpenInterest: row.CallOptions.MarketData.OI,
			PEOpenInterest: row.PutOptions.MarketData.OI,
			CEVolume:       row.CallOptions.MarketData.Volume,
			PEVolume:       row.PutOptions.MarketData.Volume,
			CELastPrice:    row.CallOptions.MarketData.LTP,
			PELastPrice:    row.PutOptions.MarketData.LTP,
		}
	}

	if err := market.ValidateChain(chain, p.cfg.MinStrikes); err != nil {
		return nil, err
	}

	p.log.Debugw("Option chain fetched",
		"expiry", expiry, "atm", atm, "strikes", len(chain.Strikes))
	return chain, nil
}
