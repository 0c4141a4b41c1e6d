package market

import (
	"math"
	"time"
)

// Candle is a single OHLCV bar from the futures intraday series,
// ordered oldest first
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// StrikeData holds current market data for one strike of the option chain
type StrikeData struct {
	Strike         float64
	CEOpenInterest float64
	PEOpenInterest float64
	CEVolume       float64
	PEVolume       float64
	CELastPrice    float64
	PELastPrice    float64
}

// OptionChain is the fetched strike window around the ATM strike
type OptionChain struct {
	ATMStrike float64
	Strikes   map[float64]StrikeData
}

// Get returns the data for a strike, zero-valued when absent
func (c *OptionChain) Get(strike float64) (StrikeData, bool) {
	d, ok := c.Strikes[strike]
	return d, ok
}

// ATM returns the ATM strike data, zero-valued when absent
func (c *OptionChain) ATM() StrikeData {
	d := c.Strikes[c.ATMStrike]
	d.Strike = c.ATMStrike
	return d
}

// TotalOpenInterest sums CE and PE open interest over the whole window
func (c *OptionChain) TotalOpenInterest() float64 {
	var total float64
	for _, d := range c.Strikes {
		total += d.CEOpenInterest + d.PEOpenInterest
	}
	return total
}

// ATMStrike rounds spot to the nearest strike-gap multiple
func ATMStrike(spot, gap float64) float64 {
	return math.Round(spot/gap) * gap
}

// StrikeWindow returns the strikes atm ± n*gap, ascending
func StrikeWindow(atm, gap float64, n int) []float64 {
	strikes := make([]float64, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		strikes = append(strikes, atm+float64(i)*gap)
	}
	return strikes
}

// MarketData is the validated per-cycle input to the decision core.
// It is assembled by the provider and never mutated afterwards.
type MarketData struct {
	Spot         float64
	FuturesPrice float64 // live traded price, not candle close
	Candles      []Candle
	Chain        *OptionChain
	FetchedAt    time.Time
}
