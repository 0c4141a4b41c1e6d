package analysis

import (
	"math"
	"sort"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
)

// Sentiment is the market-structure vote
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// StructureAnalyzer derives positioning-level readings from the full chain
type StructureAnalyzer struct {
	signals config.SignalConfig
}

func NewStructureAnalyzer(signals config.SignalConfig) *StructureAnalyzer {
	return &StructureAnalyzer{signals: signals}
}

// MaxPain finds the strike where option writers' total payout is smallest.
// Pairwise summation over the small fetched window; quadratic is fine here.
func (a *StructureAnalyzer) MaxPain(chain *market.OptionChain) (strike, pain float64) {
	if chain == nil || len(chain.Strikes) == 0 {
		return 0, 0
	}

	strikes := make([]float64, 0, len(chain.Strikes))
	for s := range chain.Strikes {
		strikes = append(strikes, s)
	}
	sort.Float64s(strikes)

	maxPainStrike := strikes[len(strikes)/2]
	minPain := math.Inf(1)

	for _, test := range strikes {
		total := 0.0
		for s, d := range chain.Strikes {
			if test > s {
				total += d.CEOpenInterest * (test - s)
			}
			if test < s {
				total += d.PEOpenInterest * (s - test)
			}
		}
		if total < minPain {
			minPain = total
			maxPainStrike = test
		}
	}
	return maxPainStrike, round2(minPain)
}

// CalculateSentiment votes across PCR, order flow and OI change
func (a *StructureAnalyzer) CalculateSentiment(pcr, orderFlow, ceChange, peChange float64) Sentiment {
	var bullish, bearish int

	if pcr > a.signals.PCRBullish {
		bullish++
	} else if pcr < a.signals.PCRBearish {
		bearish++
	}

	if orderFlow < 1.0 {
		bullish++
	} else if orderFlow > 1.5 {
		bearish++
	}

	if ceChange < -2.0 {
		bullish++
	}
	if peChange < -2.0 {
		bearish++
	}

	switch {
	case bullish > bearish:
		return SentimentBullish
	case bearish > bullish:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}
