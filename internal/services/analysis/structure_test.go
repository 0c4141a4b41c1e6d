package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vega/internal/domain/market"
)

func TestMaxPain(t *testing.T) {
	a := NewStructureAnalyzer(defaultSignalConfig())

	t.Run("empty chain", func(t *testing.T) {
		strike, pain := a.MaxPain(nil)
		assert.Equal(t, 0.0, strike)
		assert.Equal(t, 0.0, pain)
	})

	t.Run("oi concentration pins the strike", func(t *testing.T) {
		// Heavy call writing above and put writing below pins pain to 24000
		chain := &market.OptionChain{
			ATMStrike: 24000,
			Strikes: map[float64]market.StrikeData{
				23900: {PEOpenInterest: 100000},
				23950: {PEOpenInterest: 80000},
				24000: {CEOpenInterest: 50000, PEOpenInterest: 50000},
				24050: {CEOpenInterest: 80000},
				24100: {CEOpenInterest: 100000},
			},
		}
		strike, pain := a.MaxPain(chain)
		assert.Equal(t, 24000.0, strike)
		assert.Equal(t, 0.0, pain, "writers at the pinned strike pay nothing out")
	})
}

func TestCalculateSentiment(t *testing.T) {
	a := NewStructureAnalyzer(defaultSignalConfig())

	cases := []struct {
		name               string
		pcr, flow          float64
		ceChange, peChange float64
		want               Sentiment
	}{
		{"high pcr and put-side flow", 1.5, 0.8, 0, 0, SentimentBullish},
		{"low pcr and call-side flow", 0.5, 2.0, 0, 0, SentimentBearish},
		{"balanced", 1.0, 1.2, 0, 0, SentimentNeutral},
		{"ce unwinding tips bullish", 1.0, 1.2, -3.0, 0, SentimentBullish},
		{"pe unwinding tips bearish", 1.0, 1.2, 0, -3.0, SentimentBearish},
		{"opposing votes cancel", 1.5, 2.0, 0, 0, SentimentNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, a.CalculateSentiment(tc.pcr, tc.flow, tc.ceChange, tc.peChange))
		})
	}
}
