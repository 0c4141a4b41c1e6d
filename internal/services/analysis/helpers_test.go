package analysis

import (
	"vega/internal/adapters/config"
	"vega/internal/domain/market"
)

func defaultSignalConfig() config.SignalConfig {
	return config.SignalConfig{
		OI5mEntry:             1.5,
		OI15mEntry:            1.5,
		OI5mStrong:            2.5,
		OI15mStrong:           3.0,
		ATMOIEntry:            2.0,
		VolumeSpikeMultiplier: 1.5,
		PCRBullish:            1.2,
		PCRBearish:            0.8,
		ATRPeriod:             14,
		ATRFallback:           30,
		ATRTargetMultiplier:   2.5,
		ATRStopMultiplier:     1.5,
		ATRStopGammaMult:      2.0,
		VWAPBuffer:            3,
		VWAPStrictMode:        true,
		VWAPATRMultiple:       0.5,
		MinCandleSize:         5,
		MinPrimaryChecks:      2,
		MinConfidence:         70,
	}
}

func defaultExitConfig() config.ExitConfig {
	return config.ExitConfig{
		OIReversalThreshold:   1.0,
		OISpikeThreshold:      4.0,
		OIConfirmationSamples: 3,
		VolumeDryThreshold:    0.8,
		PremiumDropPercent:    10,
		CandleRejectionMult:   2,
	}
}

// flatCandles builds a series of identical candles for indicator tests
func flatCandles(n int, price, volume float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{
			Open:   price,
			High:   price + 5,
			Low:    price - 5,
			Close:  price,
			Volume: volume,
		}
	}
	return candles
}
