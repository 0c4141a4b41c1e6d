package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vega/internal/domain/market"
)

func TestDetectSpike(t *testing.T) {
	a := NewVolumeAnalyzer(defaultSignalConfig())

	spike, ratio := a.DetectSpike(1500, 1000)
	assert.True(t, spike)
	assert.Equal(t, 1.5, ratio)

	spike, ratio = a.DetectSpike(1400, 1000)
	assert.False(t, spike)
	assert.Equal(t, 1.4, ratio)

	// Zero average never spikes
	spike, ratio = a.DetectSpike(1500, 0)
	assert.False(t, spike)
	assert.Equal(t, 0.0, ratio)
}

func TestOrderFlow_Clamped(t *testing.T) {
	a := NewVolumeAnalyzer(defaultSignalConfig())

	chain := func(ce, pe float64) *market.OptionChain {
		return &market.OptionChain{Strikes: map[float64]market.StrikeData{
			24000: {CEVolume: ce, PEVolume: pe},
		}}
	}

	assert.Equal(t, 1.0, a.OrderFlow(chain(0, 0)))
	assert.Equal(t, 5.0, a.OrderFlow(chain(100, 0)))
	assert.Equal(t, 0.2, a.OrderFlow(chain(0, 100)))
	assert.Equal(t, 2.0, a.OrderFlow(chain(200, 100)))
	assert.Equal(t, 5.0, a.OrderFlow(chain(10000, 100)), "upper clamp")
	assert.Equal(t, 0.2, a.OrderFlow(chain(100, 10000)), "lower clamp")
}

func TestVolumeTrend(t *testing.T) {
	a := NewVolumeAnalyzer(defaultSignalConfig())

	t.Run("too few candles", func(t *testing.T) {
		trend := a.Trend(flatCandles(3, 24000, 1000), 5)
		assert.Equal(t, "unknown", trend.Trend)
		assert.Equal(t, 1.0, trend.Ratio)
	})

	t.Run("increasing", func(t *testing.T) {
		candles := flatCandles(6, 24000, 1000)
		candles[5].Volume = 2000
		trend := a.Trend(candles, 5)
		assert.Equal(t, "increasing", trend.Trend)
		assert.Equal(t, 2.0, trend.Ratio)
	})

	t.Run("stable", func(t *testing.T) {
		trend := a.Trend(flatCandles(6, 24000, 1000), 5)
		assert.Equal(t, "stable", trend.Trend)
	})

	t.Run("decreasing", func(t *testing.T) {
		candles := flatCandles(6, 24000, 1000)
		candles[5].Volume = 500
		trend := a.Trend(candles, 5)
		assert.Equal(t, "decreasing", trend.Trend)
	})
}
