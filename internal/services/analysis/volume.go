package analysis

import (
	"math"

	"github.com/markcheno/go-talib"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
)

// VolumeTrend summarises futures volume against its recent average
type VolumeTrend struct {
	Trend         string // increasing, decreasing, stable, unknown
	AvgVolume     float64
	CurrentVolume float64
	Ratio         float64
}

// VolumeAnalyzer derives volume and order-flow metrics from the option chain
// and futures candles
type VolumeAnalyzer struct {
	signals config.SignalConfig
}

func NewVolumeAnalyzer(signals config.SignalConfig) *VolumeAnalyzer {
	return &VolumeAnalyzer{signals: signals}
}

// TotalVolume sums CE and PE traded volume across the fetched window
func (a *VolumeAnalyzer) TotalVolume(chain *market.OptionChain) (ce, pe float64) {
	if chain == nil {
		return 0, 0
	}
	for _, d := range chain.Strikes {
		ce += d.CEVolume
		pe += d.PEVolume
	}
	return ce, pe
}

// DetectSpike reports whether current volume exceeds the configured multiple
// of the average. A zero average never spikes.
func (a *VolumeAnalyzer) DetectSpike(current, avg float64) (bool, float64) {
	if avg == 0 {
		return false, 0
	}
	ratio := round2(current / avg)
	return ratio >= a.signals.VolumeSpikeMultiplier, ratio
}

// OrderFlow is CE volume over PE volume, clamped to [0.2, 5.0].
// Above 1 means call-side pressure.
func (a *VolumeAnalyzer) OrderFlow(chain *market.OptionChain) float64 {
	ceVol, peVol := a.TotalVolume(chain)
	switch {
	case ceVol == 0 && peVol == 0:
		return 1.0
	case peVol == 0:
		return 5.0
	case ceVol == 0:
		return 0.2
	}
	return round2(math.Max(0.2, math.Min(ceVol/peVol, 5.0)))
}

// Trend compares the latest futures candle volume to the average of the
// preceding periods
func (a *VolumeAnalyzer) Trend(candles []market.Candle, periods int) VolumeTrend {
	if len(candles) < periods+1 {
		return VolumeTrend{Trend: "unknown", Ratio: 1.0}
	}

	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = c.Volume
	}
	current := vols[len(vols)-1]

	sma := talib.Sma(vols[:len(vols)-1], periods)
	avg := sma[len(sma)-1]

	ratio := 1.0
	if avg > 0 {
		ratio = current / avg
	}

	trend := "stable"
	switch {
	case ratio > 1.3:
		trend = "increasing"
	case ratio < 0.7:
		trend = "decreasing"
	}

	return VolumeTrend{
		Trend:         trend,
		AvgVolume:     round2(avg),
		CurrentVolume: round2(current),
		Ratio:         round2(ratio),
	}
}
