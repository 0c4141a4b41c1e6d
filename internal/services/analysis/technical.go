package analysis

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/internal/domain/signal"
)

// CandleShape classifies the most recent futures candle
type CandleShape struct {
	Color         string // GREEN, RED, DOJI, UNKNOWN
	Size          float64
	BodySize      float64
	UpperWick     float64
	LowerWick     float64
	Rejection     bool
	RejectionType string // upper, lower
	Open          float64
	High          float64
	Low           float64
	Close         float64
}

// Momentum summarises the candle-color streak over the last few bars
type Momentum struct {
	Direction        string // bullish, bearish, sideways, unknown
	Strength         int
	ConsecutiveGreen int
	ConsecutiveRed   int
}

// VWAPCheck is the outcome of the fair-value gate. Score is meaningful
// only when Passed.
type VWAPCheck struct {
	Passed bool
	Score  int
	Reason string
}

// TechnicalAnalyzer computes VWAP, ATR and candle-shape metrics from the
// futures candle series
type TechnicalAnalyzer struct {
	signals config.SignalConfig
	exits   config.ExitConfig
}

func NewTechnicalAnalyzer(signals config.SignalConfig, exits config.ExitConfig) *TechnicalAnalyzer {
	return &TechnicalAnalyzer{signals: signals, exits: exits}
}

// VWAP is session-cumulative: cumulative typical-price*volume over
// cumulative volume across all available candles, not a rolling window.
func (a *TechnicalAnalyzer) VWAP(candles []market.Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	var cumPV, cumV float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumV += c.Volume
	}
	if cumV == 0 {
		return 0, false
	}
	return round2(cumPV / cumV), true
}

// VWAPDistance is how many points price sits from VWAP, signed
func (a *TechnicalAnalyzer) VWAPDistance(price, vwap float64) float64 {
	if vwap == 0 || price == 0 {
		return 0
	}
	return round2(price - vwap)
}

// ValidateVWAP is the blocking fair-value gate. A side is rejected when
// price sits beyond the buffer on the wrong side of VWAP, or overextended
// past 3x the buffer on the favorable side. When accepted, the score lands
// in [60,100], higher the closer price is to the favorable edge.
func (a *TechnicalAnalyzer) ValidateVWAP(side signal.Side, price, vwap, atr float64) VWAPCheck {
	if vwap == 0 || price == 0 || atr == 0 {
		return VWAPCheck{Reason: "missing VWAP or price data"}
	}

	distance := price - vwap
	buffer := a.signals.VWAPBuffer
	if a.signals.VWAPStrictMode {
		buffer = atr * a.signals.VWAPATRMultiple
	}

	// PE side mirrors the CE geometry
	favorable := distance
	if side == signal.SidePEBuy {
		favorable = -distance
	}

	if favorable < -buffer {
		return VWAPCheck{Reason: fmt.Sprintf("price %.0f pts on wrong side of VWAP", math.Abs(distance))}
	}
	if favorable > buffer*3 {
		return VWAPCheck{Reason: fmt.Sprintf("price %.0f pts overextended past VWAP", math.Abs(distance))}
	}

	var score float64
	if favorable > 0 {
		score = math.Min(100, 80+favorable/buffer*20)
	} else {
		score = math.Max(60, 80-math.Abs(favorable)/buffer*20)
	}
	return VWAPCheck{
		Passed: true,
		Score:  int(score),
		Reason: fmt.Sprintf("VWAP distance ok: %+.0f pts", distance),
	}
}

// ATR is the simple moving average of true range over the configured
// period, falling back to a constant when history is too short
func (a *TechnicalAnalyzer) ATR(candles []market.Candle) float64 {
	period := a.signals.ATRPeriod
	if len(candles) < period+1 {
		return a.signals.ATRFallback
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trs = append(trs, math.Max(highLow, math.Max(highClose, lowClose)))
	}

	sma := talib.Sma(trs, period)
	atr := sma[len(sma)-1]
	if atr <= 0 || math.IsNaN(atr) {
		return a.signals.ATRFallback
	}
	return round2(atr)
}

// AnalyzeCandle classifies the latest candle and flags rejection wicks
func (a *TechnicalAnalyzer) AnalyzeCandle(candles []market.Candle) CandleShape {
	if len(candles) == 0 {
		return CandleShape{Color: "UNKNOWN"}
	}
	c := candles[len(candles)-1]

	body := math.Abs(c.Close - c.Open)
	upper := c.High - math.Max(c.Open, c.Close)
	lower := math.Min(c.Open, c.Close) - c.Low

	color := "DOJI"
	if c.Close > c.Open {
		color = "GREEN"
	} else if c.Close < c.Open {
		color = "RED"
	}

	shape := CandleShape{
		Color:     color,
		Size:      round2(c.High - c.Low),
		BodySize:  round2(body),
		UpperWick: round2(upper),
		LowerWick: round2(lower),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
	}

	if body > 0 {
		if upper > body*a.exits.CandleRejectionMult {
			shape.Rejection = true
			shape.RejectionType = "upper"
		} else if lower > body*a.exits.CandleRejectionMult {
			shape.Rejection = true
			shape.RejectionType = "lower"
		}
	}
	return shape
}

// DetectMomentum counts candle colors over the last few bars
func (a *TechnicalAnalyzer) DetectMomentum(candles []market.Candle, periods int) Momentum {
	if len(candles) < periods {
		return Momentum{Direction: "unknown"}
	}

	var green, red int
	for _, c := range candles[len(candles)-periods:] {
		if c.Close > c.Open {
			green++
		} else if c.Close < c.Open {
			red++
		}
	}

	m := Momentum{Direction: "sideways", ConsecutiveGreen: green, ConsecutiveRed: red}
	if green >= 2 {
		m.Direction = "bullish"
		m.Strength = green
	} else if red >= 2 {
		m.Direction = "bearish"
		m.Strength = red
	}
	return m
}
