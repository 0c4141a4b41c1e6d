package signal

import (
	"time"

	"github.com/google/uuid"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/internal/domain/signal"
	"vega/internal/services/analysis"
	"vega/pkg/logger"
)

// Context carries one scan cycle's analyzer output into signal generation.
// Assembled by the scanner, read-only here.
type Context struct {
	Spot         float64
	FuturesPrice float64
	ATMStrike    float64
	ATMData      market.StrikeData

	VWAP         float64
	VWAPDistance float64
	ATR          float64
	PCR          float64

	// Total OI changes with history availability
	CE5m, PE5m   float64
	CE15m, PE15m float64
	Has5m        bool
	Has15m       bool

	// ATM strike OI changes
	ATMCE15m, ATMPE15m float64
	HasATM15m          bool

	Unwinding analysis.UnwindingResult

	VolumeSpike bool
	VolumeRatio float64
	OrderFlow   float64

	Candle   analysis.CandleShape
	Momentum analysis.Momentum

	IsExpiryDay bool
}

// Generator proposes at most one entry candidate per cycle. The call side
// is evaluated first; if it qualifies the put side is never considered.
type Generator struct {
	cfg  config.SignalConfig
	tech *analysis.TechnicalAnalyzer
	log  *logger.Logger
	now  func() time.Time
}

func NewGenerator(cfg config.SignalConfig, tech *analysis.TechnicalAnalyzer, log *logger.Logger) *Generator {
	return &Generator{cfg: cfg, tech: tech, log: log, now: time.Now}
}

// Generate evaluates both directions and returns the first qualifying
// candidate, or nil
func (g *Generator) Generate(ctx Context) *signal.Signal {
	if s := g.evaluate(signal.SideCEBuy, ctx); s != nil {
		return s
	}
	return g.evaluate(signal.SidePEBuy, ctx)
}

func (g *Generator) evaluate(side signal.Side, ctx Context) *signal.Signal {
	// Blocking fair-value gate
	vwapCheck := g.tech.ValidateVWAP(side, ctx.FuturesPrice, ctx.VWAP, ctx.ATR)
	if !vwapCheck.Passed {
		g.log.Debugw("Candidate blocked at VWAP gate", "side", side, "reason", vwapCheck.Reason)
		return nil
	}

	// Primary checks. Directional unwinding needs both timeframes and is
	// non-negotiable; a single-timeframe move never carries a signal on
	// its own, whatever the other checks say.
	var unwinding bool
	var strength signal.Strength
	var atmChange float64
	if side == signal.SideCEBuy {
		unwinding = ctx.Unwinding.CEUnwinding && ctx.Has5m && ctx.Has15m
		strength = ctx.Unwinding.CEStrength
		atmChange = ctx.ATMCE15m
	} else {
		unwinding = ctx.Unwinding.PEUnwinding && ctx.Has5m && ctx.Has15m
		strength = ctx.Unwinding.PEStrength
		atmChange = ctx.ATMPE15m
	}
	if !unwinding {
		return nil
	}

	// ATM history can be legitimately absent right after an ATM shift;
	// that gap is not evidence against the setup, so the check passes.
	atmUnwinding := true
	if ctx.HasATM15m {
		atmUnwinding = atmChange < -g.cfg.ATMOIEntry
	}

	primary := countTrue(unwinding, atmUnwinding, ctx.VolumeSpike)
	if primary < g.cfg.MinPrimaryChecks {
		g.log.Debugw("Candidate discarded on primary checks", "side", side, "passed", primary)
		return nil
	}

	// Secondary checks, additive only
	var priceAligned, candleAligned bool
	if side == signal.SideCEBuy {
		priceAligned = ctx.FuturesPrice > ctx.VWAP
		candleAligned = ctx.Candle.Color == "GREEN"
	} else {
		priceAligned = ctx.FuturesPrice < ctx.VWAP
		candleAligned = ctx.Candle.Color == "RED"
	}

	bonus := g.countBonus(side, ctx)

	confidence := g.confidence(strength, atmUnwinding, ctx.VolumeSpike, vwapCheck.Score,
		candleAligned, priceAligned, bonus)
	if confidence < g.cfg.MinConfidence {
		g.log.Debugw("Candidate below confidence floor", "side", side, "confidence", confidence)
		return nil
	}

	stopMult := g.cfg.ATRStopMultiplier
	if ctx.IsExpiryDay {
		stopMult = g.cfg.ATRStopGammaMult
	}

	entry := ctx.FuturesPrice
	var target, stop float64
	if side == signal.SideCEBuy {
		target = entry + ctx.ATR*g.cfg.ATRTargetMultiplier
		stop = entry - ctx.ATR*stopMult
	} else {
		target = entry - ctx.ATR*g.cfg.ATRTargetMultiplier
		stop = entry + ctx.ATR*stopMult
	}

	premium := ctx.ATMData.CELastPrice
	if side == signal.SidePEBuy {
		premium = ctx.ATMData.PELastPrice
	}

	oi5m, oi15m := ctx.CE5m, ctx.CE15m
	if side == signal.SidePEBuy {
		oi5m, oi15m = ctx.PE5m, ctx.PE15m
	}

	s := &signal.Signal{
		ID:        uuid.New(),
		Side:      side,
		CreatedAt: g.now(),

		EntryPrice:  entry,
		TargetPrice: target,
		StopLoss:    stop,

		ATMStrike:         ctx.ATMStrike,
		RecommendedStrike: ctx.ATMStrike,
		OptionPremium:     premium,
		PremiumStop:       premium * (1 - g.cfg.PremiumStopPercent/100),

		VWAP:         ctx.VWAP,
		VWAPDistance: ctx.VWAPDistance,
		VWAPScore:    vwapCheck.Score,
		ATR:          ctx.ATR,
		OIChange5m:   oi5m,
		OIChange15m:  oi15m,
		ATMCEChange:  ctx.ATMCE15m,
		ATMPEChange:  ctx.ATMPE15m,
		OIStrength:   strength,
		PCR:          ctx.PCR,
		VolumeSpike:  ctx.VolumeSpike,
		VolumeRatio:  ctx.VolumeRatio,
		OrderFlow:    ctx.OrderFlow,
		IsExpiryDay:  ctx.IsExpiryDay,

		Confidence:    confidence,
		PrimaryChecks: primary,
		BonusChecks:   bonus,
	}

	g.log.Infow("Entry candidate produced",
		"side", side,
		"confidence", confidence,
		"primary", primary,
		"bonus", bonus,
		"strength", strength,
		"entry", entry,
		"target", target,
		"stop", stop,
	)
	return s
}

// countBonus tallies the non-gating extras, up to nine
func (g *Generator) countBonus(side signal.Side, ctx Context) int {
	var strong5m, vwapSide, pcrAligned, momentumRun, flowAligned bool
	if side == signal.SideCEBuy {
		strong5m = ctx.CE5m < -g.cfg.OI5mStrong && ctx.Has5m
		vwapSide = ctx.VWAPDistance >= g.cfg.VWAPBuffer
		pcrAligned = ctx.PCR > g.cfg.PCRBullish
		momentumRun = ctx.Momentum.ConsecutiveGreen >= 2
		flowAligned = ctx.OrderFlow < 1.0
	} else {
		strong5m = ctx.PE5m < -g.cfg.OI5mStrong && ctx.Has5m
		vwapSide = ctx.VWAPDistance <= -g.cfg.VWAPBuffer
		pcrAligned = ctx.PCR < g.cfg.PCRBearish
		momentumRun = ctx.Momentum.ConsecutiveRed >= 2
		flowAligned = ctx.OrderFlow > 1.5
	}

	return countTrue(
		strong5m,
		ctx.Candle.Size >= g.cfg.MinCandleSize,
		vwapSide,
		pcrAligned,
		momentumRun,
		flowAligned,
		ctx.Unwinding.MultiTF,
		ctx.IsExpiryDay,
		ctx.VolumeRatio >= 2.0,
	)
}

// confidence folds the check tiers into one 0..98 score. The directional
// primary is weighted by its OI strength tier so a strong unwinding reading
// moves the score more than a marginal one.
func (g *Generator) confidence(strength signal.Strength, atmPassed, volumeSpike bool,
	vwapScore int, candleAligned, priceAligned bool, bonus int) int {

	confidence := 40

	switch strength {
	case signal.StrengthStrong:
		confidence += 22
	case signal.StrengthMedium:
		confidence += 18
	default:
		confidence += 14
	}

	if atmPassed {
		confidence += 15
	}
	if volumeSpike {
		confidence += 10
	}

	// Proximity to fair value, worth up to 5
	proximity := (vwapScore - 60) / 8
	if proximity > 5 {
		proximity = 5
	}
	if proximity > 0 {
		confidence += proximity
	}

	if candleAligned {
		confidence += 3
	}
	if priceAligned {
		confidence += 2
	}

	bonusPoints := bonus * 2
	if bonusPoints > 12 {
		bonusPoints = 12
	}
	confidence += bonusPoints

	if confidence > 98 {
		confidence = 98
	}
	return confidence
}

func countTrue(checks ...bool) int {
	n := 0
	for _, c := range checks {
		if c {
			n++
		}
	}
	return n
}
