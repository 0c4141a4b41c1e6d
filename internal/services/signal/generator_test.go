package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/internal/domain/signal"
	"vega/internal/services/analysis"
	"vega/pkg/logger"
)

func testSignalConfig() config.SignalConfig {
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
		EarlyConfidence:       85,
		PremiumStopPercent:    30,
		Cooldown:              3 * time.Minute,
		DuplicateWindow:       10 * time.Minute,
		SameStrikeCooldown:    15 * time.Minute,
		OppositeSignalWindow:  10 * time.Minute,
	}
}

func testExitConfig() config.ExitConfig {
	return config.ExitConfig{
		OIReversalThreshold:   1.0,
		OISpikeThreshold:      4.0,
		OIConfirmationSamples: 3,
		VolumeDryThreshold:    0.8,
		PremiumDropPercent:    10,
		CandleRejectionMult:   2,
		TrailingEnabled:       true,
		TrailingDistance:      0.4,
		TrailingNotifyDelta:   2,
		MinHoldTime:           5 * time.Minute,
		MinHoldBeforeOI:       7 * time.Minute,
		MinHoldBeforeVol:      10 * time.Minute,
	}
}

func newTestGenerator() *Generator {
	cfg := testSignalConfig()
	tech := analysis.NewTechnicalAnalyzer(cfg, testExitConfig())
	return NewGenerator(cfg, tech, logger.Get())
}

// bullishContext models the reference setup: CE OI unwinding on both
// timeframes, qualifying ATM reading, volume spike, price at fair value.
func bullishContext() Context {
	cfg := testSignalConfig()
	oi := analysis.NewOIAnalyzer(cfg, testExitConfig())

	ce5m, ce15m := -2.0, -5.0
	return Context{
		Spot:         24010,
		FuturesPrice: 24000,
		ATMStrike:    24000,
		ATMData:      market.StrikeData{Strike: 24000, CELastPrice: 150, PELastPrice: 140},

		VWAP:         24000,
		VWAPDistance: 0,
		ATR:          30,
		PCR:          1.0,

		CE5m: ce5m, PE5m: 0,
		CE15m: ce15m, PE15m: 0,
		Has5m: true, Has15m: true,

		ATMCE15m: -3.0, ATMPE15m: 0.5,
		HasATM15m: true,

		Unwinding: oi.DetectUnwinding(ce5m, ce15m, 0, 0),

		VolumeSpike: true,
		VolumeRatio: 1.8,
		OrderFlow:   0.9,

		Candle:   analysis.CandleShape{Color: "GREEN", Size: 8},
		Momentum: analysis.Momentum{Direction: "bullish", ConsecutiveGreen: 2},
	}
}

func TestGenerate_BullishSetupProducesCEBuy(t *testing.T) {
	g := newTestGenerator()

	s := g.Generate(bullishContext())
	require.NotNil(t, s)
	assert.Equal(t, signal.SideCEBuy, s.Side)
	assert.GreaterOrEqual(t, s.Confidence, 70)
	assert.LessOrEqual(t, s.Confidence, 98)
	assert.Equal(t, signal.StrengthMedium, s.OIStrength)
	assert.GreaterOrEqual(t, s.PrimaryChecks, 2)
}

func TestGenerate_FlatFiveMinuteReadingBlocksCandidate(t *testing.T) {
	g := newTestGenerator()
	cfg := testSignalConfig()
	oi := analysis.NewOIAnalyzer(cfg, testExitConfig())

	// Same setup but the 5m reading is flat: the 15m move alone, even with
	// ATM and volume onside, must not carry the signal.
	ctx := bullishContext()
	ctx.CE5m = 0
	ctx.Unwinding = oi.DetectUnwinding(0, ctx.CE15m, 0, 0)

	assert.Nil(t, g.Generate(ctx))
}

func TestGenerate_MissingHistoryBlocksCandidate(t *testing.T) {
	g := newTestGenerator()

	ctx := bullishContext()
	ctx.Has15m = false

	assert.Nil(t, g.Generate(ctx))
}

func TestGenerate_VWAPGateBlocks(t *testing.T) {
	g := newTestGenerator()

	// Price 100 points under VWAP is far outside the 15-point buffer
	ctx := bullishContext()
	ctx.FuturesPrice = ctx.VWAP - 100

	assert.Nil(t, g.Generate(ctx))
}

func TestGenerate_ATMGapTreatedAsPassed(t *testing.T) {
	g := newTestGenerator()

	ctx := bullishContext()
	ctx.HasATM15m = false
	ctx.VolumeSpike = false // 2 primaries left: unwinding + skipped ATM

	s := g.Generate(ctx)
	require.NotNil(t, s, "missing ATM history is a data gap, not counter-evidence")
	assert.Equal(t, 2, s.PrimaryChecks)
}

func TestGenerate_Levels(t *testing.T) {
	g := newTestGenerator()

	s := g.Generate(bullishContext())
	require.NotNil(t, s)

	assert.Equal(t, 24000.0, s.EntryPrice)
	assert.Equal(t, 24075.0, s.TargetPrice) // entry + 30*2.5
	assert.Equal(t, 23955.0, s.StopLoss)    // entry - 30*1.5
	assert.Equal(t, 150.0, s.OptionPremium)
	assert.InDelta(t, 105.0, s.PremiumStop, 0.001)
	assert.GreaterOrEqual(t, s.RiskReward(), 1.0)
}

func TestGenerate_ExpiryDayWidensStop(t *testing.T) {
	g := newTestGenerator()

	ctx := bullishContext()
	ctx.IsExpiryDay = true

	s := g.Generate(ctx)
	require.NotNil(t, s)
	assert.Equal(t, 23940.0, s.StopLoss) // entry - 30*2.0
}

func TestGenerate_BearishSetupProducesPEBuy(t *testing.T) {
	g := newTestGenerator()
	cfg := testSignalConfig()
	oi := analysis.NewOIAnalyzer(cfg, testExitConfig())

	pe5m, pe15m := -3.0, -4.0
	ctx := Context{
		FuturesPrice: 23995,
		ATMStrike:    24000,
		ATMData:      market.StrikeData{Strike: 24000, CELastPrice: 150, PELastPrice: 140},
		VWAP:         24000,
		VWAPDistance: -5,
		ATR:          30,
		PCR:          0.7,
		PE5m:         pe5m, PE15m: pe15m,
		Has5m: true, Has15m: true,
		ATMPE15m: -2.5, HasATM15m: true,
		Unwinding:   oi.DetectUnwinding(0, 0, pe5m, pe15m),
		VolumeSpike: true,
		VolumeRatio: 1.6,
		OrderFlow:   2.0,
		Candle:      analysis.CandleShape{Color: "RED", Size: 6},
		Momentum:    analysis.Momentum{Direction: "bearish", ConsecutiveRed: 3},
	}

	s := g.Generate(ctx)
	require.NotNil(t, s)
	assert.Equal(t, signal.SidePEBuy, s.Side)
	assert.Equal(t, 140.0, s.OptionPremium)
	assert.Less(t, s.TargetPrice, s.EntryPrice)
	assert.Greater(t, s.StopLoss, s.EntryPrice)
}

func TestGenerate_StrongUnwindingScoresHigher(t *testing.T) {
	g := newTestGenerator()
	cfg := testSignalConfig()
	oi := analysis.NewOIAnalyzer(cfg, testExitConfig())

	medium := bullishContext()
	mediumSignal := g.Generate(medium)
	require.NotNil(t, mediumSignal)

	strong := bullishContext()
	strong.CE5m, strong.CE15m = -4.0, -6.0
	strong.Unwinding = oi.DetectUnwinding(strong.CE5m, strong.CE15m, 0, 0)
	strongSignal := g.Generate(strong)
	require.NotNil(t, strongSignal)

	assert.Equal(t, signal.StrengthStrong, strongSignal.OIStrength)
	assert.Greater(t, strongSignal.Confidence, mediumSignal.Confidence)
}
