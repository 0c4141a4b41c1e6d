package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vega/internal/domain/market"
	"vega/internal/domain/signal"
)

func TestPCR_Bounds(t *testing.T) {
	a := NewOIAnalyzer(defaultSignalConfig(), defaultExitConfig())

	cases := []struct {
		name   string
		pe, ce float64
		want   float64
	}{
		{"both zero is neutral", 0, 0, 1.0},
		{"zero calls caps", 50000, 0, 10.0},
		{"normal ratio", 120000, 100000, 1.2},
		{"extreme ratio caps", 5000000, 100, 10.0},
		{"zero puts", 0, 100000, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := a.PCR(tc.pe, tc.ce)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 10.0)
		})
	}
}

func TestDetectUnwinding_RequiresBothTimeframes(t *testing.T) {
	a := NewOIAnalyzer(defaultSignalConfig(), defaultExitConfig())

	// 15m qualifies, 5m flat: no unwinding
	r := a.DetectUnwinding(0, -5.0, 0, 0)
	assert.False(t, r.CEUnwinding, "a single timeframe must not trigger unwinding")

	// both qualify
	r = a.DetectUnwinding(-2.0, -5.0, 0, 0)
	assert.True(t, r.CEUnwinding)
	assert.False(t, r.PEUnwinding)
}

func TestDetectUnwinding_StrengthTiers(t *testing.T) {
	a := NewOIAnalyzer(defaultSignalConfig(), defaultExitConfig())

	r := a.DetectUnwinding(-3.0, -4.0, -1.6, -2.0)
	assert.Equal(t, signal.StrengthStrong, r.CEStrength)
	assert.Equal(t, signal.StrengthMedium, r.PEStrength)

	r = a.DetectUnwinding(-0.5, -0.5, 0, 0)
	assert.Equal(t, signal.StrengthWeak, r.CEStrength)
}

func TestATMChange(t *testing.T) {
	a := NewOIAnalyzer(defaultSignalConfig(), defaultExitConfig())

	current := &market.OptionChain{
		ATMStrike: 24000,
		Strikes: map[float64]market.StrikeData{
			24000: {Strike: 24000, CEOpenInterest: 95000, PEOpenInterest: 110000},
		},
	}
	previous := &market.OptionChain{
		ATMStrike: 24000,
		Strikes: map[float64]market.StrikeData{
			24000: {Strike: 24000, CEOpenInterest: 100000, PEOpenInterest: 100000},
		},
	}

	ce, pe, found := a.ATMChange(current, previous, 24000)
	assert.True(t, found)
	assert.InDelta(t, -5.0, ce, 0.001)
	assert.InDelta(t, 10.0, pe, 0.001)

	// No previous chain at all
	_, _, found = a.ATMChange(current, nil, 24000)
	assert.False(t, found)

	// ATM moved, previous chain has no data at the new strike
	_, _, found = a.ATMChange(current, &market.OptionChain{Strikes: map[float64]market.StrikeData{}}, 24000)
	assert.False(t, found)
}

func TestCheckOIReversal(t *testing.T) {
	a := NewOIAnalyzer(defaultSignalConfig(), defaultExitConfig())

	t.Run("insufficient history", func(t *testing.T) {
		r := a.CheckOIReversal(signal.SideCEBuy, []float64{2.0})
		assert.False(t, r.Triggered)
		assert.Equal(t, "insufficient data", r.Reason)
	})

	t.Run("sustained building triggers", func(t *testing.T) {
		r := a.CheckOIReversal(signal.SideCEBuy, []float64{1.5, 2.0, 1.8})
		assert.True(t, r.Triggered)
		assert.Equal(t, "medium", r.Strength)
	})

	t.Run("strong average", func(t *testing.T) {
		r := a.CheckOIReversal(signal.SideCEBuy, []float64{6.0, 5.5, 7.0})
		assert.True(t, r.Triggered)
		assert.Equal(t, "strong", r.Strength)
	})

	t.Run("single sample below spike threshold is noise", func(t *testing.T) {
		r := a.CheckOIReversal(signal.SideCEBuy, []float64{0.1, 0.2, 2.5})
		assert.False(t, r.Triggered)
	})

	t.Run("spike exception", func(t *testing.T) {
		r := a.CheckOIReversal(signal.SideCEBuy, []float64{0.1, 0.2, 4.5})
		assert.True(t, r.Triggered)
		assert.Equal(t, "spike", r.Strength)
	})
}

func TestDeepOI(t *testing.T) {
	a := NewOIAnalyzer(defaultSignalConfig(), defaultExitConfig())

	chain := &market.OptionChain{ATMStrike: 24000, Strikes: map[float64]market.StrikeData{}}
	for _, s := range market.StrikeWindow(24000, 50, 5) {
		chain.Strikes[s] = market.StrikeData{Strike: s, CEOpenInterest: 1000, PEOpenInterest: 2000}
	}

	ce, pe := a.TotalOI(chain)
	assert.Equal(t, 11000.0, ce)
	assert.Equal(t, 22000.0, pe)

	deepCE, deepPE := a.DeepOI(chain, 50, 2)
	assert.Equal(t, 5000.0, deepCE)
	assert.Equal(t, 10000.0, deepPE)
}
