package analysis

import (
	"fmt"
	"math"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/internal/domain/signal"
)

// UnwindingResult describes directional open-interest unwinding across the
// 5m and 15m windows. Both timeframes must agree before a side is flagged;
// a single-timeframe move is noise, not unwinding.
type UnwindingResult struct {
	CEUnwinding bool
	PEUnwinding bool
	CEStrength  signal.Strength
	PEStrength  signal.Strength
	MultiTF     bool
}

// ReversalResult is the outcome of the sustained OI-reversal check used
// by the exit path
type ReversalResult struct {
	Triggered bool
	Strength  string
	Value     float64
	Reason    string
}

// OIAnalyzer derives open-interest metrics from the option chain and the
// snapshot store's change readings. Stateless; thresholds come from config.
type OIAnalyzer struct {
	signals config.SignalConfig
	exits   config.ExitConfig
}

func NewOIAnalyzer(signals config.SignalConfig, exits config.ExitConfig) *OIAnalyzer {
	return &OIAnalyzer{signals: signals, exits: exits}
}

// TotalOI sums CE and PE open interest across the whole fetched window
func (a *OIAnalyzer) TotalOI(chain *market.OptionChain) (ce, pe float64) {
	if chain == nil {
		return 0, 0
	}
	for _, d := range chain.Strikes {
		ce += d.CEOpenInterest
		pe += d.PEOpenInterest
	}
	return ce, pe
}

// DeepOI sums CE and PE open interest over the narrow ATM band where
// institutional flow concentrates
func (a *OIAnalyzer) DeepOI(chain *market.OptionChain, gap float64, width int) (ce, pe float64) {
	if chain == nil {
		return 0, 0
	}
	for _, strike := range market.StrikeWindow(chain.ATMStrike, gap, width) {
		if d, ok := chain.Get(strike); ok {
			ce += d.CEOpenInterest
			pe += d.PEOpenInterest
		}
	}
	return ce, pe
}

// PCR is put OI over call OI, capped at 10. Both sides zero reads neutral,
// a zero call side reads as the cap.
func (a *OIAnalyzer) PCR(peOI, ceOI float64) float64 {
	if ceOI == 0 {
		if peOI == 0 {
			return 1.0
		}
		return 10.0
	}
	return round2(math.Min(peOI/ceOI, 10.0))
}

// DetectUnwinding flags CE/PE unwinding from the 5m and 15m percentage
// changes. The 15m reading is the primary timeframe; 5m is confirmation.
func (a *OIAnalyzer) DetectUnwinding(ce5m, ce15m, pe5m, pe15m float64) UnwindingResult {
	r := UnwindingResult{
		CEUnwinding: ce15m < -a.signals.OI15mEntry && ce5m < -a.signals.OI5mEntry,
		PEUnwinding: pe15m < -a.signals.OI15mEntry && pe5m < -a.signals.OI5mEntry,
		CEStrength:  a.strength(ce5m, ce15m),
		PEStrength:  a.strength(pe5m, pe15m),
	}
	r.MultiTF = (ce5m < -2.0 && ce15m < -3.0) || (pe5m < -2.0 && pe15m < -3.0)
	return r
}

func (a *OIAnalyzer) strength(change5m, change15m float64) signal.Strength {
	switch {
	case change15m < -a.signals.OI15mStrong && change5m < -a.signals.OI5mStrong:
		return signal.StrengthStrong
	case change15m < -a.signals.OI15mEntry && change5m < -a.signals.OI5mEntry:
		return signal.StrengthMedium
	default:
		return signal.StrengthWeak
	}
}

// ATMChange compares the ATM strike's OI against the previous scan's chain.
// found=false when there is no previous chain or the ATM strike is missing
// from it, which happens right after an ATM recalculation.
func (a *OIAnalyzer) ATMChange(current, previous *market.OptionChain, atm float64) (ce, pe float64, found bool) {
	if current == nil || previous == nil {
		return 0, 0, false
	}
	curr, ok := current.Get(atm)
	if !ok {
		return 0, 0, false
	}
	prev, ok := previous.Get(atm)
	if !ok {
		return 0, 0, false
	}
	return oiChangePct(prev.CEOpenInterest, curr.CEOpenInterest),
		oiChangePct(prev.PEOpenInterest, curr.PEOpenInterest),
		true
}

func oiChangePct(prev, curr float64) float64 {
	if prev > 0 {
		return round1((curr - prev) / prev * 100)
	}
	if curr > 0 {
		return 100.0
	}
	return 0
}

// CheckOIReversal decides whether open interest is being rebuilt against a
// position. It wants a run of consecutive samples above the reversal
// threshold; a lone sample only counts when it clears the higher spike
// threshold.
func (a *OIAnalyzer) CheckOIReversal(side signal.Side, history []float64) ReversalResult {
	n := a.exits.OIConfirmationSamples
	if len(history) < n {
		return ReversalResult{Reason: "insufficient data"}
	}

	recent := history[len(history)-n:]
	current := recent[len(recent)-1]

	building := 0
	sum := 0.0
	for _, v := range recent {
		if v > a.exits.OIReversalThreshold {
			building++
		}
		sum += v
	}

	if building >= n {
		avg := sum / float64(n)
		strength := "medium"
		if avg > 5.0 {
			strength = "strong"
		}
		return ReversalResult{
			Triggered: true,
			Strength:  strength,
			Value:     avg,
			Reason:    fmt.Sprintf("%s sustained building: %d/%d samples", side, building, n),
		}
	}

	if current > a.exits.OISpikeThreshold {
		return ReversalResult{
			Triggered: true,
			Strength:  "spike",
			Value:     current,
			Reason:    fmt.Sprintf("%s spike: %.1f%%", side, current),
		}
	}

	return ReversalResult{
		Value:  current,
		Reason: fmt.Sprintf("%s OI change %.1f%% not sustained", side, current),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
