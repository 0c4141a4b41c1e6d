package position

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	"vega/internal/domain/position"
	"vega/internal/domain/signal"
	"vega/internal/services/analysis"
	"vega/pkg/logger"
)

// Exit reasons, in ladder order
const (
	ReasonStopLoss        = "Stop Loss Hit"
	ReasonTarget          = "Target Hit"
	ReasonMarketClosing   = "Market Closing"
	ReasonOIReversal      = "OI Reversal"
	ReasonTrailingStop    = "Trailing SL Hit"
	ReasonPremiumDrop     = "Premium Drop"
	ReasonVolumeDried     = "Volume Dried"
	ReasonCandleRejection = "Candle Rejection"
	ReasonForced          = "Forced Close"
)

// EventType separates real exits from trailing-stop bookkeeping updates
type EventType string

const (
	EventExit     EventType = "exit"
	EventTrailing EventType = "trailing_updated"
)

// Event is what one exit evaluation produced, nil when the position holds
type Event struct {
	Type    EventType
	Reason  string
	Details string
	Premium float64
}

// CycleData is the per-cycle market view the tracker evaluates against
type CycleData struct {
	FuturesPrice float64

	// Directional 5m total OI changes, valid only when HasOIChange
	CE5m, PE5m  float64
	HasOIChange bool

	VolumeRatio float64
	Candle      analysis.CandleShape
	Chain       *market.OptionChain

	PastCloseCutoff bool
}

// Tracker owns the single open position and its strictly ordered exit
// ladder. Hard price levels fire first, the softer indicator exits only
// after the minimum hold time.
type Tracker struct {
	cfg       config.ExitConfig
	strikeGap float64
	oi        *analysis.OIAnalyzer
	log       *logger.Logger
	now       func() time.Time

	active    *position.Position
	closed    []*position.Position
	oiHistory []float64 // own-direction 5m OI changes while holding
}

func NewTracker(cfg config.ExitConfig, strikeGap float64, oi *analysis.OIAnalyzer, log *logger.Logger) *Tracker {
	return &Tracker{cfg: cfg, strikeGap: strikeGap, oi: oi, log: log, now: time.Now}
}

// HasActive reports whether a position is currently open
func (t *Tracker) HasActive() bool {
	return t.active != nil && t.active.Status == position.StatusOpen
}

// Active returns the open position, nil when flat
func (t *Tracker) Active() *position.Position {
	if !t.HasActive() {
		return nil
	}
	return t.active
}

// Closed returns the closed-position history for this session
func (t *Tracker) Closed() []*position.Position {
	return t.closed
}

// Open starts tracking an admitted signal. An already-open position is an
// anomaly: it is force-closed flat before the new one opens, never dropped.
func (t *Tracker) Open(s *signal.Signal) *position.Position {
	if t.HasActive() {
		t.log.Warnw("Opening position while one is active, force closing old one",
			"old_side", t.active.Signal.Side, "new_side", s.Side)
		t.Close(ReasonForced, "new signal received", 0)
	}

	p := &position.Position{
		ID:             uuid.New(),
		Signal:         s,
		Status:         position.StatusOpen,
		EntryTime:      t.now(),
		EntryPremium:   s.OptionPremium,
		HighestPremium: s.OptionPremium,
	}
	if t.cfg.TrailingEnabled {
		p.TrailingStop = s.PremiumStop
	}

	t.active = p
	t.oiHistory = t.oiHistory[:0]
	t.log.Infow("Position opened",
		"side", s.Side, "strike", s.RecommendedStrike, "premium", s.OptionPremium)
	return p
}

// CheckExit runs the exit ladder against this cycle's data. First match
// wins; nothing later in the ladder can override an earlier decision.
// A returned EventTrailing is a notification, not an exit.
func (t *Tracker) CheckExit(data CycleData) *Event {
	if !t.HasActive() {
		return nil
	}
	p := t.active
	s := p.Signal

	premium := t.EstimatePremium(data, s)
	trailingMoved := t.updateTrailing(p, premium)

	if data.HasOIChange {
		change := data.CE5m
		if s.Side == signal.SidePEBuy {
			change = data.PE5m
		}
		t.oiHistory = append(t.oiHistory, change)
	}

	hold := p.HoldTime(t.now())

	// 1. Stop loss on the underlying
	if breached(s.Side, data.FuturesPrice, s.StopLoss, false) {
		return t.exit(ReasonStopLoss,
			fmt.Sprintf("price %.2f through stop %.2f", data.FuturesPrice, s.StopLoss), premium)
	}

	// 2. Target on the underlying
	if breached(s.Side, data.FuturesPrice, s.TargetPrice, true) {
		return t.exit(ReasonTarget,
			fmt.Sprintf("price %.2f through target %.2f", data.FuturesPrice, s.TargetPrice), premium)
	}

	// 3. Forced close ahead of the session cutoff
	if data.PastCloseCutoff {
		return t.exit(ReasonMarketClosing, "closing ahead of market close", premium)
	}

	// Everything below is indicator noise territory until the position
	// has had time to breathe
	if hold < t.cfg.MinHoldTime {
		return t.trailingEvent(p, trailingMoved)
	}

	// 5. Sustained OI rebuilding against the position
	if hold >= t.cfg.MinHoldBeforeOI {
		if r := t.oi.CheckOIReversal(s.Side, t.oiHistory); r.Triggered {
			return t.exit(ReasonOIReversal, r.Reason, premium)
		}
	}

	// 6. Trailing stop on estimated premium
	if t.cfg.TrailingEnabled && p.TrailingStop > 0 && premium < p.TrailingStop {
		return t.exit(ReasonTrailingStop,
			fmt.Sprintf("premium %.2f under trail %.2f", premium, p.TrailingStop), premium)
	}

	// 7. Drawdown from the premium high-water mark
	if p.HighestPremium > 0 {
		drop := (p.HighestPremium - premium) / p.HighestPremium * 100
		if drop >= t.cfg.PremiumDropPercent {
			return t.exit(ReasonPremiumDrop,
				fmt.Sprintf("down %.1f%% from peak %.2f", drop, p.HighestPremium), premium)
		}
	}

	// 8. Participation drying up, only meaningful on a longer hold
	if hold >= t.cfg.MinHoldBeforeVol && data.VolumeRatio > 0 && data.VolumeRatio < t.cfg.VolumeDryThreshold {
		return t.exit(ReasonVolumeDried,
			fmt.Sprintf("volume ratio %.1fx", data.VolumeRatio), premium)
	}

	// 9. Rejection wick against the direction
	if data.Candle.Rejection {
		if (s.Side == signal.SideCEBuy && data.Candle.RejectionType == "upper") ||
			(s.Side == signal.SidePEBuy && data.Candle.RejectionType == "lower") {
			return t.exit(ReasonCandleRejection,
				fmt.Sprintf("long %s wick", data.Candle.RejectionType), premium)
		}
	}

	return t.trailingEvent(p, trailingMoved)
}

// Close is the terminal mutation. A zero exit premium records a flat close
// at entry.
func (t *Tracker) Close(reason, details string, exitPremium float64) *position.Position {
	if t.active == nil {
		return nil
	}
	p := t.active

	p.Status = position.StatusClosed
	p.ExitTime = t.now()
	p.ExitReason = reason
	p.ExitDetails = details
	p.ExitPremium = exitPremium
	if p.ExitPremium <= 0 {
		p.ExitPremium = p.EntryPremium
	}

	t.closed = append(t.closed, p)
	t.active = nil
	t.oiHistory = t.oiHistory[:0]

	t.log.Infow("Position closed",
		"reason", reason,
		"details", details,
		"pnl", p.ProfitLoss(),
		"pnl_pct", p.ProfitPercent(),
		"held", p.HoldTime(t.now()).Round(time.Second))
	return p
}

// EstimatePremium values the option leg: live chain price first, then a
// delta approximation from the underlying move, floored above zero
func (t *Tracker) EstimatePremium(data CycleData, s *signal.Signal) float64 {
	if data.Chain != nil {
		if d, ok := data.Chain.Get(s.RecommendedStrike); ok {
			ltp := d.CELastPrice
			if s.Side == signal.SidePEBuy {
				ltp = d.PELastPrice
			}
			if ltp > 0 {
				return ltp
			}
		}
	}

	move := data.FuturesPrice - s.EntryPrice
	if s.Side == signal.SidePEBuy {
		move = -move
	}

	estimated := s.OptionPremium + move*t.delta(s, data.FuturesPrice)
	if estimated < 0.05 {
		return 0.05
	}
	return estimated
}

// delta picks an approximate option delta by moneyness band: deep in the
// money moves near-linearly, far out barely moves
func (t *Tracker) delta(s *signal.Signal, futuresPrice float64) float64 {
	moneyness := futuresPrice - s.RecommendedStrike
	if s.Side == signal.SidePEBuy {
		moneyness = -moneyness
	}

	switch {
	case moneyness >= t.strikeGap:
		return 0.7
	case moneyness <= -t.strikeGap:
		return 0.3
	default:
		return 0.5
	}
}

// updateTrailing advances the premium high-water mark and the trailing
// stop. Returns the stop move in percent when it is worth announcing.
func (t *Tracker) updateTrailing(p *position.Position, premium float64) float64 {
	if premium <= p.HighestPremium {
		return 0
	}
	p.HighestPremium = premium

	if !t.cfg.TrailingEnabled {
		return 0
	}
	newStop := premium * (1 - t.cfg.TrailingDistance)
	if newStop <= p.TrailingStop {
		return 0
	}
	oldStop := p.TrailingStop
	p.TrailingStop = newStop

	if oldStop <= 0 {
		return 0
	}
	return (newStop - oldStop) / oldStop * 100
}

func (t *Tracker) trailingEvent(p *position.Position, movedPct float64) *Event {
	if movedPct < t.cfg.TrailingNotifyDelta {
		return nil
	}
	t.log.Infow("Trailing stop raised", "stop", p.TrailingStop, "moved_pct", movedPct)
	return &Event{
		Type:    EventTrailing,
		Reason:  "trailing stop raised",
		Details: fmt.Sprintf("stop now %.2f, peak %.2f", p.TrailingStop, p.HighestPremium),
		Premium: p.TrailingStop,
	}
}

func (t *Tracker) exit(reason, details string, premium float64) *Event {
	return &Event{Type: EventExit, Reason: reason, Details: details, Premium: premium}
}

// breached compares price against a level in the position's direction.
// target=true checks the favorable side, otherwise the stop side.
func breached(side signal.Side, price, level float64, target bool) bool {
	if side == signal.SideCEBuy {
		if target {
			return price >= level
		}
		return price <= level
	}
	if target {
		return price <= level
	}
	return price >= level
}
