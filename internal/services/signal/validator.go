package signal

import (
	"fmt"
	"time"

	"vega/internal/adapters/config"
	"vega/internal/domain/signal"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

const recentHistorySize = 10

type recentSignal struct {
	side   signal.Side
	strike float64
	at     time.Time
}

type lastExit struct {
	side   signal.Side
	strike float64
	at     time.Time
}

// Validator is the gate between a generated candidate and an actionable
// signal. It owns all cross-cycle temporal state: cooldowns, duplicate
// suppression and re-entry guards.
type Validator struct {
	cfg config.SignalConfig
	log *logger.Logger
	now func() time.Time

	lastSignalAt time.Time
	lastExit     *lastExit
	recent       []recentSignal
	accepted     int
}

func NewValidator(cfg config.SignalConfig, log *logger.Logger) *Validator {
	return &Validator{cfg: cfg, log: log, now: time.Now}
}

// Validate admits or rejects a candidate. A nil candidate passes through
// as nil. On admission the cooldown clock resets and the signal enters the
// recent-history ring.
func (v *Validator) Validate(s *signal.Signal) (*signal.Signal, error) {
	if s == nil {
		return nil, nil
	}
	now := v.now()

	if !v.lastSignalAt.IsZero() {
		if elapsed := now.Sub(v.lastSignalAt); elapsed < v.cfg.Cooldown {
			return nil, errors.Wrapf(errors.ErrSignalRejected,
				"cooldown active, %s remaining", (v.cfg.Cooldown - elapsed).Round(time.Second))
		}
	}

	for _, r := range v.recent {
		if r.side == s.Side && r.strike == s.RecommendedStrike &&
			now.Sub(r.at) < v.cfg.DuplicateWindow {
			return nil, errors.Wrapf(errors.ErrSignalRejected,
				"duplicate %s @ %.0f within %s", s.Side, s.RecommendedStrike, v.cfg.DuplicateWindow)
		}
	}

	if v.lastExit != nil {
		sinceExit := now.Sub(v.lastExit.at)
		if v.lastExit.strike == s.RecommendedStrike && sinceExit < v.cfg.SameStrikeCooldown {
			return nil, errors.Wrapf(errors.ErrSignalRejected,
				"strike %.0f exited %s ago", s.RecommendedStrike, sinceExit.Round(time.Second))
		}
		if v.lastExit.side == s.Side.Opposite() && sinceExit < v.cfg.OppositeSignalWindow {
			return nil, errors.Wrapf(errors.ErrSignalRejected,
				"whipsaw guard, opposite %s exited %s ago", v.lastExit.side, sinceExit.Round(time.Second))
		}
	}

	if rr := s.RiskReward(); rr < 1.0 {
		return nil, errors.Wrapf(errors.ErrSignalRejected, "risk reward %.2f below 1.0", rr)
	}

	// Already enforced by the generator, kept as a backstop
	if s.Confidence < v.cfg.MinConfidence {
		return nil, errors.Wrapf(errors.ErrSignalRejected,
			"confidence %d%% below %d%%", s.Confidence, v.cfg.MinConfidence)
	}

	v.lastSignalAt = now
	v.accepted++
	v.recent = append(v.recent, recentSignal{side: s.Side, strike: s.RecommendedStrike, at: now})
	if len(v.recent) > recentHistorySize {
		v.recent = v.recent[len(v.recent)-recentHistorySize:]
	}

	v.log.Infow("Signal validated", "side", s.Side, "strike", s.RecommendedStrike, "confidence", s.Confidence)
	return s, nil
}

// RecordExit feeds re-entry guard state. Called by the position tracker
// whenever a position closes.
func (v *Validator) RecordExit(side signal.Side, strike float64) {
	v.lastExit = &lastExit{side: side, strike: strike, at: v.now()}
	v.log.Infow("Exit recorded for re-entry guards", "side", side, "strike", strike)
}

// CooldownRemaining reports how long until the next signal is admissible
func (v *Validator) CooldownRemaining() time.Duration {
	if v.lastSignalAt.IsZero() {
		return 0
	}
	remaining := v.cfg.Cooldown - v.now().Sub(v.lastSignalAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Accepted returns the number of signals admitted this session
func (v *Validator) Accepted() int {
	return v.accepted
}

// String summarises guard state for the health endpoint
func (v *Validator) String() string {
	return fmt.Sprintf("accepted=%d cooldown=%s", v.accepted, v.CooldownRemaining())
}
