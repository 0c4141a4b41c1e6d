package signal

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of a proposed option trade
type Side string

const (
	SideCEBuy Side = "CE_BUY"
	SidePEBuy Side = "PE_BUY"
)

// Valid checks if the side is known
func (s Side) Valid() bool {
	return s == SideCEBuy || s == SidePEBuy
}

// Direction returns the underlying-market reading the side implies
func (s Side) Direction() string {
	if s == SideCEBuy {
		return "BULLISH"
	}
	return "BEARISH"
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideCEBuy {
		return SidePEBuy
	}
	return SideCEBuy
}

// Strength tiers the open-interest unwinding reading behind a signal
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// Signal is one directional trade idea. Immutable once created.
type Signal struct {
	ID        uuid.UUID
	Side      Side
	CreatedAt time.Time

	// Underlying levels (futures points)
	EntryPrice  float64
	TargetPrice float64
	StopLoss    float64

	// Option leg
	ATMStrike         float64
	RecommendedStrike float64
	OptionPremium     float64
	PremiumStop       float64

	// Indicator context at creation
	VWAP         float64
	VWAPDistance float64
	VWAPScore    int
	ATR          float64
	OIChange5m   float64
	OIChange15m  float64
	ATMCEChange  float64
	ATMPEChange  float64
	OIStrength   Strength
	PCR          float64
	VolumeSpike  bool
	VolumeRatio  float64
	OrderFlow    float64
	IsExpiryDay  bool

	// Confidence decomposition
	Confidence    int
	PrimaryChecks int
	BonusChecks   int
}

// RiskReward returns reward per unit of risk, 0 when risk is degenerate
func (s *Signal) RiskReward() float64 {
	risk := s.EntryPrice - s.StopLoss
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	reward := s.TargetPrice - s.EntryPrice
	if reward < 0 {
		reward = -reward
	}
	return reward / risk
}
