package position

import (
	"time"

	"github.com/google/uuid"

	"vega/internal/domain/signal"
)

// Status defines the position lifecycle
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Position wraps exactly one admitted signal while it is being tracked.
// Owned and mutated only by the tracker; everything else sees copies.
type Position struct {
	ID     uuid.UUID
	Signal *signal.Signal
	Status Status

	EntryTime    time.Time
	EntryPremium float64

	// Trailing state, updated every cycle while open
	HighestPremium float64
	TrailingStop   float64

	ExitTime    time.Time
	ExitReason  string
	ExitDetails string
	ExitPremium float64
}

// ProfitLoss returns realized premium P&L, 0 while open
func (p *Position) ProfitLoss() float64 {
	if p.Status != StatusClosed {
		return 0
	}
	return p.ExitPremium - p.EntryPremium
}

// ProfitPercent returns realized P&L as a percentage of entry premium
func (p *Position) ProfitPercent() float64 {
	if p.EntryPremium <= 0 {
		return 0
	}
	return p.ProfitLoss() / p.EntryPremium * 100
}

// HoldTime returns how long the position has been (or was) held
func (p *Position) HoldTime(now time.Time) time.Duration {
	end := now
	if p.Status == StatusClosed {
		end = p.ExitTime
	}
	return end.Sub(p.EntryTime)
}
