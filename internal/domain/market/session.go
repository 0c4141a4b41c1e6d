package market

import (
	"time"
)

// SessionState describes where the current instant falls in the trading day
type SessionState string

const (
	SessionClosed    SessionState = "closed"
	SessionPremarket SessionState = "premarket"
	SessionOpening   SessionState = "opening" // 9:15, ignored for freak trades
	SessionWarmup    SessionState = "warmup"
	SessionOpen      SessionState = "open"
)

// Session answers market-hours questions for one exchange calendar.
// All boundaries are minutes-from-midnight in the exchange timezone.
type Session struct {
	loc *time.Location
}

// NewSession loads the exchange timezone; tz defaults to IST on failure
func NewSession(tz string) *Session {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return &Session{loc: loc}
}

// Location returns the exchange timezone
func (s *Session) Location() *time.Location {
	return s.loc
}

// Now returns the current instant in the exchange timezone
func (s *Session) Now() time.Time {
	return time.Now().In(s.loc)
}

func (s *Session) minuteOfDay(t time.Time) int {
	t = t.In(s.loc)
	return t.Hour()*60 + t.Minute()
}

// State classifies t within the trading day
func (s *Session) State(t time.Time) SessionState {
	m := s.minuteOfDay(t)
	switch {
	case m < 9*60+10 || m >= 15*60+30:
		return SessionClosed
	case m < 9*60+15:
		return SessionPremarket
	case m < 9*60+16:
		return SessionOpening
	case m < 9*60+21:
		return SessionWarmup
	default:
		return SessionOpen
	}
}

// InSignalWindow reports whether new entries may be proposed at t
// (9:21 through the 15:15 pre-close cutoff)
func (s *Session) InSignalWindow(t time.Time) bool {
	m := s.minuteOfDay(t)
	return m >= 9*60+21 && m < 15*60+15
}

// PastCloseCutoff reports whether open positions must be force-closed
func (s *Session) PastCloseCutoff(t time.Time) bool {
	return s.minuteOfDay(t) >= 15*60+15
}

// NextWeeklyExpiry returns the next Tuesday on or after t's date
func (s *Session) NextWeeklyExpiry(t time.Time) time.Time {
	t = t.In(s.loc)
	daysAhead := (int(time.Tuesday) - int(t.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	expiry := t.AddDate(0, 0, daysAhead)
	return time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, s.loc)
}

// IsExpiryDay reports whether t falls on the weekly option expiry date
func (s *Session) IsExpiryDay(t time.Time) bool {
	t = t.In(s.loc)
	return t.Weekday() == time.Tuesday
}
