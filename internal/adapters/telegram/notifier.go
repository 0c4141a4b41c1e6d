package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"vega/internal/domain/position"
	"vega/internal/domain/signal"
	"vega/pkg/logger"
)

// Notifier formats trade lifecycle events into chat messages. Delivery is
// best effort: a failed send is logged and the cycle continues.
type Notifier struct {
	bot Bot
	log *logger.Logger
}

func NewNotifier(bot Bot, log *logger.Logger) *Notifier {
	return &Notifier{bot: bot, log: log.With("component", "notifier")}
}

// Startup announces the engine coming online with its detected instruments
func (n *Notifier) Startup(futuresSymbol string, futuresExpiry, weeklyExpiry time.Time) {
	var b strings.Builder
	b.WriteString("🚀 <b>NIFTY Engine Started</b>\n\n")
	fmt.Fprintf(&b, "Futures: <code>%s</code> (exp %s)\n", futuresSymbol, futuresExpiry.Format("02 Jan"))
	fmt.Fprintf(&b, "Weekly expiry: %s\n", weeklyExpiry.Format("02 Jan 2006"))
	n.send("startup", b.String())
}

// SignalEntry announces a new position
func (n *Notifier) SignalEntry(s *signal.Signal) {
	emoji := "🟢"
	if s.Side == signal.SidePEBuy {
		emoji = "🔴"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s Signal</b> (%s)\n\n", emoji, s.Side, s.Side.Direction())
	fmt.Fprintf(&b, "Strike: <b>%s %s</b> @ ₹%.2f\n",
		humanize.Commaf(s.RecommendedStrike), legName(s.Side), s.OptionPremium)
	fmt.Fprintf(&b, "Futures entry: %.2f\n", s.EntryPrice)
	fmt.Fprintf(&b, "Target: %.2f | Stop: %.2f (RR %.1f)\n", s.TargetPrice, s.StopLoss, s.RiskReward())
	fmt.Fprintf(&b, "Premium stop: ₹%.2f\n\n", s.PremiumStop)
	fmt.Fprintf(&b, "Confidence: <b>%d%%</b> (%s OI, %d primary +%d bonus)\n",
		s.Confidence, s.OIStrength, s.PrimaryChecks, s.BonusChecks)
	fmt.Fprintf(&b, "OI 5m/15m: %.1f%% / %.1f%% | PCR %.2f | Flow %.2f\n",
		s.OIChange5m, s.OIChange15m, s.PCR, s.OrderFlow)
	fmt.Fprintf(&b, "VWAP %.2f (dist %+.1f, score %d) | ATR %.1f\n",
		s.VWAP, s.VWAPDistance, s.VWAPScore, s.ATR)
	if s.IsExpiryDay {
		b.WriteString("⚠️ Expiry day: widened stop in effect\n")
	}
	n.send("entry", b.String())
}

// PositionExit announces a closed position with realized P&L
func (n *Notifier) PositionExit(p *position.Position, now time.Time) {
	pnl := p.ProfitLoss()
	emoji := "✅"
	if pnl < 0 {
		emoji = "❌"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Exit: %s</b>\n\n", emoji, p.ExitReason)
	fmt.Fprintf(&b, "%s %s %s\n",
		humanize.Commaf(p.Signal.RecommendedStrike), legName(p.Signal.Side), p.Signal.Side.Direction())
	fmt.Fprintf(&b, "Premium: ₹%.2f → ₹%.2f\n", p.EntryPremium, p.ExitPremium)
	fmt.Fprintf(&b, "P&L: <b>%+.2f (%+.1f%%)</b>\n", pnl, p.ProfitPercent())
	fmt.Fprintf(&b, "Held: %s\n", p.HoldTime(now).Round(time.Minute))
	if p.ExitDetails != "" {
		fmt.Fprintf(&b, "\n%s\n", p.ExitDetails)
	}
	n.send("exit", b.String())
}

// TrailingUpdate announces a raised trailing stop on an open position
func (n *Notifier) TrailingUpdate(p *position.Position, details string) {
	var b strings.Builder
	b.WriteString("📈 <b>Trailing Stop Raised</b>\n\n")
	fmt.Fprintf(&b, "%s %s\n", humanize.Commaf(p.Signal.RecommendedStrike), legName(p.Signal.Side))
	fmt.Fprintf(&b, "New stop: ₹%.2f (peak ₹%.2f)\n", p.TrailingStop, p.HighestPremium)
	if details != "" {
		fmt.Fprintf(&b, "%s\n", details)
	}
	n.send("trailing", b.String())
}

func (n *Notifier) send(kind, text string) {
	if err := n.bot.Send(text); err != nil {
		n.log.Warnw("Notification delivery failed", "kind", kind, "error", err)
	}
}

func legName(side signal.Side) string {
	if side == signal.SideCEBuy {
		return "CE"
	}
	return "PE"
}
