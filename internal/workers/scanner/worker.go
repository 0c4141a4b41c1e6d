package scanner

import (
	"context"
	"time"

	"vega/internal/adapters/config"
	"vega/internal/domain/market"
	domainpos "vega/internal/domain/position"
	domainsig "vega/internal/domain/signal"
	"vega/internal/metrics"
	"vega/internal/services/analysis"
	"vega/internal/services/position"
	"vega/internal/services/signal"
	"vega/internal/services/snapshot"
	"vega/internal/workers"
	"vega/pkg/errors"
)

const (
	volumeTrendPeriods  = 5
	momentumPeriods     = 3
	earlyWarmupMinutes  = 5
	fullOIWindowMinutes = 15
)

// MarketProvider supplies one validated market view per cycle
type MarketProvider interface {
	Fetch(ctx context.Context) (*market.MarketData, error)
}

// Notifier receives trade lifecycle events. Delivery failures must not
// propagate back into the cycle.
type Notifier interface {
	SignalEntry(s *domainsig.Signal)
	PositionExit(p *domainpos.Position, now time.Time)
	TrailingUpdate(p *domainpos.Position, details string)
}

// Worker drives one full decision cycle per tick: fetch, snapshot,
// analyze, manage the open position, then look for a new entry.
type Worker struct {
	*workers.BaseWorker

	session  *market.Session
	provider MarketProvider
	store    *snapshot.Store

	oi    *analysis.OIAnalyzer
	vol   *analysis.VolumeAnalyzer
	tech  *analysis.TechnicalAnalyzer
	struc *analysis.StructureAnalyzer

	generator *signal.Generator
	validator *signal.Validator
	tracker   *position.Tracker
	notifier  Notifier

	marketCfg config.MarketConfig
	signalCfg config.SignalConfig

	// Previous cycle's chain, fallback baseline for the ATM reading
	// until the snapshot store has enough history
	prevChain *market.OptionChain

	now func() time.Time
}

type Deps struct {
	Session   *market.Session
	Provider  MarketProvider
	Store     *snapshot.Store
	OI        *analysis.OIAnalyzer
	Volume    *analysis.VolumeAnalyzer
	Technical *analysis.TechnicalAnalyzer
	Structure *analysis.StructureAnalyzer
	Generator *signal.Generator
	Validator *signal.Validator
	Tracker   *position.Tracker
	Notifier  Notifier
	MarketCfg config.MarketConfig
	SignalCfg config.SignalConfig
}

func New(interval time.Duration, deps Deps) *Worker {
	return &Worker{
		BaseWorker: workers.NewBaseWorker("scanner", interval, true),
		session:    deps.Session,
		provider:   deps.Provider,
		store:      deps.Store,
		oi:         deps.OI,
		vol:        deps.Volume,
		tech:       deps.Technical,
		struc:      deps.Structure,
		generator:  deps.Generator,
		validator:  deps.Validator,
		tracker:    deps.Tracker,
		notifier:   deps.Notifier,
		marketCfg:  deps.MarketCfg,
		signalCfg:  deps.SignalCfg,
		now:        deps.Session.Now,
	}
}

// Run executes one scan cycle
func (w *Worker) Run(ctx context.Context) error {
	start := time.Now()
	err := w.cycle(ctx)
	duration := time.Since(start)

	switch {
	case errors.Is(err, errSkipped):
		metrics.RecordScan("skipped", duration)
		w.RecordRun(duration)
		return nil
	case err != nil:
		metrics.RecordScan("error", duration)
		w.RecordError(err, duration)
		return err
	default:
		metrics.RecordScan("success", duration)
		w.RecordRun(duration)
		return nil
	}
}

var errSkipped = errors.New("cycle skipped")

func (w *Worker) cycle(ctx context.Context) error {
	now := w.now()

	switch w.session.State(now) {
	case market.SessionClosed, market.SessionPremarket:
		w.Log().Debugw("Market not open, skipping cycle", "state", w.session.State(now))
		return errSkipped
	case market.SessionOpening:
		// First post-open minute carries freak trades, ignore it entirely
		w.Log().Debugw("Skipping opening minute")
		return errSkipped
	}

	data, err := w.provider.Fetch(ctx)
	if err != nil {
		metrics.FetchErrors.Inc()
		return errors.Wrap(err, "fetch market data")
	}

	w.recordSnapshots(ctx, data)

	view := w.analyze(ctx, data, now)

	maxPain, _ := w.struc.MaxPain(data.Chain)
	sentiment := w.struc.CalculateSentiment(view.PCR, view.OrderFlow, view.CE15m, view.PE15m)
	deepCE, deepPE := w.oi.DeepOI(data.Chain, w.marketCfg.StrikeGap, w.marketCfg.DeepStrikes)
	w.Log().Debugw("Market pulse",
		"spot", data.Spot,
		"futures", data.FuturesPrice,
		"pcr", view.PCR,
		"deep_pcr", w.oi.PCR(deepPE, deepCE),
		"sentiment", sentiment,
		"max_pain", maxPain,
		"vwap_dist", view.VWAPDistance,
		"ce_15m", view.CE15m,
		"pe_15m", view.PE15m)

	exited := w.managePosition(data, view, now)

	// A same-cycle re-entry after an exit would trade on the exact data
	// that just killed a position
	if !exited && w.session.InSignalWindow(now) {
		w.findEntry(ctx, view)
	}

	w.prevChain = data.Chain
	metrics.SnapshotCount.Set(float64(w.store.Stats(ctx).SnapshotCount))
	return nil
}

// recordSnapshots persists this cycle's open interest for later lookback
func (w *Worker) recordSnapshots(ctx context.Context, data *market.MarketData) {
	ceOI, peOI := w.oi.TotalOI(data.Chain)
	if err := w.store.RecordAggregate(ctx, ceOI, peOI); err != nil {
		w.Log().Warnw("Aggregate snapshot write failed", "error", err)
	}
	for _, d := range data.Chain.Strikes {
		if err := w.store.RecordStrike(ctx, d); err != nil {
			w.Log().Warnw("Strike snapshot write failed", "strike", d.Strike, "error", err)
		}
	}
}

// analyze turns raw market data into the generator's full context
func (w *Worker) analyze(ctx context.Context, data *market.MarketData, now time.Time) signal.Context {
	chain := data.Chain
	ceOI, peOI := w.oi.TotalOI(chain)

	view := signal.Context{
		Spot:         data.Spot,
		FuturesPrice: data.FuturesPrice,
		ATMStrike:    chain.ATMStrike,
		ATMData:      chain.ATM(),
		PCR:          w.oi.PCR(peOI, ceOI),
		OrderFlow:    w.vol.OrderFlow(chain),
		Candle:       w.tech.AnalyzeCandle(data.Candles),
		Momentum:     w.tech.DetectMomentum(data.Candles, momentumPeriods),
		ATR:          w.tech.ATR(data.Candles),
		IsExpiryDay:  w.session.IsExpiryDay(now),
	}

	if vwap, ok := w.tech.VWAP(data.Candles); ok {
		view.VWAP = vwap
		view.VWAPDistance = w.tech.VWAPDistance(data.FuturesPrice, vwap)
	}

	view.CE5m, view.PE5m, view.Has5m = w.store.AggregateChange(ctx, ceOI, peOI, 5)
	view.CE15m, view.PE15m, view.Has15m = w.store.AggregateChange(ctx, ceOI, peOI, fullOIWindowMinutes)
	view.Unwinding = w.oi.DetectUnwinding(view.CE5m, view.CE15m, view.PE5m, view.PE15m)

	atm := chain.ATM()
	view.ATMCE15m, view.ATMPE15m, view.HasATM15m =
		w.store.StrikeChange(ctx, chain.ATMStrike, atm, fullOIWindowMinutes)
	if !view.HasATM15m && w.prevChain != nil {
		// Scan-over-scan fallback while the store warms up
		view.ATMCE15m, view.ATMPE15m, view.HasATM15m =
			w.oi.ATMChange(chain, w.prevChain, chain.ATMStrike)
	}

	trend := w.vol.Trend(data.Candles, volumeTrendPeriods)
	view.VolumeSpike, view.VolumeRatio = w.vol.DetectSpike(trend.CurrentVolume, trend.AvgVolume)

	return view
}

// managePosition runs the exit ladder; returns true when a position was
// closed this cycle
func (w *Worker) managePosition(data *market.MarketData, view signal.Context, now time.Time) bool {
	if !w.tracker.HasActive() {
		return false
	}

	cd := position.CycleData{
		FuturesPrice:    data.FuturesPrice,
		CE5m:            view.CE5m,
		PE5m:            view.PE5m,
		HasOIChange:     view.Has5m,
		VolumeRatio:     view.VolumeRatio,
		Candle:          view.Candle,
		Chain:           data.Chain,
		PastCloseCutoff: w.session.PastCloseCutoff(now),
	}

	ev := w.tracker.CheckExit(cd)
	if ev == nil {
		return false
	}

	if ev.Type == position.EventTrailing {
		w.notifier.TrailingUpdate(w.tracker.Active(), ev.Details)
		return false
	}

	active := w.tracker.Active()
	w.validator.RecordExit(active.Signal.Side, active.Signal.RecommendedStrike)
	closed := w.tracker.Close(ev.Reason, ev.Details, ev.Premium)
	metrics.PositionExits.WithLabelValues(ev.Reason).Inc()
	metrics.PositionsOpen.Set(0)
	w.notifier.PositionExit(closed, now)
	return true
}

// findEntry generates, validates and opens at most one new position
func (w *Worker) findEntry(ctx context.Context, view signal.Context) {
	if w.tracker.HasActive() {
		return
	}
	if !w.store.IsWarmedUp(ctx, earlyWarmupMinutes) {
		w.Log().Debugw("Snapshot history too thin for any signal")
		return
	}

	candidate := w.generator.Generate(view)
	if candidate == nil {
		return
	}
	metrics.SignalsGenerated.WithLabelValues(string(candidate.Side)).Inc()

	// Before the store is fully warm only exceptional setups go through
	if !w.store.IsWarmedUp(ctx, w.marketCfg.WarmupMinutes) &&
		candidate.Confidence < w.signalCfg.EarlyConfidence {
		w.Log().Debugw("Early candidate below confidence bar",
			"confidence", candidate.Confidence, "required", w.signalCfg.EarlyConfidence)
		return
	}

	admitted, err := w.validator.Validate(candidate)
	if err != nil {
		metrics.SignalsRejected.Inc()
		w.Log().Infow("Candidate rejected", "side", candidate.Side, "reason", err)
		return
	}
	if admitted == nil {
		return
	}

	w.tracker.Open(admitted)
	metrics.SignalsAccepted.WithLabelValues(string(admitted.Side)).Inc()
	metrics.PositionsOpen.Set(1)
	w.notifier.SignalEntry(admitted)
}
