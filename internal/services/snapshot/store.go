package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"vega/internal/domain/market"
	"vega/pkg/logger"
)

const bucketFormat = "20060102_1504"

// Minute offsets tried when the exact lookback bucket is missing. The scan
// interval and the lookback window are not phase-locked, so the snapshot for
// "15 minutes ago" may sit in an adjacent bucket.
var toleranceOffsets = []int{-1, 1, -2, 2, -3, 3}

type aggregateSnapshot struct {
	CE        float64   `json:"ce"`
	PE        float64   `json:"pe"`
	Timestamp time.Time `json:"timestamp"`
}

type strikeSnapshot struct {
	CEOpenInterest float64   `json:"ce_oi"`
	PEOpenInterest float64   `json:"pe_oi"`
	CEVolume       float64   `json:"ce_vol"`
	PEVolume       float64   `json:"pe_vol"`
	CELastPrice    float64   `json:"ce_ltp"`
	PELastPrice    float64   `json:"pe_ltp"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store is the time-bucketed open-interest memory. Snapshots are keyed by
// minute; recording twice in the same minute overwrites. Reads report
// found=false when no bucket exists within tolerance; callers must treat
// that as insufficient history, never as zero change.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger

	mu            sync.Mutex
	snapshotCount int
	firstSnapshot time.Time
}

// Stats summarizes warmup progress
type Stats struct {
	SnapshotCount  int
	FirstSnapshot  time.Time
	ElapsedMinutes float64
	WarmedUp5m     bool
	WarmedUp15m    bool
}

// NewStore creates a snapshot store over the given backend
func NewStore(backend Backend, ttl time.Duration, now func() time.Time, log *logger.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		backend: backend,
		ttl:     ttl,
		now:     now,
		log:     log.With("component", "snapshot_store"),
	}
}

func (s *Store) bucket(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func aggregateKey(t time.Time) string {
	return "oi:total:" + t.Format(bucketFormat)
}

func strikeKey(strike float64, t time.Time) string {
	return fmt.Sprintf("oi:strike:%.0f:%s", strike, t.Format(bucketFormat))
}

// RecordAggregate stores the window-wide CE/PE open interest for this minute
func (s *Store) RecordAggregate(ctx context.Context, ceOI, peOI float64) error {
	now := s.bucket(s.now())

	s.mu.Lock()
	if s.snapshotCount == 0 {
		s.firstSnapshot = now
		s.log.Infow("First snapshot recorded, base reference set", "at", now.Format("15:04"))
	}
	s.snapshotCount++
	s.mu.Unlock()

	data, err := json.Marshal(aggregateSnapshot{CE: ceOI, PE: peOI, Timestamp: now})
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, aggregateKey(now), string(data), s.ttl)
}

// RecordStrike stores one strike's market data for this minute
func (s *Store) RecordStrike(ctx context.Context, d market.StrikeData) error {
	now := s.bucket(s.now())
	data, err := json.Marshal(strikeSnapshot{
		CEOpenInterest: d.CEOpenInterest,
		PEOpenInterest: d.PEOpenInterest,
		CEVolume:       d.CEVolume,
		PEVolume:       d.PEVolume,
		CELastPrice:    d.CELastPrice,
		PELastPrice:    d.PELastPrice,
		Timestamp:      now,
	})
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, strikeKey(d.Strike, now), string(data), s.ttl)
}

// lookup finds the snapshot nearest to minutesAgo, trying the exact bucket
// first and then the tolerance offsets
func (s *Store) lookup(ctx context.Context, keyFor func(time.Time) string, minutesAgo int) (string, bool) {
	target := s.bucket(s.now().Add(-time.Duration(minutesAgo) * time.Minute))

	if val, ok := s.backend.Get(ctx, keyFor(target)); ok {
		return val, true
	}
	for _, off := range toleranceOffsets {
		alt := target.Add(time.Duration(off) * time.Minute)
		if val, ok := s.backend.Get(ctx, keyFor(alt)); ok {
			return val, true
		}
	}
	return "", false
}

// pctChange applies the zero-baseline convention: both zero means flat,
// a zero baseline with current interest means new OI (capped sentinel 100%)
func pctChange(current, past float64) float64 {
	if past == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return round1((current - past) / past * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// AggregateChange returns the CE/PE percentage OI change against the
// snapshot minutesAgo. found=false means insufficient history.
func (s *Store) AggregateChange(ctx context.Context, currentCE, currentPE float64, minutesAgo int) (float64, float64, bool) {
	raw, ok := s.lookup(ctx, aggregateKey, minutesAgo)
	if !ok {
		return 0, 0, false
	}

	var past aggregateSnapshot
	if err := json.Unmarshal([]byte(raw), &past); err != nil {
		s.log.Errorw("Corrupt aggregate snapshot", "error", err)
		return 0, 0, false
	}

	return pctChange(currentCE, past.CE), pctChange(currentPE, past.PE), true
}

// StrikeChange returns the CE/PE percentage OI change for one strike
// against the snapshot minutesAgo
func (s *Store) StrikeChange(ctx context.Context, strike float64, current market.StrikeData, minutesAgo int) (float64, float64, bool) {
	raw, ok := s.lookup(ctx, func(t time.Time) string { return strikeKey(strike, t) }, minutesAgo)
	if !ok {
		return 0, 0, false
	}

	var past strikeSnapshot
	if err := json.Unmarshal([]byte(raw), &past); err != nil {
		s.log.Errorw("Corrupt strike snapshot", "strike", strike, "error", err)
		return 0, 0, false
	}

	ce := pctChange(current.CEOpenInterest, past.CEOpenInterest)
	pe := pctChange(current.PEOpenInterest, past.PEOpenInterest)
	return ce, pe, true
}

// IsWarmedUp is true only when both enough wall-clock time has passed since
// the first snapshot and a snapshot actually exists at that offset. The
// second half guards against gaps from restarts or market holidays.
func (s *Store) IsWarmedUp(ctx context.Context, minutes int) bool {
	s.mu.Lock()
	first := s.firstSnapshot
	s.mu.Unlock()

	if first.IsZero() {
		return false
	}
	if s.now().Sub(first) < time.Duration(minutes)*time.Minute {
		return false
	}

	probe := s.bucket(s.now().Add(-time.Duration(minutes) * time.Minute))
	return s.backend.Exists(ctx, aggregateKey(probe))
}

// Stats reports warmup progress for logging and health checks
func (s *Store) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	count := s.snapshotCount
	first := s.firstSnapshot
	s.mu.Unlock()

	elapsed := 0.0
	if !first.IsZero() {
		elapsed = s.now().Sub(first).Minutes()
	}
	return Stats{
		SnapshotCount:  count,
		FirstSnapshot:  first,
		ElapsedMinutes: elapsed,
		WarmedUp5m:     s.IsWarmedUp(ctx, 5),
		WarmedUp15m:    s.IsWarmedUp(ctx, 15),
	}
}
