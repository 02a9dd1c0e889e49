package usage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifelock-backend/internal/logging"
)

var ErrRecorderClosed = errors.New("usage recorder is closed")

// Invalidator is told when a user's event log changed.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int)
}

// Recorder appends events and keeps the daily summaries current. Rollups
// are debounced: a burst of events for a day triggers one recompute after
// the burst settles.
type Recorder struct {
	store      Store
	prices     *PriceTable
	loc        *time.Location
	invalidate Invalidator
	logger     *zap.Logger
	debounced  func(func())

	mu      sync.Mutex
	pending map[summaryKey]time.Time
	closed  bool

	flushMu sync.Mutex
}

// NewRecorder creates a Recorder. delay <= 0 rolls up synchronously on every
// insert; inv may be nil.
func NewRecorder(store Store, prices *PriceTable, loc *time.Location, delay time.Duration, inv Invalidator, logger *zap.Logger) *Recorder {
	if prices == nil {
		prices = DefaultPrices()
	}
	if loc == nil {
		loc = time.UTC
	}
	r := &Recorder{
		store:      store,
		prices:     prices,
		loc:        loc,
		invalidate: inv,
		logger:     logging.OrNop(logger),
		pending:    make(map[summaryKey]time.Time),
	}
	if delay > 0 {
		r.debounced = debounce.New(delay)
	}
	return r
}

// Record prices e, appends it and schedules a rollup of its day. It reports
// false without error when the event's source key was already stored.
func (r *Recorder) Record(ctx context.Context, e Event) (Event, bool, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return Event{}, false, ErrRecorderClosed
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.EventName = strings.TrimSpace(e.EventName)
	if e.EventName == "" {
		e.EventName = DefaultEventName
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Millisecond)
	e.TokenCounts = e.TokenCounts.clamp()
	e.CostUSD = r.prices.Estimate(e.Model, e.TokenCounts)

	inserted, err := r.store.Append(ctx, e)
	if err != nil {
		return Event{}, false, err
	}
	if !inserted {
		r.logger.Debug("duplicate usage event ignored", zap.String("source_event_key", e.SourceEventKey))
		return e, false, nil
	}

	if r.invalidate != nil {
		r.invalidate.Invalidate(ctx, e.UserID)
	}
	r.schedule(ctx, e)
	return e, true, nil
}

// schedule queues e's day for rollup. Once Close has started the rollup runs
// synchronously, so nothing is left behind the final flush.
func (r *Recorder) schedule(ctx context.Context, e Event) {
	key := summaryKey{date: e.Timestamp.In(r.loc).Format(dateLayout), userID: e.UserID}
	r.mu.Lock()
	r.pending[key] = e.Timestamp
	if r.debounced != nil && !r.closed {
		r.debounced(r.flushInBackground)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if err := r.Flush(ctx); err != nil {
		r.logger.Error("usage rollup failed", zap.Error(err))
	}
}

func (r *Recorder) flushInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		r.logger.Error("usage rollup failed", zap.Error(err))
	}
}

// Flush rolls up every day touched since the last flush.
func (r *Recorder) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[summaryKey]time.Time)
	r.mu.Unlock()

	var errs []error
	for key, day := range pending {
		summary, err := RollupDay(ctx, r.store, key.userID, day, r.loc)
		if err != nil {
			errs = append(errs, err)
			// keep it for the next flush
			r.mu.Lock()
			if _, ok := r.pending[key]; !ok {
				r.pending[key] = day
			}
			r.mu.Unlock()
			continue
		}
		r.logger.Debug("usage day rolled up",
			zap.String("date", summary.Date), zap.Int("user_id", summary.UserID),
			zap.Int("events", summary.Events), zap.Float64("cost_usd", summary.CostUSD))
	}
	return errors.Join(errs...)
}

// Close stops accepting events and flushes pending rollups.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	if r.debounced != nil {
		r.debounced(func() {})
	}
	r.mu.Unlock()
	return r.Flush(ctx)
}
