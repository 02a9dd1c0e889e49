package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"lifelock-backend/internal/auth"
	"lifelock-backend/internal/logging"
)

var (
	ErrInvalidRange = errors.New("end date is before start date")
	ErrInvalidOrder = errors.New(`order must be "asc" or "desc"`)
)

// API is the read side of usage analytics. Dates are calendar days, both
// ends inclusive.
type API interface {
	UsageStats(ctx context.Context) (UsageStats, error)
	UsageByDateRange(ctx context.Context, start, end time.Time) (UsageStats, error)
	SessionStats(ctx context.Context, since, until *time.Time, order string) ([]ProjectUsage, error)
}

// Service answers API queries from the event log. Identical concurrent
// queries share one computation and results are cached when a cache is set.
type Service struct {
	store  Store
	cache  *StatsCache
	loc    *time.Location
	sf     singleflight.Group
	logger *zap.Logger
}

// NewService creates a Service. If cache is nil, caching is disabled.
func NewService(store Store, cache *StatsCache, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, cache: cache, loc: loc, logger: logging.OrNop(logger)}
}

func userFrom(ctx context.Context) int {
	uid, _ := auth.UserIDFromContext(ctx)
	return uid
}

func (s *Service) UsageStats(ctx context.Context) (UsageStats, error) {
	uid := userFrom(ctx)
	return s.cached(ctx, uid, "stats", Filter{UserID: uid})
}

func (s *Service) UsageByDateRange(ctx context.Context, start, end time.Time) (UsageStats, error) {
	from, until, err := s.dayRange(start, end)
	if err != nil {
		return UsageStats{}, err
	}
	uid := userFrom(ctx)
	name := "range:" + from.Format(dateLayout) + ":" + until.AddDate(0, 0, -1).Format(dateLayout)
	return s.cached(ctx, uid, name, Filter{UserID: uid, Since: from, Until: until})
}

// SessionStats groups events per project. order is "desc" (default, most
// recently used first) or "asc".
func (s *Service) SessionStats(ctx context.Context, since, until *time.Time, order string) ([]ProjectUsage, error) {
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, ErrInvalidOrder
	}
	f := Filter{UserID: userFrom(ctx)}
	if since != nil {
		f.Since, _ = dayBounds(*since, s.loc)
	}
	if until != nil {
		_, f.Until = dayBounds(*until, s.loc)
	}
	if since != nil && until != nil && !f.Since.Before(f.Until) {
		return nil, ErrInvalidRange
	}
	events, err := s.store.Events(ctx, f)
	if err != nil {
		return nil, err
	}
	return ByProject(events, order), nil
}

// DailySummaries returns the stored rollups for from <= date <= to.
func (s *Service) DailySummaries(ctx context.Context, from, to string) ([]DailySummary, error) {
	if from != "" && to != "" && to < from {
		return nil, ErrInvalidRange
	}
	return s.store.DailySummaries(ctx, userFrom(ctx), from, to)
}

// Invalidate drops cached stats after the user's log changed.
func (s *Service) Invalidate(ctx context.Context, userID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("usage stats cache invalidation failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

// dayRange turns inclusive calendar days into [from, until).
func (s *Service) dayRange(start, end time.Time) (time.Time, time.Time, error) {
	from, _ := dayBounds(start, s.loc)
	_, until := dayBounds(end, s.loc)
	if !from.Before(until) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, until, nil
}

func (s *Service) cached(ctx context.Context, uid int, name string, f Filter) (UsageStats, error) {
	key := fmt.Sprintf("%d:%s", uid, name)
	// The shared computation must outlive any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (any, error) {
		var gen int64
		if s.cache != nil {
			var err error
			if gen, err = s.cache.Generation(shared, uid); err != nil {
				s.logger.Warn("usage stats cache generation read failed", zap.String("key", key), zap.Error(err))
			} else if hit, err := s.cache.Get(shared, uid, name); err != nil {
				s.logger.Warn("usage stats cache read failed", zap.String("key", key), zap.Error(err))
			} else if hit != nil {
				return *hit, nil
			}
		}
		events, err := s.store.Events(shared, f)
		if err != nil {
			return nil, err
		}
		stats := Summarize(events, s.loc)
		if s.cache != nil {
			if err := s.cache.Set(shared, uid, gen, name, stats); err != nil {
				s.logger.Warn("usage stats cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return stats, nil
	})
	select {
	case <-ctx.Done():
		return UsageStats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return UsageStats{}, res.Err
		}
		return res.Val.(UsageStats), nil
	}
}
