package reports

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chartkeep/chartkeep/internal/coa"
)

// DataPort is the uncached source of point-in-time answers, implemented by
// the coa service.
type DataPort interface {
	AccountsByStatusOnDate(ctx context.Context, status coa.Status, day time.Time) ([]coa.Account, error)
	StatusOnDate(ctx context.Context, number string, day time.Time) (coa.Status, bool, error)
}

// Service serves status reports through the snapshot cache.
type Service struct {
	data   DataPort
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs the reporting service. cache may be nil, which
// degrades to uncached reads.
func NewService(data DataPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{data: data, cache: cache, logger: logger}
}

// AccountsByStatusOnDate returns the accounts reporting the given status on
// day. Concurrent cache misses for the same snapshot collapse into a single
// repository read.
func (s *Service) AccountsByStatusOnDate(ctx context.Context, status coa.Status, day time.Time) ([]coa.Account, error) {
	if !status.IsValid() {
		return nil, &coa.InvalidStatusError{Status: status}
	}
	key, err := s.cache.BuildKey(ctx, "reports", "status", string(status), day.Format("2006-01-02"))
	if err != nil {
		s.logger.Warn("build report cache key", slog.Any("error", err))
		return s.data.AccountsByStatusOnDate(ctx, status, day)
	}
	result, err, _ := s.group.Do(key, func() (any, error) {
		var accounts []coa.Account
		err := s.cache.FetchJSON(ctx, key, &accounts, func(ctx context.Context) (any, error) {
			return s.data.AccountsByStatusOnDate(ctx, status, day)
		})
		return accounts, err
	})
	if err != nil {
		return nil, err
	}
	return result.([]coa.Account), nil
}

// StatusOnDate proxies single-account lookups; they are cheap enough to skip
// the snapshot cache.
func (s *Service) StatusOnDate(ctx context.Context, number string, day time.Time) (coa.Status, bool, error) {
	return s.data.StatusOnDate(ctx, number, day)
}

// Warm pre-computes by-status snapshots for day so dashboards hit warm keys.
func (s *Service) Warm(ctx context.Context, day time.Time) error {
	for _, status := range []coa.Status{coa.StatusActive, coa.StatusArchived, coa.StatusPendingApproval} {
		if _, err := s.AccountsByStatusOnDate(ctx, status, day); err != nil {
			return err
		}
	}
	return nil
}
