// analytics_service.go computes per-organization deal rollups. Results are
// cached under (organization, window) keys with a short TTL, so readers may see
// slightly stale numbers after a write.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/cache"
	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/telemetry"
)

// StatusSummary is one status bucket of the deal summary.
type StatusSummary struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AvgAmount   decimal.Decimal `json:"avg_amount"`
}

// Summary is the per-organization deal rollup.
type Summary struct {
	TotalDeals  int                                 `json:"total_deals"`
	ByStatus    map[models.DealStatus]StatusSummary `json:"by_status"`
	RecentDeals int                                 `json:"recent_deals"`
	WindowDays  int                                 `json:"window_days"`
}

// FunnelStage is one pipeline stage of the funnel, with counts per status.
type FunnelStage struct {
	Stage    models.DealStage          `json:"stage"`
	Total    int                       `json:"total"`
	ByStatus map[models.DealStatus]int `json:"by_status"`
}

// AnalyticsService computes and caches deal rollups.
type AnalyticsService struct {
	deals  *repositories.DealRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(deals *repositories.DealRepository, c cache.Cache, ttl time.Duration, logger *slog.Logger) *AnalyticsService {
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &AnalyticsService{deals: deals, cache: c, ttl: ttl, logger: logger}
}

// Summary returns deal counts and amount rollups per status plus the number of
// deals created within the trailing window.
func (s *AnalyticsService) Summary(ctx context.Context, orgID string, windowDays int) (*Summary, error) {
	if windowDays == 0 {
		windowDays = 30
	}
	if windowDays < 1 || windowDays > 365 {
		return nil, Validation("window_days must be between 1 and 365")
	}

	key := fmt.Sprintf("analytics:summary:%s:%d", orgID, windowDays)
	var cached Summary
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	counts, err := s.deals.CountByStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}
	stats, err := s.deals.AmountStatsByStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}
	recent, err := s.deals.CountNewerThan(ctx, orgID, windowDays)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		ByStatus:    make(map[models.DealStatus]StatusSummary),
		RecentDeals: recent,
		WindowDays:  windowDays,
	}
	for status, count := range counts {
		bucket := StatusSummary{Count: count}
		if st, ok := stats[status]; ok {
			bucket.TotalAmount = st.Total
			bucket.AvgAmount = st.Avg
		}
		summary.ByStatus[status] = bucket
		summary.TotalDeals += count
	}

	s.writeCache(ctx, key, summary)
	return summary, nil
}

// Funnel returns deal counts for every pipeline stage in order, broken down by
// status. Stages with no deals still appear with zero counts.
func (s *AnalyticsService) Funnel(ctx context.Context, orgID string) ([]FunnelStage, error) {
	key := "analytics:funnel:" + orgID
	var cached []FunnelStage
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.deals.Funnel(ctx, orgID)
	if err != nil {
		return nil, err
	}

	order := []models.DealStage{
		models.StageQualification,
		models.StageProposal,
		models.StageNegotiation,
		models.StageClosed,
	}
	byStage := make(map[models.DealStage]*FunnelStage, len(order))
	funnel := make([]FunnelStage, 0, len(order))
	for _, stage := range order {
		funnel = append(funnel, FunnelStage{Stage: stage, ByStatus: make(map[models.DealStatus]int)})
		byStage[stage] = &funnel[len(funnel)-1]
	}
	for _, row := range rows {
		bucket, ok := byStage[row.Stage]
		if !ok {
			continue
		}
		bucket.ByStatus[row.Status] += row.Count
		bucket.Total += row.Count
	}

	s.writeCache(ctx, key, funnel)
	return funnel, nil
}

// readCache deserializes a cached payload into out. Cache failures are logged
// and treated as misses.
func (s *AnalyticsService) readCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("analytics cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		telemetry.AnalyticsCacheTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("analytics cache entry corrupt", "key", key, "error", err)
		return false
	}
	telemetry.AnalyticsCacheTotal.WithLabelValues("hit").Inc()
	return true
}

func (s *AnalyticsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("analytics cache write failed", "key", key, "error", err)
	}
}
