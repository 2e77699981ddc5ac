package usage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"gorm.io/gorm"
)

// Service persists and aggregates per-run usage rows.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	if db == nil {
		panic("usage: NewService requires a database")
	}
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.RunUsage{})
}

// RecordUsage writes one run's usage row.
func (s *Service) RecordUsage(ctx context.Context, params models.RecordUsageParams) (*models.RunUsage, error) {
	usage := models.RunUsage{
		RunID:            params.RunID,
		RequestID:        params.RequestID,
		UserID:           params.UserID,
		Provider:         params.Provider,
		Model:            params.Model,
		PromptTokens:     params.PromptTokens,
		CompletionTokens: params.CompletionTokens,
		TotalTokens:      params.PromptTokens + params.CompletionTokens,
		StepCount:        params.StepCount,
		StatusCode:       params.StatusCode,
		LatencyMs:        params.LatencyMs,
		ErrorMessage:     params.ErrorMessage,
		Metadata:         params.Metadata,
	}

	if err := s.db.WithContext(ctx).Create(&usage).Error; err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	return &usage, nil
}

// GetUsageByUser lists a user's run usage rows, newest first.
func (s *Service) GetUsageByUser(ctx context.Context, userID string, limit, offset int) ([]models.RunUsage, error) {
	var usage []models.RunUsage

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&usage).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return usage, nil
}

// GetUsageStats aggregates a user's runs over the given window. Zero dates
// leave that side of the window open.
func (s *Service) GetUsageStats(ctx context.Context, userID string, startDate, endDate time.Time) (*models.UsageStats, error) {
	var stats models.UsageStats

	query := s.db.WithContext(ctx).
		Model(&models.RunUsage{}).
		Where("user_id = ?", userID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	err := query.
		Select(
			"COUNT(*) as total_runs",
			"COALESCE(SUM(total_tokens), 0) as total_tokens",
			"COUNT(CASE WHEN status_code >= 200 AND status_code < 300 THEN 1 END) as success_runs",
			"COUNT(CASE WHEN status_code >= 400 OR status_code = 0 THEN 1 END) as failed_runs",
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms",
		).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	return &stats, nil
}

// GetUsageByPeriod groups a user's runs into period buckets (hour, day, week
// or month) and aggregates each bucket.
func (s *Service) GetUsageByPeriod(ctx context.Context, userID string, startDate, endDate time.Time, groupBy string) ([]models.UsageByPeriod, error) {
	query := s.db.WithContext(ctx).
		Model(&models.RunUsage{}).
		Where("user_id = ?", userID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	var rows []models.RunUsage
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	buckets := make(map[string]*models.UsageStats)
	latencySums := make(map[string]int64)
	for _, row := range rows {
		key := formatPeriod(row.CreatedAt, groupBy)
		if buckets[key] == nil {
			buckets[key] = &models.UsageStats{}
		}

		stats := buckets[key]
		stats.TotalRuns++
		stats.TotalTokens += int64(row.TotalTokens)
		latencySums[key] += int64(row.LatencyMs)
		if row.StatusCode >= 200 && row.StatusCode < 300 {
			stats.SuccessRuns++
		}
		if row.StatusCode >= 400 || row.StatusCode == 0 {
			stats.FailedRuns++
		}
	}

	results := make([]models.UsageByPeriod, 0, len(buckets))
	for period, stats := range buckets {
		if stats.TotalRuns > 0 {
			stats.AvgLatencyMs = float64(latencySums[period]) / float64(stats.TotalRuns)
		}
		results = append(results, models.UsageByPeriod{Period: period, Stats: *stats})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Period < results[j].Period
	})

	return results, nil
}

func formatPeriod(t time.Time, groupBy string) string {
	switch groupBy {
	case "hour":
		return t.Format("2006-01-02 15:00:00")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
