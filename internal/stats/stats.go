// Package stats computes read-only statistics over transactions.
//
// Dashboard queries must never hard-fail: any storage error degrades to
// zeroed results and is logged instead of propagated.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/models"
)

// DefaultMonthsBack is the trailing window used when the caller does not
// specify one.
const DefaultMonthsBack = 6

// MaxMonthsBack caps the trailing window. Each trend bucket costs one
// query, so the window must not scale with caller input.
const MaxMonthsBack = 60

// Service aggregates transaction statistics, optionally caching payloads
// in Redis for a short TTL.
type Service struct {
	db       *gorm.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewService constructs a Service. cache may be nil to disable caching.
func NewService(db *gorm.DB, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{db: db, cache: cache, cacheTTL: cacheTTL}
}

// CategoryAmount is one expense category total.
type CategoryAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// MonthlyTrend is the income, expense and balance of one calendar month.
type MonthlyTrend struct {
	Month   string  `json:"month"` // YYYY-MM
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// MemberContribution is one group member's share of group activity.
type MemberContribution struct {
	UserID           uint64  `json:"user_id"`
	Name             string  `json:"name"`
	Username         string  `json:"username"`
	Income           float64 `json:"income"`
	Expense          float64 `json:"expense"`
	TransactionCount int64   `json:"transaction_count"`
}

// UserStatistics is the dashboard payload for one user.
type UserStatistics struct {
	TotalIncome   float64          `json:"total_income"`
	TotalExpense  float64          `json:"total_expense"`
	Balance       float64          `json:"balance"`
	Categories    []CategoryAmount `json:"categories"`
	MonthlyTrends []MonthlyTrend   `json:"monthly_trends"`
}

// GroupStatistics is the dashboard payload for one group.
type GroupStatistics struct {
	TotalIncome         float64              `json:"total_income"`
	TotalExpense        float64              `json:"total_expense"`
	Balance             float64              `json:"balance"`
	MemberContributions []MemberContribution `json:"member_contributions"`
	Categories          []CategoryAmount     `json:"categories"`
}

// UserStatistics aggregates a user's transactions over the trailing
// window of monthsBack*30 days. Failures degrade to zeroed results.
func (s *Service) UserStatistics(ctx context.Context, userID uint64, monthsBack int) UserStatistics {
	monthsBack = clampMonthsBack(monthsBack)

	key := fmt.Sprintf("stats:user:%d:%d", userID, monthsBack)
	var cached UserStatistics
	if s.cacheGet(ctx, key, &cached) {
		return cached
	}

	result, err := s.computeUserStatistics(ctx, userID, monthsBack)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("user statistics degraded to empty result")
		return UserStatistics{Categories: []CategoryAmount{}, MonthlyTrends: []MonthlyTrend{}}
	}
	s.cacheSet(ctx, key, result)
	return result
}

// GroupStatistics aggregates a group's transactions over the trailing
// window of monthsBack*30 days. Failures degrade to zeroed results.
func (s *Service) GroupStatistics(ctx context.Context, groupID uint64, monthsBack int) GroupStatistics {
	monthsBack = clampMonthsBack(monthsBack)

	key := fmt.Sprintf("stats:group:%d:%d", groupID, monthsBack)
	var cached GroupStatistics
	if s.cacheGet(ctx, key, &cached) {
		return cached
	}

	result, err := s.computeGroupStatistics(ctx, groupID, monthsBack)
	if err != nil {
		log.WithError(err).WithField("group_id", groupID).Warn("group statistics degraded to empty result")
		return GroupStatistics{MemberContributions: []MemberContribution{}, Categories: []CategoryAmount{}}
	}
	s.cacheSet(ctx, key, result)
	return result
}

func (s *Service) computeUserStatistics(ctx context.Context, userID uint64, monthsBack int) (UserStatistics, error) {
	tx := s.db.WithContext(ctx)
	startDate := windowStart(monthsBack)

	income, expense, errTotals := totals(tx, "user_id", userID, startDate)
	if errTotals != nil {
		return UserStatistics{}, errTotals
	}

	categories, errCategories := expenseCategories(tx, "user_id", userID, startDate)
	if errCategories != nil {
		return UserStatistics{}, errCategories
	}

	trends, errTrends := monthlyTrends(tx, "user_id", userID, monthsBack)
	if errTrends != nil {
		return UserStatistics{}, errTrends
	}

	return UserStatistics{
		TotalIncome:   income,
		TotalExpense:  expense,
		Balance:       income - expense,
		Categories:    categories,
		MonthlyTrends: trends,
	}, nil
}

func (s *Service) computeGroupStatistics(ctx context.Context, groupID uint64, monthsBack int) (GroupStatistics, error) {
	tx := s.db.WithContext(ctx)
	startDate := windowStart(monthsBack)

	income, expense, errTotals := totals(tx, "group_id", groupID, startDate)
	if errTotals != nil {
		return GroupStatistics{}, errTotals
	}

	categories, errCategories := expenseCategories(tx, "group_id", groupID, startDate)
	if errCategories != nil {
		return GroupStatistics{}, errCategories
	}

	var contributions []MemberContribution
	if errMembers := tx.Model(&models.Transaction{}).
		Select(`transactions.user_id,
			users.full_name AS name,
			users.username AS username,
			COALESCE(SUM(CASE WHEN transactions.amount > 0 THEN transactions.amount ELSE 0 END), 0) AS income,
			COALESCE(SUM(CASE WHEN transactions.amount < 0 THEN -transactions.amount ELSE 0 END), 0) AS expense,
			COUNT(*) AS transaction_count`).
		Joins("JOIN users ON users.id = transactions.user_id").
		Where("transactions.group_id = ? AND transactions.date >= ?", groupID, startDate).
		Group("transactions.user_id, users.full_name, users.username").
		Order("COALESCE(SUM(CASE WHEN transactions.amount > 0 THEN transactions.amount ELSE -transactions.amount END), 0) DESC").
		Find(&contributions).Error; errMembers != nil {
		return GroupStatistics{}, fmt.Errorf("member contributions: %w", errMembers)
	}
	if contributions == nil {
		contributions = []MemberContribution{}
	}

	return GroupStatistics{
		TotalIncome:         income,
		TotalExpense:        expense,
		Balance:             income - expense,
		MemberContributions: contributions,
		Categories:          categories,
	}, nil
}

// clampMonthsBack keeps the window within [1, MaxMonthsBack], falling
// back to the default for non-positive input.
func clampMonthsBack(monthsBack int) int {
	if monthsBack <= 0 {
		return DefaultMonthsBack
	}
	if monthsBack > MaxMonthsBack {
		return MaxMonthsBack
	}
	return monthsBack
}

// windowStart returns the trailing window start as a date string. The
// window is monthsBack*30 days, an approximation, not calendar-exact.
func windowStart(monthsBack int) string {
	return time.Now().UTC().AddDate(0, 0, -monthsBack*30).Format("2006-01-02")
}

// totals sums income, expense and balance for one scope column.
func totals(tx *gorm.DB, scopeColumn string, scopeID uint64, startDate string) (income, expense float64, err error) {
	var row struct {
		Income  float64
		Expense float64
	}
	if errScan := tx.Model(&models.Transaction{}).
		Select(`COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS income,
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS expense`).
		Where(scopeColumn+" = ? AND date >= ?", scopeID, startDate).
		Scan(&row).Error; errScan != nil {
		return 0, 0, fmt.Errorf("totals: %w", errScan)
	}
	return row.Income, row.Expense, nil
}

// expenseCategories sums expense rows per category, largest first.
func expenseCategories(tx *gorm.DB, scopeColumn string, scopeID uint64, startDate string) ([]CategoryAmount, error) {
	var categories []CategoryAmount
	if errScan := tx.Model(&models.Transaction{}).
		Select("category AS name, COALESCE(SUM(-amount), 0) AS amount").
		Where(scopeColumn+" = ? AND amount < 0 AND date >= ?", scopeID, startDate).
		Group("category").
		Order("COALESCE(SUM(-amount), 0) DESC").
		Find(&categories).Error; errScan != nil {
		return nil, fmt.Errorf("category breakdown: %w", errScan)
	}
	if categories == nil {
		categories = []CategoryAmount{}
	}
	return categories, nil
}

// monthlyTrends computes per-month sums for the monthsBack most recent
// calendar months, oldest first.
func monthlyTrends(tx *gorm.DB, scopeColumn string, scopeID uint64, monthsBack int) ([]MonthlyTrend, error) {
	now := time.Now().UTC()
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	trends := make([]MonthlyTrend, 0, monthsBack)
	for i := monthsBack - 1; i >= 0; i-- {
		monthStart := currentMonth.AddDate(0, -i, 0)
		monthEnd := monthStart.AddDate(0, 1, -1)

		income, expense, errTotals := totalsBetween(tx, scopeColumn, scopeID,
			monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02"))
		if errTotals != nil {
			return nil, errTotals
		}
		trends = append(trends, MonthlyTrend{
			Month:   monthStart.Format("2006-01"),
			Income:  income,
			Expense: expense,
			Balance: income - expense,
		})
	}
	return trends, nil
}

// totalsBetween sums income and expense within an inclusive date range.
func totalsBetween(tx *gorm.DB, scopeColumn string, scopeID uint64, startDate, endDate string) (income, expense float64, err error) {
	var row struct {
		Income  float64
		Expense float64
	}
	if errScan := tx.Model(&models.Transaction{}).
		Select(`COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS income,
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS expense`).
		Where(scopeColumn+" = ? AND date >= ? AND date <= ?", scopeID, startDate, endDate).
		Scan(&row).Error; errScan != nil {
		return 0, 0, fmt.Errorf("monthly totals: %w", errScan)
	}
	return row.Income, row.Expense, nil
}

// cacheGet loads a cached payload. Redis failures count as misses.
func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	data, errGet := s.cache.Get(ctx, key).Bytes()
	if errGet != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// cacheSet stores a payload. Redis failures are ignored.
func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	data, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return
	}
	if errSet := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); errSet != nil {
		log.WithError(errSet).Debug("statistics cache write skipped")
	}
}
