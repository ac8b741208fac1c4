package stats

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/healthmate/core/internal/models"
	"gorm.io/gorm"
)

// QuickStats is the dashboard summary payload.
type QuickStats struct {
	Reports    int64 `json:"reports"`
	Vitals     int64 `json:"vitals"`
	DaysActive int   `json:"daysActive"`
}

// Service aggregates per-user counters.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Quick returns report/vitals counts and the days-active streak. Days active
// counts from the earliest of account creation, first report, and first
// vital, and is never below 1.
func (s *Service) Quick(ctx context.Context, userID string) (*QuickStats, error) {
	out := &QuickStats{}

	if err := s.db.WithContext(ctx).Model(&models.ReportModel{}).
		Where("user_id = ?", userID).Count(&out.Reports).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.VitalModel{}).
		Where("user_id = ?", userID).Count(&out.Vitals).Error; err != nil {
		return nil, err
	}

	since, err := s.earliestActivity(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.DaysActive = daysSince(since, time.Now())
	return out, nil
}

func (s *Service) earliestActivity(ctx context.Context, userID string) (time.Time, error) {
	var user models.UserModel
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return time.Time{}, err
	}
	earliest := user.CreatedAt

	var report models.ReportModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").First(&report).Error
	if err == nil && report.CreatedAt.Before(earliest) {
		earliest = report.CreatedAt
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, err
	}

	var vital models.VitalModel
	err = s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").First(&vital).Error
	if err == nil && vital.CreatedAt.Before(earliest) {
		earliest = vital.CreatedAt
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, err
	}

	return earliest, nil
}

func daysSince(since, now time.Time) int {
	days := int(math.Floor(now.Sub(since).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
