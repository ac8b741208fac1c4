package vitals

import (
	"context"
	"errors"
	"time"

	"github.com/healthmate/core/internal/models"
	"github.com/healthmate/core/internal/modules/gemini"
	"github.com/healthmate/core/internal/pkg/pagination"
	"github.com/healthmate/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a vitals entry does not exist or belongs to
// someone else.
var ErrNotFound = errors.New("vital not found")

// Analyzer runs the model pipeline for one vitals snapshot.
type Analyzer interface {
	AnalyzeVitals(ctx context.Context, input gemini.AnalyzeVitalsInput) (*gemini.VitalsResult, error)
}

// Service implements vitals CRUD and insight reconciliation.
type Service struct {
	db  *gorm.DB
	ai  Analyzer
	log *zap.Logger
}

func NewService(db *gorm.DB, ai Analyzer, log *zap.Logger) *Service {
	return &Service{db: db, ai: ai, log: log}
}

// Add records a vitals entry. When analyze is requested the model pipeline
// runs inline; its failure never fails the write.
func (s *Service) Add(ctx context.Context, userID string, dto AddVitalDTO, analyze bool) (*VitalWithInsight, error) {
	date := time.Now()
	if dto.Date != "" {
		parsed, err := parseDate(dto.Date)
		if err != nil {
			return nil, err
		}
		date = parsed
	}

	vital := &models.VitalModel{
		UserID:    userID,
		Type:      dto.Type,
		Systolic:  dto.Systolic,
		Diastolic: dto.Diastolic,
		Sugar:     dto.Sugar,
		SugarType: dto.SugarType,
		Height:    dto.Height,
		Weight:    dto.Weight,
		SpO2:      dto.SpO2,
		HeartRate: dto.HeartRate,
		TimeOfDay: dto.TimeOfDay,
		Frequency: dto.Frequency,
		Values:    models.JSONMap(dto.Values),
		Notes:     dto.Notes,
		Date:      date,
	}
	if vital.Type == "" {
		vital.Type = inferType(vital)
	}
	if err := s.db.WithContext(ctx).Create(vital).Error; err != nil {
		return nil, err
	}

	out := &VitalWithInsight{Vital: vital}
	if analyze {
		insight, err := s.Analyze(ctx, userID, vital.ID)
		if err != nil {
			s.log.Warn("vitals analysis failed",
				zap.String("vital_id", vital.ID), zap.Error(err))
		} else {
			out.Insight = insight
			if err := s.db.WithContext(ctx).First(vital, "id = ?", vital.ID).Error; err != nil {
				s.log.Warn("vital reload after analysis failed",
					zap.String("vital_id", vital.ID), zap.Error(err))
			}
			out.Vital = vital
		}
	}
	return out, nil
}

// List returns the user's vitals entries, newest first.
func (s *Service) List(ctx context.Context, userID string, q ListQuery, page pagination.Query) ([]models.VitalModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.VitalModel{}).
		Where("user_id = ?", userID).
		Order("date DESC")

	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.StartDate != nil {
		tx = tx.Where("date >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		tx = tx.Where("date <= ?", *q.EndDate)
	}

	var items []models.VitalModel
	meta, err := pagination.Paginate(tx, page, &items)
	return items, meta, err
}

// Get returns one vitals entry with its insight, scoped to the owner.
func (s *Service) Get(ctx context.Context, userID, id string) (*VitalWithInsight, error) {
	vital, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	out := &VitalWithInsight{Vital: vital}
	if vital.InsightID != nil {
		var insight models.VitalsInsightModel
		if err := s.db.WithContext(ctx).First(&insight, "id = ?", *vital.InsightID).Error; err == nil {
			out.Insight = &insight
		}
	}
	return out, nil
}

// Delete removes a vitals entry and its insight.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	vital, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if vital.InsightID != nil {
			if err := tx.Delete(&models.VitalsInsightModel{}, "id = ?", *vital.InsightID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.VitalModel{}, "id = ?", vital.ID).Error
	})
}

// Analyze sends the entry's measurement snapshot through the model pipeline
// and reconciles the result into its insight record.
func (s *Service) Analyze(ctx context.Context, userID, id string) (*models.VitalsInsightModel, error) {
	vital, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	result, err := s.ai.AnalyzeVitals(ctx, gemini.AnalyzeVitalsInput{
		Title:  vital.Type + " vitals entry",
		Values: snapshot(vital),
	})
	if err != nil {
		return nil, err
	}

	return s.reconcile(ctx, vital.ID, result)
}

// reconcile mirrors the report flow: create the insight on first analysis,
// overwrite it in place afterwards, all inside one transaction on the locked
// vital row.
func (s *Service) reconcile(ctx context.Context, vitalID string, result *gemini.VitalsResult) (*models.VitalsInsightModel, error) {
	var insight models.VitalsInsightModel

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vital models.VitalModel
		if err := tx.Clauses(rowLock(tx)...).First(&vital, "id = ?", vitalID).Error; err != nil {
			return err
		}

		if vital.InsightID != nil {
			if err := tx.First(&insight, "id = ?", *vital.InsightID).Error; err != nil {
				return err
			}
			applyVitalsInsight(&insight, result)
			return tx.Save(&insight).Error
		}

		insight = models.VitalsInsightModel{VitalID: vital.ID}
		applyVitalsInsight(&insight, result)
		if err := tx.Create(&insight).Error; err != nil {
			return err
		}
		return tx.Model(&vital).Update("insight_id", insight.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

func applyVitalsInsight(insight *models.VitalsInsightModel, result *gemini.VitalsResult) {
	insight.LanguageSummaries = result.Insight.LanguageSummaries
	insight.Assessment = result.Insight.Assessment
	insight.Alerts = result.Insight.Alerts
	insight.Advice = result.Insight.Advice
	insight.FollowupQuestions = result.Insight.FollowupQuestions
	insight.RawModelResponse = models.RawJSON(result.Raw)
}

// snapshot flattens the explicit measurement columns with the free-form
// values map. Explicit columns win on key collisions.
func snapshot(v *models.VitalModel) map[string]interface{} {
	out := map[string]interface{}{}
	for k, val := range v.Values {
		out[k] = val
	}

	put := func(key string, val *float64) {
		if val != nil {
			out[key] = *val
		}
	}
	put("systolic", v.Systolic)
	put("diastolic", v.Diastolic)
	put("sugar", v.Sugar)
	put("height", v.Height)
	put("weight", v.Weight)
	put("spo2", v.SpO2)
	put("heartRate", v.HeartRate)

	if v.SugarType != "" {
		out["sugarType"] = v.SugarType
	}
	if v.TimeOfDay != "" {
		out["timeOfDay"] = v.TimeOfDay
	}
	if v.Frequency != "" {
		out["frequency"] = v.Frequency
	}
	if v.Notes != "" {
		out["notes"] = v.Notes
	}
	out["type"] = v.Type
	out["date"] = v.Date.Format(time.RFC3339)
	return out
}

// inferType guesses the entry kind from whichever measurements are present.
func inferType(v *models.VitalModel) string {
	switch {
	case v.Systolic != nil || v.Diastolic != nil:
		return models.VitalTypeBP
	case v.Sugar != nil:
		return models.VitalTypeSugar
	case v.Weight != nil || v.Height != nil:
		return models.VitalTypeWeight
	default:
		return models.VitalTypeOther
	}
}

func (s *Service) findOwned(ctx context.Context, userID, id string) (*models.VitalModel, error) {
	var vital models.VitalModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&vital).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vital, nil
}

func rowLock(tx *gorm.DB) []clause.Expression {
	if tx.Dialector.Name() == "mysql" {
		return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid date, expected RFC3339 or YYYY-MM-DD")
}
