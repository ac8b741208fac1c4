package report

import (
	"context"
	"crypto/rand"
	"encoding/hex"
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

// ErrNotFound is returned when a report does not exist or belongs to someone
// else; callers cannot tell the two apart.
var ErrNotFound = errors.New("report not found")

// ErrNoInsight is returned when feedback targets a report that has never
// been analyzed.
var ErrNoInsight = errors.New("report has no insight yet")

// Analyzer runs the model pipeline for one report file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, input gemini.AnalyzeFileInput) (*gemini.ReportResult, error)
}

// AssetDestroyer removes a stored file from object storage.
type AssetDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

// Service implements report CRUD and the insight reconciliation flow.
type Service struct {
	db    *gorm.DB
	ai    Analyzer
	files AssetDestroyer
	log   *zap.Logger
}

func NewService(db *gorm.DB, ai Analyzer, files AssetDestroyer, log *zap.Logger) *Service {
	return &Service{db: db, ai: ai, files: files, log: log}
}

// Create registers an uploaded report. When analyze is requested the model
// pipeline runs inline; its failure never fails the upload.
func (s *Service) Create(ctx context.Context, userID string, dto CreateReportDTO, analyze bool) (*ReportWithInsight, error) {
	dateTaken, err := parseDate(dto.DateTaken)
	if err != nil {
		return nil, err
	}

	rep := &models.ReportModel{
		UserID:       userID,
		Title:        dto.Title,
		FileURL:      dto.FileURL,
		FilePublicID: dto.FilePublicID,
		FileType:     dto.FileType,
		DateTaken:    dateTaken,
		Tags:         dto.Tags,
		Notes:        dto.Notes,
	}
	if err := s.db.WithContext(ctx).Create(rep).Error; err != nil {
		return nil, err
	}

	out := &ReportWithInsight{Report: rep}
	if analyze {
		insight, err := s.Analyze(ctx, userID, rep.ID)
		if err != nil {
			s.log.Warn("upload-time analysis failed",
				zap.String("report_id", rep.ID), zap.Error(err))
		} else {
			out.Insight = insight
			if err := s.db.WithContext(ctx).First(rep, "id = ?", rep.ID).Error; err != nil {
				s.log.Warn("report reload after analysis failed",
					zap.String("report_id", rep.ID), zap.Error(err))
			}
			out.Report = rep
		}
	}
	return out, nil
}

// List returns the user's reports, newest date first, with optional filters.
func (s *Service) List(ctx context.Context, userID string, q ListQuery, page pagination.Query) ([]models.ReportModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.ReportModel{}).
		Where("user_id = ?", userID).
		Order("date_taken DESC")

	if q.Type != "" {
		tx = tx.Where("file_type = ?", q.Type)
	}
	if q.Tag != "" {
		// tags column stores a JSON array of strings
		tx = tx.Where("tags LIKE ?", "%\""+q.Tag+"\"%")
	}
	if q.StartDate != nil {
		tx = tx.Where("date_taken >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		tx = tx.Where("date_taken <= ?", *q.EndDate)
	}
	if q.Search != "" {
		needle := "%" + q.Search + "%"
		tx = tx.Where("title LIKE ? OR notes LIKE ? OR tags LIKE ?", needle, needle, needle)
	}

	var items []models.ReportModel
	meta, err := pagination.Paginate(tx, page, &items)
	return items, meta, err
}

// Get returns one report with its insight, scoped to the owner.
func (s *Service) Get(ctx context.Context, userID, id string) (*ReportWithInsight, error) {
	rep, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	out := &ReportWithInsight{Report: rep}
	if rep.AIInsightID != nil {
		var insight models.ReportInsightModel
		if err := s.db.WithContext(ctx).Preload("Feedback").
			First(&insight, "id = ?", *rep.AIInsightID).Error; err == nil {
			out.Insight = &insight
		}
	}
	return out, nil
}

// Delete removes a report, its insight, and the stored file. The storage
// delete is best-effort; the domain records always go.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	rep, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if rep.FilePublicID != "" && s.files != nil {
		if err := s.files.Destroy(ctx, rep.FilePublicID); err != nil {
			s.log.Warn("object storage delete failed",
				zap.String("public_id", rep.FilePublicID), zap.Error(err))
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rep.AIInsightID != nil {
			if err := tx.Where("insight_id = ?", *rep.AIInsightID).
				Delete(&models.InsightFeedbackModel{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.ReportInsightModel{}, "id = ?", *rep.AIInsightID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.ReportModel{}, "id = ?", rep.ID).Error
	})
}

// Analyze runs the model pipeline for a report and reconciles the result into
// its insight record. Safe under concurrent calls for the same report: the
// reconcile step locks the report row for the duration of the write.
func (s *Service) Analyze(ctx context.Context, userID, id string) (*models.ReportInsightModel, error) {
	rep, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	result, err := s.ai.AnalyzeFile(ctx, gemini.AnalyzeFileInput{
		FileURL:      rep.FileURL,
		FilePublicID: rep.FilePublicID,
		FileType:     rep.FileType,
		Title:        rep.Title,
	})
	if err != nil {
		return nil, err
	}

	return s.reconcile(ctx, rep.ID, result)
}

// reconcile creates the insight on first analysis and overwrites it in place
// afterwards, inside one transaction so concurrent analyses of the same
// report cannot double-create or orphan an insight.
func (s *Service) reconcile(ctx context.Context, reportID string, result *gemini.ReportResult) (*models.ReportInsightModel, error) {
	var insight models.ReportInsightModel

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep models.ReportModel
		if err := tx.Clauses(rowLock(tx)...).First(&rep, "id = ?", reportID).Error; err != nil {
			return err
		}

		if rep.AIInsightID != nil {
			if err := tx.First(&insight, "id = ?", *rep.AIInsightID).Error; err != nil {
				return err
			}
			applyReportInsight(&insight, result)
			return tx.Save(&insight).Error
		}

		insight = models.ReportInsightModel{ReportID: rep.ID}
		applyReportInsight(&insight, result)
		if err := tx.Create(&insight).Error; err != nil {
			return err
		}
		return tx.Model(&rep).Update("ai_insight_id", insight.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

func applyReportInsight(insight *models.ReportInsightModel, result *gemini.ReportResult) {
	insight.LanguageSummaries = result.Insight.LanguageSummaries
	insight.Highlights = result.Insight.Highlights
	insight.DoctorQuestions = result.Insight.DoctorQuestions
	insight.DietTips = result.Insight.DietTips
	insight.Warnings = result.Insight.Warnings
	insight.RawModelResponse = models.RawJSON(result.Raw)
}

// Feedback records a user's reaction to a report's insight.
func (s *Service) Feedback(ctx context.Context, userID, id string, dto FeedbackDTO) error {
	rep, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	if rep.AIInsightID == nil {
		return ErrNoInsight
	}

	return s.db.WithContext(ctx).Create(&models.InsightFeedbackModel{
		InsightID: *rep.AIInsightID,
		UserID:    userID,
		Liked:     dto.Liked,
		Comment:   dto.Comment,
		GivenAt:   time.Now(),
	}).Error
}

// Share enables a public share link for a report.
func (s *Service) Share(ctx context.Context, userID, id string, expiresInHours int) (*ShareInfo, error) {
	rep, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	token := newShareToken()
	var expiresAt *time.Time
	if expiresInHours > 0 {
		t := time.Now().Add(time.Duration(expiresInHours) * time.Hour)
		expiresAt = &t
	}

	err = s.db.WithContext(ctx).Model(rep).Updates(map[string]interface{}{
		"privacy_shared":           true,
		"privacy_share_token":      token,
		"privacy_share_expires_at": expiresAt,
	}).Error
	if err != nil {
		return nil, err
	}
	return &ShareInfo{Token: token, ExpiresAt: expiresAt}, nil
}

// Unshare revokes an existing share link.
func (s *Service) Unshare(ctx context.Context, userID, id string) error {
	rep, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(rep).Updates(map[string]interface{}{
		"privacy_shared":           false,
		"privacy_share_token":      nil,
		"privacy_share_expires_at": nil,
	}).Error
}

// GetShared resolves a share token to a report and its insight, honoring
// expiry. Token lookups are unauthenticated.
func (s *Service) GetShared(ctx context.Context, token string) (*ReportWithInsight, error) {
	var rep models.ReportModel
	err := s.db.WithContext(ctx).
		Where("privacy_shared = ? AND privacy_share_token = ?", true, token).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rep.Privacy.ShareExpiresAt != nil && rep.Privacy.ShareExpiresAt.Before(time.Now()) {
		return nil, ErrNotFound
	}

	out := &ReportWithInsight{Report: &rep}
	if rep.AIInsightID != nil {
		var insight models.ReportInsightModel
		if err := s.db.WithContext(ctx).First(&insight, "id = ?", *rep.AIInsightID).Error; err == nil {
			out.Insight = &insight
		}
	}
	return out, nil
}

func (s *Service) findOwned(ctx context.Context, userID, id string) (*models.ReportModel, error) {
	var rep models.ReportModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// rowLock returns SELECT ... FOR UPDATE on engines that support it. SQLite
// serializes writers on its own.
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

func newShareToken() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
