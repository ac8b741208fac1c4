package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/healthmate/core/internal/database"
	"github.com/healthmate/core/internal/models"
	"github.com/healthmate/core/internal/modules/gemini"
	"github.com/healthmate/core/internal/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeAnalyzer struct {
	calls  int
	result *gemini.ReportResult
	err    error
}

func (f *fakeAnalyzer) AnalyzeFile(_ context.Context, _ gemini.AnalyzeFileInput) (*gemini.ReportResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeDestroyer struct {
	destroyed []string
	err       error
}

func (f *fakeDestroyer) Destroy(_ context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return f.err
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func labResult() *gemini.ReportResult {
	raw := json.RawMessage(`{"languageSummaries":{"en":"Your hemoglobin is low.","roman":"Aap ka hemoglobin kam hai."}}`)
	return &gemini.ReportResult{
		Insight: gemini.ReportInsight{
			LanguageSummaries: models.LanguageSummaries{
				En:    "Your hemoglobin is low.",
				Roman: "Aap ka hemoglobin kam hai.",
			},
			Highlights: []models.InsightHighlight{
				{Key: "Hemoglobin", Value: "10.2 g/dL", Flag: models.FlagLow},
			},
			DoctorQuestions: []string{"Could this be iron deficiency?"},
			DietTips:        []string{"Add iron-rich foods like spinach."},
			Warnings:        []string{gemini.Disclaimer},
		},
		Raw: raw,
	}
}

func newTestService(t *testing.T, ai *fakeAnalyzer, files *fakeDestroyer) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	var destroyer AssetDestroyer
	if files != nil {
		destroyer = files
	}
	return NewService(db, ai, destroyer, zap.NewNop()), db
}

func seedUser(t *testing.T, db *gorm.DB) string {
	t.Helper()
	user := models.UserModel{Name: "Amna", Email: "amna@example.com", Password: "x", CNIC: "42101-1234567-1"}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func createDTO() CreateReportDTO {
	return CreateReportDTO{
		Title:        "CBC Report",
		FileURL:      "https://res.cloudinary.com/demo/raw/upload/cbc.pdf",
		FilePublicID: "healthmate/cbc",
		FileType:     models.FileTypePDF,
		DateTaken:    "2026-08-20",
		Tags:         []string{"blood", "cbc"},
	}
}

func TestCreateWithInlineAnalysis(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	svc, db := newTestService(t, ai, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), true)
	require.NoError(t, err)
	require.NotNil(t, out.Insight)
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, "Your hemoglobin is low.", out.Insight.LanguageSummaries.En)
	require.Len(t, out.Insight.Highlights, 1)
	assert.Equal(t, "Hemoglobin", out.Insight.Highlights[0].Key)
	assert.Equal(t, models.FlagLow, out.Insight.Highlights[0].Flag)

	// report row carries the backlink
	require.NotNil(t, out.Report.AIInsightID)
	assert.Equal(t, out.Insight.ID, *out.Report.AIInsightID)
}

func TestCreateSurvivesAnalysisFailure(t *testing.T) {
	ai := &fakeAnalyzer{err: &gemini.ExhaustedError{Endpoint: "/v1/models/x:generateContent", Detail: "not found"}}
	svc, db := newTestService(t, ai, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), true)
	require.NoError(t, err)
	assert.Nil(t, out.Insight)
	assert.Nil(t, out.Report.AIInsightID)

	var count int64
	db.Model(&models.ReportModel{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCreateSkipsAnalysisWhenDisabled(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	svc, db := newTestService(t, ai, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), false)
	require.NoError(t, err)
	assert.Nil(t, out.Insight)
	assert.Zero(t, ai.calls)
}

func TestCreateRejectsBadDate(t *testing.T) {
	svc, db := newTestService(t, &fakeAnalyzer{}, nil)
	userID := seedUser(t, db)

	dto := createDTO()
	dto.DateTaken = "20/08/2026"
	_, err := svc.Create(context.Background(), userID, dto, false)
	assert.Error(t, err)
}

func TestReanalyzeUpdatesSameInsight(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	svc, db := newTestService(t, ai, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), true)
	require.NoError(t, err)
	firstID := out.Insight.ID

	// second pass returns a recovered value
	ai.result = &gemini.ReportResult{
		Insight: gemini.ReportInsight{
			LanguageSummaries: models.LanguageSummaries{En: "Hemoglobin has recovered.", Roman: "Hemoglobin theek ho gaya hai."},
			Highlights: []models.InsightHighlight{
				{Key: "Hemoglobin", Value: "13.1 g/dL", Flag: models.FlagNormal},
			},
			Warnings: []string{gemini.Disclaimer},
		},
		Raw: json.RawMessage(`{"ok":true}`),
	}

	updated, err := svc.Analyze(context.Background(), userID, out.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, firstID, updated.ID)
	assert.Equal(t, "Hemoglobin has recovered.", updated.LanguageSummaries.En)
	assert.Equal(t, models.FlagNormal, updated.Highlights[0].Flag)

	var insights int64
	db.Model(&models.ReportInsightModel{}).Count(&insights)
	assert.EqualValues(t, 1, insights, "re-analysis must not create a second insight")

	var rep models.ReportModel
	require.NoError(t, db.First(&rep, "id = ?", out.Report.ID).Error)
	require.NotNil(t, rep.AIInsightID)
	assert.Equal(t, firstID, *rep.AIInsightID)
}

func TestAnalyzeUnknownReport(t *testing.T) {
	svc, db := newTestService(t, &fakeAnalyzer{result: labResult()}, nil)
	userID := seedUser(t, db)

	_, err := svc.Analyze(context.Background(), userID, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyzeScopedToOwner(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	svc, db := newTestService(t, ai, nil)
	owner := seedUser(t, db)

	out, err := svc.Create(context.Background(), owner, createDTO(), false)
	require.NoError(t, err)

	other := models.UserModel{Name: "Bilal", Email: "bilal@example.com", Password: "x", CNIC: "42101-7654321-2"}
	require.NoError(t, db.Create(&other).Error)

	_, err = svc.Analyze(context.Background(), other.ID, out.Report.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, ai.calls)
}

func TestListFilters(t *testing.T) {
	svc, db := newTestService(t, &fakeAnalyzer{}, nil)
	userID := seedUser(t, db)

	mk := func(title, fileType, date string, tags []string) {
		dto := createDTO()
		dto.Title = title
		dto.FileType = fileType
		dto.DateTaken = date
		dto.Tags = tags
		_, err := svc.Create(context.Background(), userID, dto, false)
		require.NoError(t, err)
	}
	mk("CBC Report", models.FileTypePDF, "2026-08-01", []string{"blood"})
	mk("Chest X-Ray", models.FileTypeImage, "2026-08-10", []string{"xray", "chest"})
	mk("Lipid Profile", models.FileTypePDF, "2026-08-20", []string{"blood", "lipids"})

	page := pagination.Query{Page: 1, Size: 10}

	items, meta, err := svc.List(context.Background(), userID, ListQuery{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 3, meta.Total)
	// newest date first
	assert.Equal(t, "Lipid Profile", items[0].Title)

	items, _, err = svc.List(context.Background(), userID, ListQuery{Type: models.FileTypeImage}, page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Chest X-Ray", items[0].Title)

	items, _, err = svc.List(context.Background(), userID, ListQuery{Tag: "blood"}, page)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	start := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	items, _, err = svc.List(context.Background(), userID, ListQuery{StartDate: &start, EndDate: &end}, page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Chest X-Ray", items[0].Title)

	items, _, err = svc.List(context.Background(), userID, ListQuery{Search: "lipid"}, page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Lipid Profile", items[0].Title)
}

func TestListIsolatedPerUser(t *testing.T) {
	svc, db := newTestService(t, &fakeAnalyzer{}, nil)
	userID := seedUser(t, db)
	_, err := svc.Create(context.Background(), userID, createDTO(), false)
	require.NoError(t, err)

	other := models.UserModel{Name: "Bilal", Email: "bilal@example.com", Password: "x", CNIC: "42101-7654321-2"}
	require.NoError(t, db.Create(&other).Error)

	items, meta, err := svc.List(context.Background(), other.ID, ListQuery{}, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, meta.Total)
}

func TestDeleteCascades(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	files := &fakeDestroyer{}
	svc, db := newTestService(t, ai, files)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), true)
	require.NoError(t, err)
	liked := true
	require.NoError(t, svc.Feedback(context.Background(), userID, out.Report.ID, FeedbackDTO{Liked: &liked}))

	require.NoError(t, svc.Delete(context.Background(), userID, out.Report.ID))

	assert.Equal(t, []string{"healthmate/cbc"}, files.destroyed)
	for _, probe := range []struct {
		model interface{}
		name  string
	}{
		{&models.ReportModel{}, "reports"},
		{&models.ReportInsightModel{}, "insights"},
		{&models.InsightFeedbackModel{}, "feedback"},
	} {
		var count int64
		db.Model(probe.model).Count(&count)
		assert.Zero(t, count, probe.name)
	}
}

func TestDeleteSurvivesStorageFailure(t *testing.T) {
	files := &fakeDestroyer{err: context.DeadlineExceeded}
	svc, db := newTestService(t, &fakeAnalyzer{}, files)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), userID, out.Report.ID))
	var count int64
	db.Model(&models.ReportModel{}).Count(&count)
	assert.Zero(t, count)
}

func TestFeedbackRequiresInsight(t *testing.T) {
	svc, db := newTestService(t, &fakeAnalyzer{}, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), false)
	require.NoError(t, err)

	err = svc.Feedback(context.Background(), userID, out.Report.ID, FeedbackDTO{Comment: "nice"})
	assert.ErrorIs(t, err, ErrNoInsight)
}

func TestFeedbackRecorded(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	svc, db := newTestService(t, ai, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), true)
	require.NoError(t, err)

	liked := false
	require.NoError(t, svc.Feedback(context.Background(), userID, out.Report.ID, FeedbackDTO{
		Liked: &liked, Comment: "too vague",
	}))

	detail, err := svc.Get(context.Background(), userID, out.Report.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Insight)
	require.Len(t, detail.Insight.Feedback, 1)
	fb := detail.Insight.Feedback[0]
	require.NotNil(t, fb.Liked)
	assert.False(t, *fb.Liked)
	assert.Equal(t, "too vague", fb.Comment)
	assert.Equal(t, userID, fb.UserID)
}

func TestShareLifecycle(t *testing.T) {
	ai := &fakeAnalyzer{result: labResult()}
	svc, db := newTestService(t, ai, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), true)
	require.NoError(t, err)

	info, err := svc.Share(context.Background(), userID, out.Report.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, info.Token)
	assert.Nil(t, info.ExpiresAt)

	shared, err := svc.GetShared(context.Background(), info.Token)
	require.NoError(t, err)
	assert.Equal(t, out.Report.ID, shared.Report.ID)
	require.NotNil(t, shared.Insight)
	assert.Equal(t, "Your hemoglobin is low.", shared.Insight.LanguageSummaries.En)

	require.NoError(t, svc.Unshare(context.Background(), userID, out.Report.ID))
	_, err = svc.GetShared(context.Background(), info.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSharedLinkExpires(t *testing.T) {
	svc, db := newTestService(t, &fakeAnalyzer{}, nil)
	userID := seedUser(t, db)

	out, err := svc.Create(context.Background(), userID, createDTO(), false)
	require.NoError(t, err)

	info, err := svc.Share(context.Background(), userID, out.Report.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, info.ExpiresAt)

	// push the expiry into the past
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.ReportModel{}).
		Where("id = ?", out.Report.ID).
		Update("privacy_share_expires_at", past).Error)

	_, err = svc.GetShared(context.Background(), info.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}
