package vitals

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
	calls     int
	lastInput gemini.AnalyzeVitalsInput
	result    *gemini.VitalsResult
	err       error
}

func (f *fakeAnalyzer) AnalyzeVitals(_ context.Context, input gemini.AnalyzeVitalsInput) (*gemini.VitalsResult, error) {
	f.calls++
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func bpResult() *gemini.VitalsResult {
	return &gemini.VitalsResult{
		Insight: gemini.VitalsInsight{
			LanguageSummaries: models.LanguageSummaries{
				En:    "Your blood pressure is elevated.",
				Roman: "Aap ka blood pressure barha hua hai.",
			},
			Assessment: "needs_attention",
			Alerts: []models.VitalsAlert{
				{Key: "systolic", Status: models.FlagHigh, Reason: "Above 140 mmHg"},
			},
			Advice:            []string{"Reduce salt intake."},
			FollowupQuestions: []string{"Do you take BP medication?"},
		},
		Raw: json.RawMessage(`{"assessment":"needs_attention"}`),
	}
}

func newTestService(t *testing.T) (*Service, *fakeAnalyzer, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	ai := &fakeAnalyzer{result: bpResult()}
	return NewService(db, ai, zap.NewNop()), ai, db
}

func seedUser(t *testing.T, db *gorm.DB) string {
	t.Helper()
	user := models.UserModel{Name: "Amna", Email: "amna@example.com", Password: "x", CNIC: "42101-1234567-1"}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func f64(v float64) *float64 { return &v }

func TestAddInfersType(t *testing.T) {
	svc, _, db := newTestService(t)
	userID := seedUser(t, db)

	cases := []struct {
		name string
		dto  AddVitalDTO
		want string
	}{
		{"bp", AddVitalDTO{Systolic: f64(150), Diastolic: f64(95)}, models.VitalTypeBP},
		{"sugar", AddVitalDTO{Sugar: f64(110), SugarType: models.SugarTypeFasting}, models.VitalTypeSugar},
		{"weight", AddVitalDTO{Weight: f64(82)}, models.VitalTypeWeight},
		{"other", AddVitalDTO{Notes: "felt dizzy"}, models.VitalTypeOther},
		{"explicit wins", AddVitalDTO{Type: models.VitalTypeOther, Systolic: f64(120)}, models.VitalTypeOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := svc.Add(context.Background(), userID, tc.dto, false)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Vital.Type)
		})
	}
}

func TestAddMergesValuesMap(t *testing.T) {
	svc, ai, db := newTestService(t)
	userID := seedUser(t, db)

	out, err := svc.Add(context.Background(), userID, AddVitalDTO{
		Systolic:  f64(150),
		Diastolic: f64(95),
		Values:    map[string]interface{}{"systolic": 999.0, "mood": "tired"},
	}, false)
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), userID, out.Vital.ID)
	require.NoError(t, err)

	// explicit column beats the legacy values map on collision
	assert.Equal(t, 150.0, ai.lastInput.Values["systolic"])
	assert.Equal(t, 95.0, ai.lastInput.Values["diastolic"])
	assert.Equal(t, "tired", ai.lastInput.Values["mood"])
	assert.Equal(t, models.VitalTypeBP, ai.lastInput.Values["type"])
}

func TestAddWithInlineAnalysis(t *testing.T) {
	svc, ai, _ := newTestService(t)
	userID := seedUser(t, svc.db)

	out, err := svc.Add(context.Background(), userID, AddVitalDTO{
		Systolic: f64(150), Diastolic: f64(95), Analyze: nil,
	}, true)
	require.NoError(t, err)
	require.NotNil(t, out.Insight)
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, "needs_attention", out.Insight.Assessment)
	require.NotNil(t, out.Vital.InsightID)
	assert.Equal(t, out.Insight.ID, *out.Vital.InsightID)
}

func TestAddSurvivesAnalysisFailure(t *testing.T) {
	svc, ai, db := newTestService(t)
	ai.err = &gemini.ExhaustedError{Endpoint: "/v1/models/x:generateContent", Detail: "not found"}
	userID := seedUser(t, db)

	out, err := svc.Add(context.Background(), userID, AddVitalDTO{Sugar: f64(200)}, true)
	require.NoError(t, err)
	assert.Nil(t, out.Insight)

	var count int64
	db.Model(&models.VitalModel{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestReanalyzeUpdatesSameInsight(t *testing.T) {
	svc, ai, db := newTestService(t)
	userID := seedUser(t, db)

	out, err := svc.Add(context.Background(), userID, AddVitalDTO{Systolic: f64(150)}, true)
	require.NoError(t, err)
	firstID := out.Insight.ID

	ai.result = &gemini.VitalsResult{
		Insight: gemini.VitalsInsight{
			LanguageSummaries: models.LanguageSummaries{En: "Back in range.", Roman: "Ab normal hai."},
			Assessment:        "normal",
			Alerts:            []models.VitalsAlert{},
		},
		Raw: json.RawMessage(`{"assessment":"normal"}`),
	}

	updated, err := svc.Analyze(context.Background(), userID, out.Vital.ID)
	require.NoError(t, err)
	assert.Equal(t, firstID, updated.ID)
	assert.Equal(t, "normal", updated.Assessment)

	var insights int64
	db.Model(&models.VitalsInsightModel{}).Count(&insights)
	assert.EqualValues(t, 1, insights)
}

func TestListFilters(t *testing.T) {
	svc, _, db := newTestService(t)
	userID := seedUser(t, db)

	mk := func(dto AddVitalDTO, date string) {
		dto.Date = date
		_, err := svc.Add(context.Background(), userID, dto, false)
		require.NoError(t, err)
	}
	mk(AddVitalDTO{Systolic: f64(150)}, "2026-08-01")
	mk(AddVitalDTO{Sugar: f64(110)}, "2026-08-10")
	mk(AddVitalDTO{Weight: f64(82)}, "2026-08-20")

	page := pagination.Query{Page: 1, Size: 10}

	items, meta, err := svc.List(context.Background(), userID, ListQuery{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 3, meta.Total)
	assert.Equal(t, models.VitalTypeWeight, items[0].Type)

	items, _, err = svc.List(context.Background(), userID, ListQuery{Type: models.VitalTypeSugar}, page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.VitalTypeSugar, items[0].Type)

	start := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	items, _, err = svc.List(context.Background(), userID, ListQuery{StartDate: &start}, page)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestDeleteRemovesInsight(t *testing.T) {
	svc, _, db := newTestService(t)
	userID := seedUser(t, db)

	out, err := svc.Add(context.Background(), userID, AddVitalDTO{Systolic: f64(150)}, true)
	require.NoError(t, err)
	require.NotNil(t, out.Insight)

	require.NoError(t, svc.Delete(context.Background(), userID, out.Vital.ID))

	var vitals, insights int64
	db.Model(&models.VitalModel{}).Count(&vitals)
	db.Model(&models.VitalsInsightModel{}).Count(&insights)
	assert.Zero(t, vitals)
	assert.Zero(t, insights)
}

func TestAnalyzeScopedToOwner(t *testing.T) {
	svc, ai, db := newTestService(t)
	owner := seedUser(t, db)

	out, err := svc.Add(context.Background(), owner, AddVitalDTO{Systolic: f64(150)}, false)
	require.NoError(t, err)

	other := models.UserModel{Name: "Bilal", Email: "bilal@example.com", Password: "x", CNIC: "42101-7654321-2"}
	require.NoError(t, db.Create(&other).Error)

	_, err = svc.Analyze(context.Background(), other.ID, out.Vital.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, ai.calls)
}
