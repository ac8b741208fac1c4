package vitals

import (
	"time"

	"github.com/healthmate/core/internal/models"
)

// AddVitalDTO is the body for POST /vitals. Type is optional; when absent it
// is inferred from whichever measurements are supplied.
type AddVitalDTO struct {
	Type      string                 `json:"type"      binding:"omitempty,oneof=bp sugar weight other"`
	Systolic  *float64               `json:"systolic"`
	Diastolic *float64               `json:"diastolic"`
	Sugar     *float64               `json:"sugar"`
	SugarType string                 `json:"sugarType" binding:"omitempty,oneof=fasting random"`
	Height    *float64               `json:"height"`
	Weight    *float64               `json:"weight"`
	SpO2      *float64               `json:"spo2"`
	HeartRate *float64               `json:"heartRate"`
	TimeOfDay string                 `json:"timeOfDay"`
	Frequency string                 `json:"frequency"`
	Values    map[string]interface{} `json:"values"`
	Notes     string                 `json:"notes"`
	Date      string                 `json:"date"`
	Analyze   *bool                  `json:"analyze"`
}

// ListQuery holds the recognized /vitals filters.
type ListQuery struct {
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
}

// VitalWithInsight is the detail payload for a single vitals entry.
type VitalWithInsight struct {
	Vital   *models.VitalModel         `json:"vital"`
	Insight *models.VitalsInsightModel `json:"aiInsight"`
}
