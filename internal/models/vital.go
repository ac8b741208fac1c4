package models

import "time"

// Vital record kinds.
const (
	VitalTypeBP     = "bp"
	VitalTypeSugar  = "sugar"
	VitalTypeWeight = "weight"
	VitalTypeOther  = "other"
)

// Sugar measurement contexts.
const (
	SugarTypeFasting = "fasting"
	SugarTypeRandom  = "random"
)

// VitalModel is a single vitals entry owned by a user.
// Explicit measurement columns coexist with the free-form Values map kept for
// compatibility with entries imported from the legacy deployment.
type VitalModel struct {
	Base
	UserID    string    `json:"user_id"              gorm:"index;not null"`
	Type      string    `json:"type"                 gorm:"type:varchar(16)"` // bp | sugar | weight | other
	Systolic  *float64  `json:"systolic,omitempty"`
	Diastolic *float64  `json:"diastolic,omitempty"`
	Sugar     *float64  `json:"sugar,omitempty"`
	SugarType string    `json:"sugar_type,omitempty" gorm:"type:varchar(16)"` // fasting | random
	Height    *float64  `json:"height,omitempty"`
	Weight    *float64  `json:"weight,omitempty"`
	SpO2      *float64  `json:"spo2,omitempty"       gorm:"column:spo2"`
	HeartRate *float64  `json:"heart_rate,omitempty"`
	TimeOfDay string    `json:"time_of_day,omitempty"`
	Frequency string    `json:"frequency,omitempty"`
	Values    JSONMap   `json:"values"               gorm:"type:longtext"`
	Notes     string    `json:"notes"                gorm:"type:text"`
	Date      time.Time `json:"date"                 gorm:"index;not null"`
	InsightID *string   `json:"insight_id"           gorm:"type:char(36)"`
}

func (VitalModel) TableName() string { return "vitals" }
