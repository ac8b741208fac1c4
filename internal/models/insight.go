package models

import "time"

// Severity flags the model may assign to a highlighted value or alert.
const (
	FlagHigh    = "high"
	FlagLow     = "low"
	FlagNormal  = "normal"
	FlagUnknown = "unknown"
)

// LanguageSummaries carries the bilingual summary pair. Both fields are always
// present, possibly empty, never absent.
type LanguageSummaries struct {
	En    string `json:"en"`
	Roman string `json:"roman"`
}

// InsightHighlight is one noteworthy lab/vital value extracted from a report.
type InsightHighlight struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Flag  string `json:"flag"` // high | low | normal | unknown
}

// VitalsAlert is one flagged measurement from a vitals analysis.
type VitalsAlert struct {
	Key    string `json:"key"`
	Status string `json:"status"` // high | low | normal | unknown
	Reason string `json:"reason"`
}

// ReportInsightModel is the AI-derived summary attached to a report.
// Each report holds at most one; re-analysis overwrites it in place.
type ReportInsightModel struct {
	Base
	ReportID          string                `json:"report_id"           gorm:"index;not null"`
	LanguageSummaries LanguageSummaries     `json:"language_summaries"  gorm:"embedded;embeddedPrefix:summary_"`
	Highlights        []InsightHighlight    `json:"highlights"          gorm:"type:longtext;serializer:json"`
	DoctorQuestions   StringArray           `json:"doctor_questions"    gorm:"type:longtext"`
	DietTips          StringArray           `json:"diet_tips"           gorm:"type:longtext"`
	Warnings          StringArray           `json:"warnings"            gorm:"type:longtext"`
	RawModelResponse  RawJSON               `json:"raw_model_response"  gorm:"type:longtext"`
	Feedback          []InsightFeedbackModel `json:"feedback,omitempty" gorm:"foreignKey:InsightID"`
}

func (ReportInsightModel) TableName() string { return "report_insights" }

// VitalsInsightModel is the AI-derived assessment attached to a vitals entry.
type VitalsInsightModel struct {
	Base
	VitalID           string            `json:"vital_id"            gorm:"index;not null"`
	LanguageSummaries LanguageSummaries `json:"language_summaries"  gorm:"embedded;embeddedPrefix:summary_"`
	Assessment        string            `json:"assessment"          gorm:"type:text"`
	Alerts            []VitalsAlert     `json:"alerts"              gorm:"type:longtext;serializer:json"`
	Advice            StringArray       `json:"advice"              gorm:"type:longtext"`
	FollowupQuestions StringArray       `json:"followup_questions"  gorm:"type:longtext"`
	RawModelResponse  RawJSON           `json:"raw_model_response"  gorm:"type:longtext"`
}

func (VitalsInsightModel) TableName() string { return "vitals_insights" }

// InsightFeedbackModel records a user's reaction to a report insight.
type InsightFeedbackModel struct {
	Base
	InsightID string    `json:"-"          gorm:"index;not null"`
	UserID    string    `json:"user_id"    gorm:"index;not null"`
	Liked     *bool     `json:"liked"`
	Comment   string    `json:"comment"    gorm:"type:text"`
	GivenAt   time.Time `json:"given_at"`
}

func (InsightFeedbackModel) TableName() string { return "insight_feedback" }
