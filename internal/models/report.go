package models

import "time"

// File types accepted for medical reports.
const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
)

// ReportPrivacy holds share-link state embedded in a report row.
type ReportPrivacy struct {
	Shared         bool       `json:"shared"`
	ShareToken     *string    `json:"share_token,omitempty"      gorm:"index"`
	ShareExpiresAt *time.Time `json:"share_expires_at,omitempty"`
}

// ReportModel is an uploaded medical report file owned by a user.
type ReportModel struct {
	Base
	UserID       string        `json:"user_id"        gorm:"index;not null"`
	Title        string        `json:"title"          gorm:"not null"`
	FileURL      string        `json:"file_url"       gorm:"type:text;not null"`
	FilePublicID string        `json:"file_public_id" gorm:"not null"`
	FileType     string        `json:"file_type"      gorm:"type:varchar(16);not null"` // pdf | image
	DateTaken    time.Time     `json:"date_taken"     gorm:"index;not null"`
	Tags         StringArray   `json:"tags"           gorm:"type:longtext"`
	Notes        string        `json:"notes"          gorm:"type:text"`
	AIInsightID  *string       `json:"ai_insight_id"  gorm:"type:char(36)"`
	Privacy      ReportPrivacy `json:"privacy"        gorm:"embedded;embeddedPrefix:privacy_"`
}

func (ReportModel) TableName() string { return "reports" }
