package report

import (
	"time"

	"github.com/healthmate/core/internal/models"
)

// CreateReportDTO is the request body for POST /reports. The file itself is
// uploaded to object storage by the client beforehand; this registers it.
type CreateReportDTO struct {
	Title        string   `json:"title"        binding:"required"`
	FileURL      string   `json:"fileUrl"      binding:"required"`
	FilePublicID string   `json:"filePublicId" binding:"required"`
	FileType     string   `json:"fileType"     binding:"required,oneof=pdf image"`
	DateTaken    string   `json:"dateTaken"    binding:"required"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	Analyze      *bool    `json:"analyze"`
}

// ListQuery holds the recognized /reports filters.
type ListQuery struct {
	Type      string
	Tag       string
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
}

// FeedbackDTO is the body for POST /reports/:id/feedback.
type FeedbackDTO struct {
	Liked   *bool  `json:"liked"`
	Comment string `json:"comment"`
}

// ShareDTO is the body for POST /reports/:id/share.
type ShareDTO struct {
	ExpiresInHours int `json:"expiresInHours"`
}

// ReportWithInsight is the detail payload returned by upload/get/analyze.
type ReportWithInsight struct {
	Report  *models.ReportModel        `json:"report"`
	Insight *models.ReportInsightModel `json:"aiInsight"`
}

// ShareInfo is returned after creating a share link.
type ShareInfo struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
